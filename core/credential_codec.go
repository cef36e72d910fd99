package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	TokenStatePayloadFormatJSONV1 = "token_state_json"
	TokenStatePayloadVersionV1    = 1
)

// TokenStateCodec serializes token state before it is encrypted at rest.
type TokenStateCodec interface {
	Format() string
	Version() int
	Encode(state TokenState) ([]byte, error)
	Decode(payload []byte) (TokenState, error)
}

type JSONTokenStateCodec struct{}

func (JSONTokenStateCodec) Format() string {
	return TokenStatePayloadFormatJSONV1
}

func (JSONTokenStateCodec) Version() int {
	return TokenStatePayloadVersionV1
}

type jsonTokenStatePayload struct {
	ClientID     string     `json:"client_id,omitempty"`
	ClientSecret string     `json:"client_secret,omitempty"`
	Token        string     `json:"token,omitempty"`
	TokenType    string     `json:"token_type,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	IssuedAt     *time.Time `json:"issued_at,omitempty"`
}

func (JSONTokenStateCodec) Encode(state TokenState) ([]byte, error) {
	payload := jsonTokenStatePayload{
		Token:     strings.TrimSpace(state.Token),
		TokenType: strings.TrimSpace(state.TokenType),
		ExpiresAt: cloneTimePointer(state.ExpiresAt),
		IssuedAt:  cloneTimePointer(state.IssuedAt),
	}
	if state.Identity != nil {
		payload.ClientID = strings.TrimSpace(state.Identity.ClientID)
		payload.ClientSecret = strings.TrimSpace(state.Identity.ClientSecret)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("core: encode token state payload: %w", err)
	}
	return encoded, nil
}

func (JSONTokenStateCodec) Decode(payload []byte) (TokenState, error) {
	if len(payload) == 0 {
		return TokenState{}, fmt.Errorf("core: token state payload is empty")
	}
	decoded := jsonTokenStatePayload{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return TokenState{}, fmt.Errorf("core: decode token state payload: %w", err)
	}
	state := TokenState{
		Token:     strings.TrimSpace(decoded.Token),
		TokenType: strings.TrimSpace(decoded.TokenType),
		ExpiresAt: cloneTimePointer(decoded.ExpiresAt),
		IssuedAt:  cloneTimePointer(decoded.IssuedAt),
	}
	if decoded.ClientID != "" || decoded.ClientSecret != "" {
		state.Identity = &Credentials{
			ClientID:     strings.TrimSpace(decoded.ClientID),
			ClientSecret: strings.TrimSpace(decoded.ClientSecret),
		}
	}
	if state.Token != "" && state.ExpiresAt == nil {
		// a token without expiry is treated as absent
		state.Token = ""
	}
	return state, nil
}
