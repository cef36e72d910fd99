package security

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	sealedPrefix = "mintflow.sealed.v1:"
	sealCipher   = "aes-256-gcm"
)

// sealedCredential is the stored form of an encrypted credential blob.
type sealedCredential struct {
	KeyID   string `json:"kid"`
	Version int    `json:"ver"`
	Cipher  string `json:"alg"`
	Nonce   []byte `json:"nonce"`
	Data    []byte `json:"data"`
}

// SealInfo describes who sealed a blob without opening it.
type SealInfo struct {
	KeyID   string
	Version int
	Cipher  string
}

// Inspect reads the key id and version stamped on a sealed blob.
func Inspect(sealed []byte) (SealInfo, error) {
	blob, err := unmarshalSealed(sealed)
	if err != nil {
		return SealInfo{}, err
	}
	return SealInfo{KeyID: blob.KeyID, Version: blob.Version, Cipher: blob.Cipher}, nil
}

func marshalSealed(blob sealedCredential) ([]byte, error) {
	raw, err := json.Marshal(blob)
	if err != nil {
		return nil, fmt.Errorf("security: marshal sealed credential: %w", err)
	}
	out := make([]byte, 0, len(sealedPrefix)+base64.RawURLEncoding.EncodedLen(len(raw)))
	out = append(out, sealedPrefix...)
	return base64.RawURLEncoding.AppendEncode(out, raw), nil
}

func unmarshalSealed(sealed []byte) (sealedCredential, error) {
	body, ok := bytes.CutPrefix(bytes.TrimSpace(sealed), []byte(sealedPrefix))
	if !ok {
		return sealedCredential{}, fmt.Errorf("security: value is not a sealed credential")
	}
	raw, err := base64.RawURLEncoding.DecodeString(string(body))
	if err != nil {
		return sealedCredential{}, fmt.Errorf("security: sealed credential encoding: %w", err)
	}
	var blob sealedCredential
	if err := json.Unmarshal(raw, &blob); err != nil {
		return sealedCredential{}, fmt.Errorf("security: sealed credential body: %w", err)
	}
	blob.KeyID = strings.TrimSpace(blob.KeyID)
	blob.Cipher = strings.ToLower(strings.TrimSpace(blob.Cipher))
	if len(blob.Data) == 0 {
		return sealedCredential{}, fmt.Errorf("security: sealed credential has no data")
	}
	return blob, nil
}
