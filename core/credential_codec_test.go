package core

import (
	"testing"
	"time"
)

func TestJSONTokenStateCodec_RoundTrip(t *testing.T) {
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	expires := now.Add(time.Hour)

	codec := JSONTokenStateCodec{}
	encoded, err := codec.Encode(TokenState{
		Identity:  &Credentials{ClientID: " client ", ClientSecret: "secret"},
		Token:     "access-1",
		TokenType: "Bearer",
		ExpiresAt: &expires,
		IssuedAt:  &now,
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := codec.Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Identity == nil || decoded.Identity.ClientID != "client" || decoded.Identity.ClientSecret != "secret" {
		t.Fatalf("unexpected identity %+v", decoded.Identity)
	}
	if decoded.Token != "access-1" || decoded.ExpiresAt == nil || !decoded.ExpiresAt.Equal(expires) {
		t.Fatalf("unexpected token state %+v", decoded)
	}
	if codec.Format() != TokenStatePayloadFormatJSONV1 || codec.Version() != TokenStatePayloadVersionV1 {
		t.Fatalf("unexpected codec format/version")
	}
}

func TestJSONTokenStateCodec_TokenWithoutExpiryIsDropped(t *testing.T) {
	decoded, err := JSONTokenStateCodec{}.Decode([]byte(`{"client_id":"client","token":"orphan"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.HasToken() || decoded.Token != "" {
		t.Fatalf("expected orphan token to be dropped, got %+v", decoded)
	}
	if decoded.Identity == nil {
		t.Fatalf("expected identity to survive")
	}
}

func TestJSONTokenStateCodec_RejectsEmptyAndMalformed(t *testing.T) {
	codec := JSONTokenStateCodec{}
	if _, err := codec.Decode(nil); err == nil {
		t.Fatalf("expected empty payload error")
	}
	if _, err := codec.Decode([]byte("{")); err == nil {
		t.Fatalf("expected malformed payload error")
	}
}
