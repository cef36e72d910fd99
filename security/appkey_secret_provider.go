package security

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/goliatone/go-mintflow/core"
)

const defaultKeyID = "app-key"

type Option func(*AppKeySecretProvider)

// AppKeySecretProvider seals persisted client credentials and access tokens
// under a key derived from the application key. The key id is bound into
// the ciphertext as additional data.
type AppKeySecretProvider struct {
	aead    cipher.AEAD
	keyID   string
	version int
}

func WithKeyID(id string) Option {
	return func(p *AppKeySecretProvider) {
		if id = strings.TrimSpace(id); id != "" {
			p.keyID = id
		}
	}
}

func WithVersion(version int) Option {
	return func(p *AppKeySecretProvider) {
		if version > 0 {
			p.version = version
		}
	}
}

func NewAppKeySecretProvider(appKey []byte, opts ...Option) (*AppKeySecretProvider, error) {
	appKey = bytes.TrimSpace(appKey)
	if len(appKey) == 0 {
		return nil, fmt.Errorf("security: app key is empty")
	}
	aead, err := newAEAD(deriveKey(appKey))
	if err != nil {
		return nil, err
	}
	p := &AppKeySecretProvider{aead: aead, keyID: defaultKeyID, version: 1}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

func NewAppKeySecretProviderFromString(appKey string, opts ...Option) (*AppKeySecretProvider, error) {
	return NewAppKeySecretProvider([]byte(appKey), opts...)
}

func (p *AppKeySecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if p == nil || p.aead == nil {
		return nil, fmt.Errorf("security: secret provider is not configured")
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("security: nothing to seal")
	}
	nonce := make([]byte, p.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("security: nonce: %w", err)
	}
	return marshalSealed(sealedCredential{
		KeyID:   p.keyID,
		Version: p.version,
		Cipher:  sealCipher,
		Nonce:   nonce,
		Data:    p.aead.Seal(nil, nonce, plaintext, []byte(p.keyID)),
	})
}

func (p *AppKeySecretProvider) Decrypt(_ context.Context, sealed []byte) ([]byte, error) {
	if p == nil || p.aead == nil {
		return nil, fmt.Errorf("security: secret provider is not configured")
	}
	blob, err := unmarshalSealed(sealed)
	if err != nil {
		return nil, err
	}
	switch {
	case blob.Cipher != sealCipher:
		return nil, fmt.Errorf("security: cannot open %q sealed credential", blob.Cipher)
	case blob.KeyID != p.keyID:
		return nil, fmt.Errorf("security: credential sealed by key %q, have %q", blob.KeyID, p.keyID)
	case blob.Version != p.version:
		return nil, fmt.Errorf("security: credential sealed by key version %d, have %d", blob.Version, p.version)
	case len(blob.Nonce) != p.aead.NonceSize():
		return nil, fmt.Errorf("security: nonce has %d bytes", len(blob.Nonce))
	}
	plaintext, err := p.aead.Open(nil, blob.Nonce, blob.Data, []byte(blob.KeyID))
	if err != nil {
		return nil, fmt.Errorf("security: open sealed credential: %w", err)
	}
	return plaintext, nil
}

func (p *AppKeySecretProvider) KeyID() string {
	if p == nil {
		return ""
	}
	return p.keyID
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("security: cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// deriveKey uses raw AES-256 keys as given and hashes anything else.
func deriveKey(appKey []byte) []byte {
	if len(appKey) == 32 {
		return bytes.Clone(appKey)
	}
	sum := sha256.Sum256(appKey)
	return sum[:]
}

var _ core.SecretProvider = (*AppKeySecretProvider)(nil)
