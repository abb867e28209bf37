// Package vault encrypts provider credentials before they reach storage.
//
// The vault is a pure transform around AES-256-GCM: callers hand it
// plaintext bytes and get back an authenticated payload, or hand back a
// payload and get the original bytes. Tampered payloads and payloads
// produced under a different key fail with ErrIntegrity.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// ErrIntegrity indicates the payload was tampered with or encrypted under
// a different key.
var ErrIntegrity = errors.New("credential integrity check failed")

// Vault seals and opens credentials using AES-GCM.
type Vault struct {
	aead cipher.AEAD
}

// New builds a vault from a raw AES key.
// key must be a valid AES length (16/24/32 bytes).
func New(key []byte) (*Vault, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return &Vault{aead: aead}, nil
}

// Encrypt seals one plaintext value. The returned payload is
// nonce || ciphertext and is safe to persist.
func (v *Vault) Encrypt(plaintext []byte) ([]byte, error) {
	if v == nil || v.aead == nil {
		return nil, errors.New("vault is not configured")
	}

	// AES-GCM requires a unique nonce per encryption under the same key.
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}

	ciphertext := v.aead.Seal(nil, nonce, plaintext, nil)
	return append(nonce, ciphertext...), nil
}

// Decrypt opens one previously encrypted payload.
func (v *Vault) Decrypt(payload []byte) ([]byte, error) {
	if v == nil || v.aead == nil {
		return nil, errors.New("vault is not configured")
	}

	nonceSize := v.aead.NonceSize()
	if len(payload) < nonceSize {
		return nil, ErrIntegrity
	}
	// Payload format is nonce || ciphertext.
	nonce := payload[:nonceSize]
	ciphertext := payload[nonceSize:]
	plaintext, err := v.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrIntegrity
	}
	return plaintext, nil
}
