// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Encrypted values are stored as ENC:base64(nonce || ciphertext || tag),
// one format across both durable backends.
const (
	// EncryptedPrefix marks a stored value as encrypted.
	EncryptedPrefix = "ENC:"
	// NonceSize is the AES-GCM nonce size (96 bits).
	NonceSize = 12
	// KeySize is the AES-256 key size.
	KeySize = 32
	// SaltSize is the key derivation salt size.
	SaltSize = 32
	// PBKDF2Iterations follows the OWASP 2023 recommendation for
	// PBKDF2-SHA-256.
	PBKDF2Iterations = 600000
)

var (
	// ErrInvalidKeySize indicates the key is not KeySize bytes.
	ErrInvalidKeySize = errors.New("encryption key must be 32 bytes")
	// ErrInvalidCiphertext indicates the stored value is malformed.
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")
	// ErrDecryptionFailed indicates a wrong key or tampered data.
	ErrDecryptionFailed = errors.New("decryption failed: authentication tag mismatch")
)

// ZeroBytes zeros sensitive byte slices to limit key material exposure.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// GenerateSalt returns a new random key derivation salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey derives an AES-256 key from a passphrase and salt using
// PBKDF2-SHA-256.
func DeriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, PBKDF2Iterations, KeySize, sha256.New)
}

// Cipher encrypts durable cache values at rest with AES-256-GCM.
// The fast layer stays plaintext; only bytes leaving the process are sealed.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a cipher from a raw AES-256 key. The caller may zero
// the key afterwards.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM cipher: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// EncryptValue seals a plaintext value into the stored format.
func (c *Cipher) EncryptValue(plain []byte) ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, plain, nil)
	out := make([]byte, 0, len(EncryptedPrefix)+base64.StdEncoding.EncodedLen(len(sealed)))
	out = append(out, EncryptedPrefix...)
	out = base64.StdEncoding.AppendEncode(out, sealed)
	return out, nil
}

// DecryptValue opens a stored value. Values without the encryption prefix
// pass through unchanged, so plaintext entries written before encryption
// was enabled stay readable.
func (c *Cipher) DecryptValue(data []byte) ([]byte, error) {
	if !IsEncrypted(data) {
		return data, nil
	}

	encoded := data[len(EncryptedPrefix):]
	sealed, err := base64.StdEncoding.AppendDecode(nil, encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	if len(sealed) < NonceSize {
		return nil, ErrInvalidCiphertext
	}

	nonce, ciphertext := sealed[:NonceSize], sealed[NonceSize:]
	plain, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plain, nil
}

// IsEncrypted reports whether a stored value carries the encryption prefix.
func IsEncrypted(data []byte) bool {
	return bytes.HasPrefix(data, []byte(EncryptedPrefix))
}
