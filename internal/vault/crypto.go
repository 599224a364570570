// Package vault provides the security primitives of the daemon: sealing profile files at rest
// and the self-signed certificate for the HTTPS listener.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// KeySize is the length of a data key (AES-256).
const KeySize = 32

var (
	ErrKeySize        = fmt.Errorf("data key must be %d bytes", KeySize)
	ErrCiphertext     = errors.New("ciphertext too short")
	ErrAuthentication = errors.New("decryption failed (wrong key or tampered data)")
)

// ParseKey decodes a hex-encoded data key.
func ParseKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode data key: %w", err)
	}
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	return key, nil
}

// Seal encrypts plaintext with AES-GCM and returns hex(nonce || ciphertext).
func Seal(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	out := make([]byte, hex.EncodedLen(len(sealed)))
	hex.Encode(out, sealed)
	return out, nil
}

// Open reverses Seal.
func Open(encoded, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	raw := make([]byte, hex.DecodedLen(len(encoded)))
	if _, err := hex.Decode(raw, encoded); err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(raw) < nonceSize {
		return nil, ErrCiphertext
	}
	plaintext, err := gcm.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
