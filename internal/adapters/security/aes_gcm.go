package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// AESGCMEncryption keeps batch private keys encrypted at rest. Each key is
// sealed under a key derived from the configured seed and the batch slug.
type AESGCMEncryption struct {
	seed string
}

func NewAESGCMEncryption(seed string) *AESGCMEncryption {
	return &AESGCMEncryption{seed: seed}
}

func (e *AESGCMEncryption) Encrypt(keyID string, plaintext []byte) ([]byte, error) {
	gcm, err := e.cipher(keyID)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, plaintext, []byte(keyID))
	return []byte(base64.StdEncoding.EncodeToString(sealed)), nil
}

func (e *AESGCMEncryption) Decrypt(keyID string, payload []byte) ([]byte, error) {
	gcm, err := e.cipher(keyID)
	if err != nil {
		return nil, err
	}
	decoded, err := base64.StdEncoding.DecodeString(string(payload))
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if len(decoded) < gcm.NonceSize() {
		return nil, errors.New("encrypted payload is too short")
	}
	nonce, sealed := decoded[:gcm.NonceSize()], decoded[gcm.NonceSize():]
	return gcm.Open(nil, nonce, sealed, []byte(keyID))
}

func (e *AESGCMEncryption) cipher(keyID string) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(keyID, e.seed))
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func deriveKey(keyID, seed string) []byte {
	sum := sha256.Sum256([]byte(seed + ":" + keyID))
	return sum[:]
}
