package hipaa

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// sealedPrefix marks stored values produced by SealValue.
const sealedPrefix = "enc:v1:"

var ErrNotSealed = errors.New("value is not sealed")

// PHIEncryptor seals individual answer values with AES-256-GCM. A sealed
// value is the prefix followed by base64(nonce || ciphertext).
type PHIEncryptor struct {
	aead cipher.AEAD
}

// ParseKey decodes a 64-character hex key.
func ParseKey(hexKey string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("phi key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("phi key: must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

// NewPHIEncryptor creates a new PHIEncryptor with the given 32-byte AES-256 key.
func NewPHIEncryptor(key []byte) (*PHIEncryptor, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("phi encryptor: key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("phi encryptor: create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("phi encryptor: create GCM: %w", err)
	}
	return &PHIEncryptor{aead: aead}, nil
}

// IsSealed reports whether v looks like a value produced by SealValue.
func IsSealed(v any) bool {
	s, ok := v.(string)
	return ok && strings.HasPrefix(s, sealedPrefix)
}

// SealValue encrypts the JSON encoding of v.
func (e *PHIEncryptor) SealValue(v any) (string, error) {
	plain, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("phi seal: encode: %w", err)
	}
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("phi seal: generate nonce: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, plain, nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// OpenValue reverses SealValue.
func (e *PHIEncryptor) OpenValue(s string) (any, error) {
	if !strings.HasPrefix(s, sealedPrefix) {
		return nil, ErrNotSealed
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(s, sealedPrefix))
	if err != nil {
		return nil, fmt.Errorf("phi open: base64 decode: %w", err)
	}
	nonceSize := e.aead.NonceSize()
	if len(data) < nonceSize {
		return nil, errors.New("phi open: ciphertext too short")
	}
	plain, err := e.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("phi open: %w", err)
	}
	var v any
	if err := json.Unmarshal(plain, &v); err != nil {
		return nil, fmt.Errorf("phi open: decode: %w", err)
	}
	return v, nil
}

// SealFields returns a copy of answers with the listed fields sealed.
// Missing and nil values are left as they are. Every other value is sealed,
// including strings that already carry the sealed prefix.
func (e *PHIEncryptor) SealFields(answers map[string]any, fieldIDs []string) (map[string]any, error) {
	out := make(map[string]any, len(answers))
	for k, v := range answers {
		out[k] = v
	}
	for _, id := range fieldIDs {
		v, ok := out[id]
		if !ok || v == nil {
			continue
		}
		sealed, err := e.SealValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", id, err)
		}
		out[id] = sealed
	}
	return out, nil
}

// OpenFields returns a copy of answers with the sealed values of the listed
// fields opened. Values of other fields are copied untouched.
func (e *PHIEncryptor) OpenFields(answers map[string]any, fieldIDs []string) (map[string]any, error) {
	out := make(map[string]any, len(answers))
	for k, v := range answers {
		out[k] = v
	}
	for _, id := range fieldIDs {
		s, ok := out[id].(string)
		if !ok || !IsSealed(s) {
			continue
		}
		opened, err := e.OpenValue(s)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", id, err)
		}
		out[id] = opened
	}
	return out, nil
}
