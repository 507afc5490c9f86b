package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

var ErrSealerUnavailable = errors.New("settings secret key not configured")

const sealedPrefix = "sb1:"

// Sealer encrypts secret settings at rest with NaCl secretbox.
type Sealer struct {
	key [32]byte
}

// NewSealer derives the box key from secret. An empty secret yields (nil, nil).
func NewSealer(secret string) (*Sealer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, nil
	}
	if len(secret) < 16 {
		return nil, fmt.Errorf("SETTINGS_SECRET_KEY must be at least 16 characters")
	}
	return &Sealer{key: sha256.Sum256([]byte(secret))}, nil
}

func (s *Sealer) Seal(plain string) (string, error) {
	if s == nil {
		return "", ErrSealerUnavailable
	}
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", err
	}
	box := secretbox.Seal(nonce[:], []byte(plain), &nonce, &s.key)
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(box), nil
}

func (s *Sealer) Open(sealed string) (string, error) {
	if s == nil {
		return "", ErrSealerUnavailable
	}
	if !strings.HasPrefix(sealed, sealedPrefix) {
		return "", fmt.Errorf("unknown sealed value format")
	}
	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(sealed, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("decode sealed value: %w", err)
	}
	if len(raw) < 24+secretbox.Overhead {
		return "", fmt.Errorf("sealed value too short")
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	plain, ok := secretbox.Open(nil, raw[24:], &nonce, &s.key)
	if !ok {
		return "", fmt.Errorf("sealed value failed authentication")
	}
	return string(plain), nil
}
