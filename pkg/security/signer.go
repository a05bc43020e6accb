package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

var ErrBadSignature = errors.New("bad signature")

// Signer produces and verifies tamper-evident tokens of the form
// "<value>.<signature>". The signature is an HMAC over the value, so
// verification needs no server-side lookup table.
type Signer struct {
	key []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{key: []byte(secret)}
}

// Sign returns the value with its signature appended.
func (s *Signer) Sign(value string) string {
	encoded := base64.RawURLEncoding.EncodeToString([]byte(value))
	return encoded + "." + s.signature(encoded)
}

// Unsign verifies a token and returns the original value. Any
// tampering with either part yields ErrBadSignature; the caller learns
// nothing about which part failed.
func (s *Signer) Unsign(token string) (string, error) {
	idx := strings.LastIndex(token, ".")
	if idx < 0 {
		return "", ErrBadSignature
	}

	encoded, sig := token[:idx], token[idx+1:]
	if !hmac.Equal([]byte(sig), []byte(s.signature(encoded))) {
		return "", ErrBadSignature
	}

	value, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrBadSignature
	}
	return string(value), nil
}

func (s *Signer) signature(value string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
