package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Random identifier sizes in bytes; the hex form is twice as long.
const (
	refreshTokenBytes = 32
	sessionIDBytes    = 20
	codeSessionBytes  = 16
)

// NewOpaqueToken returns byteLen random bytes hex-encoded.
func NewOpaqueToken(byteLen int) (string, error) {
	if byteLen <= 0 {
		return "", fmt.Errorf("invalid token size %d", byteLen)
	}

	buf := make([]byte, byteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	return hex.EncodeToString(buf), nil
}

func NewRefreshToken() (string, error) {
	return NewOpaqueToken(refreshTokenBytes)
}

func NewSessionID() (string, error) {
	return NewOpaqueToken(sessionIDBytes)
}

// NewCodeSessionID returns the id of a pending-code session. It is unrelated
// to the token session id so a leaked code session never names a login.
func NewCodeSessionID() (string, error) {
	return NewOpaqueToken(codeSessionBytes)
}
