package auth

import (
	"errors"
	"time"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidRefresh  = errors.New("invalid refresh token")
	ErrSessionNotFound = errors.New("session not found")
	ErrRefreshNotFound = errors.New("refresh token not found")
)

type SessionRecord struct {
	SID       string
	AccountID int64
	Phone     string
	Role      string
	ExpiresAt time.Time
}

type AccessClaims struct {
	AccountID int64
	SID       string
	Role      string
	Phone     string
	TokenID   string
	ExpiresAt time.Time
}

type Me struct {
	ID    int64
	Phone string
	Role  string
}

type AuthResult struct {
	AccessToken    string
	RefreshToken   string
	AccessExpires  time.Time
	RefreshExpires time.Time
	Me             Me
}
