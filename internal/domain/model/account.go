package model

import (
	"errors"
	"time"
)

const (
	RoleUser  = "user"
	RoleStaff = "staff"
)

var (
	ErrAccountNotFound  = errors.New("account not found")
	ErrInviteCodeTaken  = errors.New("invite code already taken")
	ErrReferrerConflict = errors.New("referrer already assigned")
)

// Account is a phone-identified user. InviteCode is assigned once at creation
// and InvitedBy, when set, never changes again.
type Account struct {
	ID         int64     `json:"id"`
	Phone      string    `json:"phone"`
	InviteCode string    `json:"invite_code"`
	InvitedBy  *int64    `json:"invited_by"`
	Role       string    `json:"role"`
	Email      *string   `json:"email"`
	Country    *string   `json:"country"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (a Account) HasReferrer() bool {
	return a.InvitedBy != nil
}
