package referrals

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ivankudzin/phoneauth/internal/domain/model"
	"github.com/ivankudzin/phoneauth/internal/pkg/validate"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInviteCodeRequired = errors.New("invite code is required")
	ErrSelfReferral       = errors.New("cannot use own invite code")
	ErrReferrerAlreadySet = errors.New("referrer already set")
	ErrInviteCodeNotFound = errors.New("invite code not found")
)

// AlreadyAssignedError names the referrer that is already linked.
type AlreadyAssignedError struct {
	ReferrerInviteCode string
}

func (e *AlreadyAssignedError) Error() string {
	if e.ReferrerInviteCode == "" {
		return ErrReferrerAlreadySet.Error()
	}
	return fmt.Sprintf("%s: %s", ErrReferrerAlreadySet.Error(), e.ReferrerInviteCode)
}

func (e *AlreadyAssignedError) Unwrap() error {
	return ErrReferrerAlreadySet
}

type Directory interface {
	FindByID(ctx context.Context, id int64) (model.Account, error)
	FindByInviteCode(ctx context.Context, code string) (model.Account, error)
	AssignReferrer(ctx context.Context, accountID, referrerID int64) error
}

type Referrer struct {
	HasReferrer bool
	InviteCode  string
	Phone       string
}

type Service struct {
	directory Directory
	logger    *zap.Logger
}

func NewService(directory Directory, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{directory: directory, logger: logger}
}

// SetReferrer links accountID to the owner of inviteCode. The checks run in
// a fixed order and the first failing one decides the error.
func (s *Service) SetReferrer(ctx context.Context, accountID int64, inviteCode string) (Referrer, error) {
	if strings.TrimSpace(inviteCode) == "" {
		return Referrer{}, ErrInviteCodeRequired
	}
	if accountID <= 0 {
		return Referrer{}, ErrInvalidInput
	}

	account, err := s.directory.FindByID(ctx, accountID)
	if err != nil {
		return Referrer{}, fmt.Errorf("find account: %w", err)
	}

	if inviteCode == account.InviteCode {
		return Referrer{}, ErrSelfReferral
	}
	if account.InvitedBy != nil {
		return Referrer{}, s.alreadyAssigned(ctx, *account.InvitedBy)
	}

	if !validate.InviteCode(inviteCode) {
		return Referrer{}, ErrInviteCodeNotFound
	}
	referrer, err := s.directory.FindByInviteCode(ctx, inviteCode)
	if err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			return Referrer{}, ErrInviteCodeNotFound
		}
		return Referrer{}, fmt.Errorf("find referrer: %w", err)
	}

	if err := s.directory.AssignReferrer(ctx, account.ID, referrer.ID); err != nil {
		if !errors.Is(err, model.ErrReferrerConflict) {
			return Referrer{}, fmt.Errorf("assign referrer: %w", err)
		}

		current, reloadErr := s.directory.FindByID(ctx, account.ID)
		if reloadErr != nil || current.InvitedBy == nil {
			return Referrer{}, &AlreadyAssignedError{}
		}
		return Referrer{}, s.alreadyAssigned(ctx, *current.InvitedBy)
	}

	s.logger.Info("referrer_set",
		zap.Int64("account_id", account.ID),
		zap.Int64("referrer_id", referrer.ID),
	)

	return Referrer{
		HasReferrer: true,
		InviteCode:  referrer.InviteCode,
		Phone:       referrer.Phone,
	}, nil
}

func (s *Service) CurrentReferrer(ctx context.Context, accountID int64) (Referrer, error) {
	if accountID <= 0 {
		return Referrer{}, ErrInvalidInput
	}

	account, err := s.directory.FindByID(ctx, accountID)
	if err != nil {
		return Referrer{}, fmt.Errorf("find account: %w", err)
	}
	if account.InvitedBy == nil {
		return Referrer{}, nil
	}

	referrer, err := s.directory.FindByID(ctx, *account.InvitedBy)
	if err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			return Referrer{}, nil
		}
		return Referrer{}, fmt.Errorf("find referrer: %w", err)
	}

	return Referrer{
		HasReferrer: true,
		InviteCode:  referrer.InviteCode,
		Phone:       referrer.Phone,
	}, nil
}

func (s *Service) alreadyAssigned(ctx context.Context, referrerID int64) error {
	referrer, err := s.directory.FindByID(ctx, referrerID)
	if err != nil {
		return &AlreadyAssignedError{}
	}
	return &AlreadyAssignedError{ReferrerInviteCode: referrer.InviteCode}
}
