package accounts

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ivankudzin/phoneauth/internal/domain/model"
	"github.com/ivankudzin/phoneauth/internal/pkg/validate"
	codesvc "github.com/ivankudzin/phoneauth/internal/services/codes"
)

const maxCreateAttempts = 8

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidPhone       = errors.New("invalid phone")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type Directory interface {
	FindByPhone(ctx context.Context, phone string) (model.Account, error)
	FindByID(ctx context.Context, id int64) (model.Account, error)
	CreateIfAbsent(ctx context.Context, phone, inviteCode, role string) (model.Account, bool, error)
	InviteCodeExists(ctx context.Context, code string) (bool, error)
	ListReferralPhones(ctx context.Context, accountID int64) ([]string, error)
}

// CodeStore holds the pending entry code per phone inside one code session.
// Pop must read and delete in one step and return "" when nothing is pending.
type CodeStore interface {
	Put(ctx context.Context, sid, phone, code string) error
	Peek(ctx context.Context, sid, phone string) (string, error)
	Pop(ctx context.Context, sid, phone string) (string, error)
}

type Notifier interface {
	Dispatch(ctx context.Context, phone, message string)
}

type Config struct {
	MessageTemplate string
}

type Service struct {
	directory Directory
	codes     CodeStore
	notifier  Notifier
	generator *codesvc.Generator
	template  string
	logger    *zap.Logger
}

type RequestResult struct {
	Account model.Account
	Created bool
}

type Profile struct {
	Phone              string
	InviteCode         string
	Email              *string
	Country            *string
	ReferralPhones     []string
	ReferrerPhone      *string
	ReferrerInviteCode *string
}

func NewService(directory Directory, codes CodeStore, notifier Notifier, generator *codesvc.Generator, logger *zap.Logger, cfg Config) *Service {
	if generator == nil {
		generator = codesvc.NewGenerator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	template := cfg.MessageTemplate
	if strings.Count(template, "%s") != 1 {
		template = "%s"
	}

	return &Service{
		directory: directory,
		codes:     codes,
		notifier:  notifier,
		generator: generator,
		template:  template,
		logger:    logger,
	}
}

// RequestCode stores a fresh entry code in the code session, finds or
// registers the account for phone and hands the code to the notifier. The new
// code always differs from the one it replaces. The code is stored before the
// account row is written.
func (s *Service) RequestCode(ctx context.Context, sid, phone string) (RequestResult, error) {
	phone = strings.TrimSpace(phone)
	if !validate.Phone(phone) {
		return RequestResult{}, ErrInvalidPhone
	}
	if strings.TrimSpace(sid) == "" {
		return RequestResult{}, ErrInvalidInput
	}

	code, err := s.storeEntryCode(ctx, sid, phone)
	if err != nil {
		return RequestResult{}, err
	}

	account, created, err := GetOrCreate(ctx, phone, GetOrCreateOptions[string, model.Account]{
		Lookup:   s.directory.FindByPhone,
		NotFound: model.ErrAccountNotFound,
		Create:   s.createAccount,
		Retryable: func(err error) bool {
			return errors.Is(err, model.ErrInviteCodeTaken)
		},
		MaxAttempts: maxCreateAttempts,
	})
	if err != nil {
		return RequestResult{}, fmt.Errorf("get or create account: %w", err)
	}

	s.notifier.Dispatch(ctx, phone, fmt.Sprintf(s.template, code))

	if created {
		s.logger.Info("account_created", zap.Int64("account_id", account.ID))
	}

	return RequestResult{Account: account, Created: created}, nil
}

// Authenticate checks code against the pending one for phone in the session.
// The code must match byte for byte. The pending code is consumed by every
// attempt, including ones for unknown phones and wrong codes.
func (s *Service) Authenticate(ctx context.Context, sid, phone, code string) (model.Account, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" || code == "" {
		return model.Account{}, ErrInvalidCredentials
	}

	account, lookupErr := s.directory.FindByPhone(ctx, phone)
	if lookupErr != nil && !errors.Is(lookupErr, model.ErrAccountNotFound) {
		return model.Account{}, fmt.Errorf("find account by phone: %w", lookupErr)
	}

	pending, err := s.codes.Pop(ctx, sid, phone)
	if err != nil {
		return model.Account{}, fmt.Errorf("pop pending code: %w", err)
	}

	if lookupErr != nil {
		return model.Account{}, ErrInvalidCredentials
	}
	if pending == "" || subtle.ConstantTimeCompare([]byte(pending), []byte(code)) != 1 {
		return model.Account{}, ErrInvalidCredentials
	}

	return account, nil
}

func (s *Service) Profile(ctx context.Context, accountID int64) (Profile, error) {
	if accountID <= 0 {
		return Profile{}, ErrInvalidInput
	}

	account, err := s.directory.FindByID(ctx, accountID)
	if err != nil {
		return Profile{}, fmt.Errorf("find account: %w", err)
	}

	referrals, err := s.directory.ListReferralPhones(ctx, accountID)
	if err != nil {
		return Profile{}, fmt.Errorf("list referrals: %w", err)
	}
	if referrals == nil {
		referrals = []string{}
	}

	profile := Profile{
		Phone:          account.Phone,
		InviteCode:     account.InviteCode,
		Email:          account.Email,
		Country:        account.Country,
		ReferralPhones: referrals,
	}

	if account.InvitedBy != nil {
		referrer, err := s.directory.FindByID(ctx, *account.InvitedBy)
		switch {
		case err == nil:
			profile.ReferrerPhone = &referrer.Phone
			profile.ReferrerInviteCode = &referrer.InviteCode
		case errors.Is(err, model.ErrAccountNotFound):
		default:
			return Profile{}, fmt.Errorf("find referrer: %w", err)
		}
	}

	return profile, nil
}

func (s *Service) createAccount(ctx context.Context, phone string) (model.Account, bool, error) {
	inviteCode, err := s.generator.InviteCode(ctx, s.directory.InviteCodeExists)
	if err != nil {
		return model.Account{}, false, err
	}

	return s.directory.CreateIfAbsent(ctx, phone, inviteCode, model.RoleUser)
}

func (s *Service) storeEntryCode(ctx context.Context, sid, phone string) (string, error) {
	previous, err := s.codes.Peek(ctx, sid, phone)
	if err != nil {
		return "", fmt.Errorf("peek pending code: %w", err)
	}

	code, err := s.generator.EntryCodeExcept(previous)
	if err != nil {
		return "", err
	}

	if err := s.codes.Put(ctx, sid, phone, code); err != nil {
		return "", fmt.Errorf("store pending code: %w", err)
	}

	return code, nil
}
