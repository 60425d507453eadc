package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/ivankudzin/phoneauth/internal/config"
	"github.com/ivankudzin/phoneauth/internal/domain/model"
	"github.com/ivankudzin/phoneauth/internal/infra/logger"
	"github.com/ivankudzin/phoneauth/internal/pkg/validate"
	pgrepo "github.com/ivankudzin/phoneauth/internal/repo/postgres"
	accountsvc "github.com/ivankudzin/phoneauth/internal/services/accounts"
	codesvc "github.com/ivankudzin/phoneauth/internal/services/codes"
)

const defaultStaffPhone = "79900000000"

func main() {
	phone := flag.String("phone", defaultStaffPhone, "phone number of the staff account")
	flag.Parse()

	cfgPath := os.Getenv("APP_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = log.Sync()
	}()

	if !validate.Phone(*phone) {
		log.Fatal("invalid staff phone", zap.String("phone", *phone))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Fatal("open postgres pool", zap.Error(err))
	}
	defer pool.Close()

	repo := pgrepo.NewAccountRepo(pool)
	account, created, err := seedStaff(ctx, repo, codesvc.NewGenerator(), *phone)
	if err != nil {
		log.Fatal("seed staff account", zap.Error(err))
	}

	log.Info("staff account ready",
		zap.Int64("account_id", account.ID),
		zap.String("invite_code", account.InviteCode),
		zap.Bool("created", created),
	)
}

type staffRepo interface {
	FindByPhone(ctx context.Context, phone string) (model.Account, error)
	InviteCodeExists(ctx context.Context, code string) (bool, error)
	CreateIfAbsent(ctx context.Context, phone, inviteCode, role string) (model.Account, bool, error)
	UpdateRole(ctx context.Context, accountID int64, role string) error
}

func seedStaff(ctx context.Context, repo staffRepo, generator *codesvc.Generator, phone string) (model.Account, bool, error) {
	return accountsvc.GetOrCreate(ctx, phone, accountsvc.GetOrCreateOptions[string, model.Account]{
		Lookup:   repo.FindByPhone,
		NotFound: model.ErrAccountNotFound,
		Create: func(ctx context.Context, phone string) (model.Account, bool, error) {
			code, err := generator.InviteCode(ctx, repo.InviteCodeExists)
			if err != nil {
				return model.Account{}, false, err
			}
			return repo.CreateIfAbsent(ctx, phone, code, model.RoleStaff)
		},
		Retryable: func(err error) bool {
			return errors.Is(err, model.ErrInviteCodeTaken)
		},
		After: func(ctx context.Context, account model.Account, _ bool) error {
			if account.Role == model.RoleStaff {
				return nil
			}
			return repo.UpdateRole(ctx, account.ID, model.RoleStaff)
		},
	})
}
