package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ivankudzin/phoneauth/internal/config"
	"github.com/ivankudzin/phoneauth/internal/infra/httpclient"
	"github.com/ivankudzin/phoneauth/internal/infra/sms"
	"github.com/ivankudzin/phoneauth/internal/infra/telegram"
	pgrepo "github.com/ivankudzin/phoneauth/internal/repo/postgres"
	redrepo "github.com/ivankudzin/phoneauth/internal/repo/redis"
	accountsvc "github.com/ivankudzin/phoneauth/internal/services/accounts"
	authsvc "github.com/ivankudzin/phoneauth/internal/services/auth"
	codesvc "github.com/ivankudzin/phoneauth/internal/services/codes"
	notifysvc "github.com/ivankudzin/phoneauth/internal/services/notify"
	refsvc "github.com/ivankudzin/phoneauth/internal/services/referrals"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	dispatcher *notifysvc.Dispatcher
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	sink, err := BuildSink(cfg.SMS, log)
	if err != nil {
		return nil, fmt.Errorf("build notification sink: %w", err)
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	sessionRepo := redrepo.NewSessionRepo(redisClient)
	codeRepo := redrepo.NewCodeRepo(redisClient, cfg.Codes.SessionTTL)
	accountRepo := pgrepo.NewAccountRepo(pool)

	dispatcher := notifysvc.NewDispatcher(sink, log, notifysvc.Config{
		SendTimeout:   cfg.SMS.SendTimeout,
		PostSendDelay: cfg.SMS.PostSendDelay,
		Workers:       cfg.SMS.Workers,
		QueueSize:     cfg.SMS.QueueSize,
	})

	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)
	authService := authsvc.NewService(jwtManager, sessionRepo, cfg.Auth.RefreshTTL)
	accountService := accountsvc.NewService(accountRepo, codeRepo, dispatcher, codesvc.NewGenerator(), log, accountsvc.Config{
		MessageTemplate: cfg.SMS.MessageTemplate,
	})
	referralService := refsvc.NewService(accountRepo, log)

	RegisterRoutes(r, Dependencies{
		AccountService:  accountService,
		AuthService:     authService,
		ReferralService: referralService,
		Logger:          log,
		Config:          cfg,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		dispatcher: dispatcher,
		httpRouter: r,
	}, nil
}

// BuildSink picks the delivery backend named by cfg.Provider.
func BuildSink(cfg config.SMSConfig, log *zap.Logger) (notifysvc.Sink, error) {
	switch cfg.Provider {
	case config.SMSProviderLog, "":
		return notifysvc.NewLogSink(log), nil
	case config.SMSProviderSMSAero:
		return sms.NewClient(sms.Config{
			Email:   cfg.SMSAero.Email,
			APIKey:  cfg.SMSAero.APIKey,
			BaseURL: cfg.SMSAero.BaseURL,
			Sign:    cfg.SMSAero.Sign,
		}, httpclient.New(cfg.SendTimeout)), nil
	case config.SMSProviderTelegram:
		bot, err := telegram.NewBot(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			return nil, err
		}
		return bot, nil
	default:
		return nil, fmt.Errorf("unknown sms provider %q", cfg.Provider)
	}
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.dispatcher != nil {
		if err := a.dispatcher.Close(ctx); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
