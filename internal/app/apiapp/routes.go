package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ivankudzin/phoneauth/internal/config"
	accountsvc "github.com/ivankudzin/phoneauth/internal/services/accounts"
	authsvc "github.com/ivankudzin/phoneauth/internal/services/auth"
	refsvc "github.com/ivankudzin/phoneauth/internal/services/referrals"
	"github.com/ivankudzin/phoneauth/internal/transport/http/handlers"
)

type Dependencies struct {
	AccountService  *accountsvc.Service
	AuthService     *authsvc.Service
	ReferralService *refsvc.Service
	Logger          *zap.Logger
	Config          config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	authHandler := handlers.NewAuthHandler(deps.AccountService, deps.AuthService, deps.Logger)
	referralHandler := handlers.NewReferralHandler(deps.ReferralService, deps.Logger)
	profileHandler := handlers.NewProfileHandler(deps.AccountService, deps.Logger)
	healthHandler := handlers.NewHealthHandler()
	authMW := AuthMiddleware(deps.AuthService, deps.Logger)
	openCodeSessionMW := CodeSessionMiddleware(deps.Config.Codes, true, deps.Logger)
	codeSessionMW := CodeSessionMiddleware(deps.Config.Codes, false, deps.Logger)

	users := func(r chi.Router) {
		r.With(openCodeSessionMW).Post("/get_code", authHandler.GetCode)
		r.With(codeSessionMW).Post("/send_code", authHandler.SendCode)
		r.Post("/refresh", authHandler.Refresh)
		r.With(authMW).Post("/logout", authHandler.Logout)
		r.With(authMW).Post("/logout_all", authHandler.LogoutAll)
		r.With(authMW).Post("/set_referrer", referralHandler.Set)
		r.With(authMW).Get("/set_referrer", referralHandler.Get)
		r.With(authMW).Get("/retrieve", profileHandler.Retrieve)
	}

	r.Get("/healthz", healthHandler.Get)
	r.Route("/users", users)
	r.Route("/v1/users", users)
}
