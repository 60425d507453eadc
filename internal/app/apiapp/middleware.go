package apiapp

import (
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ivankudzin/phoneauth/internal/config"
	authsvc "github.com/ivankudzin/phoneauth/internal/services/auth"
	httperrors "github.com/ivankudzin/phoneauth/internal/transport/http/errors"
)

const codeSessionHeader = "X-Code-Session"

func ApplyMiddlewares(r chiRouter, log *zap.Logger) {
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(requestLogger(log))
}

func AuthMiddleware(authService *authsvc.Service, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authService == nil {
				httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{
					Code:    "AUTH_SERVICE_UNAVAILABLE",
					Message: "auth service is unavailable",
				})
				return
			}

			accessToken, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{
					Code:    "UNAUTHORIZED",
					Message: "missing bearer token",
				})
				return
			}

			claims, err := authService.ValidateAccessToken(r.Context(), accessToken)
			if err != nil {
				if log != nil {
					log.Debug("auth middleware validation failed", zap.Error(err))
				}
				httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{
					Code:    "UNAUTHORIZED",
					Message: "invalid access token",
				})
				return
			}

			ctx := authsvc.WithIdentity(r.Context(), authsvc.Identity{
				AccountID: claims.AccountID,
				SID:       claims.SID,
				Role:      claims.Role,
				Phone:     claims.Phone,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CodeSessionMiddleware resolves the pending-code session from the cookie or
// the X-Code-Session header. When create is set and neither is present a new
// session is opened; either way the id is echoed back in both places.
func CodeSessionMiddleware(cfg config.CodesConfig, create bool, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := codeSessionFromRequest(r, cfg.CookieName)
			if sid == "" && create {
				generated, err := authsvc.NewCodeSessionID()
				if err != nil {
					if log != nil {
						log.Error("generate code session id", zap.Error(err))
					}
					httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{
						Code:    "INTERNAL_ERROR",
						Message: "internal server error",
					})
					return
				}
				sid = generated
			}
			if sid == "" {
				next.ServeHTTP(w, r)
				return
			}

			http.SetCookie(w, &http.Cookie{
				Name:     cfg.CookieName,
				Value:    sid,
				Path:     "/",
				MaxAge:   int(cfg.SessionTTL.Seconds()),
				HttpOnly: true,
				Secure:   cfg.CookieSecure,
				SameSite: http.SameSiteLaxMode,
			})
			w.Header().Set(codeSessionHeader, sid)

			next.ServeHTTP(w, r.WithContext(authsvc.WithCodeSession(r.Context(), sid)))
		})
	}
}

func codeSessionFromRequest(r *http.Request, cookieName string) string {
	if cookie, err := r.Cookie(cookieName); err == nil && validCodeSessionID(cookie.Value) {
		return cookie.Value
	}
	if value := strings.TrimSpace(r.Header.Get(codeSessionHeader)); validCodeSessionID(value) {
		return value
	}
	return ""
}

func validCodeSessionID(value string) bool {
	if len(value) == 0 || len(value) > 128 {
		return false
	}
	for _, c := range value {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '-' || c == '_') {
			return false
		}
	}
	return true
}

func extractBearerToken(value string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(value), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return parts[1], true
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if log != nil {
				log.Info("http_request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.String("request_id", chimiddleware.GetReqID(r.Context())),
					zap.Duration("duration", time.Since(start)),
				)
			}
		})
	}
}

type chiRouter interface {
	Use(middlewares ...func(http.Handler) http.Handler)
}
