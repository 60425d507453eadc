package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	accountsvc "github.com/ivankudzin/phoneauth/internal/services/accounts"
	authsvc "github.com/ivankudzin/phoneauth/internal/services/auth"
	"github.com/ivankudzin/phoneauth/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/phoneauth/internal/transport/http/errors"
)

type AuthHandler struct {
	accounts *accountsvc.Service
	service  *authsvc.Service
	logger   *zap.Logger
}

func NewAuthHandler(accounts *accountsvc.Service, service *authsvc.Service, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{accounts: accounts, service: service, logger: logger}
}

// GetCode registers the phone on first use and sends a fresh entry code.
// 201 means the account was just created, 200 means the code was resent.
func (h *AuthHandler) GetCode(w http.ResponseWriter, r *http.Request) {
	if h.accounts == nil {
		writeInternal(w, "ACCOUNTS_SERVICE_UNAVAILABLE", "accounts service is unavailable")
		return
	}
	sid, ok := authsvc.CodeSessionFromContext(r.Context())
	if !ok {
		writeBadRequest(w, "INVALID_REQUEST", "code session is required")
		return
	}

	var req dto.GetCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	res, err := h.accounts.RequestCode(r.Context(), sid, req.Phone)
	if err != nil {
		h.handleAccountsError(w, err)
		return
	}

	if res.Created {
		httperrors.Write(w, http.StatusCreated, dto.GetCodeResponse{Created: true, Message: "code sent"})
		return
	}
	httperrors.Write(w, http.StatusOK, dto.GetCodeResponse{Created: false, Message: "code resent"})
}

// SendCode exchanges phone and entry code for a token pair.
func (h *AuthHandler) SendCode(w http.ResponseWriter, r *http.Request) {
	if h.accounts == nil || h.service == nil {
		writeInternal(w, "AUTH_SERVICE_UNAVAILABLE", "auth service is unavailable")
		return
	}
	sid, _ := authsvc.CodeSessionFromContext(r.Context())

	var req dto.SendCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Phone) == "" || strings.TrimSpace(req.Password) == "" {
		writeBadRequest(w, "VALIDATION_ERROR", "phone and password are required")
		return
	}

	account, err := h.accounts.Authenticate(r.Context(), sid, req.Phone, req.Password)
	if err != nil {
		h.handleAccountsError(w, err)
		return
	}

	res, err := h.service.IssueForAccount(r.Context(), account)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}

	httperrors.WriteNoStore(w, http.StatusOK, tokensResponse(res))
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "AUTH_SERVICE_UNAVAILABLE", "auth service is unavailable")
		return
	}

	var req dto.RefreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	res, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.handleAuthError(w, err)
		return
	}

	httperrors.WriteNoStore(w, http.StatusOK, tokensResponse(res))
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "AUTH_SERVICE_UNAVAILABLE", "auth service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	if err := h.service.Logout(r.Context(), identity.SID); err != nil {
		h.handleAuthError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.LogoutResponse{OK: true})
}

func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "AUTH_SERVICE_UNAVAILABLE", "auth service is unavailable")
		return
	}

	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	if err := h.service.LogoutAll(r.Context(), identity.AccountID); err != nil {
		h.handleAuthError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.LogoutResponse{OK: true})
}

func (h *AuthHandler) handleAccountsError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, accountsvc.ErrInvalidPhone):
		writeBadRequest(w, "VALIDATION_ERROR", "phone must consist of 11 digits")
	case errors.Is(err, accountsvc.ErrInvalidInput):
		writeBadRequest(w, "INVALID_REQUEST", "request validation failed")
	case errors.Is(err, accountsvc.ErrInvalidCredentials):
		writeUnauthorized(w, "INVALID_CREDENTIALS", "invalid phone or code")
	default:
		h.logger.Error("accounts request failed", zap.Error(err))
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}

func (h *AuthHandler) handleAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authsvc.ErrInvalidRefresh):
		writeBadRequest(w, "INVALID_REFRESH_TOKEN", "refresh token is invalid or expired")
	case errors.Is(err, authsvc.ErrInvalidInput):
		writeBadRequest(w, "INVALID_REQUEST", "request validation failed")
	case errors.Is(err, authsvc.ErrUnauthorized):
		writeUnauthorized(w, "UNAUTHORIZED", "authentication failed")
	default:
		h.logger.Error("auth request failed", zap.Error(err))
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}

func tokensResponse(res authsvc.AuthResult) dto.AuthTokensResponse {
	return dto.AuthTokensResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresInSec: maxInt64(0, int64(time.Until(res.AccessExpires).Seconds())),
		Me: dto.AuthMeResponse{
			ID:    res.Me.ID,
			Phone: res.Me.Phone,
			Role:  res.Me.Role,
		},
	}
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	httperrors.WriteError(w, http.StatusBadRequest, code, message)
}

func writeUnauthorized(w http.ResponseWriter, code, message string) {
	httperrors.WriteError(w, http.StatusUnauthorized, code, message)
}

func writeNotFound(w http.ResponseWriter, code, message string) {
	httperrors.WriteError(w, http.StatusNotFound, code, message)
}

func writeInternal(w http.ResponseWriter, code, message string) {
	httperrors.WriteError(w, http.StatusInternalServerError, code, message)
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
