package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ivankudzin/phoneauth/internal/domain/model"
	accountsvc "github.com/ivankudzin/phoneauth/internal/services/accounts"
	authsvc "github.com/ivankudzin/phoneauth/internal/services/auth"
	"github.com/ivankudzin/phoneauth/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/phoneauth/internal/transport/http/errors"
)

type ProfileHandler struct {
	accounts *accountsvc.Service
	logger   *zap.Logger
}

func NewProfileHandler(accounts *accountsvc.Service, logger *zap.Logger) *ProfileHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileHandler{accounts: accounts, logger: logger}
}

func (h *ProfileHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	if h.accounts == nil {
		writeInternal(w, "ACCOUNTS_SERVICE_UNAVAILABLE", "accounts service is unavailable")
		return
	}
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	profile, err := h.accounts.Profile(r.Context(), identity.AccountID)
	if err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			writeUnauthorized(w, "UNAUTHORIZED", "account no longer exists")
			return
		}
		h.logger.Error("profile request failed", zap.Error(err))
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.ProfileResponse{
		Phone:              profile.Phone,
		InviteCode:         profile.InviteCode,
		Email:              profile.Email,
		Country:            profile.Country,
		Referrals:          profile.ReferralPhones,
		ReferrerPhone:      profile.ReferrerPhone,
		ReferrerInviteCode: profile.ReferrerInviteCode,
	})
}
