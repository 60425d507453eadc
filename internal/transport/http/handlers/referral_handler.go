package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ivankudzin/phoneauth/internal/domain/model"
	authsvc "github.com/ivankudzin/phoneauth/internal/services/auth"
	refsvc "github.com/ivankudzin/phoneauth/internal/services/referrals"
	"github.com/ivankudzin/phoneauth/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/phoneauth/internal/transport/http/errors"
)

type ReferralHandler struct {
	service *refsvc.Service
	logger  *zap.Logger
}

func NewReferralHandler(service *refsvc.Service, logger *zap.Logger) *ReferralHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferralHandler{service: service, logger: logger}
}

func (h *ReferralHandler) Set(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "REFERRAL_SERVICE_UNAVAILABLE", "referral service is unavailable")
		return
	}
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	var req dto.SetReferrerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	ref, err := h.service.SetReferrer(r.Context(), identity.AccountID, req.InviteCode)
	if err != nil {
		h.handleError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, referrerResponse(ref))
}

func (h *ReferralHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "REFERRAL_SERVICE_UNAVAILABLE", "referral service is unavailable")
		return
	}
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}

	ref, err := h.service.CurrentReferrer(r.Context(), identity.AccountID)
	if err != nil {
		h.handleError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, referrerResponse(ref))
}

func (h *ReferralHandler) handleError(w http.ResponseWriter, err error) {
	var assigned *refsvc.AlreadyAssignedError
	switch {
	case errors.Is(err, refsvc.ErrInviteCodeRequired):
		writeBadRequest(w, "INVITE_CODE_REQUIRED", "invite code is required")
	case errors.Is(err, refsvc.ErrSelfReferral):
		writeBadRequest(w, "SELF_REFERRAL", "you cannot use your own invite code")
	case errors.As(err, &assigned):
		writeBadRequest(w, "REFERRER_ALREADY_SET", assigned.Error())
	case errors.Is(err, refsvc.ErrReferrerAlreadySet):
		writeBadRequest(w, "REFERRER_ALREADY_SET", "referrer already set")
	case errors.Is(err, refsvc.ErrInviteCodeNotFound):
		writeNotFound(w, "INVITE_CODE_NOT_FOUND", "invite code not found")
	case errors.Is(err, refsvc.ErrInvalidInput):
		writeBadRequest(w, "INVALID_REQUEST", "request validation failed")
	case errors.Is(err, model.ErrAccountNotFound):
		writeUnauthorized(w, "UNAUTHORIZED", "account no longer exists")
	default:
		h.logger.Error("referral request failed", zap.Error(err))
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}

func referrerResponse(ref refsvc.Referrer) dto.ReferrerResponse {
	if !ref.HasReferrer {
		return dto.ReferrerResponse{}
	}
	return dto.ReferrerResponse{
		HasReferrer: true,
		InviteCode:  &ref.InviteCode,
		Phone:       &ref.Phone,
	}
}
