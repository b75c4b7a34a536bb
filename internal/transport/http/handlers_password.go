package httptransport

import (
	"encoding/json"
	"net/http"

	"accounts/internal/accounts/models"
	"accounts/internal/password"
	dErrors "accounts/pkg/domain-errors"
)

func (h *Handler) handleRegisterPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.CreateUser
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	id, err := h.password.CreateUser(ctx, req)
	if err != nil {
		writeError(w, err)
		return
	}

	h.server.RecordUserCreated(ctx, password.ServiceName, id, connectionInfo(r))
	writeJSON(w, http.StatusOK, map[string]string{"userId": id})
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		Token       string          `json:"token"`
		NewPassword models.Password `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.password.ResetPassword(ctx, req.Token, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed"})
}

func (h *Handler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.password.VerifyEmail(ctx, req.Token); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Email verified"})
}
