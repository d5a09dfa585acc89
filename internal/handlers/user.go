package handlers

import (
	"fmt"
	"net/http"

	"guildchat-backend/internal/globals"
	"guildchat-backend/internal/models"
)

func (h *Handler) GetSelf(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	account, err := h.accounts.Get(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if account == nil {
		h.writeError(w, fmt.Errorf("%w: user ID [%d]", globals.ErrNotFound, userID))
		return
	}

	account.PasswordHash = ""
	h.writeJSON(w, http.StatusOK, account)
}

func (h *Handler) UpdateSelf(w http.ResponseWriter, r *http.Request) {
	type UpdateRequest struct {
		Username  string                  `json:"username" validate:"required"`
		Password  models.Optional[string] `json:"password"`
		AvatarURL models.Optional[string] `json:"avatarUrl"`
	}

	var request UpdateRequest
	if !h.decodeBody(w, r, &request) {
		return
	}

	tag, err := h.accounts.Update(r.Context(), userIDFrom(r.Context()), models.AccountUpdate{
		Username:  request.Username,
		Password:  request.Password,
		AvatarURL: request.AvatarURL,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"tag": tag})
}

func (h *Handler) DeleteSelf(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFrom(ctx)

	// servers must not outlive their owner
	if _, err := h.servers.DeleteOwnedBy(ctx, userID); err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.accounts.Delete(ctx, userID); err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.cache.Delete(ctx, userExistsKey(userID)); err != nil {
		h.sugar.Error(err)
	}

	cookie := h.issuer.ExpiredCookie()
	http.SetCookie(w, &cookie)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SetPresence(w http.ResponseWriter, r *http.Request) {
	type PresenceRequest struct {
		Online *bool `json:"online" validate:"required"`
	}

	var request PresenceRequest
	if !h.decodeBody(w, r, &request) {
		return
	}

	if err := h.accounts.SetPresence(r.Context(), userIDFrom(r.Context()), *request.Online); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
