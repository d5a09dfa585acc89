package handlers

import (
	"fmt"
	"net/http"

	"guildchat-backend/internal/globals"
)

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	type Registration struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	var registration Registration
	if !h.decodeBody(w, r, &registration) {
		return
	}

	tag, err := h.accounts.Register(r.Context(), registration.Username, registration.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]string{"tag": tag})
}

// Login trades a Basic authorization header for a JWT session cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	account, err := h.authenticator.Authenticate(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		h.sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	if account == nil {
		h.writeError(w, fmt.Errorf("%w: wrong credentials", globals.ErrUnauthorized))
		return
	}

	cookie, err := h.issuer.CreateToken(r.URL.Query().Get("rememberMe") == "true", account.ID)
	if err != nil {
		h.sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &cookie)

	self := account.Public()
	self.Servers = account.Servers
	h.writeJSON(w, http.StatusOK, self)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie := h.issuer.ExpiredCookie()
	http.SetCookie(w, &cookie)
	w.WriteHeader(http.StatusNoContent)
}
