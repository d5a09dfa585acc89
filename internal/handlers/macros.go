package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"guildchat-backend/internal/globals"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.sugar.Error(err)
	}
}

// writeError maps the registries' sentinel errors to status codes. Anything
// unrecognized is logged and hidden behind a 500.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, globals.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, globals.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, globals.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, globals.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, globals.ErrExhausted):
		status = http.StatusConflict
	default:
		h.sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	h.sugar.Debug(err)
	http.Error(w, err.Error(), status)
}

// decodeBody reads a JSON body into dst and runs its validate tags. On
// failure the response has already been written.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err != nil {
		h.sugar.Debug(err)
		http.Error(w, "", http.StatusBadRequest)
		return false
	}

	err = h.validate.Struct(dst)
	if err == nil {
		return true
	}

	var validateErrs validator.ValidationErrors
	if !errors.As(err, &validateErrs) {
		h.sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return false
	}

	// sends back 400 with the form field errors
	fieldErrors := make(map[string]string)
	for _, e := range validateErrs {
		fieldErrors[e.Field()] = e.Tag()
	}
	h.writeJSON(w, http.StatusBadRequest, fieldErrors)
	return false
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", globals.ErrValidation, name)
	}
	return id, nil
}

// serverAccess resolves the {id} path parameter and checks the user may act
// on it: any member, or only the owner when ownerOnly is set.
func (h *Handler) serverAccess(r *http.Request, userID int64, ownerOnly bool) (int64, error) {
	serverID, err := pathID(r, "id")
	if err != nil {
		return 0, err
	}
	ctx := r.Context()

	exists, err := h.servers.Exists(ctx, serverID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("%w: server ID [%d]", globals.ErrNotFound, serverID)
	}

	var allowed bool
	if ownerOnly {
		allowed, err = h.servers.OwnsServer(ctx, userID, serverID)
	} else {
		allowed, err = h.accounts.IsMember(ctx, userID, serverID)
	}
	if err != nil {
		return 0, err
	}
	if !allowed {
		return 0, fmt.Errorf("%w: server ID [%d]", globals.ErrForbidden, serverID)
	}

	return serverID, nil
}
