package handlers

import (
	"fmt"
	"net/http"

	"guildchat-backend/internal/globals"

	"github.com/go-chi/chi/v5"
)

// LeaveServer removes the user from a server they belong to. Owners can only
// delete their server.
func (h *Handler) LeaveServer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFrom(ctx)

	serverID, err := h.serverAccess(r, userID, false)
	if err != nil {
		h.writeError(w, err)
		return
	}

	owner, err := h.servers.OwnsServer(ctx, userID, serverID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if owner {
		h.writeError(w, fmt.Errorf("%w: owner can't leave server ID [%d]", globals.ErrForbidden, serverID))
		return
	}

	if err := h.servers.LeaveMember(ctx, userID, serverID); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	serverID, err := h.serverAccess(r, userID, true)
	if err != nil {
		h.writeError(w, err)
		return
	}

	code, err := h.invites.Create(r.Context(), serverID, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]string{"code": code})
}

func (h *Handler) GetInviteList(w http.ResponseWriter, r *http.Request) {
	serverID, err := h.serverAccess(r, userIDFrom(r.Context()), true)
	if err != nil {
		h.writeError(w, err)
		return
	}

	invites, err := h.invites.ListForServer(r.Context(), serverID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, invites)
}

// AcceptInvite joins the user to the invite's server. Invites stay valid
// after use.
func (h *Handler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFrom(ctx)

	invite, err := h.invites.Resolve(ctx, chi.URLParam(r, "code"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if invite == nil {
		h.writeError(w, fmt.Errorf("%w: invite", globals.ErrNotFound))
		return
	}

	if err := h.servers.JoinMember(ctx, userID, invite.ServerID); err != nil {
		h.writeError(w, err)
		return
	}

	server, err := h.servers.Get(ctx, invite.ServerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if server == nil {
		h.writeError(w, fmt.Errorf("%w: server ID [%d]", globals.ErrNotFound, invite.ServerID))
		return
	}

	h.writeJSON(w, http.StatusOK, server)
}
