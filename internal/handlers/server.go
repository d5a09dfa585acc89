package handlers

import (
	"fmt"
	"net/http"

	"guildchat-backend/internal/globals"
	"guildchat-backend/internal/models"
)

func (h *Handler) CreateServer(w http.ResponseWriter, r *http.Request) {
	type CreateRequest struct {
		Name    string  `json:"name" validate:"required"`
		IconURL *string `json:"iconUrl"`
	}

	var request CreateRequest
	if !h.decodeBody(w, r, &request) {
		return
	}

	server, err := h.servers.Create(r.Context(), request.Name, request.IconURL, userIDFrom(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, server)
}

func (h *Handler) GetServerList(w http.ResponseWriter, r *http.Request) {
	servers, err := h.servers.ListForUser(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, servers)
}

func (h *Handler) GetServer(w http.ResponseWriter, r *http.Request) {
	serverID, err := h.serverAccess(r, userIDFrom(r.Context()), false)
	if err != nil {
		h.writeError(w, err)
		return
	}

	server, err := h.servers.Get(r.Context(), serverID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if server == nil {
		h.writeError(w, fmt.Errorf("%w: server ID [%d]", globals.ErrNotFound, serverID))
		return
	}

	h.writeJSON(w, http.StatusOK, server)
}

func (h *Handler) UpdateServer(w http.ResponseWriter, r *http.Request) {
	type UpdateRequest struct {
		Name    models.Optional[string] `json:"name"`
		IconURL models.Optional[string] `json:"iconUrl"`
	}

	serverID, err := h.serverAccess(r, userIDFrom(r.Context()), true)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var request UpdateRequest
	if !h.decodeBody(w, r, &request) {
		return
	}

	err = h.servers.Update(r.Context(), serverID, models.ServerUpdate{Name: request.Name, IconURL: request.IconURL})
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteServer(w http.ResponseWriter, r *http.Request) {
	serverID, err := h.serverAccess(r, userIDFrom(r.Context()), true)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.servers.Delete(r.Context(), serverID); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
