package handlers

import (
	"fmt"
	"net/http"

	"guildchat-backend/internal/globals"
	"guildchat-backend/internal/models"
)

func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	type AddMessageRequest struct {
		Contents string `json:"contents" validate:"required"`
	}

	userID := userIDFrom(r.Context())

	serverID, err := h.serverAccess(r, userID, false)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var request AddMessageRequest
	if !h.decodeBody(w, r, &request) {
		return
	}

	message, err := h.messages.Create(r.Context(), h.ids.Generate(), userID, serverID, request.Contents)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, message)
}

// messageAccess loads the {id} message if the user may read it. Writing
// additionally requires authorship, or server ownership when allowOwner is set.
func (h *Handler) messageAccess(r *http.Request, write bool, allowOwner bool) (*models.Message, error) {
	ctx := r.Context()
	userID := userIDFrom(ctx)

	messageID, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}

	message, err := h.messages.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if message == nil {
		return nil, fmt.Errorf("%w: message ID [%d]", globals.ErrNotFound, messageID)
	}

	isMember, err := h.accounts.IsMember(ctx, userID, message.ServerID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, fmt.Errorf("%w: message ID [%d]", globals.ErrForbidden, messageID)
	}

	if !write || message.AuthorID == userID {
		return message, nil
	}

	if allowOwner {
		owner, err := h.servers.OwnsServer(ctx, userID, message.ServerID)
		if err != nil {
			return nil, err
		}
		if owner {
			return message, nil
		}
	}

	return nil, fmt.Errorf("%w: message ID [%d]", globals.ErrForbidden, messageID)
}

func (h *Handler) GetMessage(w http.ResponseWriter, r *http.Request) {
	message, err := h.messageAccess(r, false, false)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, message)
}

func (h *Handler) UpdateMessage(w http.ResponseWriter, r *http.Request) {
	type UpdateMessageRequest struct {
		Contents string `json:"contents" validate:"required"`
	}

	message, err := h.messageAccess(r, true, false)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var request UpdateMessageRequest
	if !h.decodeBody(w, r, &request) {
		return
	}

	if err := h.messages.Update(r.Context(), message.ID, request.Contents); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	message, err := h.messageAccess(r, true, true)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.messages.Delete(r.Context(), message.ID); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
