package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/fintrack/internal/api/middleware"
	"github.com/dvloznov/fintrack/internal/chat"
)

// Responder answers chat messages. chat.Service satisfies it.
type Responder interface {
	Respond(ctx context.Context, message string) (*chat.Reply, error)
}

// ChatHandler handles POST /api/chat.
type ChatHandler struct {
	responder Responder
	log       zerolog.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(responder Responder, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{responder: responder, log: log}
}

// Chat handles POST /api/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "message is required")
		return
	}

	reply, err := h.responder.Respond(r.Context(), req.Message)
	if err != nil {
		h.log.Error().Err(err).Msg("Chat failed")
		writeErr(w, err, "Chat failed")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, reply)
}
