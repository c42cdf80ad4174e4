package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/fintrack/internal/api/middleware"
	"github.com/dvloznov/fintrack/internal/domain"
)

// TransferLinker performs manual transfer link changes. transfers.Linker satisfies it.
type TransferLinker interface {
	Link(ctx context.Context, a, b string) error
	Unlink(ctx context.Context, id string) error
	Pairs(ctx context.Context) ([]domain.TransferPair, error)
}

// TransfersHandler handles transfer review endpoints.
type TransfersHandler struct {
	linker TransferLinker
	log    zerolog.Logger
}

// NewTransfersHandler creates a new transfers handler.
func NewTransfersHandler(linker TransferLinker, log zerolog.Logger) *TransfersHandler {
	return &TransfersHandler{linker: linker, log: log}
}

// ListTransfers handles GET /api/transfers
func (h *TransfersHandler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	pairs, err := h.linker.Pairs(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transfers")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transfers")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, pairs)
}

// Link handles POST /api/transfers/link
func (h *TransfersHandler) Link(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TxID       string `json:"tx_id"`
		LinkedTxID string `json:"linked_tx_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TxID == "" || req.LinkedTxID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "tx_id and linked_tx_id are required")
		return
	}
	if req.TxID == req.LinkedTxID {
		middleware.WriteError(w, http.StatusBadRequest, "A transaction cannot be linked to itself")
		return
	}

	if err := h.linker.Link(r.Context(), req.TxID, req.LinkedTxID); err != nil {
		h.log.Error().Err(err).Str("tx_id", req.TxID).Str("partner_id", req.LinkedTxID).Msg("Failed to link transactions")
		writeErr(w, err, "Failed to link transactions")
		return
	}

	h.log.Info().Str("tx_id", req.TxID).Str("partner_id", req.LinkedTxID).Msg("Transactions linked")
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"message": "Transactions linked successfully"})
}

// Unlink handles POST /api/transfers/unlink
func (h *TransfersHandler) Unlink(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TxID string `json:"tx_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TxID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "tx_id is required")
		return
	}

	if err := h.linker.Unlink(r.Context(), req.TxID); err != nil {
		h.log.Error().Err(err).Str("tx_id", req.TxID).Msg("Failed to unlink transaction")
		writeErr(w, err, "Failed to unlink transaction")
		return
	}

	h.log.Info().Str("tx_id", req.TxID).Msg("Transaction unlinked")
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"message": "Transaction unlinked successfully"})
}
