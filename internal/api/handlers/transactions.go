package handlers

import (
	"net/http"
	"regexp"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dvloznov/fintrack/internal/api/middleware"
	"github.com/dvloznov/fintrack/internal/domain"
	"github.com/dvloznov/fintrack/internal/ledger"
)

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	repo ledger.Repository
	log  zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(repo ledger.Repository, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		repo: repo,
		log:  log,
	}
}

// ListTransactions handles GET /api/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	transactions, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	// Return array directly for frontend compatibility
	if transactions == nil {
		transactions = []*domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, transactions)
}

// GetTransaction handles GET /api/transactions/{id}
func (h *TransactionsHandler) GetTransaction(w http.ResponseWriter, r *http.Request, id string) {
	tx, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeErr(w, err, "Failed to get transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

// DeleteTransactions handles DELETE /api/transactions
func (h *TransactionsHandler) DeleteTransactions(w http.ResponseWriter, r *http.Request) {
	n, err := h.repo.DeleteAll(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to clear transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to clear transactions")
		return
	}

	h.log.Warn().Int64("deleted", n).Msg("Ledger cleared")
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "All transactions deleted",
		"deleted": n,
	})
}

func parseFilter(r *http.Request) (ledger.Filter, error) {
	query := r.URL.Query()
	filter := ledger.Filter{
		Account:            query.Get("account"),
		Category:           query.Get("category"),
		DescriptionPattern: query.Get("q"),
	}

	if filter.DescriptionPattern != "" {
		if _, err := regexp.Compile(filter.DescriptionPattern); err != nil {
			return filter, errInvalidParam("q")
		}
	}

	var err error
	if filter.MinAmount, err = parseAmount(query.Get("min_amount"), "min_amount"); err != nil {
		return filter, err
	}
	if filter.MaxAmount, err = parseAmount(query.Get("max_amount"), "max_amount"); err != nil {
		return filter, err
	}

	if v := query.Get("transfers_only"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, errInvalidParam("transfers_only")
		}
		filter.TransfersOnly = b
	}
	if v := query.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, errInvalidParam("limit")
		}
		filter.Limit = n
	}
	return filter, nil
}

func parseAmount(v, name string) (*float64, error) {
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, errInvalidParam(name)
	}
	return &f, nil
}

type errInvalidParam string

func (e errInvalidParam) Error() string { return "Invalid " + string(e) }
