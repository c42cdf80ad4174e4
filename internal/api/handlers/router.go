package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/fintrack/internal/api/middleware"
)

// Routes collects the handlers served by NewRouter. Nil handlers leave their routes out.
type Routes struct {
	Upload       *UploadHandler
	Transactions *TransactionsHandler
	Transfers    *TransfersHandler
	Chat         *ChatHandler
	Jobs         *JobsHandler
}

// NewRouter registers every endpoint on a ServeMux.
func NewRouter(rt Routes) *http.ServeMux {
	mux := http.NewServeMux()

	if rt.Upload != nil {
		mux.HandleFunc("/api/upload", method(http.MethodPost, rt.Upload.Upload))
		mux.HandleFunc("/api/upload/async", method(http.MethodPost, rt.Upload.UploadAsync))
	}

	if rt.Transactions != nil {
		mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				rt.Transactions.ListTransactions(w, r)
			case http.MethodDelete:
				rt.Transactions.DeleteTransactions(w, r)
			default:
				middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		})
		mux.HandleFunc("/api/transactions/", withID("/api/transactions/", "Transaction ID", rt.Transactions.GetTransaction))
	}

	if rt.Transfers != nil {
		mux.HandleFunc("/api/transfers", method(http.MethodGet, rt.Transfers.ListTransfers))
		mux.HandleFunc("/api/transfers/link", method(http.MethodPost, rt.Transfers.Link))
		mux.HandleFunc("/api/transfers/unlink", method(http.MethodPost, rt.Transfers.Unlink))
	}

	if rt.Chat != nil {
		mux.HandleFunc("/api/chat", method(http.MethodPost, rt.Chat.Chat))
	}

	if rt.Jobs != nil {
		mux.HandleFunc("/api/jobs", method(http.MethodGet, rt.Jobs.ListJobs))
		mux.HandleFunc("/api/jobs/", withID("/api/jobs/", "Job ID", rt.Jobs.GetJob))
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return mux
}

func method(m string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != m {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h(w, r)
	}
}

// withID serves GET prefix{id}.
func withID(prefix, what string, h func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return method(http.MethodGet, func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, prefix)
		if id == "" || strings.Contains(id, "/") {
			middleware.WriteError(w, http.StatusBadRequest, what+" is required")
			return
		}
		h(w, r, id)
	})
}
