package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ollamaServer(t *testing.T, response string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req ollamaRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama2", req.Model)
		assert.False(t, req.Stream)

		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(ollamaResponse{Response: response})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaExtract(t *testing.T) {
	srv := ollamaServer(t, `Sure! [{"date": "2025-01-16", "description": "EFT to IRA", "amount": -100, "potential_transfer": true}] Done.`, http.StatusOK)

	txs, err := NewOllamaProvider(srv.URL, "", 0).Extract(context.Background(), "raw")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "EFT to IRA", txs[0].Description)
	assert.True(t, txs[0].PotentialTransfer)
}

func TestOllamaExtractMalformedIsEmpty(t *testing.T) {
	srv := ollamaServer(t, "I don't know", http.StatusOK)

	txs, err := NewOllamaProvider(srv.URL, "", 0).Extract(context.Background(), "raw")
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestOllamaExtractServerError(t *testing.T) {
	srv := ollamaServer(t, "", http.StatusInternalServerError)

	_, err := NewOllamaProvider(srv.URL, "", 0).Extract(context.Background(), "raw")
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestOllamaGenerateAndCommand(t *testing.T) {
	srv := ollamaServer(t, `{"vendor_keyword": "Walmart", "new_category": "Groceries"}`, http.StatusOK)
	p := NewOllamaProvider(srv.URL+"/", "", 0)

	text, err := p.GenerateContent(context.Background(), "hello")
	require.NoError(t, err)
	assert.Contains(t, text, "Walmart")

	cmd, err := p.InterpretCommand(context.Background(), "Change Walmart to Groceries")
	require.NoError(t, err)
	assert.Equal(t, &Command{VendorKeyword: "Walmart", NewCategory: "Groceries"}, cmd)
}

func TestNewSelectsProvider(t *testing.T) {
	p, err := New(context.Background(), Options{Type: "local"})
	require.NoError(t, err)
	assert.IsType(t, &OllamaProvider{}, p)

	_, err = New(context.Background(), Options{Type: "other"})
	assert.Error(t, err)
}
