// Package extract turns raw statement text into transactions using a generative model,
// and answers chat messages with the same model.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/fintrack/internal/domain"
)

// ErrExtractionFailed is returned when the model could not produce usable output.
var ErrExtractionFailed = errors.New("extraction failed")

// Provider types accepted by New.
const (
	TypeCloud = "CLOUD"
	TypeLocal = "LOCAL"
)

// Extractor is the capability the ingestion pipeline and the chat endpoint depend on.
//
//go:generate mockgen -destination=mocks/mock_extractor.go -source=provider.go Extractor
type Extractor interface {
	// Extract returns the transactions found in rawText, in statement order.
	Extract(ctx context.Context, rawText string) ([]*domain.Transaction, error)
	// GenerateContent returns free text for prompt.
	GenerateContent(ctx context.Context, prompt string) (string, error)
	// InterpretCommand returns the bulk category update requested by message, or nil
	// when the message is not such a request.
	InterpretCommand(ctx context.Context, message string) (*Command, error)
}

// Command is a bulk category update requested in chat.
type Command struct {
	VendorKeyword string `json:"vendor_keyword"`
	NewCategory   string `json:"new_category"`
}

// Options selects and configures a provider.
type Options struct {
	Type         string
	GeminiAPIKey string
	GeminiModel  string
	OllamaURL    string
	OllamaModel  string
	HTTPTimeout  time.Duration
}

// New returns the provider named by opts.Type.
func New(ctx context.Context, opts Options) (Extractor, error) {
	switch strings.ToUpper(opts.Type) {
	case TypeLocal:
		return NewOllamaProvider(opts.OllamaURL, opts.OllamaModel, opts.HTTPTimeout), nil
	case TypeCloud, "":
		p, err := NewGeminiProvider(ctx, opts.GeminiAPIKey, opts.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("New: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("New: unknown provider type %q", opts.Type)
	}
}
