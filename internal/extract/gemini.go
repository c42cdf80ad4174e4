package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"google.golang.org/genai"

	"github.com/dvloznov/fintrack/internal/domain"
	"github.com/dvloznov/fintrack/internal/ingest"
	"github.com/dvloznov/fintrack/internal/logger"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// contentGenerator is the subset of *genai.Models the provider calls.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiProvider extracts transactions with the Gemini API. Unusable model output is an
// error for this provider.
type GeminiProvider struct {
	models   contentGenerator
	model    string
	attempts uint
	delay    time.Duration
}

// NewGeminiProvider creates a client for the Gemini API. An empty apiKey falls back to the
// GEMINI_API_KEY / GOOGLE_API_KEY environment variables read by the SDK.
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiProvider: create genai client: %w", err)
	}
	return newGeminiProvider(client.Models, model), nil
}

func newGeminiProvider(models contentGenerator, model string) *GeminiProvider {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiProvider{models: models, model: model, attempts: 3, delay: 2 * time.Second}
}

// Extract implements Extractor.
func (p *GeminiProvider) Extract(ctx context.Context, rawText string) ([]*domain.Transaction, error) {
	text, err := p.generate(ctx, extractionPrompt(rawText))
	if err != nil {
		return nil, fmt.Errorf("GeminiProvider.Extract: %w: %w", ErrExtractionFailed, err)
	}
	if text == "" {
		return nil, fmt.Errorf("GeminiProvider.Extract: %w: empty response from model", ErrExtractionFailed)
	}

	records, err := decodeRecords(text)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("raw_response", truncate(text, 500)).Msg("model returned malformed JSON")
		return nil, fmt.Errorf("GeminiProvider.Extract: %w: %w", ErrExtractionFailed, err)
	}
	return toTransactions(ctx, records), nil
}

// GenerateContent implements Extractor.
func (p *GeminiProvider) GenerateContent(ctx context.Context, prompt string) (string, error) {
	text, err := p.generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("GeminiProvider.GenerateContent: %w", err)
	}
	return text, nil
}

// InterpretCommand implements Extractor.
func (p *GeminiProvider) InterpretCommand(ctx context.Context, message string) (*Command, error) {
	text, err := p.generate(ctx, commandPrompt(message))
	if err != nil {
		return nil, fmt.Errorf("GeminiProvider.InterpretCommand: %w", err)
	}
	return decodeCommand(text), nil
}

func (p *GeminiProvider) generate(ctx context.Context, prompt string) (string, error) {
	log := logger.FromContext(ctx)

	var text string
	err := retry.Do(
		func() error {
			resp, err := p.models.GenerateContent(ctx, p.model, genai.Text(prompt), nil)
			if err != nil {
				return err
			}
			text = resp.Text()
			return nil
		},
		retry.RetryIf(func(err error) bool {
			if isTransient(err) {
				log.Warn().Err(err).Str("model", p.model).Msg("transient model error, will retry")
				return true
			}
			return false
		}),
		retry.Attempts(p.attempts),
		retry.Delay(p.delay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return text, nil
}

// isTransient reports rate limiting and server-side unavailability.
func isTransient(err error) bool {
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	default:
		return false
	}
	return code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable || code == http.StatusInternalServerError
}

// truncate shortens model output for logging.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return ingest.TruncateUTF8(s, n) + "..."
}
