package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/fintrack/internal/domain"
	"github.com/dvloznov/fintrack/internal/logger"
)

// Defaults for a local Ollama server.
const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "llama2"
)

// OllamaProvider talks to a local Ollama server. Local models are unreliable at strict
// JSON, so malformed output yields an empty result instead of an error.
type OllamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

// NewOllamaProvider creates a provider for the server at baseURL.
func NewOllamaProvider(baseURL, model string, timeout time.Duration) *OllamaProvider {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &OllamaProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// Extract implements Extractor.
func (p *OllamaProvider) Extract(ctx context.Context, rawText string) ([]*domain.Transaction, error) {
	text, err := p.generate(ctx, extractionPrompt(rawText)+"\n\nRespond ONLY with the JSON list.")
	if err != nil {
		return nil, fmt.Errorf("OllamaProvider.Extract: %w: %w", ErrExtractionFailed, err)
	}

	records, err := decodeRecords(text)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("raw_response", truncate(text, 500)).Msg("local model returned malformed JSON, treating as empty")
		return []*domain.Transaction{}, nil
	}
	return toTransactions(ctx, records), nil
}

// GenerateContent implements Extractor.
func (p *OllamaProvider) GenerateContent(ctx context.Context, prompt string) (string, error) {
	text, err := p.generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("OllamaProvider.GenerateContent: %w", err)
	}
	return text, nil
}

// InterpretCommand implements Extractor.
func (p *OllamaProvider) InterpretCommand(ctx context.Context, message string) (*Command, error) {
	text, err := p.generate(ctx, commandPrompt(message)+"\n\nRespond ONLY with the JSON object or null.")
	if err != nil {
		return nil, fmt.Errorf("OllamaProvider.InterpretCommand: %w", err)
	}
	return decodeCommand(text), nil
}

func (p *OllamaProvider) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaRequest{Model: p.model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call %s: %w", p.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ollama returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.Response, nil
}
