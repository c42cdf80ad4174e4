// Package chat answers questions about the ledger and applies bulk category commands.
package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dvloznov/fintrack/internal/extract"
	"github.com/dvloznov/fintrack/internal/ledger"
	"github.com/dvloznov/fintrack/internal/logger"
)

// ContextSize is how many recent transactions are shown to the model.
const ContextSize = 20

// Reply is the answer to one chat message.
type Reply struct {
	Response string `json:"response"`

	// Updated is set when the message was a bulk category command.
	Updated *int64 `json:"updated,omitempty"`
}

// Service routes chat messages to the model and the ledger.
type Service struct {
	repo      ledger.Repository
	extractor extract.Extractor
}

func NewService(repo ledger.Repository, extractor extract.Extractor) *Service {
	return &Service{repo: repo, extractor: extractor}
}

// Respond applies message as a bulk category command when the model recognizes one,
// and otherwise answers it with the most recent transactions as context.
func (s *Service) Respond(ctx context.Context, message string) (*Reply, error) {
	log := logger.FromContext(ctx)

	cmd, err := s.extractor.InterpretCommand(ctx, message)
	if err != nil {
		// Not being able to classify the message still leaves a plain answer.
		log.Warn().Err(err).Msg("command interpretation failed")
	}
	if cmd != nil && cmd.VendorKeyword != "" && cmd.NewCategory != "" {
		n, err := s.repo.UpdateCategoryByKeyword(ctx, cmd.VendorKeyword, cmd.NewCategory)
		if err != nil {
			return nil, fmt.Errorf("Respond: update category: %w", err)
		}
		log.Info().Str("keyword", cmd.VendorKeyword).Str("category", cmd.NewCategory).Int64("updated", n).Msg("applied category command")
		return &Reply{
			Response: fmt.Sprintf("Updated %d transaction(s) matching %q to category %q.", n, cmd.VendorKeyword, cmd.NewCategory),
			Updated:  &n,
		}, nil
	}

	recent, err := s.repo.List(ctx, ledger.Filter{Limit: ContextSize})
	if err != nil {
		return nil, fmt.Errorf("Respond: recent transactions: %w", err)
	}
	contextJSON, err := json.Marshal(recent)
	if err != nil {
		return nil, fmt.Errorf("Respond: encode context: %w", err)
	}

	answer, err := s.extractor.GenerateContent(ctx, answerPrompt(string(contextJSON), message))
	if err != nil {
		return nil, fmt.Errorf("Respond: %w", err)
	}
	return &Reply{Response: answer}, nil
}

func answerPrompt(recentJSON, message string) string {
	return "Context: Here are the user's recent transactions: " + recentJSON +
		"\n\nUser Question: " + message +
		"\n\nAnswer the user based on the context."
}
