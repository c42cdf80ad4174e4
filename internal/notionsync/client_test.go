package notionsync

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", &notionapi.Error{Status: 429, Code: "rate_limited"}, true},
		{"server error", &notionapi.Error{Status: 502}, true},
		{"wrapped", fmt.Errorf("CreatePage: %w", &notionapi.Error{Status: 503}), true},
		{"validation", &notionapi.Error{Status: 400, Code: "validation_error"}, false},
		{"not an api error", errors.New("dial tcp: timeout"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryable(tt.err))
		})
	}
}
