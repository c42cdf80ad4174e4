package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	log := New()
	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected logger to be enabled")
	}
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Str("tx_id", "abc").Msg("persisted batch")

	output := buf.String()
	if !strings.Contains(output, "persisted batch") {
		t.Errorf("Expected output to contain message, got: %s", output)
	}
	if !strings.Contains(output, `"tx_id":"abc"`) {
		t.Errorf("Expected JSON field in output, got: %s", output)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"chatty", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewWithOptions(t *testing.T) {
	log := NewWithOptions(Options{Level: "warn", JSON: true})
	if log.GetLevel() != zerolog.WarnLevel {
		t.Errorf("Expected warn level, got %v", log.GetLevel())
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf))

	log := FromContext(ctx)
	log.Info().Msg("test")

	if buf.Len() == 0 {
		t.Error("Expected log output from retrieved logger")
	}
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())
	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected default logger to be enabled")
	}
}

func TestFromContext_UsesConfiguredDefault(t *testing.T) {
	t.Cleanup(func() { SetDefault(New()) })

	buf := &bytes.Buffer{}
	SetDefault(NewWithWriter(buf).Level(zerolog.WarnLevel))

	log := FromContext(context.Background())
	log.Info().Msg("dropped")
	log.Warn().Str("tx_id", "abc").Msg("claim lost")

	output := buf.String()
	if strings.Contains(output, "dropped") {
		t.Errorf("Expected info to be filtered, got: %s", output)
	}
	if !strings.Contains(output, `"tx_id":"abc"`) {
		t.Errorf("Expected warn line from default logger, got: %s", output)
	}

	// An explicit context logger still wins.
	ctxBuf := &bytes.Buffer{}
	scoped := FromContext(WithContext(context.Background(), NewWithWriter(ctxBuf)))
	scoped.Info().Msg("scoped")
	if !strings.Contains(ctxBuf.String(), "scoped") {
		t.Errorf("Expected context logger output, got: %s", ctxBuf.String())
	}
}
