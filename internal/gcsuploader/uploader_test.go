package gcsuploader

import (
	"context"
	"testing"
	"time"
)

func TestObjectName(t *testing.T) {
	now := time.Date(2025, 1, 16, 23, 30, 0, 0, time.FixedZone("PST", -8*3600))

	tests := []struct {
		filename string
		want     string
	}{
		{"statement.csv", "uploads/2025/01/17/abc-statement.csv"},
		{"C:\\Users\\me\\boa.xlsx", "uploads/2025/01/17/abc-boa.xlsx"},
		{"../../etc/passwd", "uploads/2025/01/17/abc-passwd"},
		{"", "uploads/2025/01/17/abc-upload.txt"},
	}
	for _, tt := range tests {
		if got := ObjectName(now, "abc", tt.filename); got != tt.want {
			t.Errorf("ObjectName(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}

func TestParseGCSURI(t *testing.T) {
	bucket, object, err := ParseGCSURI("gs://ledger-uploads/uploads/2025/01/17/a.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bucket != "ledger-uploads" || object != "uploads/2025/01/17/a.csv" {
		t.Errorf("got %q %q", bucket, object)
	}

	for _, bad := range []string{"https://example.com/a.csv", "gs://bucket-only", "gs:///object"} {
		if _, _, err := ParseGCSURI(bad); err == nil {
			t.Errorf("ParseGCSURI(%q) expected error", bad)
		}
	}
}

func TestExtractFilenameFromGCSURI(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"gs://bucket/folder/file.csv", "file.csv"},
		{"gs://bucket/file.xlsx", "file.xlsx"},
		{"gs://bucket", "bucket"},
	}
	for _, tt := range tests {
		if got := ExtractFilenameFromGCSURI(tt.uri); got != tt.want {
			t.Errorf("ExtractFilenameFromGCSURI(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}

func TestFetchWithClient_InvalidURI(t *testing.T) {
	if _, err := FetchWithClient(context.Background(), nil, "not-a-uri"); err == nil {
		t.Error("expected error for invalid URI")
	}
}

func TestNewArchiver_RequiresBucket(t *testing.T) {
	if _, err := NewArchiver(context.Background(), ""); err == nil {
		t.Error("expected error for empty bucket")
	}
}
