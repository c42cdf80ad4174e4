package gcsuploader

import "context"

// StorageService archives uploaded statements and reads them back.
type StorageService interface {
	// Archive stores content under a fresh object name derived from filename and
	// returns its gs:// URI.
	Archive(ctx context.Context, filename string, content []byte) (string, error)

	// Fetch downloads the object at a gs:// URI.
	Fetch(ctx context.Context, gcsURI string) ([]byte, error)
}

var _ StorageService = (*Archiver)(nil)
