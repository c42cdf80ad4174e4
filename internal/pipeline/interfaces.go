package pipeline

import "context"

// Archiver stores the raw upload somewhere durable and returns its URI.
// gcsuploader.Archiver satisfies it.
type Archiver interface {
	Archive(ctx context.Context, filename string, content []byte) (string, error)
}
