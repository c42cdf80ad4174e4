package gcsuploader

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// Fetch downloads the file bytes from the given GCS URI. The object may live in any
// bucket the credentials can read, not only the archive bucket.
func (a *Archiver) Fetch(ctx context.Context, gcsURI string) ([]byte, error) {
	return FetchWithClient(ctx, a.client, gcsURI)
}

// FetchFromGCS downloads gcsURI with a short-lived client.
func FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: creating storage client: %w", err)
	}
	defer client.Close()

	return FetchWithClient(ctx, client, gcsURI)
}

// FetchWithClient downloads gcsURI using the provided client.
func FetchWithClient(ctx context.Context, client *storage.Client, gcsURI string) ([]byte, error) {
	bucketName, objectPath, err := ParseGCSURI(gcsURI)
	if err != nil {
		return nil, err
	}

	rc, err := client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("fetch: reading bytes: %w", err)
	}
	return data, nil
}
