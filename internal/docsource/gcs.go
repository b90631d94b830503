package docsource

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
)

// GCS fetches statements from Cloud Storage. The ref is a gs:// URI.
// It assumes Application Default Credentials are configured.
type GCS struct {
	client *storage.Client
}

func NewGCS(ctx context.Context) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCS{client: client}, nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}

func (g *GCS) Fetch(ctx context.Context, ref string) (string, error) {
	bucket, object, err := SplitGCSURI(ref)
	if err != nil {
		return "", err
	}

	r, err := g.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return "", fmt.Errorf("open GCS object %s/%s: %w", bucket, object, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read GCS object %s/%s: %w", bucket, object, err)
	}
	return string(data), nil
}

// Upload writes statement text to the bucket and returns its gs:// URI.
func (g *GCS) Upload(ctx context.Context, bucket, object string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := g.client.Bucket(bucket).Object(object).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write GCS object %s/%s: %w", bucket, object, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload %s/%s: %w", bucket, object, err)
	}
	return fmt.Sprintf("gs://%s/%s", bucket, object), nil
}
