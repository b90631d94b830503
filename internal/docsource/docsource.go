// Package docsource fetches raw statement text from wherever a document
// lives: the local filesystem or a GCS bucket.
package docsource

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
)

// Source resolves a document reference to its text contents.
type Source interface {
	Fetch(ctx context.Context, ref string) (string, error)
}

// Local reads statements from the filesystem. The ref is a file path.
type Local struct{}

func (Local) Fetch(_ context.Context, ref string) (string, error) {
	data, err := os.ReadFile(ref)
	if err != nil {
		return "", fmt.Errorf("read statement file %q: %w", ref, err)
	}
	return string(data), nil
}

// SplitGCSURI splits gs://bucket/path/to/object into bucket and object.
func SplitGCSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// FilenameFromRef returns the base filename of a local path or GCS URI.
func FilenameFromRef(ref string) string {
	if strings.HasPrefix(ref, "gs://") {
		trimmed := strings.TrimPrefix(ref, "gs://")
		parts := strings.SplitN(trimmed, "/", 2)
		if len(parts) < 2 {
			return trimmed
		}
		return path.Base(parts[1])
	}
	return path.Base(ref)
}
