package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCS stores objects in a Google Cloud Storage bucket.
type GCS struct {
	bucketName string
	bucket     *storage.BucketHandle
}

// NewGCS opens the named bucket, creating it when it does not exist yet.
// projectID is only required for bucket creation.
func NewGCS(ctx context.Context, bucketName, projectID string) (*GCS, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("blobstore: bucket name is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("blobstore: create gcs client: %w", err)
	}
	bucket := client.Bucket(bucketName)
	if _, err := bucket.Attrs(ctx); err != nil {
		if !errors.Is(err, storage.ErrBucketNotExist) {
			return nil, fmt.Errorf("blobstore: stat bucket %s: %w", bucketName, err)
		}
		if err := bucket.Create(ctx, projectID, nil); err != nil {
			return nil, fmt.Errorf("blobstore: create bucket %s: %w", bucketName, err)
		}
	}
	return &GCS{bucketName: bucketName, bucket: bucket}, nil
}

func (g *GCS) Get(ctx context.Context, path string) ([]byte, error) {
	r, err := g.bucket.Object(path).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("blobstore: read %s: %w", path, err)
	}
	defer r.Close()
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("blobstore: read %s: %w", path, err)
	}
	return content, nil
}

func (g *GCS) Put(ctx context.Context, path string, content []byte, contentType string) error {
	w := g.bucket.Object(path).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := w.Write(content); err != nil {
		_ = w.Close()
		return fmt.Errorf("blobstore: write %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("blobstore: write %s: %w", path, err)
	}
	return nil
}

func (g *GCS) List(ctx context.Context, prefix string) ([]string, error) {
	it := g.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	var paths []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("blobstore: list %s: %w", prefix, err)
		}
		paths = append(paths, attrs.Name)
	}
	sort.Strings(paths)
	return paths, nil
}

func (g *GCS) Delete(ctx context.Context, path string) error {
	if err := g.bucket.Object(path).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("blobstore: delete %s: %w", path, err)
	}
	return nil
}

func (g *GCS) Exists(ctx context.Context, path string) (bool, error) {
	if _, err := g.bucket.Object(path).Attrs(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("blobstore: stat %s: %w", path, err)
	}
	return true, nil
}
