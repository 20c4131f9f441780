package adapter

import (
	"context"
	"errors"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/promptshot/pkg/interfaces"
	"google.golang.org/api/option"
)

// storageClient implements interfaces.KVS using Cloud Storage, one object per key
type storageClient struct {
	bucketName string
	prefix     string
	client     *storage.Client
}

// NewStorage creates a new Cloud Storage backed KVS. Objects are stored as
// "<prefix><key>.json" in the bucket.
func NewStorage(ctx context.Context, bucketName, prefix string, opts ...option.ClientOption) (interfaces.KVS, error) {
	if bucketName == "" {
		return nil, goerr.New("bucket name is required")
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	return &storageClient{
		bucketName: bucketName,
		prefix:     prefix,
		client:     client,
	}, nil
}

func (s *storageClient) objectName(key string) string {
	return s.prefix + strings.TrimPrefix(key, "/") + ".json"
}

func (s *storageClient) Get(ctx context.Context, key string) (string, bool, error) {
	obj := s.client.Bucket(s.bucketName).Object(s.objectName(key))
	reader, err := obj.NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, goerr.Wrap(err, "failed to read from storage",
			goerr.V("bucket", s.bucketName),
			goerr.V("key", key))
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", false, goerr.Wrap(err, "failed to read object body",
			goerr.V("bucket", s.bucketName),
			goerr.V("key", key))
	}

	return string(data), true, nil
}

func (s *storageClient) Set(ctx context.Context, key, value string) error {
	obj := s.client.Bucket(s.bucketName).Object(s.objectName(key))
	writer := obj.NewWriter(ctx)
	writer.ContentType = "application/json"

	if _, err := io.WriteString(writer, value); err != nil {
		_ = writer.Close()
		return goerr.Wrap(err, "failed to write to storage",
			goerr.V("bucket", s.bucketName),
			goerr.V("key", key))
	}

	// The object becomes visible only after a successful Close
	if err := writer.Close(); err != nil {
		return goerr.Wrap(err, "failed to close storage writer",
			goerr.V("bucket", s.bucketName),
			goerr.V("key", key))
	}

	return nil
}
