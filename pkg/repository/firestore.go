package repository

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/promptshot/pkg/interfaces"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const collectionKVS = "kvs"

// Firestore implements interfaces.KVS with one document per key
type Firestore struct {
	client *firestore.Client
}

var _ interfaces.KVS = (*Firestore)(nil)

type kvsDocument struct {
	Value     string    `firestore:"value"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// NewFirestore creates a new Firestore backed KVS
func NewFirestore(ctx context.Context, projectID, databaseID string, opts ...option.ClientOption) (*Firestore, error) {
	if projectID == "" {
		return nil, goerr.New("project is required")
	}
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID),
			goerr.V("database", databaseID))
	}

	return &Firestore{client: client}, nil
}

// Close releases the underlying client
func (r *Firestore) Close() error {
	return r.client.Close()
}

func validateDocKey(key string) error {
	if key == "" || strings.Contains(key, "/") {
		return goerr.New("invalid key for firestore document", goerr.V("key", key))
	}
	return nil
}

func (r *Firestore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := validateDocKey(key); err != nil {
		return "", false, err
	}

	snap, err := r.client.Collection(collectionKVS).Doc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, goerr.Wrap(err, "failed to get document", goerr.V("key", key))
	}

	var doc kvsDocument
	if err := snap.DataTo(&doc); err != nil {
		return "", false, goerr.Wrap(err, "failed to decode document", goerr.V("key", key))
	}

	return doc.Value, true, nil
}

func (r *Firestore) Set(ctx context.Context, key, value string) error {
	if err := validateDocKey(key); err != nil {
		return err
	}

	doc := kvsDocument{
		Value:     value,
		UpdatedAt: time.Now(),
	}
	if _, err := r.client.Collection(collectionKVS).Doc(key).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to set document", goerr.V("key", key))
	}

	return nil
}
