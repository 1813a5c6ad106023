package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/helixir/paperhub/internal/domain"
)

const tokenBucket = "tokens"

var errEmptyKey = domain.NewValidationError("key", "credential key is required")

// BoltStore keeps tokens in a bbolt file readable only by its owner.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens or creates the store at path.
func OpenBolt(path string) (*BoltStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create credential directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(tokenBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (b *BoltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Token implements Store.
func (b *BoltStore) Token(ctx context.Context, key string) (string, error) {
	var token string
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(tokenBucket))
		if bucket == nil {
			return errors.New("token bucket missing")
		}
		// Get's slice is only valid inside the transaction.
		token = string(bucket.Get([]byte(key)))
		return nil
	})
	return token, err
}

// SetToken implements Store. An empty token deletes the key.
func (b *BoltStore) SetToken(ctx context.Context, key, token string) error {
	if key == "" {
		return errEmptyKey
	}
	if token == "" {
		return b.DeleteToken(ctx, key)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(tokenBucket))
		if bucket == nil {
			return errors.New("token bucket missing")
		}
		return bucket.Put([]byte(key), []byte(token))
	})
}

// DeleteToken implements Store.
func (b *BoltStore) DeleteToken(ctx context.Context, key string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(tokenBucket))
		if bucket == nil {
			return errors.New("token bucket missing")
		}
		return bucket.Delete([]byte(key))
	})
}
