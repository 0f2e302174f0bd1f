// Package bolt implements a concrete LocalStore backed by go.etcd.io/bbolt.
// This is a reference implementation of the capability the sync engine
// consumes: the engine never imports this package directly.
package bolt

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pulsepoint/kvsync/internal/core/interfaces"
	"github.com/pulsepoint/kvsync/pkg/logger"
	"github.com/pulsepoint/kvsync/pkg/value"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

const bucketItems = "items"

// record is the on-disk shape of one stored item: value plus metadata,
// marshaled together so a single Get reads both.
type record struct {
	Value    value.Value          `json:"value"`
	Metadata interfaces.Metadata  `json:"metadata"`
}

// Store is a bbolt-backed interfaces.LocalStore.
type Store struct {
	db     *bolt.DB
	path   string
	logger *zap.Logger
}

// Options configures a Store.
type Options struct {
	Path    string
	Timeout time.Duration
}

// DefaultOptions returns the default database location under ~/.kvsync.
func DefaultOptions() *Options {
	home, _ := os.UserHomeDir()
	return &Options{
		Path:    filepath.Join(home, ".kvsync", "store.db"),
		Timeout: time.Second,
	}
}

// Open opens (creating if absent) a bbolt-backed Store at opts.Path.
func Open(opts *Options) (*Store, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(opts.Path, 0600, &bolt.Options{Timeout: opts.Timeout})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketItems))
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, path: opts.Path, logger: logger.Get()}
	s.logger.Info("local store opened", zap.String("path", opts.Path))
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Get(ctx context.Context, key string) (value.Value, bool, error) {
	var rec record
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(bucketItems)).Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	if err != nil || !found {
		return value.Value{}, false, err
	}
	return rec.Value, true, nil
}

func (s *Store) Set(ctx context.Context, key string, v value.Value) error {
	now := time.Now().UnixMilli()
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketItems))
		var rec record
		existing := b.Get([]byte(key))
		if existing == nil || json.Unmarshal(existing, &rec) != nil {
			rec.Metadata.CreatedAt = now
		}
		rec.Value = v
		rec.Metadata.Key = key
		rec.Metadata.UpdatedAt = now
		valueBytes, err := json.Marshal(v)
		if err != nil {
			return err
		}
		rec.Metadata.Size = int64(len(valueBytes))
		raw, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), raw)
	})
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketItems)).Delete([]byte(key))
	})
}

func (s *Store) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketItems)).ForEach(func(k, v []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

func (s *Store) GetMetadata(ctx context.Context, key string) (interfaces.Metadata, bool, error) {
	var rec record
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(bucketItems)).Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	if err != nil || !found {
		return interfaces.Metadata{}, false, err
	}
	return rec.Metadata, true, nil
}
