package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/pulsepoint/kvsync/internal/auth/google"
	"github.com/pulsepoint/kvsync/internal/backend"
	"github.com/pulsepoint/kvsync/internal/connectivity"
	"github.com/pulsepoint/kvsync/internal/core/engine"
	"github.com/pulsepoint/kvsync/internal/core/interfaces"
	"github.com/pulsepoint/kvsync/internal/core/resolver"
	"github.com/pulsepoint/kvsync/internal/storage/bolt"
	"github.com/pulsepoint/kvsync/pkg/logger"
	"github.com/spf13/viper"
)

// openLocalStore opens the bbolt-backed local store at its default
// location under ~/.kvsync.
func openLocalStore() (*bolt.Store, error) {
	dir, err := storeDir()
	if err != nil {
		return nil, err
	}
	return bolt.Open(&bolt.Options{Path: filepath.Join(dir, "store.db"), Timeout: time.Second})
}

// buildRemoteBackend constructs the configured RemoteBackend: "memory"
// (the default when backend.type is unset) for local testing/demos,
// "gdrive" for real use.
func buildRemoteBackend(ctx context.Context) (interfaces.RemoteBackend, error) {
	backendType := backend.Type(viper.GetString("backend.type"))
	if backendType == "" {
		backendType = backend.TypeMemory
	}

	credentialsPath := viper.GetString("providers.google.credentials_file")
	if credentialsPath == "" {
		credentialsPath = google.GetDefaultCredentialsPath()
	}
	tokenPath := viper.GetString("providers.google.token_file")
	if tokenPath == "" {
		tokenPath = google.GetDefaultTokenPath()
	}

	return backend.Create(ctx, &backend.Config{
		Type:            backendType,
		CredentialsPath: credentialsPath,
		TokenPath:       tokenPath,
	})
}

// buildEngine wires together the local store, remote backend,
// connectivity probe, and resolver into a ready-to-use Engine using a
// zero interval (the caller drives reconciliation manually).
func buildEngine(ctx context.Context) (*engine.Engine, *bolt.Store, error) {
	return buildEngineWithInterval(ctx, 0)
}

// buildEngineWithInterval is like buildEngine but runs a periodic
// reconciliation loop at the given interval when interval > 0.
func buildEngineWithInterval(ctx context.Context, interval time.Duration) (*engine.Engine, *bolt.Store, error) {
	store, err := openLocalStore()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open local store: %w", err)
	}

	remote, err := buildRemoteBackend(ctx)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to configure remote backend: %w", err)
	}

	probe := connectivity.New(connectivity.DefaultOptions())

	cfg := engine.DefaultConfig()
	cfg.Logger = logger.Get()
	cfg.Resolver = resolver.New(resolver.DefaultConfig())
	cfg.SyncInterval = interval

	eng, err := engine.New(store, remote, probe, cfg)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to create sync engine: %w", err)
	}

	return eng, store, nil
}
