// Package backend selects and constructs a concrete RemoteBackend.
package backend

import (
	"context"
	"fmt"

	"github.com/pulsepoint/kvsync/internal/auth/google"
	"github.com/pulsepoint/kvsync/internal/backend/gdrive"
	"github.com/pulsepoint/kvsync/internal/backend/memory"
	"github.com/pulsepoint/kvsync/internal/core/interfaces"
	pperrors "github.com/pulsepoint/kvsync/pkg/errors"
)

// Type identifies a concrete RemoteBackend implementation.
type Type string

const (
	TypeGDrive Type = "gdrive"
	TypeMemory Type = "memory"
)

// Config selects and configures a backend.
type Config struct {
	Type Type

	// GDrive-only settings.
	CredentialsPath string
	TokenPath       string
	OAuthConfig     *google.OAuthConfig
}

// Create constructs the RemoteBackend named by cfg.Type.
func Create(ctx context.Context, cfg *Config) (interfaces.RemoteBackend, error) {
	if cfg == nil {
		return nil, pperrors.NewConfigError("backend configuration is required", nil)
	}

	switch cfg.Type {
	case TypeGDrive:
		return gdrive.New(ctx, &gdrive.Config{
			CredentialsPath: cfg.CredentialsPath,
			TokenPath:       cfg.TokenPath,
			OAuthConfig:     cfg.OAuthConfig,
		})
	case TypeMemory, "":
		return memory.New(), nil
	default:
		return nil, pperrors.NewConfigError(fmt.Sprintf("unknown backend type: %s", cfg.Type), nil)
	}
}
