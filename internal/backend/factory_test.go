package backend

import (
	"context"
	"testing"

	"github.com/pulsepoint/kvsync/internal/backend/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMemoryBackend(t *testing.T) {
	b, err := Create(context.Background(), &Config{Type: TypeMemory})
	require.NoError(t, err)
	_, ok := b.(*memory.Backend)
	assert.True(t, ok)
}

func TestCreateDefaultsToMemoryWhenTypeEmpty(t *testing.T) {
	b, err := Create(context.Background(), &Config{})
	require.NoError(t, err)
	_, ok := b.(*memory.Backend)
	assert.True(t, ok)
}

func TestCreateNilConfigErrors(t *testing.T) {
	_, err := Create(context.Background(), nil)
	assert.Error(t, err)
}

func TestCreateUnknownTypeErrors(t *testing.T) {
	_, err := Create(context.Background(), &Config{Type: Type("bogus")})
	assert.Error(t, err)
}
