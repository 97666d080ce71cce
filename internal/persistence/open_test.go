package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/mergington/internal/config"
	"example.com/mergington/internal/persistence/memory"
)

func TestOpenMemoryBackend(t *testing.T) {
	handle, err := Open(context.Background(), config.Config{StoreBackend: config.BackendMemory})
	require.NoError(t, err)
	defer handle.Close()

	require.IsType(t, &memory.Store{}, handle.Store)
	require.Nil(t, handle.Pool)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.Config{StoreBackend: "cassandra"})
	require.ErrorContains(t, err, "unknown store backend")
}
