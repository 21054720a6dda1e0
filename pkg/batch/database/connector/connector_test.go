package connector

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weatheretl/pkg/batch/config"
	"weatheretl/pkg/batch/util/exception"
)

func TestRegisteredConnectors(t *testing.T) {
	for _, dbType := range []string{"postgres", "redshift", "mysql", "sqlite3", "snowflake"} {
		_, ok := connectors[dbType]
		assert.True(t, ok, dbType)
	}
}

func TestNewDBConnectionFromConfig_SQLite(t *testing.T) {
	cfg := config.DatabaseConfig{Type: "sqlite3", Path: filepath.Join(t.TempDir(), "nested", "batch.db")}

	conn, err := NewDBConnectionFromConfig(context.Background(), cfg)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "sqlite3", conn.Dialect())
	var one int
	require.NoError(t, conn.QueryRowContext(context.Background(), "SELECT 1").Scan(&one))
	assert.Equal(t, 1, one)
}

func TestNewDBConnectionFromConfig_Unsupported(t *testing.T) {
	_, err := NewDBConnectionFromConfig(context.Background(), config.DatabaseConfig{Type: "oracle"})
	require.Error(t, err)
	assert.Equal(t, exception.KindConfig, exception.KindOf(err))
}
