package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weatheretl/pkg/batch/config"
)

func TestRebind(t *testing.T) {
	q := "UPDATE t SET a = ?, b = ? WHERE id = ?"
	assert.Equal(t, "UPDATE t SET a = $1, b = $2 WHERE id = $3", Rebind("postgres", q))
	assert.Equal(t, "UPDATE t SET a = $1, b = $2 WHERE id = $3", Rebind("redshift", q))
	assert.Equal(t, q, Rebind("mysql", q))
	assert.Equal(t, q, Rebind("sqlite3", q))
}

func TestMigrationURL(t *testing.T) {
	tests := []struct {
		cfg  config.DatabaseConfig
		want string
	}{
		{
			config.DatabaseConfig{Type: "postgres", Host: "db", Port: 5432, Database: "batch", User: "u", Password: "p"},
			"postgres://u:p@db:5432/batch?sslmode=disable&x-migrations-table=batch_schema_migrations",
		},
		{
			config.DatabaseConfig{Type: "mysql", Host: "db", Port: 3306, Database: "batch", User: "u", Password: "p", MigrationsTable: "m"},
			"mysql://u:p@tcp(db:3306)/batch?parseTime=true&x-migrations-table=m",
		},
		{
			config.DatabaseConfig{Type: "sqlite3", Path: "/tmp/batch.db"},
			"sqlite3:///tmp/batch.db?x-migrations-table=batch_schema_migrations",
		},
		{
			config.DatabaseConfig{Type: "snowflake", Account: "acct", Database: "DB", Schema: "PUBLIC", User: "u", Password: "p"},
			"snowflake://u:p@acct/PUBLIC/DB?x-migrations-table=batch_schema_migrations",
		},
	}
	for _, tt := range tests {
		got, err := MigrationURL(tt.cfg)
		require.NoError(t, err, tt.cfg.Type)
		assert.Equal(t, tt.want, got, tt.cfg.Type)
	}

	_, err := MigrationURL(config.DatabaseConfig{Type: "none"})
	assert.Error(t, err)
}

func TestEmbeddedMigrationsExistForEveryDialect(t *testing.T) {
	for _, dbType := range []string{"postgres", "redshift", "mysql", "sqlite3", "snowflake"} {
		dir, err := MigrationDir(dbType)
		require.NoError(t, err)
		entries, err := migrationFS.ReadDir(dir)
		require.NoError(t, err, dbType)
		assert.Len(t, entries, 6, dbType)
	}
}
