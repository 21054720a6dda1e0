package connector

import (
	"database/sql"

	_ "github.com/lib/pq" // PostgreSQL ドライバ

	"weatheretl/pkg/batch/config"
)

// postgresConnector はPostgreSQL (および Redshift) への接続を確立するDBConnectorの実装です。
type postgresConnector struct{}

func (c *postgresConnector) Connect(cfg config.DatabaseConfig) (*sql.DB, error) {
	return openSQLDB("postgres", cfg)
}

func init() {
	RegisterConnector("postgres", &postgresConnector{})
	// Redshift は PostgreSQL のワイヤプロトコル互換のため同じドライバを使用する
	RegisterConnector("redshift", &postgresConnector{})
}
