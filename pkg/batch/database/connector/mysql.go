package connector

import (
	"database/sql"

	_ "github.com/go-sql-driver/mysql" // MySQL ドライバ

	"weatheretl/pkg/batch/config"
)

// mysqlConnector はMySQLデータベースへの接続を確立するDBConnectorの実装です。
type mysqlConnector struct{}

func (c *mysqlConnector) Connect(cfg config.DatabaseConfig) (*sql.DB, error) {
	return openSQLDB("mysql", cfg)
}

func init() {
	RegisterConnector("mysql", &mysqlConnector{})
}
