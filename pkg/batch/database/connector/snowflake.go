package connector

import (
	"database/sql"

	_ "github.com/snowflakedb/gosnowflake" // Snowflake ドライバ

	"weatheretl/pkg/batch/config"
)

// snowflakeConnector はSnowflakeへの接続を確立するDBConnectorの実装です。
type snowflakeConnector struct{}

func (c *snowflakeConnector) Connect(cfg config.DatabaseConfig) (*sql.DB, error) {
	return openSQLDB("snowflake", cfg)
}

func init() {
	RegisterConnector("snowflake", &snowflakeConnector{})
}
