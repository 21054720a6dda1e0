package connector

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"weatheretl/pkg/batch/config"
	"weatheretl/pkg/batch/database"
	"weatheretl/pkg/batch/util/exception"
	logger "weatheretl/pkg/batch/util/logger"
)

// DBConnector は特定のデータベースタイプへの接続を確立するためのインターフェースです。
type DBConnector interface {
	Connect(cfg config.DatabaseConfig) (*sql.DB, error)
}

// connectors は登録されたDBConnectorの実装を保持するマップです。
var connectors = make(map[string]DBConnector)

// RegisterConnector は指定されたタイプ名でDBConnectorを登録します。
func RegisterConnector(dbType string, connector DBConnector) {
	if _, exists := connectors[dbType]; exists {
		logger.Warnf("DBタイプ '%s' の DBConnector は既に登録されています。上書きします。", dbType)
	}
	connectors[dbType] = connector
}

// openSQLDB は sql.Open を行い、接続プール設定を適用します。
func openSQLDB(driverName string, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(driverName, cfg.ConnectionString())
	if err != nil {
		return nil, exception.NewBatchError("database", driverName+" への接続に失敗しました", exception.KindRepository, err)
	}

	pool := cfg.ConnectionPool
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetimeSeconds > 0 {
		db.SetConnMaxLifetime(time.Duration(pool.ConnMaxLifetimeSeconds) * time.Second)
	}
	logger.Debugf("%s の接続プールを設定しました。MaxOpenConns: %d, MaxIdleConns: %d, ConnMaxLifetime: %d秒",
		driverName, pool.MaxOpenConns, pool.MaxIdleConns, pool.ConnMaxLifetimeSeconds)
	return db, nil
}

// NewDBConnectionFromConfig は設定に基づいて適切なデータベース接続を確立します。
// 登録されたコネクタの中から適切なものを選択して接続し、Ping で疎通を確認します。
func NewDBConnectionFromConfig(ctx context.Context, cfg config.DatabaseConfig) (database.DBConnection, error) {
	dbType := strings.ToLower(cfg.Type)
	connector, ok := connectors[dbType]
	if !ok {
		return nil, exception.NewBatchErrorf("database", exception.KindConfig, "未対応のデータベースタイプ: %s", cfg.Type)
	}

	rawDB, err := connector.Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := rawDB.PingContext(ctx); err != nil {
		rawDB.Close()
		return nil, exception.NewBatchError("database", "データベースへのPingに失敗しました", exception.KindRepository, err)
	}

	logger.Debugf("データベース (%s) に正常に接続しました。", dbType)
	return database.NewSQLDBAdapter(rawDB, dbType), nil
}
