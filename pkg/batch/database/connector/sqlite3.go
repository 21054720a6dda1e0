package connector

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite3 ドライバ

	"weatheretl/pkg/batch/config"
	"weatheretl/pkg/batch/util/exception"
)

// sqlite3Connector はローカルの SQLite3 ファイルへの接続を確立するDBConnectorの実装です。
type sqlite3Connector struct{}

func (c *sqlite3Connector) Connect(cfg config.DatabaseConfig) (*sql.DB, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, exception.NewBatchError("database", "SQLite3 データベースのディレクトリ作成に失敗しました", exception.KindIO, err)
		}
	}
	db, err := openSQLDB("sqlite3", cfg)
	if err != nil {
		return nil, err
	}
	// SQLite は同時書き込みができないため接続を1本に制限する
	db.SetMaxOpenConns(1)
	return db, nil
}

func init() {
	RegisterConnector("sqlite3", &sqlite3Connector{})
}
