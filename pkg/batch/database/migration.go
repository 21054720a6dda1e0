package database

import (
	"embed"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"     // MySQL ドライバを登録
	_ "github.com/golang-migrate/migrate/v4/database/postgres"  // PostgreSQL および Redshift ドライバを登録
	_ "github.com/golang-migrate/migrate/v4/database/snowflake" // Snowflake ドライバを登録
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"   // SQLite3 ドライバを登録
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"weatheretl/pkg/batch/config"
	"weatheretl/pkg/batch/util/exception"
	logger "weatheretl/pkg/batch/util/logger"
)

// バッチフレームワークのメタデータテーブル (batch_job_instance など) を作成するマイグレーション
//
//go:embed migrations
var migrationFS embed.FS

const defaultMigrationsTable = "batch_schema_migrations"

// MigrationDir はデータベース種別に対応する埋め込みマイグレーションのディレクトリを返します。
func MigrationDir(dbType string) (string, error) {
	switch strings.ToLower(dbType) {
	case "postgres", "redshift":
		return "migrations/postgres", nil
	case "mysql":
		return "migrations/mysql", nil
	case "sqlite3":
		return "migrations/sqlite3", nil
	case "snowflake":
		return "migrations/snowflake", nil
	default:
		return "", exception.NewBatchErrorf("migration", exception.KindConfig, "サポートされていないデータベースタイプ: %s", dbType)
	}
}

// MigrationURL は golang-migrate が期待するデータベースURLを組み立てます。
func MigrationURL(cfg config.DatabaseConfig) (string, error) {
	table := cfg.MigrationsTable
	if table == "" {
		table = defaultMigrationsTable
	}
	q := "x-migrations-table=" + url.QueryEscape(table)

	switch strings.ToLower(cfg.Type) {
	case "postgres", "redshift":
		return appendQuery(cfg.ConnectionString(), q), nil
	case "mysql":
		return appendQuery("mysql://"+cfg.ConnectionString(), q), nil
	case "sqlite3":
		return appendQuery("sqlite3://"+cfg.Path, q), nil
	case "snowflake":
		// golang-migrate の snowflake ドライバは account/schema/database の順で指定する
		u := fmt.Sprintf("snowflake://%s:%s@%s/%s/%s",
			url.QueryEscape(cfg.User), url.QueryEscape(cfg.Password), cfg.Account, cfg.Schema, cfg.Database)
		return appendQuery(u, q), nil
	default:
		return "", exception.NewBatchErrorf("migration", exception.KindConfig, "サポートされていないデータベースタイプ: %s", cfg.Type)
	}
}

func appendQuery(u, q string) string {
	if strings.Contains(u, "?") {
		return u + "&" + q
	}
	return u + "?" + q
}

// RunMigrations は埋め込みマイグレーションを指定されたデータベースに適用します。
func RunMigrations(cfg config.DatabaseConfig) error {
	dir, err := MigrationDir(cfg.Type)
	if err != nil {
		return err
	}
	databaseURL, err := MigrationURL(cfg)
	if err != nil {
		return err
	}

	logger.Infof("データベースマイグレーションを開始します。DBタイプ: %s, マイグレーションパス: %s", cfg.Type, dir)

	source, err := iofs.New(migrationFS, dir)
	if err != nil {
		return exception.NewBatchError("migration", "マイグレーションソースの作成に失敗しました", exception.KindRepository, err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return exception.NewBatchError("migration", "マイグレーションインスタンスの作成に失敗しました", exception.KindRepository, err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warnf("マイグレーションのクローズ中にエラーが発生しました: source=%v, database=%v", srcErr, dbErr)
		}
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Infof("マイグレーションは不要です。データベースは最新の状態です。")
			return nil
		}
		return exception.NewBatchError("migration", "マイグレーションの実行に失敗しました", exception.KindRepository, err)
	}

	logger.Infof("データベースマイグレーションが正常に完了しました。")
	return nil
}
