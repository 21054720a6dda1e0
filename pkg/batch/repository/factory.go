package repository

import (
	"context"
	"fmt"

	"weatheretl/pkg/batch/config"
	"weatheretl/pkg/batch/database"
	"weatheretl/pkg/batch/database/connector"
	"weatheretl/pkg/batch/util/exception"
	logger "weatheretl/pkg/batch/util/logger"
)

// NewJobRepository は設定に応じた JobRepository のインスタンスを作成します。
// database.type が "none" の場合はインメモリ実装を、それ以外はマイグレーション済みの SQL 実装を返します。
func NewJobRepository(ctx context.Context, cfg config.DatabaseConfig) (JobRepository, error) {
	module := "repository_factory"
	logger.Debugf("JobRepository の生成を開始します (Type: %s).", cfg.Type)

	if cfg.Type == "" || cfg.Type == "none" {
		logger.Debugf("インメモリ JobRepository を生成しました。")
		return NewInMemoryJobRepository(), nil
	}

	dbConn, err := connector.NewDBConnectionFromConfig(ctx, cfg)
	if err != nil {
		logger.Errorf("JobRepository 用のデータベース接続確立に失敗しました (Type: %s): %v", cfg.Type, err)
		return nil, exception.NewBatchError(module, fmt.Sprintf("JobRepository 用のデータベース接続確立に失敗しました (Type: %s)", cfg.Type), exception.KindRepository, err)
	}

	if err := database.RunMigrations(cfg); err != nil {
		dbConn.Close()
		return nil, err
	}

	logger.Debugf("SQLJobRepository を生成しました。")
	return NewSQLJobRepository(dbConn), nil
}
