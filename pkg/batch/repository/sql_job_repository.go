package repository

import (
	"database/sql"
	"errors"
	"time"

	"weatheretl/pkg/batch/database"
	core "weatheretl/pkg/batch/job/core"
	"weatheretl/pkg/batch/repository/job"
	exception "weatheretl/pkg/batch/util/exception"
	logger "weatheretl/pkg/batch/util/logger"
	serialization "weatheretl/pkg/batch/util/serialization"
)

// SQLJobRepository は JobRepository インターフェースの SQL データベース実装です。
// 各リポジトリの具体的な実装を埋め込み、委譲します。
type SQLJobRepository struct {
	dbConnection database.DBConnection

	*SQLJobInstanceRepository
	*SQLJobExecutionRepository
	*SQLStepExecutionRepository
}

// NewSQLJobRepository は新しい SQLJobRepository のインスタンスを作成します。
// 既に確立されたデータベース接続の抽象化を受け取ります。
func NewSQLJobRepository(dbConn database.DBConnection) *SQLJobRepository {
	instanceRepo := NewSQLJobInstanceRepository(dbConn)
	stepRepo := NewSQLStepExecutionRepository(dbConn)
	executionRepo := NewSQLJobExecutionRepository(dbConn, stepRepo)

	return &SQLJobRepository{
		dbConnection:               dbConn,
		SQLJobInstanceRepository:   instanceRepo,
		SQLJobExecutionRepository:  executionRepo,
		SQLStepExecutionRepository: stepRepo,
	}
}

// Close はデータベース接続を閉じます。
func (r *SQLJobRepository) Close() error {
	if r.dbConnection != nil {
		if err := r.dbConnection.Close(); err != nil {
			return exception.NewBatchError("job_repository", "データベース接続を閉じるのに失敗しました", exception.KindRepository, err)
		}
		logger.Debugf("Job Repository のデータベース接続を閉じました。")
	}
	return nil
}

var _ JobRepository = (*SQLJobRepository)(nil)

// rowScanner は *sql.Row と *sql.Rows の共通部分です。
type rowScanner interface {
	Scan(dest ...any) error
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func jsonString(data []byte, err error) (string, error) {
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeParams(raw sql.NullString) core.JobParameters {
	if !raw.Valid {
		return core.NewJobParameters()
	}
	params, err := serialization.UnmarshalJobParameters([]byte(raw.String))
	if err != nil {
		logger.Errorf("JobParameters のデコードに失敗しました: %v", err)
	}
	return params
}

func decodeContext(raw sql.NullString) core.ExecutionContext {
	if !raw.Valid {
		return core.NewExecutionContext()
	}
	ec, err := serialization.UnmarshalExecutionContext([]byte(raw.String))
	if err != nil {
		logger.Errorf("ExecutionContext のデシリアライズに失敗しました: %v", err)
		return core.NewExecutionContext()
	}
	return ec
}

func decodeFailures(raw sql.NullString) []error {
	if !raw.Valid {
		return make([]error, 0)
	}
	failures, err := serialization.UnmarshalFailures([]byte(raw.String))
	if err != nil {
		logger.Errorf("Failures のデコードに失敗しました: %v", err)
		return make([]error, 0)
	}
	return failures
}

// repoError は sql.ErrNoRows を job.ErrNotFound に読み替えて BatchError を返します。
func repoError(message string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		err = job.ErrNotFound
	}
	return exception.NewBatchError("job_repository", message, exception.KindRepository, err)
}
