// Package job はジョブメタデータの永続化操作をエンティティごとに定義します。
package job

import (
	"context"
	"errors"

	core "weatheretl/pkg/batch/job/core"
)

// ErrNotFound は ID 指定の検索で対象が存在しない場合に返されるエラーです。
var ErrNotFound = errors.New("not found")

// JobInstance は JobInstance の永続化と取得に関する操作を定義します。
type JobInstance interface {
	SaveJobInstance(ctx context.Context, jobInstance *core.JobInstance) error

	// FindJobInstanceByJobNameAndParameters はジョブ名とパラメータハッシュが一致する JobInstance を返します。
	// 見つからない場合は (nil, nil) を返します。
	FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params core.JobParameters) (*core.JobInstance, error)

	FindJobInstanceByID(ctx context.Context, instanceID string) (*core.JobInstance, error)
	GetJobInstanceCount(ctx context.Context, jobName string) (int, error)
}

// JobExecution は JobExecution の永続化と取得に関する操作を定義します。
type JobExecution interface {
	SaveJobExecution(ctx context.Context, jobExecution *core.JobExecution) error

	// UpdateJobExecution は状態・ExecutionContext・失敗情報を更新し、Version をインクリメントします。
	UpdateJobExecution(ctx context.Context, jobExecution *core.JobExecution) error

	// FindJobExecutionByID は JobExecution を関連する StepExecution と共に返します。
	FindJobExecutionByID(ctx context.Context, executionID string) (*core.JobExecution, error)

	// FindLatestJobExecution は JobInstance の最新 (作成日時が最も新しい) JobExecution を返します。
	// 見つからない場合は (nil, nil) を返します。
	FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*core.JobExecution, error)

	FindJobExecutionsByJobInstance(ctx context.Context, jobInstance *core.JobInstance) ([]*core.JobExecution, error)
}

// StepExecution は StepExecution の永続化と取得に関する操作を定義します。
type StepExecution interface {
	SaveStepExecution(ctx context.Context, stepExecution *core.StepExecution) error
	UpdateStepExecution(ctx context.Context, stepExecution *core.StepExecution) error
	FindStepExecutionByID(ctx context.Context, executionID string) (*core.StepExecution, error)

	// FindStepExecutionsByJobExecutionID は開始順に並んだ StepExecution を返します。
	FindStepExecutionsByJobExecutionID(ctx context.Context, jobExecutionID string) ([]*core.StepExecution, error)
}
