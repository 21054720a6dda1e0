package joboperator

import (
	"context"

	core "weatheretl/pkg/batch/job/core"
)

// JobOperator はバッチ実行の管理操作を行うためのインターフェースです。
// JSR352 の JobOperator に相当します。リスタートは提供しません。
type JobOperator interface {
	// Start は指定されたジョブを新しい JobExecution として起動し、終了まで待ちます。
	Start(ctx context.Context, jobName string, params core.JobParameters) (*core.JobExecution, error)

	// Stop は実行中の JobExecution を停止します。
	Stop(ctx context.Context, executionID string) error

	// Abandon は終了していない JobExecution を放棄します。
	Abandon(ctx context.Context, executionID string) error

	// GetJobExecution は指定された ID の JobExecution を取得します。
	GetJobExecution(ctx context.Context, executionID string) (*core.JobExecution, error)

	// GetLastJobExecution は指定された JobInstance の最新の JobExecution を取得します。
	GetLastJobExecution(ctx context.Context, instanceID string) (*core.JobExecution, error)

	// GetJobNames は起動可能なジョブ名を取得します。
	GetJobNames(ctx context.Context) ([]string, error)
}
