package repository

import (
	"weatheretl/pkg/batch/repository/job"
)

// JobRepository はバッチ実行に関するメタデータを永続化・管理するためのインターフェースです。
// Spring Batch の JobRepository に相当します。
// 複数のより小さなリポジトリインターフェースを埋め込むことで、責務を分割します。
type JobRepository interface {
	job.JobInstance
	job.JobExecution
	job.StepExecution

	// Close はリポジトリが使用するリソース (データベース接続など) を解放します。
	Close() error
}
