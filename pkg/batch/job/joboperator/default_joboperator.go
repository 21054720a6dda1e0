package joboperator

import (
	"context"
	"fmt"
	"time"

	core "weatheretl/pkg/batch/job/core"
	"weatheretl/pkg/batch/job/joblauncher"
	"weatheretl/pkg/batch/repository"
	exception "weatheretl/pkg/batch/util/exception"
	logger "weatheretl/pkg/batch/util/logger"
)

const module = "job_operator"

// stoppableLauncher は実行中のジョブを停止できる JobLauncher です。
type stoppableLauncher interface {
	joblauncher.JobLauncher
	Stop(executionID string) bool
}

// DefaultJobOperator は JobOperator インターフェースのデフォルト実装です。
type DefaultJobOperator struct {
	jobRepository repository.JobRepository
	jobLauncher   stoppableLauncher
	jobNames      func() []string
}

var _ JobOperator = (*DefaultJobOperator)(nil)

// NewDefaultJobOperator は新しい DefaultJobOperator のインスタンスを作成します。
// jobNames は起動可能なジョブ名の一覧を返す関数です (通常は JobFactory.JobNames)。
func NewDefaultJobOperator(jobRepository repository.JobRepository, jobLauncher *joblauncher.SimpleJobLauncher, jobNames func() []string) *DefaultJobOperator {
	return &DefaultJobOperator{
		jobRepository: jobRepository,
		jobLauncher:   jobLauncher,
		jobNames:      jobNames,
	}
}

// Start は JobLauncher を介してジョブを起動します。
func (o *DefaultJobOperator) Start(ctx context.Context, jobName string, params core.JobParameters) (*core.JobExecution, error) {
	logger.Infof("JobOperator: Job '%s' を起動します。", jobName)
	return o.jobLauncher.Launch(ctx, jobName, params)
}

// Stop は実行中の JobExecution のコンテキストをキャンセルします。
func (o *DefaultJobOperator) Stop(ctx context.Context, executionID string) error {
	logger.Infof("JobOperator: Stop が呼び出されました。Execution ID: %s", executionID)
	if !o.jobLauncher.Stop(executionID) {
		return exception.NewBatchErrorf(module, exception.KindFlow, "JobExecution (ID: %s) は実行中ではありません", executionID)
	}
	return nil
}

// Abandon は指定された JobExecution を ABANDONED にします。既に終了している実行は放棄できません。
func (o *DefaultJobOperator) Abandon(ctx context.Context, executionID string) error {
	jobExecution, err := o.jobRepository.FindJobExecutionByID(ctx, executionID)
	if err != nil {
		return exception.NewBatchError(module, fmt.Sprintf("放棄処理エラー: JobExecution (ID: %s) のロードに失敗しました", executionID), exception.KindRepository, err)
	}
	if jobExecution.Status.IsFinished() {
		logger.Warnf("JobExecution (ID: %s) は既に終了状態 (%s) なので放棄できません。", executionID, jobExecution.Status)
		return exception.NewBatchErrorf(module, exception.KindFlow, "JobExecution (ID: %s) は既に終了状態です (%s)", executionID, jobExecution.Status)
	}

	now := time.Now()
	jobExecution.Status = core.BatchStatusAbandoned
	jobExecution.ExitStatus = core.ExitStatusAbandoned
	jobExecution.EndTime = now
	jobExecution.LastUpdated = now
	if err := o.jobRepository.UpdateJobExecution(ctx, jobExecution); err != nil {
		return exception.NewBatchError(module, fmt.Sprintf("放棄処理エラー: JobExecution (ID: %s) の状態更新に失敗しました", executionID), exception.KindRepository, err)
	}
	logger.Infof("JobExecution (ID: %s) を放棄しました。", executionID)
	return nil
}

// GetJobExecution は指定された ID の JobExecution を取得します。
func (o *DefaultJobOperator) GetJobExecution(ctx context.Context, executionID string) (*core.JobExecution, error) {
	jobExecution, err := o.jobRepository.FindJobExecutionByID(ctx, executionID)
	if err != nil {
		return nil, exception.NewBatchError(module, fmt.Sprintf("JobExecution (ID: %s) の取得に失敗しました", executionID), exception.KindRepository, err)
	}
	return jobExecution, nil
}

// GetLastJobExecution は指定された JobInstance の最新の JobExecution を取得します。存在しない場合は nil を返します。
func (o *DefaultJobOperator) GetLastJobExecution(ctx context.Context, instanceID string) (*core.JobExecution, error) {
	jobExecution, err := o.jobRepository.FindLatestJobExecution(ctx, instanceID)
	if err != nil {
		return nil, exception.NewBatchError(module, fmt.Sprintf("JobInstance (ID: %s) の最新 JobExecution の取得に失敗しました", instanceID), exception.KindRepository, err)
	}
	return jobExecution, nil
}

// GetJobNames は起動可能なジョブ名を取得します。
func (o *DefaultJobOperator) GetJobNames(ctx context.Context) ([]string, error) {
	if o.jobNames == nil {
		return []string{}, nil
	}
	return o.jobNames(), nil
}
