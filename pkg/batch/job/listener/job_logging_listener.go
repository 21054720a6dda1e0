package listener

import (
	"context"
	"time"

	core "weatheretl/pkg/batch/job/core"
	logger "weatheretl/pkg/batch/util/logger"
)

// LoggingJobListener はジョブの開始と終了をログに出力します。
type LoggingJobListener struct{}

func NewLoggingJobListener() *LoggingJobListener {
	return &LoggingJobListener{}
}

func (l *LoggingJobListener) BeforeJob(ctx context.Context, jobExecution *core.JobExecution) {
	logger.Infof("Job '%s' (Execution ID: %s) の実行を開始します。Parameters: %v",
		jobExecution.JobName, jobExecution.ID, jobExecution.Parameters.Params)
}

func (l *LoggingJobListener) AfterJob(ctx context.Context, jobExecution *core.JobExecution) {
	elapsed := time.Duration(0)
	if !jobExecution.StartTime.IsZero() && !jobExecution.EndTime.IsZero() {
		elapsed = jobExecution.EndTime.Sub(jobExecution.StartTime)
	}
	if jobExecution.Status == core.BatchStatusCompleted {
		logger.Infof("Job '%s' の実行が正常に完了しました。所要時間: %s", jobExecution.JobName, elapsed)
		return
	}
	logger.Errorf("Job '%s' がステータス %s で終了しました。所要時間: %s", jobExecution.JobName, jobExecution.Status, elapsed)
	for _, f := range jobExecution.Failures {
		logger.Errorf("Job '%s' のエラー: %v", jobExecution.JobName, f)
	}
}

var _ core.JobExecutionListener = (*LoggingJobListener)(nil)
