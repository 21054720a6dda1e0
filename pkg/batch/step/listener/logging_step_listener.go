package listener

import (
	"context"

	core "weatheretl/pkg/batch/job/core"
	logger "weatheretl/pkg/batch/util/logger"
)

// LoggingStepExecutionListener はステップの開始と終了、件数をログに出力します。
type LoggingStepExecutionListener struct{}

func NewLoggingStepExecutionListener() *LoggingStepExecutionListener {
	return &LoggingStepExecutionListener{}
}

func (l *LoggingStepExecutionListener) BeforeStep(ctx context.Context, stepExecution *core.StepExecution) {
	logger.Infof("StepListener: ステップ '%s' (ID: %s) を開始します。", stepExecution.StepName, stepExecution.ID)
}

func (l *LoggingStepExecutionListener) AfterStep(ctx context.Context, stepExecution *core.StepExecution) {
	logger.Infof("StepListener: ステップ '%s' が終了しました。Status: %s, ExitStatus: %s, Read: %d, Write: %d, Filter: %d, Commit: %d, Rollback: %d",
		stepExecution.StepName, stepExecution.Status, stepExecution.ExitStatus,
		stepExecution.ReadCount, stepExecution.WriteCount, stepExecution.FilterCount,
		stepExecution.CommitCount, stepExecution.RollbackCount)
	for _, f := range stepExecution.Failures {
		logger.Errorf("StepListener: ステップ '%s' のエラー: %v", stepExecution.StepName, f)
	}
}

var _ core.StepExecutionListener = (*LoggingStepExecutionListener)(nil)
