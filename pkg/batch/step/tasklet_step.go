package step

import (
	"context"

	core "weatheretl/pkg/batch/job/core"
	"weatheretl/pkg/batch/repository/job"
	exception "weatheretl/pkg/batch/util/exception"
	logger "weatheretl/pkg/batch/util/logger"
)

// TaskletStep は Tasklet インターフェースをラップし、core.Step インターフェースを実装します。
// JSR352のTaskletステップに相当します。
type TaskletStep struct {
	name                      string
	tasklet                   core.Tasklet
	stepListeners             []core.StepExecutionListener
	stepRepository            job.StepExecution
	executionContextPromotion *core.ExecutionContextPromotion
}

var _ core.Step = (*TaskletStep)(nil)

// NewTaskletStep は新しい TaskletStep のインスタンスを作成します。
func NewTaskletStep(
	name string,
	tasklet core.Tasklet,
	stepRepository job.StepExecution,
	stepListeners []core.StepExecutionListener,
	executionContextPromotion *core.ExecutionContextPromotion,
) *TaskletStep {
	return &TaskletStep{
		name:                      name,
		tasklet:                   tasklet,
		stepRepository:            stepRepository,
		stepListeners:             stepListeners,
		executionContextPromotion: executionContextPromotion,
	}
}

// StepName はステップ名を返します。
func (s *TaskletStep) StepName() string {
	return s.name
}

// ID はステップのIDを返します。core.FlowElement インターフェースの実装です。
func (s *TaskletStep) ID() string {
	return s.name
}

// Execute は TaskletStep の処理を実行します。
// StepExecution は呼び出し元 (FlowJob) で作成・保存済みであることを前提とします。
func (s *TaskletStep) Execute(ctx context.Context, jobExecution *core.JobExecution, stepExecution *core.StepExecution) (err error) {
	logger.Infof("Taskletステップ '%s' (Execution ID: %s) を開始します。", s.name, stepExecution.ID)

	stepExecution.MarkAsStarted()
	for _, l := range s.stepListeners {
		l.BeforeStep(ctx, stepExecution)
	}

	defer func() {
		if closeErr := s.tasklet.Close(ctx); closeErr != nil {
			logger.Errorf("Taskletステップ '%s': Tasklet のクローズに失敗しました: %v", s.name, closeErr)
			if err == nil {
				err = wrapStepError(s.name, "Tasklet のクローズに失敗しました", closeErr)
			}
		}
		if err != nil {
			markStepFailure(stepExecution, err)
		}
		for _, l := range s.stepListeners {
			l.AfterStep(ctx, stepExecution)
		}
		if err == nil {
			promoteExecutionContext(s.name, s.executionContextPromotion, jobExecution, stepExecution)
		}
		logger.Infof("Taskletステップ '%s' が終了しました。ステータス: %s, 終了ステータス: %s", s.name, stepExecution.Status, stepExecution.ExitStatus)
	}()

	if len(stepExecution.ExecutionContext) > 0 {
		if err := s.tasklet.SetExecutionContext(ctx, stepExecution.ExecutionContext.Copy()); err != nil {
			return wrapStepError(s.name, "Tasklet の ExecutionContext 復元に失敗しました", err)
		}
	}

	exitStatus, err := s.tasklet.Execute(ctx, stepExecution)
	if err != nil {
		logger.Errorf("Taskletステップ '%s' の実行中にエラーが発生しました: %v", s.name, err)
		return wrapStepError(s.name, "Tasklet の実行に失敗しました", err)
	}

	taskletEC, err := s.tasklet.GetExecutionContext(ctx)
	if err != nil {
		return wrapStepError(s.name, "Tasklet の ExecutionContext 取得に失敗しました", err)
	}
	mergeExecutionContext(stepExecution.ExecutionContext, taskletEC)

	if exitStatus == core.ExitStatusFailed {
		return exception.NewBatchErrorf(s.name, exception.KindFlow, "Tasklet が終了ステータス %s を返しました", exitStatus)
	}
	stepExecution.MarkAsCompleted()
	stepExecution.ExitStatus = exitStatus

	if s.stepRepository != nil {
		if err := s.stepRepository.UpdateStepExecution(ctx, stepExecution); err != nil {
			return wrapStepError(s.name, "StepExecution の更新に失敗しました", err)
		}
	}
	return nil
}
