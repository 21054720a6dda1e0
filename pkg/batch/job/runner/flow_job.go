package runner

import (
	"context"
	"errors"

	core "weatheretl/pkg/batch/job/core"
	"weatheretl/pkg/batch/repository"
	exception "weatheretl/pkg/batch/util/exception"
	logger "weatheretl/pkg/batch/util/logger"
)

// FlowJob は JSL で定義されたフローに基づいてジョブを実行する core.Job の実装です。
type FlowJob struct {
	id            string
	name          string
	flow          *core.FlowDefinition
	jobRepository repository.JobRepository
	jobListeners  []core.JobExecutionListener
	// JobParametersIncrementer は JobLauncher が使用するため、FlowJob には直接持たせない
}

var _ core.Job = (*FlowJob)(nil)

// NewFlowJob は新しい FlowJob のインスタンスを作成します。
func NewFlowJob(
	id string,
	name string,
	flow *core.FlowDefinition,
	jobRepository repository.JobRepository,
	jobListeners []core.JobExecutionListener,
) *FlowJob {
	return &FlowJob{
		id:            id,
		name:          name,
		flow:          flow,
		jobRepository: jobRepository,
		jobListeners:  jobListeners,
	}
}

// JobID はジョブのIDを返します。
func (j *FlowJob) JobID() string {
	return j.id
}

// JobName はジョブ名を返します。
func (j *FlowJob) JobName() string {
	return j.name
}

// GetFlow はジョブのフロー定義を返します。
func (j *FlowJob) GetFlow() *core.FlowDefinition {
	return j.flow
}

// ValidateParameters はジョブパラメータのバリデーションを行います。
// run.id が指定されている場合は整数として解釈できることを確認します。
func (j *FlowJob) ValidateParameters(params core.JobParameters) error {
	if _, ok := params.Get("run.id"); ok {
		if _, ok := params.GetInt("run.id"); !ok {
			return exception.NewBatchErrorf(j.name, exception.KindConfig, "JobParameter 'run.id' は整数である必要があります: %v", params.Params["run.id"])
		}
	}
	return nil
}

func (j *FlowJob) notifyBeforeJob(ctx context.Context, jobExecution *core.JobExecution) {
	for _, l := range j.jobListeners {
		l.BeforeJob(ctx, jobExecution)
	}
}

func (j *FlowJob) notifyAfterJob(ctx context.Context, jobExecution *core.JobExecution) {
	for _, l := range j.jobListeners {
		l.AfterJob(ctx, jobExecution)
	}
}

// Run はフロー定義の開始要素から順にステップを実行し、遷移ルールに従って次の要素を決定します。
// ジョブが COMPLETED 以外で終了した場合は原因となったエラーを返します。
func (j *FlowJob) Run(ctx context.Context, jobExecution *core.JobExecution, jobParameters core.JobParameters) (err error) {
	logger.Infof("ジョブ '%s' (Execution ID: %s) を開始します。", j.name, jobExecution.ID)
	j.notifyBeforeJob(ctx, jobExecution)

	defer func() {
		if !jobExecution.Status.IsFinished() {
			if err != nil {
				jobExecution.MarkAsFailed(err)
			} else {
				jobExecution.MarkAsCompleted()
			}
		}
		j.notifyAfterJob(ctx, jobExecution)
		logger.Infof("ジョブ '%s' (Execution ID: %s) が終了しました。最終ステータス: %s, 終了ステータス: %s",
			j.name, jobExecution.ID, jobExecution.Status, jobExecution.ExitStatus)
	}()

	currentElementID := j.flow.StartElement
	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			logger.Warnf("Context がキャンセルされたため、ジョブ '%s' の実行を中断します: %v", j.name, ctxErr)
			jobExecution.AddFailureException(ctxErr)
			jobExecution.MarkAsStopped()
			return exception.NewBatchError(j.name, "ジョブの実行が中断されました", exception.KindFlow, ctxErr)
		}

		element, ok := j.flow.Elements[currentElementID]
		if !ok {
			return exception.NewBatchErrorf(j.name, exception.KindFlow, "フロー要素 '%s' が見つかりません", currentElementID)
		}
		step, ok := element.(core.Step)
		if !ok {
			return exception.NewBatchErrorf(j.name, exception.KindFlow, "不明なフロー要素の型です: %T (ID: %s)", element, currentElementID)
		}

		stepExecution, stepErr := j.executeStep(ctx, jobExecution, step)
		if stepExecution == nil {
			return stepErr
		}

		if stepErr != nil && (errors.Is(stepErr, context.Canceled) || errors.Is(stepErr, context.DeadlineExceeded)) {
			jobExecution.AddFailureException(stepErr)
			jobExecution.MarkAsStopped()
			return stepErr
		}

		exitStatus := stepExecution.ExitStatus
		rule, found := j.flow.GetTransitionRule(element.ID(), exitStatus)
		if !found {
			if stepErr == nil && exitStatus == core.ExitStatusCompleted {
				logger.Infof("ジョブ '%s': フロー要素 '%s' からの遷移ルールがないため、ジョブを完了します。", j.name, element.ID())
				jobExecution.MarkAsCompleted()
				return nil
			}
			if stepErr == nil {
				stepErr = exception.NewBatchErrorf(j.name, exception.KindFlow, "ステップ '%s' の終了ステータス %s に対応する遷移ルールがありません", element.ID(), exitStatus)
			}
			logger.Errorf("ジョブ '%s': フロー要素 '%s' が失敗し、遷移ルールが見つかりません。ジョブを失敗として終了します。", j.name, element.ID())
			jobExecution.MarkAsFailed(stepErr)
			return stepErr
		}

		t := rule.Transition
		switch {
		case t.End:
			logger.Infof("ジョブ '%s': フロー要素 '%s' から 'End' 遷移が指示されました。ジョブを完了します。", j.name, element.ID())
			jobExecution.MarkAsCompleted()
			return nil
		case t.Fail:
			if stepErr == nil {
				stepErr = exception.NewBatchErrorf(j.name, exception.KindFlow, "フロー要素 '%s' から 'Fail' 遷移が指示されました (ExitStatus: %s)", element.ID(), exitStatus)
			}
			logger.Errorf("ジョブ '%s': フロー要素 '%s' から 'Fail' 遷移が指示されました。ジョブを失敗として終了します。", j.name, element.ID())
			jobExecution.MarkAsFailed(stepErr)
			return stepErr
		case t.Stop:
			logger.Infof("ジョブ '%s': フロー要素 '%s' から 'Stop' 遷移が指示されました。ジョブを停止します。", j.name, element.ID())
			jobExecution.MarkAsStopped()
			return stepErr
		}

		if stepErr != nil {
			logger.Warnf("ジョブ '%s': ステップ '%s' は失敗しましたが、遷移ルールにより '%s' へ進みます。", j.name, element.ID(), t.To)
		}
		currentElementID = t.To
	}
}

// executeStep は StepExecution を作成・保存してステップを実行し、最終状態を永続化します。
// StepExecution を作成できなかった場合は nil を返します。
func (j *FlowJob) executeStep(ctx context.Context, jobExecution *core.JobExecution, step core.Step) (*core.StepExecution, error) {
	stepName := step.StepName()
	jobExecution.CurrentStepName = stepName

	stepExecution := core.NewStepExecution(stepName, jobExecution)
	if err := j.jobRepository.SaveStepExecution(ctx, stepExecution); err != nil {
		logger.Errorf("ジョブ '%s': StepExecution (ID: %s) の保存に失敗しました: %v", j.name, stepExecution.ID, err)
		return nil, exception.NewBatchError(j.name, "StepExecution の保存に失敗しました", exception.KindRepository, err)
	}
	if err := j.jobRepository.UpdateJobExecution(ctx, jobExecution); err != nil {
		logger.Warnf("ジョブ '%s': JobExecution (ID: %s) のチェックポイント更新に失敗しました: %v", j.name, jobExecution.ID, err)
	}

	stepErr := step.Execute(ctx, jobExecution, stepExecution)
	if stepErr != nil {
		logger.Errorf("ジョブ '%s': ステップ '%s' の実行中にエラーが発生しました: %v", j.name, stepName, stepErr)
	} else {
		logger.Infof("ジョブ '%s': ステップ '%s' が完了しました。ExitStatus: %s", j.name, stepName, stepExecution.ExitStatus)
	}

	if err := j.jobRepository.UpdateStepExecution(context.WithoutCancel(ctx), stepExecution); err != nil {
		logger.Errorf("ジョブ '%s': StepExecution (ID: %s) の最終状態の保存に失敗しました: %v", j.name, stepExecution.ID, err)
		if stepErr == nil {
			stepErr = exception.NewBatchError(j.name, "StepExecution の更新に失敗しました", exception.KindRepository, err)
			stepExecution.MarkAsFailed(stepErr)
		}
	}
	return stepExecution, stepErr
}
