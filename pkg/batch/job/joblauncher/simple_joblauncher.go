package joblauncher

import (
	"context"
	"fmt"
	"sync"

	core "weatheretl/pkg/batch/job/core"
	"weatheretl/pkg/batch/repository"
	exception "weatheretl/pkg/batch/util/exception"
	logger "weatheretl/pkg/batch/util/logger"
)

const module = "job_launcher"

// keyedIncrementer はインクリメント対象のパラメータ名を公開する JobParametersIncrementer です。
type keyedIncrementer interface {
	Key() string
}

// SimpleJobLauncher は JobLauncher インターフェースのシンプルな実装です。
// JobExecution のライフサイクル管理と JobRepository を使用した永続化を行います。
type SimpleJobLauncher struct {
	jobRepository repository.JobRepository
	jobProvider   JobProvider

	// 実行中のジョブのキャンセル関数 (JobExecution ID がキー)
	activeJobCancellations map[string]context.CancelFunc
	mu                     sync.Mutex
}

var _ JobLauncher = (*SimpleJobLauncher)(nil)

// NewSimpleJobLauncher は新しい SimpleJobLauncher のインスタンスを作成します。
func NewSimpleJobLauncher(jobRepository repository.JobRepository, jobProvider JobProvider) *SimpleJobLauncher {
	return &SimpleJobLauncher{
		jobRepository:          jobRepository,
		jobProvider:            jobProvider,
		activeJobCancellations: make(map[string]context.CancelFunc),
	}
}

func (l *SimpleJobLauncher) registerCancelFunc(executionID string, cancel context.CancelFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.activeJobCancellations[executionID] = cancel
}

func (l *SimpleJobLauncher) unregisterCancelFunc(executionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cancel, ok := l.activeJobCancellations[executionID]; ok {
		cancel()
		delete(l.activeJobCancellations, executionID)
	}
}

// Stop は実行中の JobExecution のコンテキストをキャンセルします。
// 該当する実行中ジョブがない場合は false を返します。
func (l *SimpleJobLauncher) Stop(executionID string) bool {
	l.mu.Lock()
	cancel, ok := l.activeJobCancellations[executionID]
	l.mu.Unlock()
	if !ok {
		return false
	}
	logger.Warnf("JobExecution (ID: %s) の停止を要求しました。", executionID)
	cancel()
	return true
}

// Launch は指定された Job を JobParameters とともに起動し、JobExecution を管理します。
func (l *SimpleJobLauncher) Launch(ctx context.Context, jobName string, params core.JobParameters) (*core.JobExecution, error) {
	logger.Infof("JobLauncher を使用して Job '%s' を起動します。", jobName)
	if params.Params == nil {
		params = core.NewJobParameters()
	}

	batchJob, err := l.jobProvider.CreateJob(jobName)
	if err != nil {
		logger.Errorf("Job '%s' の作成に失敗しました: %v", jobName, err)
		return nil, exception.NewBatchError(module, fmt.Sprintf("Job '%s' の作成に失敗しました", jobName), exception.KindOf(err), err)
	}
	jobName = batchJob.JobName()

	if err := batchJob.ValidateParameters(params); err != nil {
		logger.Errorf("Job '%s': JobParameters のバリデーションに失敗しました: %v", jobName, err)
		return nil, exception.NewBatchError(module, "JobParameters のバリデーションエラー", exception.KindConfig, err)
	}

	params, err = l.nextParameters(ctx, jobName, params)
	if err != nil {
		return nil, err
	}

	jobInstance, err := l.findOrCreateJobInstance(ctx, jobName, params)
	if err != nil {
		return nil, err
	}

	jobExecution := core.NewJobExecution(jobInstance.ID, jobName, params)
	jobCtx, cancel := context.WithCancel(ctx)
	jobExecution.CancelFunc = cancel
	l.registerCancelFunc(jobExecution.ID, cancel)
	defer l.unregisterCancelFunc(jobExecution.ID)

	if err := l.jobRepository.SaveJobExecution(jobCtx, jobExecution); err != nil {
		logger.Errorf("JobExecution (ID: %s) の初期永続化に失敗しました: %v", jobExecution.ID, err)
		return jobExecution, exception.NewBatchError(module, "JobExecution の初期保存に失敗しました", exception.KindRepository, err)
	}

	jobExecution.MarkAsStarted()
	if err := l.jobRepository.UpdateJobExecution(jobCtx, jobExecution); err != nil {
		logger.Errorf("JobExecution (ID: %s) の Started 状態への更新に失敗しました: %v", jobExecution.ID, err)
		jobExecution.AddFailureException(exception.NewBatchError(module, "JobExecution 状態更新エラー (Started)", exception.KindRepository, err))
	}

	logger.Infof("Job '%s' (Execution ID: %s, Job Instance ID: %s) を実行します。", jobName, jobExecution.ID, jobInstance.ID)
	runErr := batchJob.Run(jobCtx, jobExecution, params)

	// キャンセル後でも最終状態は永続化する
	if updateErr := l.jobRepository.UpdateJobExecution(context.WithoutCancel(jobCtx), jobExecution); updateErr != nil {
		logger.Errorf("JobExecution (ID: %s) の最終状態の更新に失敗しました: %v", jobExecution.ID, updateErr)
		persistErr := exception.NewBatchError(module, "JobExecution 最終状態の永続化に失敗しました", exception.KindRepository, updateErr)
		jobExecution.AddFailureException(persistErr)
		if runErr == nil {
			runErr = persistErr
		}
	} else {
		logger.Debugf("JobExecution (ID: %s) を最終状態 (%s) に更新しました。", jobExecution.ID, jobExecution.Status)
	}

	return jobExecution, runErr
}

// nextParameters は JobParametersIncrementer を適用した JobParameters を返します。
// "run.id" のようなキーが未指定の場合は既存の JobInstance 数を初期値とし、実行ごとに新しい JobInstance になるようにします。
func (l *SimpleJobLauncher) nextParameters(ctx context.Context, jobName string, params core.JobParameters) (core.JobParameters, error) {
	inc, err := l.jobProvider.GetJobParametersIncrementer(jobName)
	if err != nil {
		return params, exception.NewBatchError(module, "JobParametersIncrementer の取得に失敗しました", exception.KindConfig, err)
	}
	if inc == nil {
		return params, nil
	}

	if keyed, ok := inc.(keyedIncrementer); ok {
		if _, exists := params.Get(keyed.Key()); !exists {
			count, err := l.jobRepository.GetJobInstanceCount(ctx, jobName)
			if err != nil {
				return params, exception.NewBatchError(module, "JobInstance 数の取得に失敗しました", exception.KindRepository, err)
			}
			params = params.Copy()
			params.Put(keyed.Key(), count)
		}
	}

	next := inc.GetNext(params)
	logger.Infof("JobParametersIncrementer を使用して新しい JobParameters を生成しました: %v", next.Params)
	return next, nil
}

func (l *SimpleJobLauncher) findOrCreateJobInstance(ctx context.Context, jobName string, params core.JobParameters) (*core.JobInstance, error) {
	jobInstance, err := l.jobRepository.FindJobInstanceByJobNameAndParameters(ctx, jobName, params)
	if err != nil {
		logger.Errorf("JobInstance (JobName: %s) の検索に失敗しました: %v", jobName, err)
		return nil, exception.NewBatchError(module, "JobInstance の検索に失敗しました", exception.KindRepository, err)
	}
	if jobInstance != nil {
		logger.Infof("既存の JobInstance (ID: %s, JobName: %s) を使用します。", jobInstance.ID, jobInstance.JobName)
		return jobInstance, nil
	}

	jobInstance = core.NewJobInstance(jobName, params)
	if err := l.jobRepository.SaveJobInstance(ctx, jobInstance); err != nil {
		logger.Errorf("新しい JobInstance (ID: %s) の保存に失敗しました: %v", jobInstance.ID, err)
		return nil, exception.NewBatchError(module, "新しい JobInstance の保存に失敗しました", exception.KindRepository, err)
	}
	logger.Infof("新しい JobInstance (ID: %s, JobName: %s) を作成し保存しました。", jobInstance.ID, jobInstance.JobName)
	return jobInstance, nil
}
