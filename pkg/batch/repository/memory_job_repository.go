package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	core "weatheretl/pkg/batch/job/core"
	"weatheretl/pkg/batch/repository/job"
	"weatheretl/pkg/batch/util/exception"
)

// InMemoryJobRepository はプロセス内のマップでメタデータを保持する JobRepository です。
// database.type が "none" の場合に使用され、プロセス終了と共に内容は失われます。
type InMemoryJobRepository struct {
	mu             sync.RWMutex
	instances      map[string]*core.JobInstance
	executions     map[string]*core.JobExecution
	stepExecutions map[string]*core.StepExecution
}

// NewInMemoryJobRepository は新しい InMemoryJobRepository のインスタンスを作成します。
func NewInMemoryJobRepository() *InMemoryJobRepository {
	return &InMemoryJobRepository{
		instances:      make(map[string]*core.JobInstance),
		executions:     make(map[string]*core.JobExecution),
		stepExecutions: make(map[string]*core.StepExecution),
	}
}

func notFound(entity, id string) error {
	return exception.NewBatchError("job_repository", entity+" (ID: "+id+") が見つかりませんでした", exception.KindRepository, job.ErrNotFound)
}

func (r *InMemoryJobRepository) SaveJobInstance(ctx context.Context, jobInstance *core.JobInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if jobInstance.ParametersHash == "" {
		jobInstance.ParametersHash = jobInstance.Parameters.Hash()
	}
	r.instances[jobInstance.ID] = jobInstance
	return nil
}

func (r *InMemoryJobRepository) FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params core.JobParameters) (*core.JobInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hash := params.Hash()
	for _, ji := range r.instances {
		if ji.JobName == jobName && ji.ParametersHash == hash {
			return ji, nil
		}
	}
	return nil, nil
}

func (r *InMemoryJobRepository) FindJobInstanceByID(ctx context.Context, instanceID string) (*core.JobInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ji, ok := r.instances[instanceID]
	if !ok {
		return nil, notFound("JobInstance", instanceID)
	}
	return ji, nil
}

func (r *InMemoryJobRepository) GetJobInstanceCount(ctx context.Context, jobName string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, ji := range r.instances {
		if ji.JobName == jobName {
			count++
		}
	}
	return count, nil
}

func (r *InMemoryJobRepository) SaveJobExecution(ctx context.Context, jobExecution *core.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executions[jobExecution.ID] = jobExecution
	return nil
}

func (r *InMemoryJobRepository) UpdateJobExecution(ctx context.Context, jobExecution *core.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.executions[jobExecution.ID]; !ok {
		return notFound("JobExecution", jobExecution.ID)
	}
	jobExecution.Version++
	jobExecution.LastUpdated = time.Now()
	r.executions[jobExecution.ID] = jobExecution
	return nil
}

func (r *InMemoryJobRepository) FindJobExecutionByID(ctx context.Context, executionID string) (*core.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	je, ok := r.executions[executionID]
	if !ok {
		return nil, notFound("JobExecution", executionID)
	}
	return je, nil
}

func (r *InMemoryJobRepository) FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*core.JobExecution, error) {
	executions := r.executionsOf(jobInstanceID)
	if len(executions) == 0 {
		return nil, nil
	}
	return executions[len(executions)-1], nil
}

func (r *InMemoryJobRepository) FindJobExecutionsByJobInstance(ctx context.Context, jobInstance *core.JobInstance) ([]*core.JobExecution, error) {
	return r.executionsOf(jobInstance.ID), nil
}

// executionsOf は JobInstance に属する JobExecution を作成日時の昇順で返します。
func (r *InMemoryJobRepository) executionsOf(jobInstanceID string) []*core.JobExecution {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*core.JobExecution
	for _, je := range r.executions {
		if je.JobInstanceID == jobInstanceID {
			result = append(result, je)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreateTime.Before(result[j].CreateTime)
	})
	return result
}

func (r *InMemoryJobRepository) SaveStepExecution(ctx context.Context, stepExecution *core.StepExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stepExecutions[stepExecution.ID] = stepExecution
	return nil
}

func (r *InMemoryJobRepository) UpdateStepExecution(ctx context.Context, stepExecution *core.StepExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stepExecutions[stepExecution.ID]; !ok {
		return notFound("StepExecution", stepExecution.ID)
	}
	stepExecution.Version++
	stepExecution.LastUpdated = time.Now()
	return nil
}

func (r *InMemoryJobRepository) FindStepExecutionByID(ctx context.Context, executionID string) (*core.StepExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	se, ok := r.stepExecutions[executionID]
	if !ok {
		return nil, notFound("StepExecution", executionID)
	}
	return se, nil
}

func (r *InMemoryJobRepository) FindStepExecutionsByJobExecutionID(ctx context.Context, jobExecutionID string) ([]*core.StepExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*core.StepExecution
	for _, se := range r.stepExecutions {
		if se.JobExecution != nil && se.JobExecution.ID == jobExecutionID {
			result = append(result, se)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})
	return result, nil
}

// Close はインメモリ実装では何もしません。
func (r *InMemoryJobRepository) Close() error {
	return nil
}

var _ JobRepository = (*InMemoryJobRepository)(nil)
