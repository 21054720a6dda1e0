package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "weatheretl/pkg/batch/job/core"
	"weatheretl/pkg/batch/repository"
	"weatheretl/pkg/batch/util/exception"
)

// stubStep は指定した ExitStatus とエラーで終了するステップです。
type stubStep struct {
	name       string
	exitStatus core.ExitStatus
	err        error
	calls      *[]string
	onExecute  func()
}

func (s *stubStep) ID() string       { return s.name }
func (s *stubStep) StepName() string { return s.name }

func (s *stubStep) Execute(ctx context.Context, je *core.JobExecution, se *core.StepExecution) error {
	*s.calls = append(*s.calls, s.name)
	if s.onExecute != nil {
		s.onExecute()
	}
	se.MarkAsStarted()
	if s.err != nil {
		se.MarkAsFailed(s.err)
		return s.err
	}
	se.MarkAsCompleted()
	se.ExitStatus = s.exitStatus
	return nil
}

type countingJobListener struct {
	before, after int
	lastStatus    core.JobStatus
}

func (l *countingJobListener) BeforeJob(ctx context.Context, je *core.JobExecution) { l.before++ }
func (l *countingJobListener) AfterJob(ctx context.Context, je *core.JobExecution) {
	l.after++
	l.lastStatus = je.Status
}

func newJobExecution(t *testing.T, repo repository.JobRepository) *core.JobExecution {
	t.Helper()
	je := core.NewJobExecution("instance", "weatherEtlJob", core.NewJobParameters())
	require.NoError(t, repo.SaveJobExecution(context.Background(), je))
	je.MarkAsStarted()
	return je
}

func etlFlow(fetch, convert core.Step) *core.FlowDefinition {
	flow := core.NewFlowDefinition(fetch.ID())
	flow.AddElement(fetch.ID(), fetch)
	flow.AddElement(convert.ID(), convert)
	flow.AddTransitionRule(fetch.ID(), core.Transition{On: "COMPLETED", To: convert.ID()})
	flow.AddTransitionRule(fetch.ID(), core.Transition{On: "FAILED", Fail: true})
	flow.AddTransitionRule(convert.ID(), core.Transition{On: "*", End: true})
	return flow
}

func TestFlowJob_RunsStepsInOrder(t *testing.T) {
	repo := repository.NewInMemoryJobRepository()
	var calls []string
	fetch := &stubStep{name: "fetchForecastStep", exitStatus: core.ExitStatusCompleted, calls: &calls}
	convert := &stubStep{name: "convertToCsvStep", exitStatus: core.ExitStatusCompleted, calls: &calls}
	listener := &countingJobListener{}

	j := NewFlowJob("weatherEtlJob", "weatherEtlJob", etlFlow(fetch, convert), repo, []core.JobExecutionListener{listener})
	je := newJobExecution(t, repo)

	require.NoError(t, j.Run(context.Background(), je, je.Parameters))

	assert.Equal(t, []string{"fetchForecastStep", "convertToCsvStep"}, calls)
	assert.Equal(t, core.BatchStatusCompleted, je.Status)
	assert.Equal(t, 0, je.ExitCode)
	assert.Len(t, je.StepExecutions, 2)
	assert.Equal(t, "convertToCsvStep", je.CurrentStepName)
	assert.Equal(t, 1, listener.before)
	assert.Equal(t, 1, listener.after)
	assert.Equal(t, core.BatchStatusCompleted, listener.lastStatus)

	saved, err := repo.FindStepExecutionsByJobExecutionID(context.Background(), je.ID)
	require.NoError(t, err)
	assert.Len(t, saved, 2)
}

func TestFlowJob_FailedStepFailsJob(t *testing.T) {
	repo := repository.NewInMemoryJobRepository()
	var calls []string
	stepErr := exception.NewBatchErrorf("fetchForecastStep", exception.KindNetwork, "status 500")
	fetch := &stubStep{name: "fetchForecastStep", err: stepErr, calls: &calls}
	convert := &stubStep{name: "convertToCsvStep", exitStatus: core.ExitStatusCompleted, calls: &calls}

	j := NewFlowJob("weatherEtlJob", "weatherEtlJob", etlFlow(fetch, convert), repo, nil)
	je := newJobExecution(t, repo)

	err := j.Run(context.Background(), je, je.Parameters)
	require.Error(t, err)
	assert.Equal(t, exception.KindNetwork, exception.KindOf(err))
	assert.Equal(t, []string{"fetchForecastStep"}, calls, "後続ステップは実行されない")
	assert.Equal(t, core.BatchStatusFailed, je.Status)
	assert.Equal(t, 1, je.ExitCode)
	assert.NotEmpty(t, je.Failures)
}

func TestFlowJob_NoTransitionRule(t *testing.T) {
	repo := repository.NewInMemoryJobRepository()
	var calls []string
	only := &stubStep{name: "fetchForecastStep", exitStatus: core.ExitStatusCompleted, calls: &calls}
	flow := core.NewFlowDefinition(only.ID())
	flow.AddElement(only.ID(), only)

	j := NewFlowJob("fetchWeatherJob", "fetchWeatherJob", flow, repo, nil)
	je := newJobExecution(t, repo)
	require.NoError(t, j.Run(context.Background(), je, je.Parameters))
	assert.Equal(t, core.BatchStatusCompleted, je.Status)

	failing := &stubStep{name: "convertToCsvStep", err: errors.New("boom"), calls: &calls}
	flow = core.NewFlowDefinition(failing.ID())
	flow.AddElement(failing.ID(), failing)
	j = NewFlowJob("convertWeatherJob", "convertWeatherJob", flow, repo, nil)
	je = newJobExecution(t, repo)
	require.Error(t, j.Run(context.Background(), je, je.Parameters))
	assert.Equal(t, core.BatchStatusFailed, je.Status)
}

func TestFlowJob_UnmatchedExitStatusFails(t *testing.T) {
	repo := repository.NewInMemoryJobRepository()
	var calls []string
	odd := &stubStep{name: "s1", exitStatus: core.ExitStatus("NOOP"), calls: &calls}
	flow := core.NewFlowDefinition("s1")
	flow.AddElement("s1", odd)

	j := NewFlowJob("j", "j", flow, repo, nil)
	je := newJobExecution(t, repo)
	err := j.Run(context.Background(), je, je.Parameters)
	require.Error(t, err)
	assert.Equal(t, exception.KindFlow, exception.KindOf(err))
	assert.Equal(t, core.BatchStatusFailed, je.Status)
}

func TestFlowJob_StopTransition(t *testing.T) {
	repo := repository.NewInMemoryJobRepository()
	var calls []string
	s := &stubStep{name: "s1", exitStatus: core.ExitStatusCompleted, calls: &calls}
	flow := core.NewFlowDefinition("s1")
	flow.AddElement("s1", s)
	flow.AddTransitionRule("s1", core.Transition{On: "COMPLETED", Stop: true})

	j := NewFlowJob("j", "j", flow, repo, nil)
	je := newJobExecution(t, repo)
	require.NoError(t, j.Run(context.Background(), je, je.Parameters))
	assert.Equal(t, core.BatchStatusStopped, je.Status)
}

func TestFlowJob_CancellationStopsJob(t *testing.T) {
	repo := repository.NewInMemoryJobRepository()
	ctx, cancel := context.WithCancel(context.Background())
	var calls []string
	fetch := &stubStep{name: "fetchForecastStep", exitStatus: core.ExitStatusCompleted, calls: &calls, onExecute: cancel}
	convert := &stubStep{name: "convertToCsvStep", exitStatus: core.ExitStatusCompleted, calls: &calls}

	j := NewFlowJob("weatherEtlJob", "weatherEtlJob", etlFlow(fetch, convert), repo, nil)
	je := newJobExecution(t, repo)

	err := j.Run(ctx, je, je.Parameters)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, []string{"fetchForecastStep"}, calls)
	assert.Equal(t, core.BatchStatusStopped, je.Status)
}

func TestFlowJob_MissingElement(t *testing.T) {
	repo := repository.NewInMemoryJobRepository()
	j := NewFlowJob("j", "j", core.NewFlowDefinition("nowhere"), repo, nil)
	je := newJobExecution(t, repo)

	err := j.Run(context.Background(), je, je.Parameters)
	require.Error(t, err)
	assert.Equal(t, core.BatchStatusFailed, je.Status)
}

func TestFlowJob_ValidateParameters(t *testing.T) {
	j := NewFlowJob("j", "j", core.NewFlowDefinition("s"), nil, nil)

	params := core.NewJobParameters()
	assert.NoError(t, j.ValidateParameters(params))
	params.Put("run.id", 3)
	assert.NoError(t, j.ValidateParameters(params))
	params.Put("run.id", "abc")
	err := j.ValidateParameters(params)
	require.Error(t, err)
	assert.Equal(t, exception.KindConfig, exception.KindOf(err))
}
