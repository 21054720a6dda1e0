package core

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionContext_TypedGetters(t *testing.T) {
	ec := NewExecutionContext()
	ec.Put("path", "data/raw_weather.json")
	ec.Put("count", 168)
	ec.Put("decoded", float64(3))
	ec.Put("number", json.Number("42"))

	s, ok := ec.GetString("path")
	assert.True(t, ok)
	assert.Equal(t, "data/raw_weather.json", s)

	_, ok = ec.GetString("count")
	assert.False(t, ok, "型が異なる場合は false")

	for key, want := range map[string]int{"count": 168, "decoded": 3, "number": 42} {
		got, ok := ec.GetInt(key)
		assert.True(t, ok, key)
		assert.Equal(t, want, got, key)
	}

	_, ok = ec.GetInt("missing")
	assert.False(t, ok)
}

func TestExecutionContext_Nested(t *testing.T) {
	ec := NewExecutionContext()
	ec.PutNested("fetch.raw_json_path", "a.json")
	ec.PutNested("fetch.hourly_count", 3)

	v, ok := ec.GetNested("fetch.raw_json_path")
	require.True(t, ok)
	assert.Equal(t, "a.json", v)

	_, ok = ec.GetNested("fetch.unknown")
	assert.False(t, ok)

	// フラットなキーが優先される
	ec.Put("reader.current_index", 7)
	v, ok = ec.GetNested("reader.current_index")
	require.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestJobParameters_HashIsOrderIndependent(t *testing.T) {
	a := NewJobParameters()
	a.Put("run.id", 1)
	a.Put("env", "dev")

	b := NewJobParameters()
	b.Put("env", "dev")
	b.Put("run.id", 1)

	assert.Equal(t, a.Hash(), b.Hash())

	b.Put("run.id", 2)
	assert.NotEqual(t, a.Hash(), b.Hash())
}

func TestJobParameters_GetInt(t *testing.T) {
	p := NewJobParameters()
	p.Put("a", 3)
	p.Put("b", "12")
	p.Put("c", "x")

	v, ok := p.GetInt("a")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
	v, ok = p.GetInt("b")
	assert.True(t, ok)
	assert.Equal(t, 12, v)
	_, ok = p.GetInt("c")
	assert.False(t, ok)
}

func TestJobExecution_Lifecycle(t *testing.T) {
	je := NewJobExecution("instance-1", "weatherEtlJob", NewJobParameters())
	assert.Equal(t, BatchStatusStarting, je.Status)
	assert.NotEmpty(t, je.ID)

	je.MarkAsStarted()
	assert.Equal(t, BatchStatusStarted, je.Status)
	assert.False(t, je.StartTime.IsZero())

	se := NewStepExecution("fetchForecastStep", je)
	require.Len(t, je.StepExecutions, 1)
	assert.Same(t, je, se.JobExecution)

	err := errors.New("boom")
	se.MarkAsFailed(err)
	je.MarkAsFailed(err)
	je.AddFailureException(err)
	assert.Equal(t, BatchStatusFailed, je.Status)
	assert.Equal(t, ExitStatusFailed, je.ExitStatus)
	assert.Equal(t, 1, je.ExitCode)
	assert.Len(t, je.Failures, 1, "同一エラーは重複しない")
	assert.True(t, je.Status.IsFinished())
}

func TestFlowDefinition_GetTransitionRule(t *testing.T) {
	flow := NewFlowDefinition("a")
	flow.AddTransitionRule("a", Transition{On: "*", Fail: true})
	flow.AddTransitionRule("a", Transition{On: "COMPLETED", To: "b"})
	flow.AddTransitionRule("b", Transition{On: "COMPLETED", End: true})

	rule, ok := flow.GetTransitionRule("a", ExitStatusCompleted)
	require.True(t, ok)
	assert.Equal(t, "b", rule.Transition.To, "完全一致がワイルドカードより優先される")

	rule, ok = flow.GetTransitionRule("a", ExitStatusFailed)
	require.True(t, ok)
	assert.True(t, rule.Transition.Fail)

	_, ok = flow.GetTransitionRule("b", ExitStatusFailed)
	assert.False(t, ok)
}
