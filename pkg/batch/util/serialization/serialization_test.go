package serialization

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "weatheretl/pkg/batch/job/core"
)

func TestExecutionContextRoundTrip(t *testing.T) {
	ec := core.NewExecutionContext()
	ec.Put("fetch.raw_json_path", "data/raw_weather.json")
	ec.Put("fetch.hourly_count", 168)

	data, err := MarshalExecutionContext(ec)
	require.NoError(t, err)

	restored, err := UnmarshalExecutionContext(data)
	require.NoError(t, err)

	path, ok := restored.GetString("fetch.raw_json_path")
	assert.True(t, ok)
	assert.Equal(t, "data/raw_weather.json", path)

	count, ok := restored.GetInt("fetch.hourly_count")
	assert.True(t, ok)
	assert.Equal(t, 168, count)
	assert.IsType(t, json.Number(""), restored["fetch.hourly_count"])
}

func TestUnmarshal_Empty(t *testing.T) {
	ec, err := UnmarshalExecutionContext(nil)
	require.NoError(t, err)
	assert.Empty(t, ec)

	params, err := UnmarshalJobParameters([]byte("null"))
	require.NoError(t, err)
	assert.NotNil(t, params.Params)

	failures, err := UnmarshalFailures(nil)
	require.NoError(t, err)
	assert.Empty(t, failures)

	data, err := MarshalExecutionContext(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestJobParametersRoundTrip(t *testing.T) {
	params := core.NewJobParameters()
	params.Put("run.id", 3)

	data, err := MarshalJobParameters(params)
	require.NoError(t, err)

	restored, err := UnmarshalJobParameters(data)
	require.NoError(t, err)
	id, ok := restored.GetInt("run.id")
	assert.True(t, ok)
	assert.Equal(t, 3, id)
}

func TestFailuresRoundTrip(t *testing.T) {
	data, err := MarshalFailures([]error{errors.New("a"), errors.New("b")})
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, string(data))

	failures, err := UnmarshalFailures(data)
	require.NoError(t, err)
	require.Len(t, failures, 2)
	assert.EqualError(t, failures[1], "b")

	_, err = UnmarshalFailures([]byte("{"))
	assert.Error(t, err)
}
