package incrementer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	core "weatheretl/pkg/batch/job/core"
)

func TestRunIDIncrementer(t *testing.T) {
	inc := NewRunIDIncrementer("")
	assert.Equal(t, DefaultRunIDKey, inc.Key())

	params := core.NewJobParameters()
	params.Put("input", "data/raw_weather.json")

	first := inc.GetNext(params)
	runID, ok := first.GetInt("run.id")
	assert.True(t, ok)
	assert.Equal(t, 1, runID)
	assert.Equal(t, "data/raw_weather.json", first.Params["input"])
	_, exists := params.Get("run.id")
	assert.False(t, exists, "元のパラメータは変更されない")

	second := inc.GetNext(first)
	runID, _ = second.GetInt("run.id")
	assert.Equal(t, 2, runID)
	assert.NotEqual(t, first.Hash(), second.Hash())

	fromString := core.NewJobParameters()
	fromString.Put("run.id", "41")
	runID, _ = inc.GetNext(fromString).GetInt("run.id")
	assert.Equal(t, 42, runID)
}

func TestTimestampIncrementer(t *testing.T) {
	inc := NewTimestampIncrementer("")
	fixed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	inc.now = func() time.Time { return fixed }

	next := inc.GetNext(core.NewJobParameters())
	ts, ok := next.GetString(DefaultTimestampKey)
	assert.True(t, ok)
	assert.Equal(t, "1714521600000000000", ts)
	assert.Equal(t, "TimestampIncrementer[name=timestamp]", inc.String())
}
