package weathertasklet

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "weatheretl/pkg/batch/config"
	core "weatheretl/pkg/batch/job/core"
	exception "weatheretl/pkg/batch/util/exception"
)

const sampleResponse = `{"latitude":35.0,"longitude":139.0,"hourly_units":{"time":"iso8601","temperature_2m":"°C"},"hourly":{"time":["2024-05-01T00:00","2024-05-01T01:00"],"temperature_2m":[14.2,null]}}`

type fakeFetcher struct {
	body []byte
	err  error
}

func (f fakeFetcher) FetchRaw(ctx context.Context) ([]byte, error) {
	return f.body, f.err
}

func newTasklet(t *testing.T, out string, fetcher ForecastFetcher) *FetchForecastTasklet {
	t.Helper()
	cfg := config.NewConfig()
	tasklet, err := NewFetchForecastTasklet(cfg, map[string]string{"path": out})
	require.NoError(t, err)
	tasklet.fetcher = fetcher
	return tasklet
}

func stepExecution() *core.StepExecution {
	je := core.NewJobExecution("instance", "fetchWeatherJob", core.NewJobParameters())
	return core.NewStepExecution("fetchForecastStep", je)
}

func decodeAny(t *testing.T, data []byte) any {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	require.NoError(t, dec.Decode(&v))
	return v
}

func TestFetchForecastTasklet_WritesIndentedJSON(t *testing.T) {
	out := filepath.Join(t.TempDir(), "data", "raw_weather.json")
	tasklet := newTasklet(t, out, fakeFetcher{body: []byte(sampleResponse)})

	status, err := tasklet.Execute(context.Background(), stepExecution())
	require.NoError(t, err)
	assert.Equal(t, core.ExitStatusCompleted, status)

	got, err := os.ReadFile(out)
	require.NoError(t, err)

	var want bytes.Buffer
	require.NoError(t, json.Indent(&want, []byte(sampleResponse), "", "    "))
	assert.Equal(t, want.String(), string(got))
	assert.Contains(t, string(got), "\n    \"latitude\": 35.0,")

	// 書き込んだファイルを読み戻すと元のレスポンスと一致する
	assert.Equal(t, decodeAny(t, []byte(sampleResponse)), decodeAny(t, got))

	ec, err := tasklet.GetExecutionContext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, out, ec[RawJSONPathKey])
	assert.Equal(t, 2, ec[HourlyCountKey])
	assert.Equal(t, len(got), ec[BytesKey])
}

func TestFetchForecastTasklet_Overwrites(t *testing.T) {
	out := filepath.Join(t.TempDir(), "raw_weather.json")
	require.NoError(t, os.WriteFile(out, bytes.Repeat([]byte("x"), 4096), 0o644))

	tasklet := newTasklet(t, out, fakeFetcher{body: []byte(`{"a":1}`)})
	_, err := tasklet.Execute(context.Background(), stepExecution())
	require.NoError(t, err)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "{\n    \"a\": 1\n}", string(got))

	entries, err := os.ReadDir(filepath.Dir(out))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "一時ファイルが残っていないこと")
}

func TestFetchForecastTasklet_InvalidJSON(t *testing.T) {
	out := filepath.Join(t.TempDir(), "raw_weather.json")
	tasklet := newTasklet(t, out, fakeFetcher{body: []byte(`<html>oops</html>`)})

	status, err := tasklet.Execute(context.Background(), stepExecution())
	require.Error(t, err)
	assert.Equal(t, core.ExitStatusFailed, status)
	assert.Equal(t, exception.KindDecode, exception.KindOf(err))
	assert.NoFileExists(t, out)
}

func TestFetchForecastTasklet_FetchError(t *testing.T) {
	out := filepath.Join(t.TempDir(), "raw_weather.json")
	fetchErr := exception.NewBatchErrorf("forecast_client", exception.KindNetwork, "boom")
	tasklet := newTasklet(t, out, fakeFetcher{err: fetchErr})

	_, err := tasklet.Execute(context.Background(), stepExecution())
	assert.ErrorIs(t, err, fetchErr)
	assert.NoFileExists(t, out)
}

func TestFetchForecastTasklet_WithHTTPServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "latitude=35&longitude=139&hourly=temperature_2m", r.URL.RawQuery)
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "raw_weather.json")
	tasklet, err := NewFetchForecastTasklet(config.NewConfig(), map[string]string{
		"path":         out,
		"api_endpoint": srv.URL,
	})
	require.NoError(t, err)

	_, err = tasklet.Execute(context.Background(), stepExecution())
	require.NoError(t, err)
	assert.FileExists(t, out)
}

func TestFetchForecastTasklet_NonOKLeavesExistingFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "raw_weather.json")
	require.NoError(t, os.WriteFile(out, []byte(`{"old":true}`), 0o644))

	tasklet, err := NewFetchForecastTasklet(config.NewConfig(), map[string]string{"path": out, "api_endpoint": srv.URL})
	require.NoError(t, err)

	_, err = tasklet.Execute(context.Background(), stepExecution())
	require.Error(t, err)
	assert.Equal(t, exception.KindNetwork, exception.KindOf(err))

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, `{"old":true}`, string(got))
}
