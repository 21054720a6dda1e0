package app

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logger "weatheretl/pkg/batch/util/logger"
	"weatheretl/resources"
)

const forecastBody = `{"latitude":35.0,"longitude":139.0,"hourly_units":{"time":"iso8601","temperature_2m":"°C"},"hourly":{"time":["t0","t1","t2"],"temperature_2m":[1.0,2.5,3.0]}}`

type testEnv struct {
	dir     string
	rawPath string
	csvPath string
	hits    int
}

// setupEnv は API のスタブと一時ディレクトリを用意し、環境変数で出力先を差し替えます。
func setupEnv(t *testing.T, status int, body string) *testEnv {
	t.Helper()
	logger.SetOutput(io.Discard)
	t.Cleanup(func() { logger.SetOutput(nil) })

	env := &testEnv{dir: t.TempDir()}
	env.rawPath = filepath.Join(env.dir, "data", "raw_weather.json")
	env.csvPath = filepath.Join(env.dir, "data", "weather_data.csv")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.hits++
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	t.Setenv("WEATHER_API_ENDPOINT", srv.URL)
	t.Setenv("OUTPUT_RAW_JSON_PATH", env.rawPath)
	t.Setenv("OUTPUT_CSV_PATH", env.csvPath)
	t.Setenv("DATABASE_TYPE", "none")
	return env
}

func run(t *testing.T, jobName string) (int, string) {
	t.Helper()
	var stdout bytes.Buffer
	code := runApplication(context.Background(), "", jobName, resources.ApplicationYAML, &stdout)
	return code, stdout.String()
}

func TestRunApplication_WeatherEtlJob(t *testing.T) {
	env := setupEnv(t, http.StatusOK, forecastBody)

	code, out := run(t, "weatherEtlJob")
	require.Equal(t, 0, code)
	assert.Equal(t, "Weather data saved to "+env.rawPath+"\nweather_data.csv created successfully!\n", out)

	csv, err := os.ReadFile(env.csvPath)
	require.NoError(t, err)
	assert.Equal(t, "time,temperature_2m\nt0,1.0\nt1,2.5\nt2,3.0\n", string(csv))

	raw, err := os.ReadFile(env.rawPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n    \"hourly\": {\n        \"time\": [")
}

func TestRunApplication_SeparateJobs(t *testing.T) {
	env := setupEnv(t, http.StatusOK, forecastBody)

	code, out := run(t, "fetchWeatherJob")
	require.Equal(t, 0, code)
	assert.Equal(t, "Weather data saved to "+env.rawPath+"\n", out)
	assert.NoFileExists(t, env.csvPath)

	code, out = run(t, "convertWeatherJob")
	require.Equal(t, 0, code)
	assert.Equal(t, "weather_data.csv created successfully!\n", out)
	first, err := os.ReadFile(env.csvPath)
	require.NoError(t, err)

	// 同じ入力で再実行しても同一の CSV になる
	code, _ = run(t, "convertWeatherJob")
	require.Equal(t, 0, code)
	second, err := os.ReadFile(env.csvPath)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, env.hits)
}

func TestRunApplication_DefaultJobNameFromConfig(t *testing.T) {
	env := setupEnv(t, http.StatusOK, forecastBody)
	t.Setenv("BATCH_JOB_NAME", "fetchWeatherJob")

	code, _ := run(t, "")
	require.Equal(t, 0, code)
	assert.FileExists(t, env.rawPath)
	assert.NoFileExists(t, env.csvPath)
}

func TestRunApplication_MissingHourlyLeavesNoCSV(t *testing.T) {
	env := setupEnv(t, http.StatusOK, `{"latitude":35.0,"longitude":139.0}`)

	code, out := run(t, "weatherEtlJob")
	assert.Equal(t, 1, code)
	assert.Empty(t, out)
	assert.FileExists(t, env.rawPath)
	assert.NoFileExists(t, env.csvPath)

	entries, err := os.ReadDir(filepath.Dir(env.csvPath))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "一時ファイルが残っていないこと")
}

func TestRunApplication_ConvertWithoutInput(t *testing.T) {
	env := setupEnv(t, http.StatusOK, forecastBody)

	code, _ := run(t, "convertWeatherJob")
	assert.Equal(t, 1, code)
	assert.NoFileExists(t, env.csvPath)
	assert.Equal(t, 0, env.hits)
}

func TestRunApplication_APIErrorStopsFlow(t *testing.T) {
	env := setupEnv(t, http.StatusInternalServerError, `{"error":true}`)

	code, out := run(t, "weatherEtlJob")
	assert.Equal(t, 1, code)
	assert.Empty(t, out)
	assert.NoFileExists(t, env.rawPath)
	assert.NoFileExists(t, env.csvPath)
}

func TestRunApplication_UnknownJob(t *testing.T) {
	setupEnv(t, http.StatusOK, forecastBody)

	code, _ := run(t, "noSuchJob")
	assert.Equal(t, 1, code)
}

func TestRunApplication_InvalidConfig(t *testing.T) {
	setupEnv(t, http.StatusOK, forecastBody)
	t.Setenv("SYSTEM_LOGGING_LEVEL", "LOUD")

	code, _ := run(t, "weatherEtlJob")
	assert.Equal(t, 1, code)
}

func TestRunApplication_EnvFile(t *testing.T) {
	env := setupEnv(t, http.StatusOK, forecastBody)

	envFile := filepath.Join(env.dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("OUTPUT_CSV_USE_CRLF=true\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("OUTPUT_CSV_USE_CRLF") })

	var stdout bytes.Buffer
	code := runApplication(context.Background(), envFile, "weatherEtlJob", resources.ApplicationYAML, &stdout)
	require.Equal(t, 0, code)

	csv, err := os.ReadFile(env.csvPath)
	require.NoError(t, err)
	assert.Equal(t, "time,temperature_2m\r\nt0,1.0\r\nt1,2.5\r\nt2,3.0\r\n", string(csv))
}

func TestRunApplication_MissingEnvFileIsNotFatal(t *testing.T) {
	env := setupEnv(t, http.StatusOK, forecastBody)

	var stdout bytes.Buffer
	code := runApplication(context.Background(), filepath.Join(env.dir, "missing.env"), "fetchWeatherJob", resources.ApplicationYAML, &stdout)
	assert.Equal(t, 0, code)
}

func TestRunApplication_SQLiteRepository(t *testing.T) {
	env := setupEnv(t, http.StatusOK, forecastBody)
	t.Setenv("DATABASE_TYPE", "sqlite3")
	t.Setenv("DATABASE_PATH", filepath.Join(env.dir, "meta", "batch.db"))

	code, _ := run(t, "weatherEtlJob")
	require.Equal(t, 0, code)
	code, _ = run(t, "weatherEtlJob")
	require.Equal(t, 0, code)
	assert.Equal(t, 2, env.hits)
	assert.FileExists(t, env.csvPath)
}

func TestRunApplication_Canceled(t *testing.T) {
	env := setupEnv(t, http.StatusOK, forecastBody)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout bytes.Buffer
	code := runApplication(ctx, "", "weatherEtlJob", resources.ApplicationYAML, &stdout)
	assert.Equal(t, 1, code)
	assert.NoFileExists(t, env.csvPath)
}
