package weatherreader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "weatheretl/pkg/batch/config"
	core "weatheretl/pkg/batch/job/core"
	exception "weatheretl/pkg/batch/util/exception"

	weather_entity "weatheretl/weather/domain/entity"
)

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "raw_weather.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newReader(t *testing.T, path string) *ForecastFileReader {
	t.Helper()
	r, err := NewForecastFileReader(config.NewConfig(), map[string]string{"path": path})
	require.NoError(t, err)
	return r
}

func readAll(t *testing.T, r *ForecastFileReader) []weather_entity.WeatherRow {
	t.Helper()
	var rows []weather_entity.WeatherRow
	for {
		item, err := r.Read(context.Background())
		require.NoError(t, err)
		if item == nil {
			return rows
		}
		rows = append(rows, item.(weather_entity.WeatherRow))
	}
}

func TestForecastFileReader_ReadsRows(t *testing.T) {
	path := writeInput(t, `{"hourly":{"time":["t0","t1","t2"],"temperature_2m":[1.0,2.5,null]}}`)
	r := newReader(t, path)
	require.NoError(t, r.Open(context.Background(), core.NewExecutionContext()))

	rows := readAll(t, r)
	require.Len(t, rows, 3)
	assert.Equal(t, weather_entity.WeatherRow{Time: "t0", Temperature2M: "1.0"}, rows[0])
	assert.Equal(t, weather_entity.WeatherRow{Time: "t1", Temperature2M: "2.5"}, rows[1])
	assert.Equal(t, weather_entity.WeatherRow{Time: "t2"}, rows[2])

	ec, err := r.GetExecutionContext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, ec[CurrentIndexKey])
	assert.Equal(t, 3, ec[RowCountKey])
	require.NoError(t, r.Close(context.Background()))
}

func TestForecastFileReader_UnequalLengths(t *testing.T) {
	path := writeInput(t, `{"hourly":{"time":["t0","t1","t2"],"temperature_2m":[1.0,2.5]}}`)
	r := newReader(t, path)
	require.NoError(t, r.Open(context.Background(), core.NewExecutionContext()))
	assert.Len(t, readAll(t, r), 2)
}

func TestForecastFileReader_RestoresIndex(t *testing.T) {
	path := writeInput(t, `{"hourly":{"time":["t0","t1","t2"],"temperature_2m":[1,2,3]}}`)
	r := newReader(t, path)
	ec := core.NewExecutionContext()
	ec.Put(CurrentIndexKey, 2)
	require.NoError(t, r.Open(context.Background(), ec))

	rows := readAll(t, r)
	require.Len(t, rows, 1)
	assert.Equal(t, "t2", rows[0].Time)
}

func TestForecastFileReader_OpenErrors(t *testing.T) {
	cases := []struct {
		name    string
		content string
		kind    exception.ErrorKind
	}{
		{name: "hourly なし", content: `{"latitude":35}`, kind: exception.KindDecode},
		{name: "time なし", content: `{"hourly":{"temperature_2m":[1]}}`, kind: exception.KindDecode},
		{name: "temperature_2m なし", content: `{"hourly":{"time":["t0"]}}`, kind: exception.KindDecode},
		{name: "不正な JSON", content: `{"hourly":`, kind: exception.KindDecode},
		{name: "配列", content: `[1,2,3]`, kind: exception.KindDecode},
		{name: "数値でない気温", content: `{"hourly":{"time":["t0"],"temperature_2m":["warm"]}}`, kind: exception.KindDecode},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newReader(t, writeInput(t, tc.content))
			err := r.Open(context.Background(), core.NewExecutionContext())
			require.Error(t, err)
			assert.Equal(t, tc.kind, exception.KindOf(err))
		})
	}
}

func TestForecastFileReader_MissingFile(t *testing.T) {
	r := newReader(t, filepath.Join(t.TempDir(), "missing.json"))
	err := r.Open(context.Background(), core.NewExecutionContext())
	require.Error(t, err)
	assert.Equal(t, exception.KindIO, exception.KindOf(err))
}

func TestForecastFileReader_ReadBeforeOpen(t *testing.T) {
	r := newReader(t, "unused.json")
	_, err := r.Read(context.Background())
	assert.Equal(t, exception.KindFlow, exception.KindOf(err))
}
