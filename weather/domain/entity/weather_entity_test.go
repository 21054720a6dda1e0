package weather_entity

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, data string) ForecastResponse {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var resp ForecastResponse
	require.NoError(t, dec.Decode(&resp))
	return resp
}

func TestHourly_Rows(t *testing.T) {
	resp := decode(t, `{"latitude":35.0,"hourly":{"time":["t0","t1","t2"],"temperature_2m":[1.0,null,3]}}`)
	require.NotNil(t, resp.Hourly)
	assert.Equal(t, "35.0", resp.Latitude.String())
	assert.Equal(t, 3, resp.Hourly.RowCount())

	assert.Equal(t, []string{"t0", "1.0"}, resp.Hourly.Row(0).Record(), "数値リテラルはそのまま")
	assert.Equal(t, []string{"t1", ""}, resp.Hourly.Row(1).Record(), "null は空フィールド")
	assert.Equal(t, []string{"t2", "3"}, resp.Hourly.Row(2).Record())
}

func TestHourly_Presence(t *testing.T) {
	resp := decode(t, `{"latitude":35}`)
	assert.Nil(t, resp.Hourly)

	resp = decode(t, `{"hourly":{"time":["t0"]}}`)
	require.NotNil(t, resp.Hourly)
	assert.NotNil(t, resp.Hourly.Time)
	assert.Nil(t, resp.Hourly.Temperature2M)
	assert.Equal(t, 0, resp.Hourly.RowCount())

	resp = decode(t, `{"hourly":{"time":[],"temperature_2m":[]}}`)
	assert.NotNil(t, resp.Hourly.Time, "空配列は存在として扱う")
	assert.Equal(t, 0, resp.Hourly.RowCount())
}

func TestHourly_UnequalLengths(t *testing.T) {
	resp := decode(t, `{"hourly":{"time":["t0","t1","t2"],"temperature_2m":[1.0,2.5]}}`)
	assert.Equal(t, 2, resp.Hourly.RowCount())
}
