package weather_client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "weatheretl/pkg/batch/config"
	exception "weatheretl/pkg/batch/util/exception"

	weather_config "weatheretl/weather/config"
)

func TestBuildURL_Default(t *testing.T) {
	cfg, err := weather_config.NewFetchTaskletConfig(config.NewConfig(), nil)
	require.NoError(t, err)

	c := NewForecastClient(cfg.Client, nil)
	assert.Equal(t,
		"https://api.open-meteo.com/v1/forecast?latitude=35&longitude=139&hourly=temperature_2m",
		c.BuildURL())
}

func TestBuildURL_Options(t *testing.T) {
	c := NewForecastClient(weather_config.ForecastClientConfig{
		APIEndpoint:  "http://example.test/v1/forecast",
		Latitude:     35.6895,
		Longitude:    -0.5,
		Hourly:       []string{"temperature_2m", "weather_code"},
		Timezone:     "Asia/Tokyo",
		ForecastDays: 3,
	}, nil)
	assert.Equal(t,
		"http://example.test/v1/forecast?latitude=35.6895&longitude=-0.5&hourly=temperature_2m,weather_code&timezone=Asia%2FTokyo&forecast_days=3",
		c.BuildURL())
}

func TestFetchRaw(t *testing.T) {
	body := `{"latitude":35.0,"hourly":{"time":["t0"],"temperature_2m":[1.0]}}`
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := NewForecastClient(weather_config.ForecastClientConfig{
		APIEndpoint: srv.URL,
		Latitude:    35,
		Longitude:   139,
		Hourly:      []string{"temperature_2m"},
	}, srv.Client())

	got, err := c.FetchRaw(context.Background())
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
	assert.Equal(t, "latitude=35&longitude=139&hourly=temperature_2m", gotQuery)
}

func TestFetchRaw_NonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":true,"reason":"bad"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewForecastClient(weather_config.ForecastClientConfig{APIEndpoint: srv.URL}, srv.Client())
	got, err := c.FetchRaw(context.Background())
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Equal(t, exception.KindNetwork, exception.KindOf(err))
	assert.Contains(t, err.Error(), "400")
}

func TestFetchRaw_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	c := NewForecastClient(weather_config.ForecastClientConfig{APIEndpoint: endpoint, Timeout: time.Second}, nil)
	_, err := c.FetchRaw(context.Background())
	require.Error(t, err)
	assert.Equal(t, exception.KindNetwork, exception.KindOf(err))
}

func TestFetchRaw_Canceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewForecastClient(weather_config.ForecastClientConfig{APIEndpoint: srv.URL}, srv.Client())
	_, err := c.FetchRaw(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
