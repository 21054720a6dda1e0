package weather_config

import (
	"strconv"
	"strings"
	"time"

	config "weatheretl/pkg/batch/config"
	exception "weatheretl/pkg/batch/util/exception"
)

// ForecastClientConfig は Open-Meteo クライアントに必要な設定のみを持つ構造体です。
type ForecastClientConfig struct {
	APIEndpoint  string
	Latitude     float64
	Longitude    float64
	Hourly       []string
	Timezone     string
	ForecastDays int
	Timeout      time.Duration
}

// FetchTaskletConfig は FetchForecastTasklet の設定です。
type FetchTaskletConfig struct {
	Client     ForecastClientConfig
	OutputPath string
	Indent     int
}

// ForecastReaderConfig は ForecastFileReader の設定です。
type ForecastReaderConfig struct {
	InputPath string
}

// CSVWriterConfig は CSVItemWriter の設定です。
type CSVWriterConfig struct {
	OutputPath string
	UseCRLF    bool
}

// NewFetchTaskletConfig は config.Config と JSL properties から FetchTaskletConfig を作成します。
// properties の path, indent, api_endpoint が設定値を上書きします。
func NewFetchTaskletConfig(cfg *config.Config, properties map[string]string) (*FetchTaskletConfig, error) {
	c := &FetchTaskletConfig{
		Client: ForecastClientConfig{
			APIEndpoint:  cfg.Weather.APIEndpoint,
			Latitude:     cfg.Weather.Latitude,
			Longitude:    cfg.Weather.Longitude,
			Hourly:       append([]string(nil), cfg.Weather.Hourly...),
			Timezone:     cfg.Weather.Timezone,
			ForecastDays: cfg.Weather.ForecastDays,
			Timeout:      time.Duration(cfg.Weather.TimeoutSeconds) * time.Second,
		},
		OutputPath: cfg.Output.RawJSONPath,
		Indent:     cfg.Output.JSONIndent,
	}

	if v := strings.TrimSpace(properties["api_endpoint"]); v != "" {
		c.Client.APIEndpoint = v
	}
	if v := strings.TrimSpace(properties["path"]); v != "" {
		c.OutputPath = v
	}
	if v := strings.TrimSpace(properties["indent"]); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, exception.NewBatchErrorf("weather_config", exception.KindConfig, "プロパティ 'indent' の値 '%s' が不正です", v)
		}
		c.Indent = n
	}

	if c.Client.APIEndpoint == "" {
		return nil, exception.NewBatchErrorf("weather_config", exception.KindConfig, "API エンドポイントが設定されていません")
	}
	if c.OutputPath == "" {
		return nil, exception.NewBatchErrorf("weather_config", exception.KindConfig, "JSON の出力先が設定されていません")
	}
	return c, nil
}

// NewForecastReaderConfig は ForecastFileReader の設定を作成します。
func NewForecastReaderConfig(cfg *config.Config, properties map[string]string) (*ForecastReaderConfig, error) {
	c := &ForecastReaderConfig{InputPath: cfg.Output.RawJSONPath}
	if v := strings.TrimSpace(properties["path"]); v != "" {
		c.InputPath = v
	}
	if c.InputPath == "" {
		return nil, exception.NewBatchErrorf("weather_config", exception.KindConfig, "JSON の入力元が設定されていません")
	}
	return c, nil
}

// NewCSVWriterConfig は CSVItemWriter の設定を作成します。
func NewCSVWriterConfig(cfg *config.Config, properties map[string]string) (*CSVWriterConfig, error) {
	c := &CSVWriterConfig{
		OutputPath: cfg.Output.CSVPath,
		UseCRLF:    cfg.Output.CSVUseCRLF,
	}
	if v := strings.TrimSpace(properties["path"]); v != "" {
		c.OutputPath = v
	}
	if v := strings.TrimSpace(properties["use_crlf"]); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, exception.NewBatchError("weather_config", "プロパティ 'use_crlf' の値が不正です", exception.KindConfig, err)
		}
		c.UseCRLF = b
	}
	if c.OutputPath == "" {
		return nil, exception.NewBatchErrorf("weather_config", exception.KindConfig, "CSV の出力先が設定されていません")
	}
	return c, nil
}
