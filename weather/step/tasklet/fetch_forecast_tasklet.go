package weathertasklet

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	config "weatheretl/pkg/batch/config"
	core "weatheretl/pkg/batch/job/core"
	exception "weatheretl/pkg/batch/util/exception"
	logger "weatheretl/pkg/batch/util/logger"

	weather_client "weatheretl/weather/client"
	weather_config "weatheretl/weather/config"
	weather_entity "weatheretl/weather/domain/entity"
)

// ExecutionContext のキー
const (
	RawJSONPathKey = "fetch.raw_json_path"
	HourlyCountKey = "fetch.hourly_count"
	BytesKey       = "fetch.bytes"
)

// ForecastFetcher は予報 JSON の生データを取得するインターフェースです。
type ForecastFetcher interface {
	FetchRaw(ctx context.Context) ([]byte, error)
}

// FetchForecastTasklet は Open-Meteo API から予報を取得し、インデントした JSON をファイルに保存する Tasklet です。
type FetchForecastTasklet struct {
	config           *weather_config.FetchTaskletConfig
	fetcher          ForecastFetcher
	executionContext core.ExecutionContext
}

var _ core.Tasklet = (*FetchForecastTasklet)(nil)

// NewFetchForecastTasklet は ComponentBuilder から呼び出されるコンストラクタです。
func NewFetchForecastTasklet(cfg *config.Config, properties map[string]string) (*FetchForecastTasklet, error) {
	taskletCfg, err := weather_config.NewFetchTaskletConfig(cfg, properties)
	if err != nil {
		return nil, err
	}
	return NewFetchForecastTaskletWithFetcher(taskletCfg, weather_client.NewForecastClient(taskletCfg.Client, nil)), nil
}

// NewFetchForecastTaskletWithFetcher は取得処理を差し替えた FetchForecastTasklet を作成します。
func NewFetchForecastTaskletWithFetcher(cfg *weather_config.FetchTaskletConfig, fetcher ForecastFetcher) *FetchForecastTasklet {
	return &FetchForecastTasklet{
		config:           cfg,
		fetcher:          fetcher,
		executionContext: core.NewExecutionContext(),
	}
}

// Execute は予報を取得して RawWeatherFile を上書き保存します。
func (t *FetchForecastTasklet) Execute(ctx context.Context, stepExecution *core.StepExecution) (core.ExitStatus, error) {
	body, err := t.fetcher.FetchRaw(ctx)
	if err != nil {
		return core.ExitStatusFailed, err
	}
	if !json.Valid(body) {
		return core.ExitStatusFailed, exception.NewBatchErrorf("fetch_forecast_tasklet", exception.KindDecode,
			"APIレスポンスが JSON として解析できません (%d バイト)", len(body))
	}

	var indented bytes.Buffer
	if err := json.Indent(&indented, body, "", strings.Repeat(" ", t.config.Indent)); err != nil {
		return core.ExitStatusFailed, exception.NewBatchError("fetch_forecast_tasklet", "JSON のインデントに失敗しました", exception.KindDecode, err)
	}

	if err := writeFileReplacing(t.config.OutputPath, indented.Bytes()); err != nil {
		return core.ExitStatusFailed, err
	}

	hourlyCount := countHourly(body)
	t.executionContext.Put(RawJSONPathKey, t.config.OutputPath)
	t.executionContext.Put(HourlyCountKey, hourlyCount)
	t.executionContext.Put(BytesKey, indented.Len())

	logger.Infof("予報データを '%s' に保存しました (%d バイト, hourly %d 件)。", t.config.OutputPath, indented.Len(), hourlyCount)
	return core.ExitStatusCompleted, nil
}

// countHourly は hourly.time の件数を返します。スキーマの検証は Converter 側で行うため、ここでは失敗しません。
func countHourly(body []byte) int {
	var resp weather_entity.ForecastResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		logger.Debugf("hourly 件数の集計をスキップしました: %v", err)
		return 0
	}
	if resp.Hourly == nil || resp.Hourly.Time == nil {
		return 0
	}
	return len(*resp.Hourly.Time)
}

// writeFileReplacing は同じディレクトリの一時ファイルへ書き込んでから rename し、既存ファイルを丸ごと置き換えます。
func writeFileReplacing(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return exception.NewBatchError("fetch_forecast_tasklet", "出力ディレクトリの作成に失敗しました", exception.KindIO, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return exception.NewBatchError("fetch_forecast_tasklet", "一時ファイルの作成に失敗しました", exception.KindIO, err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		if rmErr := os.Remove(tmpName); rmErr != nil && !os.IsNotExist(rmErr) {
			logger.Warnf("一時ファイル '%s' の削除に失敗しました: %v", tmpName, rmErr)
		}
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return exception.NewBatchError("fetch_forecast_tasklet", "JSON ファイルの書き込みに失敗しました", exception.KindIO, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		logger.Warnf("一時ファイル '%s' の権限変更に失敗しました: %v", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return exception.NewBatchError("fetch_forecast_tasklet", "JSON ファイルのクローズに失敗しました", exception.KindIO, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return exception.NewBatchError("fetch_forecast_tasklet", "JSON ファイルの置き換えに失敗しました", exception.KindIO, err)
	}
	return nil
}

// Close は Tasklet のリソースを解放します。
func (t *FetchForecastTasklet) Close(ctx context.Context) error {
	logger.Debugf("FetchForecastTasklet をクローズしました。")
	return nil
}

// SetExecutionContext は ExecutionContext を設定します。
func (t *FetchForecastTasklet) SetExecutionContext(ctx context.Context, ec core.ExecutionContext) error {
	t.executionContext = ec
	return nil
}

// GetExecutionContext は ExecutionContext を取得します。
func (t *FetchForecastTasklet) GetExecutionContext(ctx context.Context) (core.ExecutionContext, error) {
	return t.executionContext, nil
}
