package weatherreader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"

	config "weatheretl/pkg/batch/config"
	core "weatheretl/pkg/batch/job/core"
	exception "weatheretl/pkg/batch/util/exception"
	logger "weatheretl/pkg/batch/util/logger"

	weather_config "weatheretl/weather/config"
	weather_entity "weatheretl/weather/domain/entity"
)

// ExecutionContext のキー
const (
	CurrentIndexKey = "reader.current_index"
	RowCountKey     = "reader.row_count"
)

// ForecastFileReader は RawWeatherFile を読み込み、hourly の各インデックスを WeatherRow として返す Reader です。
type ForecastFileReader struct {
	config       *weather_config.ForecastReaderConfig
	hourly       *weather_entity.Hourly
	rowCount     int
	currentIndex int

	executionContext core.ExecutionContext
}

var _ core.ItemReader[any] = (*ForecastFileReader)(nil)

// NewForecastFileReader は ComponentBuilder から呼び出されるコンストラクタです。
func NewForecastFileReader(cfg *config.Config, properties map[string]string) (*ForecastFileReader, error) {
	readerCfg, err := weather_config.NewForecastReaderConfig(cfg, properties)
	if err != nil {
		return nil, err
	}
	return &ForecastFileReader{
		config:           readerCfg,
		executionContext: core.NewExecutionContext(),
	}, nil
}

// Open は JSON ファイルを読み込み、hourly.time と hourly.temperature_2m の存在を検証します。
// ExecutionContext に reader.current_index があればその位置から再開します。
func (r *ForecastFileReader) Open(ctx context.Context, ec core.ExecutionContext) error {
	path := r.config.InputPath
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return exception.NewBatchError("forecast_reader", "入力ファイル '"+path+"' が存在しません", exception.KindIO, err)
		}
		return exception.NewBatchError("forecast_reader", "入力ファイル '"+path+"' の読み込みに失敗しました", exception.KindIO, err)
	}

	if !json.Valid(data) {
		return exception.NewBatchErrorf("forecast_reader", exception.KindDecode, "入力ファイル '%s' が JSON として解析できません", path)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var resp weather_entity.ForecastResponse
	if err := dec.Decode(&resp); err != nil {
		return exception.NewBatchError("forecast_reader", "予報 JSON のデコードに失敗しました", exception.KindDecode, err)
	}

	switch {
	case resp.Hourly == nil:
		return exception.NewBatchErrorf("forecast_reader", exception.KindDecode, "'%s' に hourly がありません", path)
	case resp.Hourly.Time == nil:
		return exception.NewBatchErrorf("forecast_reader", exception.KindDecode, "'%s' に hourly.time がありません", path)
	case resp.Hourly.Temperature2M == nil:
		return exception.NewBatchErrorf("forecast_reader", exception.KindDecode, "'%s' に hourly.temperature_2m がありません", path)
	}

	r.hourly = resp.Hourly
	r.rowCount = resp.Hourly.RowCount()
	if len(*resp.Hourly.Time) != len(*resp.Hourly.Temperature2M) {
		logger.Warnf("hourly.time (%d 件) と hourly.temperature_2m (%d 件) の件数が異なります。%d 行のみ出力します。",
			len(*resp.Hourly.Time), len(*resp.Hourly.Temperature2M), r.rowCount)
	}

	r.currentIndex = 0
	if idx, ok := ec.GetInt(CurrentIndexKey); ok && idx > 0 {
		r.currentIndex = min(idx, r.rowCount)
		logger.Infof("ForecastFileReader: ExecutionContext からインデックス %d を復元しました。", r.currentIndex)
	}
	logger.Debugf("ForecastFileReader: '%s' をオープンしました。行数: %d", path, r.rowCount)
	return nil
}

// Read は次の WeatherRow を返します。全て読み終えた場合は nil を返します。
func (r *ForecastFileReader) Read(ctx context.Context) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.hourly == nil {
		return nil, exception.NewBatchErrorf("forecast_reader", exception.KindFlow, "Reader がオープンされていません")
	}
	if r.currentIndex >= r.rowCount {
		logger.Debugf("ForecastFileReader: 全 %d 行の読み込みが完了しました。", r.rowCount)
		return nil, nil
	}
	row := r.hourly.Row(r.currentIndex)
	r.currentIndex++
	return row, nil
}

// Close は読み込んだデータを解放します。
func (r *ForecastFileReader) Close(ctx context.Context) error {
	r.hourly = nil
	logger.Debugf("ForecastFileReader をクローズしました。")
	return nil
}

// GetExecutionContext は現在の読み込み位置を ExecutionContext として返します。
func (r *ForecastFileReader) GetExecutionContext(ctx context.Context) (core.ExecutionContext, error) {
	r.executionContext.Put(CurrentIndexKey, r.currentIndex)
	r.executionContext.Put(RowCountKey, r.rowCount)
	return r.executionContext, nil
}
