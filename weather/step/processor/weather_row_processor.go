package weatherprocessor

import (
	"context"

	config "weatheretl/pkg/batch/config"
	core "weatheretl/pkg/batch/job/core"
	exception "weatheretl/pkg/batch/util/exception"

	weather_entity "weatheretl/weather/domain/entity"
)

// WeatherRowProcessor は WeatherRow を CSV のレコード ([]string) に変換する Processor です。
type WeatherRowProcessor struct{}

var _ core.ItemProcessor[any, any] = (*WeatherRowProcessor)(nil)

// NewWeatherRowProcessor は ComponentBuilder から呼び出されるコンストラクタです。
func NewWeatherRowProcessor(cfg *config.Config, properties map[string]string) (*WeatherRowProcessor, error) {
	return &WeatherRowProcessor{}, nil
}

// Process は time と temperature_2m を元の文字列表現のままレコードにします。
func (p *WeatherRowProcessor) Process(ctx context.Context, item any) (any, error) {
	switch row := item.(type) {
	case weather_entity.WeatherRow:
		return row.Record(), nil
	case *weather_entity.WeatherRow:
		if row == nil {
			return nil, nil
		}
		return row.Record(), nil
	default:
		return nil, exception.NewBatchErrorf("weather_row_processor", exception.KindConfig,
			"予期しないアイテムの型です: %T (期待: weather_entity.WeatherRow)", item)
	}
}
