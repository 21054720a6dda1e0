package weather_entity

import "encoding/json"

// Hourly は Open-Meteo API レスポンスの hourly オブジェクトです。
// time と temperature_2m は同じインデックス同士が対応します。
// フィールドの有無を判定するため、ポインタで保持します。
type Hourly struct {
	Time          *[]string       `json:"time"`
	Temperature2M *[]*json.Number `json:"temperature_2m"`
}

// ForecastResponse は Open-Meteo API から取得した予報 JSON のうち、変換に必要な部分を表す構造体です。
// その他のキー (latitude, hourly_units など) は raw_weather.json にそのまま残り、ここでは読み捨てます。
type ForecastResponse struct {
	Latitude  *json.Number `json:"latitude,omitempty"`
	Longitude *json.Number `json:"longitude,omitempty"`
	Timezone  string       `json:"timezone,omitempty"`
	Hourly    *Hourly      `json:"hourly"`
}

// RowCount は time と temperature_2m の短い方の長さを返します。
func (h *Hourly) RowCount() int {
	if h == nil || h.Time == nil || h.Temperature2M == nil {
		return 0
	}
	return min(len(*h.Time), len(*h.Temperature2M))
}

// Row は i 番目の WeatherRow を返します。
func (h *Hourly) Row(i int) WeatherRow {
	row := WeatherRow{Time: (*h.Time)[i]}
	if t := (*h.Temperature2M)[i]; t != nil {
		row.Temperature2M = *t
	}
	return row
}

// WeatherRow は CSV の1行に対応する (時刻, 気温) の組です。
// Temperature2M は JSON 上の数値リテラルをそのまま保持し、null の場合は空文字列です。
type WeatherRow struct {
	Time          string
	Temperature2M json.Number
}

// Record は CSV に書き込むフィールドの並びを返します。
func (r WeatherRow) Record() []string {
	return []string{r.Time, r.Temperature2M.String()}
}

// CSVHeader は WeatherCsvFile のヘッダー行です。
var CSVHeader = []string{"time", "temperature_2m"}
