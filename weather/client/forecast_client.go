package weather_client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	exception "weatheretl/pkg/batch/util/exception"
	logger "weatheretl/pkg/batch/util/logger"

	weather_config "weatheretl/weather/config"
)

const defaultTimeout = 30 * time.Second

// maxErrorBodyBytes はエラーレスポンスのボディをログに残す最大バイト数です。
const maxErrorBodyBytes = 512

// ForecastClient は Open-Meteo Forecast API を呼び出すクライアントです。
type ForecastClient struct {
	config     weather_config.ForecastClientConfig
	httpClient *http.Client
}

// NewForecastClient は新しい ForecastClient を作成します。httpClient が nil の場合は設定のタイムアウトで生成します。
func NewForecastClient(cfg weather_config.ForecastClientConfig, httpClient *http.Client) *ForecastClient {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &ForecastClient{config: cfg, httpClient: httpClient}
}

// BuildURL はリクエスト URL を組み立てます。
// クエリは latitude, longitude, hourly, timezone, forecast_days の順に並べます。
func (c *ForecastClient) BuildURL() string {
	var q strings.Builder
	q.WriteString("latitude=")
	q.WriteString(formatCoordinate(c.config.Latitude))
	q.WriteString("&longitude=")
	q.WriteString(formatCoordinate(c.config.Longitude))

	if len(c.config.Hourly) > 0 {
		vars := make([]string, len(c.config.Hourly))
		for i, v := range c.config.Hourly {
			vars[i] = url.QueryEscape(v)
		}
		q.WriteString("&hourly=")
		q.WriteString(strings.Join(vars, ","))
	}
	if c.config.Timezone != "" {
		q.WriteString("&timezone=")
		q.WriteString(url.QueryEscape(c.config.Timezone))
	}
	if c.config.ForecastDays > 0 {
		q.WriteString("&forecast_days=")
		q.WriteString(strconv.Itoa(c.config.ForecastDays))
	}

	sep := "?"
	if strings.Contains(c.config.APIEndpoint, "?") {
		sep = "&"
	}
	return c.config.APIEndpoint + sep + q.String()
}

// formatCoordinate は座標を最短の10進表記にします (35 -> "35", 35.6895 -> "35.6895")。
func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FetchRaw は API を呼び出し、レスポンスボディをそのまま返します。
// ステータスコードが 200 以外の場合はボディを返さず KindNetwork のエラーとします。
func (c *ForecastClient) FetchRaw(ctx context.Context) ([]byte, error) {
	apiURL := c.BuildURL()
	logger.Infof("Open-Meteo API を呼び出します: %s", apiURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, exception.NewBatchError("forecast_client", "HTTPリクエストの作成に失敗しました", exception.KindConfig, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, exception.NewBatchError("forecast_client", "API呼び出しエラー", exception.KindNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		logger.Errorf("APIからエラーレスポンスが返されました: ステータスコード %d, ボディ: %s", resp.StatusCode, string(snippet))
		return nil, exception.NewBatchErrorf("forecast_client", exception.KindNetwork,
			"APIからエラーレスポンスが返されました: ステータスコード %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, exception.NewBatchError("forecast_client", "レスポンスボディの読み込みに失敗しました", exception.KindNetwork, err)
	}
	logger.Debugf("Open-Meteo API から %d バイトのレスポンスを受信しました。", len(body))
	return body, nil
}

// String はクライアントの接続先を返します。
func (c *ForecastClient) String() string {
	return fmt.Sprintf("ForecastClient(%s)", c.config.APIEndpoint)
}
