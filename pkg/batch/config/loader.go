package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"weatheretl/pkg/batch/util/exception"
	logger "weatheretl/pkg/batch/util/logger"
)

// BytesConfigLoader はバイトスライスから設定をロードします。
type BytesConfigLoader struct {
	data []byte
}

// NewBytesConfigLoader は新しい BytesConfigLoader のインスタンスを作成します。
func NewBytesConfigLoader(data []byte) *BytesConfigLoader {
	return &BytesConfigLoader{data: data}
}

// Load はデフォルト値 → YAML → 環境変数の順で設定を重ね、最後にバリデーションします。
func (l *BytesConfigLoader) Load() (*Config, error) {
	cfg := NewConfig()

	if len(l.data) > 0 {
		// デフォルト値を持つ構造体にそのままデコードし、YAML にないキーはデフォルトのまま残す
		if err := yaml.Unmarshal(l.data, cfg); err != nil {
			return nil, exception.NewBatchError("config", "YAML設定のパースに失敗しました", exception.KindConfig, err)
		}
	}
	cfg.EmbeddedConfig = l.data

	loadEnvVars(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate は構造体タグと、タグで表現できない DB 種別ごとの必須項目を検証します。
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return exception.NewBatchError("config", "設定値のバリデーションに失敗しました", exception.KindConfig, err)
	}

	db := cfg.Database
	switch db.Type {
	case "sqlite3":
		if db.Path == "" {
			return exception.NewBatchErrorf("config", exception.KindConfig, "database.type=sqlite3 には database.path が必要です")
		}
	case "postgres", "redshift", "mysql":
		if db.Host == "" || db.Database == "" {
			return exception.NewBatchErrorf("config", exception.KindConfig, "database.type=%s には database.host と database.database が必要です", db.Type)
		}
	case "snowflake":
		if db.Account == "" || db.Database == "" || db.Schema == "" {
			return exception.NewBatchErrorf("config", exception.KindConfig, "database.type=snowflake には database.account, database.database, database.schema が必要です")
		}
	}

	if _, ok := logger.ParseLevel(cfg.System.Logging.Level); !ok {
		return exception.NewBatchErrorf("config", exception.KindConfig, "不明なログレベルです: %s", cfg.System.Logging.Level)
	}
	return nil
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warnf("環境変数 %s の値 '%s' が無効です。デフォルト値または設定ファイルの値を使用します。", key, v)
		return
	}
	*dst = n
}

func envFloat(key string, dst *float64) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logger.Warnf("環境変数 %s の値 '%s' が無効です。デフォルト値または設定ファイルの値を使用します。", key, v)
		return
	}
	*dst = f
}

func envBool(key string, dst *bool) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warnf("環境変数 %s の値 '%s' が無効です。デフォルト値または設定ファイルの値を使用します。", key, v)
		return
	}
	*dst = b
}

// 環境変数で個別の設定値を上書きする
func loadEnvVars(cfg *Config) {
	// Database 設定
	envString("DATABASE_TYPE", &cfg.Database.Type)
	envString("DATABASE_HOST", &cfg.Database.Host)
	envInt("DATABASE_PORT", &cfg.Database.Port)
	envString("DATABASE_DATABASE", &cfg.Database.Database)
	envString("DATABASE_USER", &cfg.Database.User)
	envString("DATABASE_PASSWORD", &cfg.Database.Password)
	envString("DATABASE_SSLMODE", &cfg.Database.Sslmode)
	envString("DATABASE_PATH", &cfg.Database.Path)
	envString("DATABASE_ACCOUNT", &cfg.Database.Account)
	envString("DATABASE_SCHEMA", &cfg.Database.Schema)
	envString("DATABASE_WAREHOUSE", &cfg.Database.Warehouse)
	envInt("DATABASE_MAX_OPEN_CONNS", &cfg.Database.ConnectionPool.MaxOpenConns)
	envInt("DATABASE_MAX_IDLE_CONNS", &cfg.Database.ConnectionPool.MaxIdleConns)
	envInt("DATABASE_CONN_MAX_LIFETIME_SECONDS", &cfg.Database.ConnectionPool.ConnMaxLifetimeSeconds)

	// Batch 設定
	envString("BATCH_JOB_NAME", &cfg.Batch.JobName)
	envInt("BATCH_CHUNK_SIZE", &cfg.Batch.ChunkSize)

	// Weather 設定
	envString("WEATHER_API_ENDPOINT", &cfg.Weather.APIEndpoint)
	envFloat("WEATHER_LATITUDE", &cfg.Weather.Latitude)
	envFloat("WEATHER_LONGITUDE", &cfg.Weather.Longitude)
	if hourly := os.Getenv("WEATHER_HOURLY"); hourly != "" {
		var vars []string
		for _, v := range strings.Split(hourly, ",") {
			if v = strings.TrimSpace(v); v != "" {
				vars = append(vars, v)
			}
		}
		cfg.Weather.Hourly = vars
	}
	envString("WEATHER_TIMEZONE", &cfg.Weather.Timezone)
	envInt("WEATHER_FORECAST_DAYS", &cfg.Weather.ForecastDays)
	envInt("WEATHER_TIMEOUT_SECONDS", &cfg.Weather.TimeoutSeconds)

	// Output 設定
	envString("OUTPUT_RAW_JSON_PATH", &cfg.Output.RawJSONPath)
	envString("OUTPUT_CSV_PATH", &cfg.Output.CSVPath)
	envBool("OUTPUT_CSV_USE_CRLF", &cfg.Output.CSVUseCRLF)

	// System 設定
	envString("SYSTEM_LOGGING_LEVEL", &cfg.System.Logging.Level)
	envString("SYSTEM_PROFILE", &cfg.System.Profile)
}
