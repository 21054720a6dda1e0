package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// EmbeddedConfig は main パッケージに埋め込まれた application.yaml の内容です。
type EmbeddedConfig []byte

// ConnectionPoolConfig はデータベースコネクションプールの設定を保持します。
type ConnectionPoolConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns           int `yaml:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetimeSeconds int `yaml:"conn_max_lifetime_seconds" validate:"gte=0"`
}

// DatabaseConfig は JobRepository の永続化先です。Type が "none" の場合はメモリ上で管理します。
type DatabaseConfig struct {
	Type      string `yaml:"type" validate:"oneof=none sqlite3 postgres redshift mysql snowflake"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port" validate:"gte=0,lte=65535"`
	Database  string `yaml:"database"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	Sslmode   string `yaml:"sslmode"`
	Path      string `yaml:"path"` // sqlite3 のデータベースファイル
	Account   string `yaml:"account"`
	Schema    string `yaml:"schema"`
	Warehouse string `yaml:"warehouse"`
	// マイグレーション履歴テーブル名。空の場合は batch_schema_migrations
	MigrationsTable string               `yaml:"migrations_table"`
	ConnectionPool  ConnectionPoolConfig `yaml:"connection_pool"`
}

// DriverName は database/sql に登録されたドライバ名を返します。
func (c DatabaseConfig) DriverName() string {
	switch strings.ToLower(c.Type) {
	case "postgres", "redshift":
		return "postgres"
	case "mysql":
		return "mysql"
	case "sqlite3":
		return "sqlite3"
	case "snowflake":
		return "snowflake"
	default:
		return ""
	}
}

// ConnectionString は sql.Open に渡す DSN を返します。
func (c DatabaseConfig) ConnectionString() string {
	switch strings.ToLower(c.Type) {
	case "postgres", "redshift":
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(c.User, c.Password),
			Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
			Path:   "/" + c.Database,
		}
		sslmode := c.Sslmode
		if sslmode == "" {
			sslmode = "disable"
		}
		u.RawQuery = "sslmode=" + url.QueryEscape(sslmode)
		return u.String()
	case "mysql":
		// DATETIME を time.Time として受け取るため parseTime を付与
		return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true",
			c.User, c.Password, net.JoinHostPort(c.Host, strconv.Itoa(c.Port)), c.Database)
	case "sqlite3":
		return c.Path
	case "snowflake":
		dsn := fmt.Sprintf("%s:%s@%s/%s/%s", url.QueryEscape(c.User), url.QueryEscape(c.Password), c.Account, c.Database, c.Schema)
		if c.Warehouse != "" {
			dsn += "?warehouse=" + url.QueryEscape(c.Warehouse)
		}
		return dsn
	default:
		return ""
	}
}

// BatchConfig はジョブ実行に関する設定です。
type BatchConfig struct {
	JobName   string `yaml:"job_name"`
	ChunkSize int    `yaml:"chunk_size" validate:"gte=1"`
}

// WeatherConfig は Open-Meteo API への問い合わせ条件です。
type WeatherConfig struct {
	APIEndpoint    string   `yaml:"api_endpoint" validate:"required,url"`
	Latitude       float64  `yaml:"latitude" validate:"gte=-90,lte=90"`
	Longitude      float64  `yaml:"longitude" validate:"gte=-180,lte=180"`
	Hourly         []string `yaml:"hourly" validate:"required,min=1,dive,required"`
	Timezone       string   `yaml:"timezone"`
	ForecastDays   int      `yaml:"forecast_days" validate:"gte=0,lte=16"`
	TimeoutSeconds int      `yaml:"timeout_seconds" validate:"gte=0"`
}

// OutputConfig は中間 JSON ファイルと CSV ファイルの出力先です。
type OutputConfig struct {
	RawJSONPath string `yaml:"raw_json_path" validate:"required"`
	CSVPath     string `yaml:"csv_path" validate:"required"`
	JSONIndent  int    `yaml:"json_indent" validate:"gte=0,lte=16"`
	CSVUseCRLF  bool   `yaml:"csv_use_crlf"`
}

// LoggingConfig はロギング設定です。
type LoggingConfig struct {
	Level string `yaml:"level" validate:"required"`
}

type SystemConfig struct {
	Timezone string        `yaml:"timezone"`
	Logging  LoggingConfig `yaml:"logging"`
	// "cpu" または "mem" を指定すると実行中のプロファイルを取得します。
	Profile    string `yaml:"profile" validate:"omitempty,oneof=cpu mem"`
	ProfileDir string `yaml:"profile_dir"`
}

type Config struct {
	Database       DatabaseConfig `yaml:"database"`
	Batch          BatchConfig    `yaml:"batch"`
	Weather        WeatherConfig  `yaml:"weather"`
	Output         OutputConfig   `yaml:"output"`
	System         SystemConfig   `yaml:"system"`
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewConfig はデフォルト値を持つ Config を返します。
// デフォルト値だけで Open-Meteo (緯度35/経度139) から data/ 配下へ出力する構成になります。
func NewConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Type:            "none",
			MigrationsTable: "batch_schema_migrations",
		},
		Batch: BatchConfig{
			JobName:   "weatherEtlJob",
			ChunkSize: 100,
		},
		Weather: WeatherConfig{
			APIEndpoint:    "https://api.open-meteo.com/v1/forecast",
			Latitude:       35,
			Longitude:      139,
			Hourly:         []string{"temperature_2m"},
			TimeoutSeconds: 30,
		},
		Output: OutputConfig{
			RawJSONPath: "data/raw_weather.json",
			CSVPath:     "data/weather_data.csv",
			JSONIndent:  4,
		},
		System: SystemConfig{
			Timezone:   "UTC",
			Logging:    LoggingConfig{Level: "INFO"},
			ProfileDir: ".",
		},
	}
}
