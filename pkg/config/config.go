package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	applogger "RegimeLab/pkg/logger"
	"RegimeLab/pkg/util"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development" validate:"required"`
	Log         applogger.Config `yaml:"log"`
	Server      ServerConfig     `yaml:"server"`
	Source      SourceConfig     `yaml:"source"`
	Backtest    BacktestConfig   `yaml:"backtest"`
	Regime      RegimeConfig     `yaml:"regime"`
	Report      ReportConfig     `yaml:"report"`
	MarketData  MarketDataConfig `yaml:"market_data"`
	Redis       RedisConfig      `yaml:"redis"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	API         APIConfig        `yaml:"api"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	CORS            bool          `yaml:"cors" default:"true"`
}

// SourceConfig selects where observations and signals are read from.
type SourceConfig struct {
	Type             string `yaml:"type" default:"csv" validate:"oneof=csv clickhouse"`
	ObservationsPath string `yaml:"observations_path" default:"market_regimes.csv"`
	SignalsPath      string `yaml:"signals_path" default:"final_strategy_signals.csv"`
}

type BacktestConfig struct {
	Benchmark  string `yaml:"benchmark" default:"SPY" validate:"required"`
	CashMarker string `yaml:"cash_marker" default:"CASH" validate:"required"`
	Mode       string `yaml:"mode" default:"auto" validate:"oneof=auto regime basket"`
}

type RegimeConfig struct {
	Components int     `yaml:"components" default:"3" validate:"gte=1,lte=10"`
	Seed       int64   `yaml:"seed" default:"42"`
	MaxIter    int     `yaml:"max_iter" default:"100" validate:"gte=1"`
	Tol        float64 `yaml:"tol" default:"0.001" validate:"gt=0"`
	RegCovar   float64 `yaml:"reg_covar" default:"0.000001" validate:"gte=0"`
	KMeansIter int     `yaml:"kmeans_iter" default:"300" validate:"gte=1"`
	Refit      bool    `yaml:"refit"`
}

type ReportConfig struct {
	OutputDir   string `yaml:"output_dir" default:"assets" validate:"required"`
	Charts      bool   `yaml:"charts" default:"true"`
	LabeledFile string `yaml:"labeled_file" default:"market_regimes.csv"`
}

type MarketDataConfig struct {
	BaseURL    string        `yaml:"base_url" default:"https://query1.finance.yahoo.com" validate:"url"`
	Timeout    time.Duration `yaml:"timeout" default:"15s"`
	RatePerSec float64       `yaml:"rate_per_sec" default:"2" validate:"gt=0"`
	Burst      float64       `yaml:"burst" default:"5" validate:"gte=1"`
	UserAgent  string        `yaml:"user_agent" default:"Mozilla/5.0 (compatible; regimelab/1.0)"`
	Cache      string        `yaml:"cache" default:"memory" validate:"oneof=none memory redis layered"`
	CacheTTL   time.Duration `yaml:"cache_ttl" default:"12h"`
	MemoryTTL  time.Duration `yaml:"memory_ttl" default:"5m"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix" default:"regimelab:"`
}

type ClickHouseConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Host             string        `yaml:"host" default:"localhost" validate:"required_if=Enabled true"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"regimelab" validate:"required_if=Enabled true"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	MaxOpenConns     int           `yaml:"max_open_conns" default:"10" validate:"gte=1"`
	MaxIdleConns     int           `yaml:"max_idle_conns" default:"5" validate:"gte=0"`
	AsyncInsert      bool          `yaml:"async_insert"`
	InitSchema       bool          `yaml:"init_schema" default:"true"`
	PersistResults   bool          `yaml:"persist_results" default:"true"`
}

type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers" validate:"required_if=Enabled true"`
	Topic        string        `yaml:"topic" default:"regimelab.reports" validate:"required_if=Enabled true"`
	RequiredAcks int           `yaml:"required_acks" default:"-1"`
	Compression  string        `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
	MaxAttempts  int           `yaml:"max_attempts" default:"3"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	AutoCreate   bool          `yaml:"auto_create_topic"`
}

type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url" validate:"omitempty,url"`
	Job            string `yaml:"job" default:"regimelab_report"`
}

type APIConfig struct {
	RateBurst  float64       `yaml:"rate_burst" default:"5"`
	RatePerSec float64       `yaml:"rate_per_sec" default:"1"`
	CacheTTL   time.Duration `yaml:"cache_ttl" default:"1m"`
}

var validate = validator.New()

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads a YAML file over the defaults. An empty or missing path yields
// the defaults alone.
func Load(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(b, c); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("REGIMELAB_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("BENCHMARK"); v != "" {
		c.Backtest.Benchmark = v
	}
	if v := os.Getenv("SOURCE_TYPE"); v != "" {
		c.Source.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitList(v)
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.MarketData.Cache = "redis"
	}
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		c.Report.OutputDir = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Source.Type == "clickhouse" && !c.ClickHouse.Enabled {
		return fmt.Errorf("source.type clickhouse requires clickhouse.enabled")
	}
	if c.Source.Type == "csv" && c.Source.ObservationsPath == "" {
		return fmt.Errorf("source.observations_path is required for csv sources")
	}
	return nil
}
