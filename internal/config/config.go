package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vacstack/outgas-engine/internal/utils"
)

// Config captures the settings required to run the outgassing-rate engine.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Source   SourceConfig   `yaml:"source"`
	Cache    CacheConfig    `yaml:"cache"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Gauge    GaugeConfig    `yaml:"gauge"`
	Geometry GeometryConfig `yaml:"geometry"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig controls the HTTP API and metrics listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// SourceConfig configures access to the gauge-log readings service.
type SourceConfig struct {
	BaseURL      string        `yaml:"baseURL"`
	ReadingsPath string        `yaml:"readingsPath"`
	Timeout      time.Duration `yaml:"timeout"`
	SensorID     string        `yaml:"sensorID"`
}

// CacheConfig controls Valkey-backed caching of fetched reading windows.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
	TLS          bool          `yaml:"tls"`
	ReadingsTTL  time.Duration `yaml:"readingsTTL"`
}

// PipelineConfig holds segmentation and fitting thresholds.
type PipelineConfig struct {
	GapThreshold      time.Duration `yaml:"gapThreshold"`
	DropThreshold     float64       `yaml:"dropThreshold"`
	MinSamples        int           `yaml:"minSamples"`
	MinDuration       time.Duration `yaml:"minDuration"`
	Tolerance         float64       `yaml:"tolerance"`
	MinInlierFraction float64       `yaml:"minInlierFraction"`
	MaxIterations     int           `yaml:"maxIterations"`
	FitWorkers        int           `yaml:"fitWorkers"`
	StartPressure     float64       `yaml:"startPressure"`
}

// GaugeConfig selects the per-reading uncertainty model.
type GaugeConfig struct {
	ErrorModel    string  `yaml:"errorModel"`
	ConstantSigma float64 `yaml:"constantSigma"`
}

// GeometryConfig holds the chamber constants, SI units.
type GeometryConfig struct {
	Volume      float64 `yaml:"volume"`
	Area        float64 `yaml:"area"`
	VolumeSigma float64 `yaml:"volumeSigma"`
	AreaSigma   float64 `yaml:"areaSigma"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("OUTGAS_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, utils.NewAppError("config.Load", "config file "+path+" not found", err)
			}
			return nil, utils.NewAppError("config.Load", "read config", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, utils.NewAppError("config.Load", "parse config", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Source: SourceConfig{
			ReadingsPath: "/api/v1/readings",
			Timeout:      5 * time.Second,
			SensorID:     "Ch2",
		},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			MaxRetries:   2,
			ReadingsTTL:  5 * time.Minute,
		},
		Pipeline: PipelineConfig{
			GapThreshold:      30 * time.Second,
			DropThreshold:     1.0,
			MinSamples:        10,
			MinDuration:       time.Minute,
			Tolerance:         3.0,
			MinInlierFraction: 0.8,
			MaxIterations:     10,
			FitWorkers:        4,
		},
		Gauge: GaugeConfig{
			ErrorModel:    "mpt200",
			ConstantSigma: 0.05,
		},
		Geometry: GeometryConfig{
			Volume: 0.05,
			Area:   0.5,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OUTGAS_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("OUTGAS_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("OUTGAS_SOURCE_BASE_URL"); v != "" {
		cfg.Source.BaseURL = v
	}
	if v := os.Getenv("OUTGAS_SOURCE_READINGS_PATH"); v != "" {
		cfg.Source.ReadingsPath = v
	}
	if v := os.Getenv("OUTGAS_SOURCE_SENSOR_ID"); v != "" {
		cfg.Source.SensorID = v
	}
	if v := os.Getenv("OUTGAS_SOURCE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Source.Timeout = d
		}
	}
	if v := os.Getenv("OUTGAS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("OUTGAS_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("OUTGAS_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("OUTGAS_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("OUTGAS_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("OUTGAS_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("OUTGAS_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("OUTGAS_CACHE_TLS"); v == "true" || v == "1" {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("OUTGAS_CACHE_READINGS_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.ReadingsTTL = d
		}
	}
	if v := os.Getenv("OUTGAS_GAP_THRESHOLD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Pipeline.GapThreshold = d
		}
	}
	if v := os.Getenv("OUTGAS_DROP_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Pipeline.DropThreshold = f
		}
	}
	if v := os.Getenv("OUTGAS_START_PRESSURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Pipeline.StartPressure = f
		}
	}
	if v := os.Getenv("OUTGAS_GAUGE_ERROR_MODEL"); v != "" {
		cfg.Gauge.ErrorModel = v
	}
	if v := os.Getenv("OUTGAS_CHAMBER_VOLUME"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Geometry.Volume = f
		}
	}
	if v := os.Getenv("OUTGAS_SURFACE_AREA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Geometry.Area = f
		}
	}
}
