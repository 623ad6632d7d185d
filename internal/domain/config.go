package domain

import (
	"time"
)

// Config represents the main application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Warehouse WarehouseConfig `mapstructure:"warehouse"`
	Model     ModelConfig     `mapstructure:"model"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// WarehouseConfig represents the external warehouse connection used
// by training runs.
type WarehouseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	Schema          string        `mapstructure:"schema"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

// ModelConfig governs training and artifact layout.
type ModelConfig struct {
	ArtifactDir  string  `mapstructure:"artifact_dir"`
	TopDrugs     int     `mapstructure:"top_drugs"`
	CVFolds      int     `mapstructure:"cv_folds"`
	EnsembleSize int     `mapstructure:"ensemble_size"`
	TestFraction float64 `mapstructure:"test_fraction"`
	RandomSeed   int64   `mapstructure:"random_seed"`
	CVWorkers    int     `mapstructure:"cv_workers"`
}

// RiskConfig holds the stratification thresholds. They are deployment
// configuration, not code, so a recalibration needs no rebuild.
type RiskConfig struct {
	HighThreshold       float64 `mapstructure:"high_threshold"`
	ModerateThreshold   float64 `mapstructure:"moderate_threshold"`
	ConfidenceHighUpper float64 `mapstructure:"confidence_high_upper"`
	ConfidenceHighLower float64 `mapstructure:"confidence_high_lower"`
	ConfidenceMedUpper  float64 `mapstructure:"confidence_med_upper"`
	ConfidenceMedLower  float64 `mapstructure:"confidence_med_lower"`
}

// CacheConfig represents the optional prediction cache.
type CacheConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	RedisURL    string        `mapstructure:"redis_url"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
	MemorySize  int           `mapstructure:"memory_size"`
}

// AuditConfig represents the optional prediction audit log.
type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
