package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/drug-risk-ml-server/internal/domain"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	// Set configuration file name and paths
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/drug-risk-server/")

	// Set environment variable prefix and enable automatic env binding
	viper.SetEnvPrefix("DRUG_RISK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set default values
	m.setDefaults()

	// Read configuration file (optional - will use defaults and env vars if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	// Unmarshal configuration into struct
	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 5001)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.rate_limit_rps", 50.0)
	viper.SetDefault("server.rate_limit_burst", 100)

	// Warehouse defaults
	viper.SetDefault("warehouse.host", "localhost")
	viper.SetDefault("warehouse.port", 5432)
	viper.SetDefault("warehouse.database", "pharmaco")
	viper.SetDefault("warehouse.username", "postgres")
	viper.SetDefault("warehouse.password", "")
	viper.SetDefault("warehouse.schema", "public")
	viper.SetDefault("warehouse.ssl_mode", "disable")
	viper.SetDefault("warehouse.max_conns", 10)
	viper.SetDefault("warehouse.min_conns", 2)
	viper.SetDefault("warehouse.conn_max_lifetime", "5m")
	viper.SetDefault("warehouse.conn_max_idle_time", "1m")
	viper.SetDefault("warehouse.breaker_timeout", "30s")

	// Model and training defaults
	viper.SetDefault("model.artifact_dir", "models")
	viper.SetDefault("model.top_drugs", 10)
	viper.SetDefault("model.cv_folds", 5)
	viper.SetDefault("model.ensemble_size", 4)
	viper.SetDefault("model.test_fraction", 0.2)
	viper.SetDefault("model.random_seed", 42)
	viper.SetDefault("model.cv_workers", 4)

	// Risk stratification thresholds
	viper.SetDefault("risk.high_threshold", 0.7)
	viper.SetDefault("risk.moderate_threshold", 0.4)
	viper.SetDefault("risk.confidence_high_upper", 0.8)
	viper.SetDefault("risk.confidence_high_lower", 0.2)
	viper.SetDefault("risk.confidence_med_upper", 0.6)
	viper.SetDefault("risk.confidence_med_lower", 0.4)

	// Prediction cache defaults
	viper.SetDefault("cache.enabled", false)
	viper.SetDefault("cache.redis_url", "redis://localhost:6379")
	viper.SetDefault("cache.default_ttl", "1h")
	viper.SetDefault("cache.max_retries", 3)
	viper.SetDefault("cache.pool_size", 10)
	viper.SetDefault("cache.pool_timeout", "4s")
	viper.SetDefault("cache.memory_size", 1000)

	// Audit defaults
	viper.SetDefault("audit.enabled", false)
	viper.SetDefault("audit.db_path", "data/prediction_audit.db")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetWarehouseConfig returns warehouse configuration
func (m *Manager) GetWarehouseConfig() *domain.WarehouseConfig {
	return &m.config.Warehouse
}

// GetModelConfig returns model and training configuration
func (m *Manager) GetModelConfig() *domain.ModelConfig {
	return &m.config.Model
}

// GetRiskConfig returns risk stratification thresholds
func (m *Manager) GetRiskConfig() *domain.RiskConfig {
	return &m.config.Risk
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	// Validate server configuration
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	// Validate warehouse configuration
	if config.Warehouse.Host == "" {
		return fmt.Errorf("warehouse host is required")
	}
	if config.Warehouse.Database == "" {
		return fmt.Errorf("warehouse database name is required")
	}
	if config.Warehouse.Username == "" {
		return fmt.Errorf("warehouse username is required")
	}

	// Validate model configuration
	if config.Model.ArtifactDir == "" {
		return fmt.Errorf("artifact directory is required")
	}
	if config.Model.TopDrugs <= 0 {
		return fmt.Errorf("top drug count must be positive: %d", config.Model.TopDrugs)
	}
	if config.Model.CVFolds < 2 {
		return fmt.Errorf("cross-validation requires at least 2 folds: %d", config.Model.CVFolds)
	}
	if config.Model.EnsembleSize <= 0 {
		return fmt.Errorf("ensemble size must be positive: %d", config.Model.EnsembleSize)
	}
	if config.Model.TestFraction <= 0 || config.Model.TestFraction >= 1 {
		return fmt.Errorf("test fraction must be in (0, 1): %f", config.Model.TestFraction)
	}

	// Validate risk thresholds: tiers must be ordered and in range
	r := config.Risk
	if r.ModerateThreshold <= 0 || r.HighThreshold >= 1 || r.ModerateThreshold >= r.HighThreshold {
		return fmt.Errorf("risk thresholds must satisfy 0 < moderate < high < 1, got moderate=%f high=%f",
			r.ModerateThreshold, r.HighThreshold)
	}
	if r.ConfidenceHighLower >= r.ConfidenceHighUpper {
		return fmt.Errorf("confidence high band is inverted: lower=%f upper=%f",
			r.ConfidenceHighLower, r.ConfidenceHighUpper)
	}
	if r.ConfidenceMedLower >= r.ConfidenceMedUpper {
		return fmt.Errorf("confidence medium band is inverted: lower=%f upper=%f",
			r.ConfidenceMedLower, r.ConfidenceMedUpper)
	}

	// Validate cache configuration
	if config.Cache.Enabled && config.Cache.RedisURL == "" {
		return fmt.Errorf("redis URL is required when the prediction cache is enabled")
	}

	// Validate audit configuration
	if config.Audit.Enabled && config.Audit.DBPath == "" {
		return fmt.Errorf("audit database path is required when audit is enabled")
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetWarehouseDSN returns a formatted warehouse connection string
func (m *Manager) GetWarehouseDSN() string {
	wh := m.config.Warehouse
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		wh.Host, wh.Port, wh.Username, wh.Password, wh.Database, wh.SSLMode)
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(viper.GetString("environment")) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(viper.GetString("environment"))
	return env == "development" || env == "dev" || env == ""
}
