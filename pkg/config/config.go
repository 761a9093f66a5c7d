package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the indexer configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	SharedConfig SharedConfigSource `mapstructure:"shared_config"`
	Indexer      IndexerConfig      `mapstructure:"indexer"`
	Monitoring   MonitoringConfig   `mapstructure:"monitoring"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// SharedConfigSource points at the remote shared configuration document that
// describes the bridge's domain topology.
type SharedConfigSource struct {
	URL           string        `mapstructure:"url"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"`
}

// IndexerConfig contains per-domain indexing settings. RPC endpoints are keyed
// by the numeric domain id from the shared configuration.
type IndexerConfig struct {
	RPC             map[string]string `mapstructure:"rpc"`
	PollingInterval time.Duration     `mapstructure:"polling_interval"`
	BlockChunkSize  uint64            `mapstructure:"block_chunk_size"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MetricsPort int  `mapstructure:"metrics_port"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.database", "sygma_indexer")

	// Shared config defaults
	viper.SetDefault("shared_config.retry_attempts", 5)
	viper.SetDefault("shared_config.retry_delay", "3s")
	viper.SetDefault("shared_config.fetch_timeout", "30s")

	// Indexer defaults
	viper.SetDefault("indexer.polling_interval", "15s")
	viper.SetDefault("indexer.block_chunk_size", 1000)

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_port", 9090)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "stdout")
}

func validate(config *Config) error {
	if config.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if config.SharedConfig.URL == "" {
		return fmt.Errorf("shared_config.url is required")
	}
	if len(config.Indexer.RPC) == 0 {
		return fmt.Errorf("indexer.rpc requires at least one domain endpoint")
	}
	return nil
}
