package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const envPrefix = "LIVESYNC_"

// Config defines server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	DB        DBConfig        `yaml:"db" envPrefix:"DB_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	MCP       MCPConfig       `yaml:"mcp" envPrefix:"MCP_"`
	Transport TransportConfig `yaml:"transport" envPrefix:"TRANSPORT_"`
	Snapshots SnapshotConfig  `yaml:"snapshots" envPrefix:"SNAPSHOTS_"`
	OTel      OTelConfig      `yaml:"otel" envPrefix:"OTEL_"`
}

type ServerConfig struct {
	Host string `yaml:"host" env:"HOST"`
	Port int    `yaml:"port" env:"PORT"`
}

type DBConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
	Path  string `yaml:"path" env:"PATH"`
}

type MCPConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// StdioUID and StdioEmail identify the caller in stdio mode.
	StdioUID   string `yaml:"stdio_uid" env:"STDIO_UID"`
	StdioEmail string `yaml:"stdio_email" env:"STDIO_EMAIL"`
}

// TransportConfig selects how the process serves: "http" runs the API with
// /mcp mounted, "stdio" runs only the MCP server on stdin/stdout.
type TransportConfig struct {
	Mode string `yaml:"mode" env:"MODE"`
}

type SnapshotConfig struct {
	Keep int `yaml:"keep" env:"KEEP"`
}

type OTelConfig struct {
	Endpoint    string `yaml:"endpoint" env:"ENDPOINT"`
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "livesync.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		MCP: MCPConfig{
			Enabled: true,
		},
		Transport: TransportConfig{
			Mode: "http",
		},
		Snapshots: SnapshotConfig{
			Keep: 100,
		},
		OTel: OTelConfig{
			ServiceName: "livesync",
		},
	}
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv(envPrefix + "CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the server cannot start with.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	switch c.Transport.Mode {
	case "http", "stdio":
	default:
		return fmt.Errorf("invalid transport mode %q", c.Transport.Mode)
	}
	if c.Snapshots.Keep <= 0 {
		return fmt.Errorf("snapshots.keep must be positive")
	}
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
