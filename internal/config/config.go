package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const SupportedSchema = "v1"

const envPrefix = "PYBAKE__"

type ServerCfg struct {
	HTTPAddr          string        `koanf:"http_addr"`
	GRPCPort          int           `koanf:"grpc_port"`    // 0 = disabled
	MetricsPort       int           `koanf:"metrics_port"` // 0 = disabled
	MaxUploadBytes    int64         `koanf:"max_upload_bytes"`
	AllowedExtensions []string      `koanf:"allowed_extensions"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

type WorkspaceCfg struct {
	Root          string `koanf:"root"` // parent for per-request dirs; "" = os.TempDir()
	MaxConcurrent int64  `koanf:"max_concurrent"`
}

type KafkaCfg struct {
	Brokers      []string `koanf:"brokers"`
	Topic        string   `koanf:"topic"`
	RequiredAcks int16    `koanf:"required_acks"` // 0,1,-1
	Version      string   `koanf:"version"`
}

type EventsCfg struct {
	Sinks []string `koanf:"sinks"` // "log", "kafka"
	Kafka KafkaCfg `koanf:"kafka"`
}

type LogCfg struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
}

type Config struct {
	SchemaVersion string       `koanf:"schema_version"`
	Server        ServerCfg    `koanf:"server"`
	Workspace     WorkspaceCfg `koanf:"workspace"`
	ToolsFile     string       `koanf:"tools_file"`
	Events        EventsCfg    `koanf:"events"`
	Log           LogCfg       `koanf:"log"`
}

// ---------------------------------------------------------------------------
// Loader
// ---------------------------------------------------------------------------

// Load merges YAML (if present) with env-vars (prefix `PYBAKE__`, `__`
// separates nested keys, e.g. PYBAKE__SERVER__HTTP_ADDR).
func Load(path string) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}
	sv := k.String("schema_version")
	if sv != "" && sv != SupportedSchema {
		return Config{}, fmt.Errorf("config schema_version %q not supported (want %q)", sv, SupportedSchema)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("config env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)

	if cfg.ToolsFile != "" && path != "" && !filepath.IsAbs(cfg.ToolsFile) {
		cfg.ToolsFile = filepath.Join(filepath.Dir(path), cfg.ToolsFile)
	}
	return cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// ---------------------------------------------------------------------------
// defaults
// ---------------------------------------------------------------------------

func applyDefaults(c *Config) {
	if c.SchemaVersion == "" {
		c.SchemaVersion = SupportedSchema
	}
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8080"
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = 32 << 20
	}
	if len(c.Server.AllowedExtensions) == 0 {
		c.Server.AllowedExtensions = []string{".py"}
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Workspace.MaxConcurrent <= 0 {
		c.Workspace.MaxConcurrent = 1
	}
	if len(c.Events.Sinks) == 0 {
		c.Events.Sinks = []string{"log"}
	}
	if c.Events.Kafka.Topic == "" {
		c.Events.Kafka.Topic = "pybake.runs"
	}
	if c.Events.Kafka.Version == "" {
		c.Events.Kafka.Version = "2.8.0"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}
