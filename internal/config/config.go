package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models shootboard.yml.
type Config struct {
	Store struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"store"`
	Remote struct {
		BaseURL string        `yaml:"base_url"`
		Token   string        `yaml:"token"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"remote"`
	Sync struct {
		AutosaveDebounce time.Duration `yaml:"autosave_debounce"`
		SavedHold        time.Duration `yaml:"saved_hold"`
		NoticeTTL        time.Duration `yaml:"notice_ttl"`
		RequestTimeout   time.Duration `yaml:"request_timeout"`
	} `yaml:"sync"`
	Server struct {
		Addr      string `yaml:"addr"`
		BasePath  string `yaml:"base_path"`
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"server"`
	Log struct {
		Env   string `yaml:"env"`
		Level string `yaml:"level"`
	} `yaml:"log"`
	Export struct {
		Dir string   `yaml:"dir"`
		S3  S3Config `yaml:"s3"`
	} `yaml:"export"`
}

type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	Prefix    string `yaml:"prefix"`
	PathStyle bool   `yaml:"path_style"`
	// Static keys; empty means the default AWS credential chain.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with shootboard config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("config.store.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("config.store.driver must be sqlite or postgres, got %q", c.Store.Driver)
	}
	if c.Remote.BaseURL != "" && !strings.HasPrefix(c.Remote.BaseURL, "http://") && !strings.HasPrefix(c.Remote.BaseURL, "https://") {
		return fmt.Errorf("config.remote.base_url must be an http(s) url")
	}
	for name, d := range map[string]time.Duration{
		"sync.autosave_debounce": c.Sync.AutosaveDebounce,
		"sync.saved_hold":        c.Sync.SavedHold,
		"sync.notice_ttl":        c.Sync.NoticeTTL,
	} {
		if d <= 0 {
			return fmt.Errorf("config.%s must be positive", name)
		}
	}
	if c.Sync.RequestTimeout < 0 || c.Remote.Timeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	switch c.Log.Env {
	case "development", "production":
	default:
		return fmt.Errorf("config.log.env must be development or production")
	}
	if c.Export.S3.Bucket != "" && c.Export.S3.Region == "" {
		return fmt.Errorf("config.export.s3.region is required with a bucket")
	}
	if (c.Export.S3.AccessKeyID == "") != (c.Export.S3.SecretAccessKey == "") {
		return fmt.Errorf("config.export.s3 access_key_id and secret_access_key go together")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "shootboard.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// LoadOptional returns the defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Keys absent from
// data keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// Marshal renders the config back to YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

const defaultTemplate = `store:
  driver: sqlite
  dsn: ""

remote:
  base_url: ""
  token: ""
  timeout: 10s

sync:
  autosave_debounce: 600ms
  saved_hold: 1200ms
  notice_ttl: 5s
  request_timeout: 10s

server:
  addr: 127.0.0.1:8080
  base_path: /v0
  jwt_secret: ""

log:
  env: development
  level: info

export:
  dir: exports
  s3:
    bucket: ""
    region: ""
    endpoint: ""
    prefix: snapshots/
    path_style: false
    access_key_id: ""
    secret_access_key: ""
`
