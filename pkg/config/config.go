package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"

	"github.com/boristopalov/sciworld/internal/logging"
	"github.com/boristopalov/sciworld/pkg/prompt"
)

// Environment variables that override the config file.
const (
	EnvAddr     = "SCIWORLD_ADDR"
	EnvURL      = "SCIWORLD_URL"
	EnvLogLevel = "SCIWORLD_LOG_LEVEL"
	EnvStore    = "SCIWORLD_STORE"
)

type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Client  ClientConfig   `yaml:"client"`
	Prompt  PromptConfig   `yaml:"prompt"`
	Store   StoreConfig    `yaml:"store"`
	Logging logging.Config `yaml:"logging"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	TasksFile    string        `yaml:"tasks_file"` // scripted engine task file, embedded default when empty
	StepLimit    int           `yaml:"step_limit"`
	SessionTTL   time.Duration `yaml:"session_ttl"` // 0 keeps sessions forever
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

// Client transports.
const (
	TransportHTTP = "http"
	TransportWS   = "ws"
)

type ClientConfig struct {
	URL       string        `yaml:"url"`
	Transport string        `yaml:"transport"`
	Session   string        `yaml:"session"`
	Timeout   time.Duration `yaml:"timeout"`
}

type PromptConfig struct {
	Style      string `yaml:"style"`
	StylesFile string `yaml:"styles_file"`
}

type StoreConfig struct {
	Path string `yaml:"path"` // SQLite file, empty disables persistence
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8000",
			StepLimit:    1000,
			MaxBodyBytes: 1 << 20,
		},
		Client: ClientConfig{
			URL:       "http://localhost:8000",
			Transport: TransportHTTP,
		},
		Prompt: PromptConfig{
			Style: prompt.DefaultStyle,
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error; the defaults are used.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, goerr.Wrap(err, "failed to read config", goerr.Value("path", path))
		default:
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, goerr.Wrap(err, "failed to parse config", goerr.Value("path", path))
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid config", goerr.Value("path", path))
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(EnvURL); v != "" {
		c.Client.URL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvStore); v != "" {
		c.Store.Path = v
	}
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return goerr.New("server.addr is required")
	}
	if c.Server.StepLimit < 0 {
		return goerr.New("server.step_limit must not be negative", goerr.Value("step_limit", c.Server.StepLimit))
	}
	switch c.Client.Transport {
	case TransportHTTP, TransportWS:
	default:
		return goerr.New("unknown client.transport", goerr.Value("transport", c.Client.Transport))
	}
	if c.Client.URL == "" {
		return goerr.New("client.url is required")
	}
	return nil
}

// Styles returns the preset registry extended with the configured styles file.
func (c *Config) Styles() (*prompt.Registry, error) {
	reg := prompt.NewRegistry()
	if c.Prompt.StylesFile != "" {
		if err := reg.LoadFile(c.Prompt.StylesFile); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Style resolves the configured prompt style.
func (c *Config) Style() (prompt.Style, error) {
	reg, err := c.Styles()
	if err != nil {
		return prompt.Style{}, err
	}
	name := c.Prompt.Style
	if name == "" {
		name = prompt.DefaultStyle
	}
	return reg.Get(name)
}
