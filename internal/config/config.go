package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	// Keywords restrict what the pull connectors return. Empty means
	// take everything a connector offers.
	Keywords   []string   `yaml:"keywords"`
	Sources    Sources    `yaml:"sources"`
	Classifier Classifier `yaml:"classifier"`
	Momentum   Momentum   `yaml:"momentum"`
	Output     Output     `yaml:"output"`
	Server     Server     `yaml:"server"`
	Logging    Logging    `yaml:"logging"`
}

type Sources struct {
	Mock     MockSource     `yaml:"mock"`
	Feeds    []Feed         `yaml:"feeds"`
	X        XSource        `yaml:"x"`
	Telegram TelegramSource `yaml:"telegram"`
}

type MockSource struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type XSource struct {
	Enabled  bool   `yaml:"enabled"`
	Query    string `yaml:"query"`
	TokenEnv string `yaml:"token_env"`
}

type TelegramSource struct {
	Enabled  bool   `yaml:"enabled"`
	TokenEnv string `yaml:"token_env"`
}

type Classifier struct {
	Mode        string `yaml:"mode"` // "rule" or "live"
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	OllamaURL   string `yaml:"ollama_url"`
	OpenAIModel string `yaml:"openai_model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	MaxTokens   int    `yaml:"max_tokens"`
}

type Momentum struct {
	WindowHours          int `yaml:"window_hours"`
	MinClusterSize       int `yaml:"min_cluster_size"`
	ActorRepeatThreshold int `yaml:"actor_repeat_threshold"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for signalry.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "signalry")
}

// DataDir returns the XDG data directory for signalry.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "signalry")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/signalry/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'signalry init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Sources: Sources{
			Mock: MockSource{Enabled: true, Path: "posts.json"},
			X: XSource{
				Query:    "signalry",
				TokenEnv: "X_BEARER_TOKEN",
			},
			Telegram: TelegramSource{TokenEnv: "TELEGRAM_BOT_TOKEN"},
		},
		Classifier: Classifier{
			Mode:        "rule",
			Provider:    "ollama",
			Model:       "qwen2.5:7b",
			OllamaURL:   "http://localhost:11434",
			OpenAIModel: "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			MaxTokens:   512,
		},
		Momentum: Momentum{
			WindowHours:          48,
			MinClusterSize:       3,
			ActorRepeatThreshold: 2,
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// DBPath returns the SQLite database path inside the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.GetDataDir(), "signalry.db")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
