package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the typed view of the settings file after defaults and
// environment overrides are applied.
type Config struct {
	LLMEnabled     bool   `mapstructure:"llm.enabled"`
	LLMProvider    string `mapstructure:"llm.provider"`
	PromptTemplate string `mapstructure:"llm.prompt_template"`
	APIKey         string `mapstructure:"openai.api_key"`
	Model          string `mapstructure:"openai.model"`
	APIBase        string `mapstructure:"openai.base_url"`
	TimeoutSecs    int    `mapstructure:"openai.timeout_secs"`
	MaxTokens      int    `mapstructure:"openai.max_tokens"`
	AutoMerge      bool   `mapstructure:"gh.auto_merge"`
	ReviewBackend  string `mapstructure:"gh.backend"`
	Remote         string `mapstructure:"git.remote"`
	Trunk          string `mapstructure:"git.trunk"`
	BranchPrefix   string `mapstructure:"branch.prefix"`
	LastBranch     string `mapstructure:"last_branch"`
}

// LLMTimeout returns the refinement wall-clock budget.
func (c *Config) LLMTimeout() time.Duration {
	if c.TimeoutSecs <= 0 {
		return time.Duration(DefaultTimeoutSecs) * time.Second
	}
	return time.Duration(c.TimeoutSecs) * time.Second
}

const (
	DefaultConfigDir      = "gco"
	DefaultConfigName     = "settings.json"
	DefaultPromptTemplate = "default"
	DefaultProvider       = "openai"
	DefaultModel          = "gpt-4o-mini"
	DefaultTimeoutSecs    = 12
	DefaultMaxTokens      = 512
	DefaultRemote         = "origin"
	DefaultBranchPrefix   = "gco"
	DefaultReviewBackend  = "cli"
	EnvPrefix             = "GCO"

	keyDelimiter = "::"
)

// Recognized setting keys.
const (
	KeyLLMEnabled     = "llm.enabled"
	KeyLLMProvider    = "llm.provider"
	KeyPromptTemplate = "llm.prompt_template"
	KeyAPIKey         = "openai.api_key"
	KeyModel          = "openai.model"
	KeyAPIBase        = "openai.base_url"
	KeyTimeoutSecs    = "openai.timeout_secs"
	KeyMaxTokens      = "openai.max_tokens"
	KeyAutoMerge      = "gh.auto_merge"
	KeyReviewBackend  = "gh.backend"
	KeyRemote         = "git.remote"
	KeyTrunk          = "git.trunk"
	KeyBranchPrefix   = "branch.prefix"
	KeyLastBranch     = "last_branch"
)

type keyKind int

const (
	kindString keyKind = iota
	kindBool
	kindInt
)

var knownKeys = map[string]keyKind{
	KeyLLMEnabled:     kindBool,
	KeyLLMProvider:    kindString,
	KeyPromptTemplate: kindString,
	KeyAPIKey:         kindString,
	KeyModel:          kindString,
	KeyAPIBase:        kindString,
	KeyTimeoutSecs:    kindInt,
	KeyMaxTokens:      kindInt,
	KeyAutoMerge:      kindBool,
	KeyReviewBackend:  kindString,
	KeyRemote:         kindString,
	KeyTrunk:          kindString,
	KeyBranchPrefix:   kindString,
	KeyLastBranch:     kindString,
}

var suggestedModels = []string{
	"gpt-4o-mini",
	"gpt-4o",
	"gpt-4.1-mini",
}

// Settings is the settings file as loaded from disk. It holds only what the
// file contains, so saving never persists defaults or environment values.
type Settings struct {
	path string
	file *viper.Viper
}

func newViper() *viper.Viper {
	return viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
}

// DefaultPath returns $GCO_CONFIG, else $XDG_CONFIG_HOME/gco/settings.json,
// else ~/.config/gco/settings.json.
func DefaultPath() (string, error) {
	if p := os.Getenv(EnvPrefix + "_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigName), nil
}

// Dir returns the directory holding settings and the diagnostics log.
func Dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, DefaultConfigDir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to find home directory: %w", err)
	}
	return filepath.Join(home, ".config", DefaultConfigDir), nil
}

// Load reads the settings file at path. A missing file yields empty settings;
// nothing is written until Save.
func Load(path string) (*Settings, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read configuration file %s: %w", path, err)
		}
	}
	return &Settings{path: path, file: v}, nil
}

// Path returns the settings file location.
func (s *Settings) Path() string {
	return s.path
}

func (s *Settings) effective() *viper.Viper {
	v := newViper()
	v.SetDefault(KeyLLMEnabled, false)
	v.SetDefault(KeyLLMProvider, DefaultProvider)
	v.SetDefault(KeyPromptTemplate, DefaultPromptTemplate)
	v.SetDefault(KeyAPIKey, "")
	v.SetDefault(KeyModel, DefaultModel)
	v.SetDefault(KeyAPIBase, "")
	v.SetDefault(KeyTimeoutSecs, DefaultTimeoutSecs)
	v.SetDefault(KeyMaxTokens, DefaultMaxTokens)
	v.SetDefault(KeyAutoMerge, false)
	v.SetDefault(KeyReviewBackend, DefaultReviewBackend)
	v.SetDefault(KeyRemote, DefaultRemote)
	v.SetDefault(KeyTrunk, "")
	v.SetDefault(KeyBranchPrefix, DefaultBranchPrefix)
	v.SetDefault(KeyLastBranch, "")

	_ = v.MergeConfigMap(s.file.AllSettings())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv(KeyAPIKey, EnvPrefix+"_OPENAI_API_KEY", "OPENAI_API_KEY")
	return v
}

// Config returns the typed configuration with defaults and environment
// overrides applied.
func (s *Settings) Config() (*Config, error) {
	cfg := &Config{}
	if err := s.effective().Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return cfg, nil
}

// Get returns the effective value of key as a string.
func (s *Settings) Get(key string) string {
	return s.effective().GetString(strings.ToLower(key))
}

// Set validates and records a value in memory. Recognized keys are type
// checked; unknown keys are rejected so typos do not silently persist.
func (s *Settings) Set(key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	kind, ok := knownKeys[key]
	if !ok {
		return fmt.Errorf("unknown setting %q (known: %s)", key, strings.Join(KnownKeys(), ", "))
	}
	switch kind {
	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("setting %s expects true or false: %w", key, err)
		}
		s.file.Set(key, b)
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("setting %s expects a positive integer, got %q", key, value)
		}
		s.file.Set(key, n)
	default:
		if key == KeyReviewBackend && value != "cli" && value != "api" {
			return fmt.Errorf("setting %s must be cli or api, got %q", key, value)
		}
		s.file.Set(key, value)
	}
	return nil
}

// SetLastBranch records the branch produced by the most recent successful commit.
func (s *Settings) SetLastBranch(branch string) {
	s.file.Set(KeyLastBranch, branch)
}

// Save writes the settings file, keeping any keys this version does not know about.
func (s *Settings) Save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create configuration directory: %w", err)
	}
	if err := s.file.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	if err := os.Chmod(s.path, 0o600); err != nil {
		return fmt.Errorf("failed to set configuration file permissions: %w", err)
	}
	return nil
}

// KnownKeys lists recognized setting keys in sorted order.
func KnownKeys() []string {
	keys := make([]string, 0, len(knownKeys))
	for k := range knownKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsValidModel reports whether model is usable. Any non-empty name is accepted.
func IsValidModel(model string) bool {
	return strings.TrimSpace(model) != ""
}

// GetSuggestedModels lists commonly used models for help output.
func GetSuggestedModels() []string {
	return suggestedModels
}
