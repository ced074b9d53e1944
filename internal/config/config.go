package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for wabot. It is built once at startup
// and passed by pointer to the components that need it; nothing mutates it
// after Load returns.
type Config struct {
	General GeneralConfig `json:"general" yaml:"general"`
	Bot     BotConfig     `json:"bot" yaml:"bot"`
	Server  ServerConfig  `json:"server" yaml:"server"`
	Audit   AuditConfig   `json:"audit" yaml:"audit"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

type GeneralConfig struct {
	LogLevel string `json:"logLevel" yaml:"logLevel"`
	LogFile  string `json:"logFile,omitempty" yaml:"logFile,omitempty"` // optional log file path
}

// BotConfig holds the chat-api credentials and the public base URL the bot's
// own attachments are reachable under.
type BotConfig struct {
	Token          string `json:"token" yaml:"token"`
	BotURL         string `json:"botUrl" yaml:"botUrl"`
	APIURL         string `json:"apiUrl" yaml:"apiUrl"`
	TimeoutSeconds int    `json:"timeoutSeconds" yaml:"timeoutSeconds"`
}

type ServerConfig struct {
	Host        string `json:"host" yaml:"host"`
	Port        int    `json:"port" yaml:"port"`
	WebhookPath string `json:"webhookPath" yaml:"webhookPath"`
	FilesDir    string `json:"filesDir" yaml:"filesDir"`
}

// AuditConfig configures the SQLite dispatch journal.
type AuditConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	DBPath  string `json:"dbPath" yaml:"dbPath"`
}

// MetricsConfig configures the Prometheus text endpoint.
type MetricsConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DefaultConfigDir returns the default config directory (~/.wabot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".wabot"
	}
	return filepath.Join(home, ".wabot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Server.FilesDir = ExpandPath(cfg.Server.FilesDir)
	cfg.Audit.DBPath = ExpandPath(cfg.Audit.DBPath)
	cfg.Bot.BotURL = strings.TrimRight(cfg.Bot.BotURL, "/")
	cfg.Bot.APIURL = strings.TrimRight(cfg.Bot.APIURL, "/")

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty; an unset
// variable without a default is left untouched.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		hasDefault := len(groups) >= 3 && groups[2] != ""

		val, exists := os.LookupEnv(groups[1])
		if !exists || val == "" {
			if hasDefault {
				return groups[2]
			}
			return match
		}
		return val
	})
}

// Save writes cfg to path, as YAML when the extension asks for it.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch strings.ToLower(cfg.General.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if cfg.Bot.Token == "" {
		errs = append(errs, "bot.token is required")
	} else if envVarPattern.MatchString(cfg.Bot.Token) {
		errs = append(errs, "bot.token references an unset environment variable")
	}
	if !isHTTPURL(cfg.Bot.APIURL) {
		errs = append(errs, "bot.apiUrl must be an absolute http(s) URL")
	}
	if !isHTTPURL(cfg.Bot.BotURL) {
		errs = append(errs, "bot.botUrl must be an absolute http(s) URL")
	}
	if cfg.Bot.TimeoutSeconds < 1 || cfg.Bot.TimeoutSeconds > 300 {
		errs = append(errs, "bot.timeoutSeconds must be between 1 and 300")
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if !isRoutePath(cfg.Server.WebhookPath) {
		errs = append(errs, "server.webhookPath must start with /, not be the root and contain no spaces or braces")
	}

	if cfg.Audit.Enabled && cfg.Audit.DBPath == "" {
		errs = append(errs, "audit.dbPath is required when audit is enabled")
	}
	if cfg.Metrics.Enabled {
		if !isRoutePath(cfg.Metrics.Endpoint) {
			errs = append(errs, "metrics.endpoint must start with /, not be the root and contain no spaces or braces")
		} else if cfg.Metrics.Endpoint == cfg.Server.WebhookPath {
			errs = append(errs, "metrics.endpoint must differ from server.webhookPath")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// isRoutePath reports whether p can be mounted as a literal route next to
// the liveness page and the file server, which both own "/".
func isRoutePath(p string) bool {
	return strings.HasPrefix(p, "/") && p != "/" && !strings.ContainsAny(p, " \t{}")
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
