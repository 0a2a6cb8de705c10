package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const (
	DefaultGlamourStyle = "dark"
	appDirName          = "chatwidget"
)

// AppConfig configures the terminal client. Environment values are read
// first; flags override them.
type AppConfig struct {
	ServerURL  string        `env:"CHATWIDGET_SERVER" envDefault:"http://127.0.0.1:5000"`
	SessionID  string        `env:"CHATWIDGET_SESSION"`
	DBPath     string        `env:"CHATWIDGET_DB_PATH"`
	ExportDir  string        `env:"CHATWIDGET_EXPORT_DIR"`
	Timeout    time.Duration `env:"CHATWIDGET_TIMEOUT" envDefault:"60s"`
	SessionTTL time.Duration `env:"CHATWIDGET_SESSION_TTL" envDefault:"24h"`
	LogFile    string        `env:"CHATWIDGET_LOG_FILE"`
	LogLevel   string        `env:"CHATWIDGET_LOG_LEVEL" envDefault:"info"`
	Ephemeral  bool          `env:"CHATWIDGET_EPHEMERAL"`

	Print  bool `env:"-"`
	Forget bool `env:"-"`
}

// ServerConfig configures the chat backend.
type ServerConfig struct {
	Host             string   `env:"CHATSERVER_HOST" envDefault:"127.0.0.1"`
	Port             int      `env:"CHATSERVER_PORT" envDefault:"5000"`
	OpenAIEndpoint   string   `env:"OPENAI_ENDPOINT"`
	OpenAIDeployment string   `env:"OPENAI_DEPLOYMENT"`
	OpenAIAPIKey     string   `env:"OPENAI_API_KEY"`
	OpenAIAPIVersion string   `env:"OPENAI_API_VERSION"`
	OpenAIAPIType    string   `env:"OPENAI_API_TYPE" envDefault:"azure"`
	Echo             bool     `env:"CHATSERVER_ECHO"`
	AllowedOrigins   []string `env:"CHATSERVER_ALLOWED_ORIGINS" envSeparator:","`
	LogLevel         string   `env:"CHATSERVER_LOG_LEVEL" envDefault:"info"`
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadDotEnv reads .env from the working directory when present.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func Parse(args []string) (AppConfig, error) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	flags := flag.NewFlagSet(appDirName, flag.ContinueOnError)
	flags.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "base URL of the chat backend")
	flags.StringVar(&cfg.SessionID, "session", cfg.SessionID, "session to resume (default: start a new one)")
	flags.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to SQLite session store")
	flags.StringVar(&cfg.ExportDir, "export-dir", cfg.ExportDir, "override export output directory")
	flags.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "per-request timeout (0 disables)")
	flags.DurationVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "drop sessions idle for longer than this")
	flags.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "log file path")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flags.BoolVar(&cfg.Ephemeral, "ephemeral", cfg.Ephemeral, "keep the transcript in memory only")
	flags.BoolVar(&cfg.Print, "print", false, "print the session transcript and exit")
	flags.BoolVar(&cfg.Forget, "forget", false, "end the session, clearing its transcript, and exit")
	if err := flags.Parse(args); err != nil {
		return cfg, err
	}

	cfg.ServerURL = strings.TrimRight(strings.TrimSpace(cfg.ServerURL), "/")
	if cfg.ServerURL == "" {
		return cfg, fmt.Errorf("server URL must not be empty")
	}
	if cfg.Timeout < 0 {
		return cfg, fmt.Errorf("timeout must not be negative")
	}

	if cfg.SessionID == "" {
		if cfg.Print || cfg.Forget {
			return cfg, fmt.Errorf("-print and -forget need -session")
		}
		cfg.SessionID = uuid.NewString()
	}

	if cfg.DBPath == "" || cfg.LogFile == "" {
		dir, err := DataDir()
		if err != nil {
			return cfg, err
		}
		if cfg.DBPath == "" {
			cfg.DBPath = filepath.Join(dir, "sessions.sqlite")
		}
		if cfg.LogFile == "" {
			cfg.LogFile = filepath.Join(dir, "chatwidget.log")
		}
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return cfg, fmt.Errorf("create db dir: %w", err)
	}

	return cfg, nil
}

func ParseServer() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return cfg, fmt.Errorf("invalid port %d", cfg.Port)
	}
	return cfg, nil
}

// DataDir resolves the directory holding the session store and logs.
func DataDir() (string, error) {
	if fromEnv := os.Getenv("XDG_DATA_HOME"); fromEnv != "" {
		return filepath.Join(filepath.Clean(fromEnv), appDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", appDirName), nil
}
