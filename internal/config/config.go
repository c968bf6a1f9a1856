package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Word sources.
const (
	SourceList     = "list"
	SourcePostgres = "postgres"
	SourceOpenAI   = "openai"
	SourceOllama   = "ollama"
)

type Config struct {
	Bind           string
	Port           int
	PublicURL      string
	DatabaseURL    string
	AutoMigrate    bool
	MigrationsPath string
	WordSource     string
	Model          string
	OpenAIKey      string
	OpenAIBaseURL  string
	OllamaHost     string
	RoundSeconds   int
	TotalRounds    int
	ChatRate       float64
	ChatBurst      int
	AllowedOrigins []string
	ExportFile     string
	Verbose        bool
}

func Default() Config {
	return Config{
		Bind:           "0.0.0.0",
		Port:           8080,
		MigrationsPath: "file://db/migrations",
		WordSource:     SourceList,
		Model:          "gpt-4o-mini",
		OllamaHost:     "http://localhost:11434",
		RoundSeconds:   60,
		TotalRounds:    3,
		ChatRate:       2,
		ChatBurst:      5,
		AllowedOrigins: []string{"*"},
	}
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.RoundSeconds <= 0 || c.TotalRounds <= 0 {
		return errors.New("--round-seconds and --total-rounds must be positive")
	}
	if c.ChatRate <= 0 || c.ChatBurst <= 0 {
		return errors.New("--chat-rate and --chat-burst must be positive")
	}
	switch c.WordSource {
	case SourceList, SourceOllama:
	case SourcePostgres:
		if c.DatabaseURL == "" {
			return errors.New("--word-source=postgres requires --database-url")
		}
	case SourceOpenAI:
		if c.OpenAIKey == "" {
			return errors.New("--word-source=openai requires --openai-key")
		}
	default:
		return fmt.Errorf("unknown word source %q (want list, postgres, openai or ollama)", c.WordSource)
	}
	if c.AutoMigrate && c.DatabaseURL == "" {
		return errors.New("--auto-migrate requires --database-url")
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}

// RegisterFlags adds every setting to fs, with c's current values as defaults.
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&c.Bind, "bind", "b", c.Bind, "address to bind to (env: ALIAS_BIND)")
	fs.IntVarP(&c.Port, "port", "p", c.Port, "port to listen on (env: ALIAS_PORT, PORT)")
	fs.StringVar(&c.PublicURL, "public-url", c.PublicURL, "base URL encoded in join QR codes, defaults to the request host (env: ALIAS_PUBLIC_URL)")
	fs.StringVar(&c.DatabaseURL, "database-url", c.DatabaseURL, "postgres connection string, in-memory storage when empty (env: ALIAS_DATABASE_URL, DATABASE_URL)")
	fs.BoolVar(&c.AutoMigrate, "auto-migrate", c.AutoMigrate, "apply database migrations on startup (env: ALIAS_AUTO_MIGRATE)")
	fs.StringVar(&c.MigrationsPath, "migrations", c.MigrationsPath, "migration source URL (env: ALIAS_MIGRATIONS)")
	fs.StringVar(&c.WordSource, "word-source", c.WordSource, "where secret words come from: list, postgres, openai or ollama (env: ALIAS_WORD_SOURCE)")
	fs.StringVar(&c.Model, "model", c.Model, "model used by the openai and ollama word sources (env: ALIAS_MODEL)")
	fs.StringVar(&c.OpenAIKey, "openai-key", c.OpenAIKey, "OpenAI API key (env: ALIAS_OPENAI_KEY, OPENAI_API_KEY)")
	fs.StringVar(&c.OpenAIBaseURL, "openai-base-url", c.OpenAIBaseURL, "custom OpenAI API base URL (env: ALIAS_OPENAI_BASE_URL, OPENAI_BASE_URL)")
	fs.StringVar(&c.OllamaHost, "ollama-host", c.OllamaHost, "Ollama host URL (env: ALIAS_OLLAMA_HOST, OLLAMA_HOST)")
	fs.IntVar(&c.RoundSeconds, "round-seconds", c.RoundSeconds, "default round length (env: ALIAS_ROUND_SECONDS)")
	fs.IntVar(&c.TotalRounds, "total-rounds", c.TotalRounds, "default number of rounds (env: ALIAS_TOTAL_ROUNDS)")
	fs.Float64Var(&c.ChatRate, "chat-rate", c.ChatRate, "chat messages per second allowed per connection (env: ALIAS_CHAT_RATE)")
	fs.IntVar(&c.ChatBurst, "chat-burst", c.ChatBurst, "chat burst allowed per connection (env: ALIAS_CHAT_BURST)")
	fs.StringSliceVar(&c.AllowedOrigins, "allowed-origins", c.AllowedOrigins, "CORS origins (env: ALIAS_ALLOWED_ORIGINS)")
	fs.StringVar(&c.ExportFile, "export-file", c.ExportFile, "append finished game results to this file (env: ALIAS_EXPORT_FILE)")
	fs.BoolVarP(&c.Verbose, "verbose", "v", c.Verbose, "display debug output (env: ALIAS_VERBOSE)")
}

// legacyEnv are unprefixed variables still honoured for a few settings.
var legacyEnv = map[string]string{
	"port":            "PORT",
	"database-url":    "DATABASE_URL",
	"openai-key":      "OPENAI_API_KEY",
	"openai-base-url": "OPENAI_BASE_URL",
	"ollama-host":     "OLLAMA_HOST",
}

// ApplyEnv sets every flag not given on the command line from the
// environment. Prefixed variables win over legacy ones.
func ApplyEnv(fs *pflag.FlagSet) error {
	v := viper.New()
	v.SetEnvPrefix("ALIAS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		key := "ALIAS_" + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		if legacy, ok := legacyEnv[f.Name]; ok {
			_ = v.BindEnv(f.Name, key, legacy)
		} else {
			_ = v.BindEnv(f.Name)
		}
		if !f.Changed && v.IsSet(f.Name) {
			if err := fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			}
		}
	})
	return errors.Join(errs...)
}
