package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Port = 0 }},
		{"round seconds", func(c *Config) { c.RoundSeconds = 0 }},
		{"chat rate", func(c *Config) { c.ChatRate = 0 }},
		{"unknown source", func(c *Config) { c.WordSource = "dictionary" }},
		{"postgres without url", func(c *Config) { c.WordSource = SourcePostgres }},
		{"openai without key", func(c *Config) { c.WordSource = SourceOpenAI }},
		{"migrate without url", func(c *Config) { c.AutoMigrate = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func newFlags(t *testing.T, args ...string) (*Config, *pflag.FlagSet) {
	t.Helper()
	cfg := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return &cfg, fs
}

func TestApplyEnvPrefixed(t *testing.T) {
	t.Setenv("ALIAS_ROUND_SECONDS", "30")
	t.Setenv("ALIAS_WORD_SOURCE", "ollama")
	t.Setenv("ALIAS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	cfg, fs := newFlags(t)

	require.NoError(t, ApplyEnv(fs))
	assert.Equal(t, 30, cfg.RoundSeconds)
	assert.Equal(t, SourceOllama, cfg.WordSource)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestApplyEnvLegacy(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("DATABASE_URL", "postgres://localhost/alias")
	cfg, fs := newFlags(t)

	require.NoError(t, ApplyEnv(fs))
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "postgres://localhost/alias", cfg.DatabaseURL)
}

func TestApplyEnvPrefixedWinsOverLegacy(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("ALIAS_PORT", "4000")
	cfg, fs := newFlags(t)

	require.NoError(t, ApplyEnv(fs))
	assert.Equal(t, 4000, cfg.Port)
}

func TestFlagsWinOverEnv(t *testing.T) {
	t.Setenv("ALIAS_PORT", "4000")
	cfg, fs := newFlags(t, "--port", "5000")

	require.NoError(t, ApplyEnv(fs))
	assert.Equal(t, 5000, cfg.Port)
}

func TestApplyEnvBadValue(t *testing.T) {
	t.Setenv("ALIAS_TOTAL_ROUNDS", "many")
	_, fs := newFlags(t)

	assert.Error(t, ApplyEnv(fs))
}

func TestLoadDotEnv(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ALIAS_TEST_DOTENV=from-file\n"), 0o600))
	t.Setenv("ALIAS_TEST_DOTENV", "")
	os.Unsetenv("ALIAS_TEST_DOTENV")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("ALIAS_TEST_DOTENV"))
}
