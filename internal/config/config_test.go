package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hammamikhairi/maitri/internal/completion"
	"github.com/hammamikhairi/maitri/internal/logger"
)

// isolate points every source at an empty temp directory.
func isolate(t *testing.T) (dir string, opts LoadOptions) {
	t.Helper()
	dir = t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	for _, name := range []string{
		"GEMINI_API_KEY", "MAITRI_COMPLETION_API_KEY", "MAITRI_COMPLETION_BACKEND",
		"MAITRI_COMPLETION_MODEL", "MAITRI_COMPLETION_WINDOW", "MAITRI_COMPLETION_TEMPERATURE",
		"AZURE_SPEECH_KEY", "AZURE_SPEECH_REGION", "MAITRI_LOG_LEVEL",
		"GPT_CHAT_KEY", "GPT_CHAT_ENDPOINT", "MAITRI_COMPLETION_OPENAI_ENDPOINT",
	} {
		t.Setenv(name, "")
	}
	return dir, LoadOptions{EnvFile: filepath.Join(dir, "missing.env")}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDefaults(t *testing.T) {
	_, opts := isolate(t)

	cfg, err := Load(opts)
	require.NoError(t, err)

	assert.Equal(t, BackendGemini, cfg.Completion.Backend)
	assert.Empty(t, cfg.Completion.APIKey)
	assert.Equal(t, completion.DefaultModel, cfg.Completion.Model)
	assert.Equal(t, completion.DefaultWindow, cfg.Completion.Window)
	assert.Equal(t, 60*time.Second, cfg.Completion.ReplyTimeout)
	assert.Equal(t, 900*time.Millisecond, cfg.Completion.EchoDelay)
	assert.Nil(t, cfg.Completion.Temperature)
	assert.Equal(t, "en-US", cfg.Speech.Locale)
	assert.Equal(t, 2*time.Second, cfg.Speech.Chunk)
	assert.False(t, cfg.Speech.Enabled)
	assert.Equal(t, logger.LevelNormal, cfg.Log.LogLevel())
}

func TestPrecedence(t *testing.T) {
	dir, opts := isolate(t)
	writeFile(t, filepath.Join(dir, "maitri", "config.toml"), `
[completion]
backend = "echo"
model = "from-file"
window = 4
reply_timeout = "5s"

[log]
level = "verbose"
`)
	t.Setenv("MAITRI_COMPLETION_MODEL", "from-env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("window", 8, "")
	flags.String("model", "", "")
	require.NoError(t, flags.Parse([]string{"--window=6"}))
	opts.Flags = flags

	cfg, err := Load(opts)
	require.NoError(t, err)

	assert.Equal(t, BackendEcho, cfg.Completion.Backend) // file
	assert.Equal(t, "from-env", cfg.Completion.Model)    // env over file; flag unchanged
	assert.Equal(t, 6, cfg.Completion.Window)            // flag over file
	assert.Equal(t, 5*time.Second, cfg.Completion.ReplyTimeout)
	assert.Equal(t, logger.LevelVerbose, cfg.Log.LogLevel())
}

func TestCredentialAliasesAndDotenv(t *testing.T) {
	dir, opts := isolate(t)
	opts.EnvFile = filepath.Join(dir, "test.env")
	writeFile(t, opts.EnvFile, "AZURE_SPEECH_REGION=westeurope\n")
	t.Setenv("GEMINI_API_KEY", "gem-key")
	t.Setenv("GPT_CHAT_ENDPOINT", "https://example.openai.azure.com/chat/completions")
	t.Setenv("MAITRI_COMPLETION_TEMPERATURE", "0.3")
	// godotenv never overrides a variable that exists, even empty. The
	// t.Setenv in isolate restores it afterwards.
	require.NoError(t, os.Unsetenv("AZURE_SPEECH_REGION"))

	cfg, err := Load(opts)
	require.NoError(t, err)

	assert.Equal(t, "gem-key", cfg.Completion.APIKey)
	assert.Equal(t, "westeurope", cfg.Voice.AzureRegion)
	assert.Equal(t, "https://example.openai.azure.com/chat/completions", cfg.Completion.OpenAIEndpoint)
	require.NotNil(t, cfg.Completion.Temperature)
	assert.InDelta(t, 0.3, *cfg.Completion.Temperature, 1e-9)
}

func TestExplicitFileMustExist(t *testing.T) {
	dir, opts := isolate(t)
	opts.File = filepath.Join(dir, "nope.toml")

	_, err := Load(opts)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown backend", func(c *Config) { c.Completion.Backend = "openai" }, "unknown completion backend"},
		{"zero window", func(c *Config) { c.Completion.Window = 0 }, "window must be positive"},
		{"negative reply timeout", func(c *Config) { c.Completion.ReplyTimeout = -time.Second }, "reply_timeout"},
		{"negative http timeout", func(c *Config) { c.Completion.HTTPTimeout = -time.Second }, "http_timeout"},
		{"zero chunk", func(c *Config) { c.Speech.Chunk = 0 }, "speech.chunk"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, opts := isolate(t)
			cfg, err := Load(opts)
			require.NoError(t, err)

			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestMissingCredentialIsNotALoadError(t *testing.T) {
	_, opts := isolate(t)
	cfg, err := Load(opts)
	require.NoError(t, err)
	assert.Empty(t, cfg.Completion.APIKey)
	assert.NoError(t, cfg.Validate())
}

func TestEncodeMasksSecretsAndRoundTrips(t *testing.T) {
	dir, opts := isolate(t)
	t.Setenv("MAITRI_COMPLETION_API_KEY", "abcdefgh1234")

	cfg, err := Load(opts)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, cfg.Encode(&buf))
	out := buf.String()
	assert.Contains(t, out, `api_key = "****1234"`)
	assert.NotContains(t, out, "abcdefgh")
	assert.Contains(t, out, `reply_timeout = "1m0s"`)

	var decoded map[string]any
	_, err = toml.Decode(out, &decoded)
	require.NoError(t, err)

	// The printed file is a valid config file.
	path := filepath.Join(dir, "printed.toml")
	writeFile(t, path, out)
	opts.File = path
	again, err := Load(opts)
	require.NoError(t, err)
	assert.Equal(t, cfg.Completion.ReplyTimeout, again.Completion.ReplyTimeout)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", mask(""))
	assert.Equal(t, "****", mask("abc"))
	assert.Equal(t, "****6789", mask("123456789"))
}
