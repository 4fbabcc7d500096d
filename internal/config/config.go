// Package config loads layered settings: flags, then environment
// (including a .env file), then a TOML config file, then defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hammamikhairi/maitri/internal/completion"
	"github.com/hammamikhairi/maitri/internal/logger"
	"github.com/hammamikhairi/maitri/internal/speech"
)

// Completion backends.
const (
	BackendGemini = "gemini"
	BackendVertex = "vertex"
	BackendEcho   = "echo"
	BackendOpenAI = "openai"
)

// EnvPrefix prefixes every environment override, e.g.
// MAITRI_COMPLETION_MODEL.
const EnvPrefix = "MAITRI"

// Config is the effective configuration.
type Config struct {
	Completion Completion `mapstructure:"completion"`
	Speech     Speech     `mapstructure:"speech"`
	Voice      Voice      `mapstructure:"voice"`
	Log        Log        `mapstructure:"log"`
}

// Completion configures the reply backend.
type Completion struct {
	Backend        string        `mapstructure:"backend"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	BaseURL        string        `mapstructure:"base_url"`
	Window         int           `mapstructure:"window"`
	Temperature    *float64      `mapstructure:"temperature"`
	SystemPrompt   string        `mapstructure:"system_prompt"`
	HTTPTimeout    time.Duration `mapstructure:"http_timeout"`
	ReplyTimeout   time.Duration `mapstructure:"reply_timeout"`
	VertexProject  string        `mapstructure:"vertex_project"`
	VertexLocation string        `mapstructure:"vertex_location"`
	OpenAIEndpoint string        `mapstructure:"openai_endpoint"`
	OpenAIModel    string        `mapstructure:"openai_model"`
	EchoDelay      time.Duration `mapstructure:"echo_delay"`
	EchoReply      string        `mapstructure:"echo_reply"`
}

// Speech configures voice input.
type Speech struct {
	Enabled      bool          `mapstructure:"enabled"`
	WhisperBin   string        `mapstructure:"whisper_bin"`
	WhisperModel string        `mapstructure:"whisper_model"`
	Locale       string        `mapstructure:"locale"`
	Chunk        time.Duration `mapstructure:"chunk"`
	MaxListen    time.Duration `mapstructure:"max_listen"`
	TempDir      string        `mapstructure:"temp_dir"`
}

// Voice configures spoken replies.
type Voice struct {
	Enabled     bool   `mapstructure:"enabled"`
	AzureKey    string `mapstructure:"azure_key"`
	AzureRegion string `mapstructure:"azure_region"`
	Voice       string `mapstructure:"voice"`
}

// Log configures the logger.
type Log struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// LogLevel returns the parsed log level. Validate has already rejected
// unknown names.
func (l Log) LogLevel() logger.Level {
	lvl, _ := logger.ParseLevel(l.Level)
	return lvl
}

// ── Loading ──────────────────────────────────────────────────────

// LoadOptions selects the sources Load reads.
type LoadOptions struct {
	// File is an explicit config file. When empty, config.toml under
	// DefaultDir is read if it exists.
	File string
	// EnvFile is a dotenv file merged into the environment. Existing
	// variables win. Defaults to ".env"; a missing file is ignored.
	EnvFile string
	// Flags are command-line overrides. Only flags the user changed
	// take effect; see FlagKeys for the names bound.
	Flags *pflag.FlagSet
}

// FlagKeys maps flag names to the config keys they override.
var FlagKeys = map[string]string{
	"backend":       "completion.backend",
	"model":         "completion.model",
	"window":        "completion.window",
	"reply-timeout": "completion.reply_timeout",
	"speech":        "speech.enabled",
	"whisper-model": "speech.whisper_model",
	"voice":         "voice.enabled",
	"log-level":     "log.level",
	"log-file":      "log.file",
}

// Secondary environment names accepted for credentials.
var envAliases = map[string][]string{
	"completion.api_key":         {"GEMINI_API_KEY", "GPT_CHAT_KEY"},
	"completion.openai_endpoint": {"GPT_CHAT_ENDPOINT"},
	"voice.azure_key":            {speech.EnvAzureSpeechKey},
	"voice.azure_region":         {speech.EnvAzureSpeechRegion},
}

// Keys without a default. Unmarshal only consults AutomaticEnv for keys
// viper already knows, so these are bound to their MAITRI_ name.
var undefaultedKeys = []string{"completion.temperature"}

// DefaultDir returns $XDG_CONFIG_HOME/maitri (or the platform
// equivalent).
func DefaultDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".maitri"
	}
	return filepath.Join(dir, "maitri")
}

// Load builds the effective configuration.
func Load(opts LoadOptions) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")
	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(DefaultDir())
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, aliases := range envAliases {
		names := append([]string{envName(key)}, aliases...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("config: bind env %s: %w", key, err)
		}
	}
	for _, key := range undefaultedKeys {
		if err := v.BindEnv(key, envName(key)); err != nil {
			return nil, fmt.Errorf("config: bind env %s: %w", key, err)
		}
	}

	if opts.Flags != nil {
		for name, key := range FlagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("config: bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("completion.backend", BackendGemini)
	v.SetDefault("completion.api_key", "")
	v.SetDefault("completion.model", completion.DefaultModel)
	v.SetDefault("completion.base_url", completion.DefaultBaseURL)
	v.SetDefault("completion.window", completion.DefaultWindow)
	v.SetDefault("completion.system_prompt", completion.PromptCompanion)
	v.SetDefault("completion.http_timeout", 60*time.Second)
	v.SetDefault("completion.reply_timeout", 60*time.Second)
	v.SetDefault("completion.vertex_project", "")
	v.SetDefault("completion.vertex_location", "")
	v.SetDefault("completion.openai_endpoint", "")
	v.SetDefault("completion.openai_model", "")
	v.SetDefault("completion.echo_delay", completion.DefaultEchoDelay)
	v.SetDefault("completion.echo_reply", completion.DefaultEchoReply)

	v.SetDefault("speech.enabled", false)
	v.SetDefault("speech.whisper_bin", speech.DefaultWhisperBin)
	v.SetDefault("speech.whisper_model", "bin/ggml-small.bin")
	v.SetDefault("speech.locale", speech.DefaultLocale)
	v.SetDefault("speech.chunk", speech.DefaultChunk)
	v.SetDefault("speech.max_listen", speech.DefaultMaxListen)
	v.SetDefault("speech.temp_dir", speech.DefaultWhisperTemp)

	v.SetDefault("voice.enabled", false)
	v.SetDefault("voice.azure_key", "")
	v.SetDefault("voice.azure_region", "")
	v.SetDefault("voice.voice", speech.DefaultVoice)

	v.SetDefault("log.level", "normal")
	v.SetDefault("log.file", ".maitri-logs/maitri.log")
}

// Validate rejects settings no component can run with. A missing
// credential is not an error here; it is reported per reply.
func (c *Config) Validate() error {
	switch c.Completion.Backend {
	case BackendGemini, BackendVertex, BackendOpenAI, BackendEcho:
	default:
		return fmt.Errorf("config: unknown completion backend %q (want one of %s, %s, %s, %s)",
			c.Completion.Backend, BackendGemini, BackendVertex, BackendOpenAI, BackendEcho)
	}
	if c.Completion.Window <= 0 {
		return fmt.Errorf("config: completion.window must be positive, got %d", c.Completion.Window)
	}
	for name, d := range map[string]time.Duration{
		"completion.http_timeout":  c.Completion.HTTPTimeout,
		"completion.reply_timeout": c.Completion.ReplyTimeout,
		"completion.echo_delay":    c.Completion.EchoDelay,
		"speech.max_listen":        c.Speech.MaxListen,
	} {
		if d < 0 {
			return fmt.Errorf("config: %s must not be negative, got %s", name, d)
		}
	}
	if c.Speech.Chunk <= 0 {
		return fmt.Errorf("config: speech.chunk must be positive, got %s", c.Speech.Chunk)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}
	return nil
}

// ── Printing ─────────────────────────────────────────────────────

// fileView mirrors Config in the shape of config.toml. Durations are
// written as strings so the output can be read back.
type fileView struct {
	Completion struct {
		Backend        string   `toml:"backend"`
		APIKey         string   `toml:"api_key"`
		Model          string   `toml:"model"`
		BaseURL        string   `toml:"base_url"`
		Window         int      `toml:"window"`
		Temperature    *float64 `toml:"temperature,omitempty"`
		SystemPrompt   string   `toml:"system_prompt"`
		HTTPTimeout    string   `toml:"http_timeout"`
		ReplyTimeout   string   `toml:"reply_timeout"`
		VertexProject  string   `toml:"vertex_project"`
		VertexLocation string   `toml:"vertex_location"`
		OpenAIEndpoint string   `toml:"openai_endpoint"`
		OpenAIModel    string   `toml:"openai_model"`
		EchoDelay      string   `toml:"echo_delay"`
		EchoReply      string   `toml:"echo_reply"`
	} `toml:"completion"`
	Speech struct {
		Enabled      bool   `toml:"enabled"`
		WhisperBin   string `toml:"whisper_bin"`
		WhisperModel string `toml:"whisper_model"`
		Locale       string `toml:"locale"`
		Chunk        string `toml:"chunk"`
		MaxListen    string `toml:"max_listen"`
		TempDir      string `toml:"temp_dir"`
	} `toml:"speech"`
	Voice struct {
		Enabled     bool   `toml:"enabled"`
		AzureKey    string `toml:"azure_key"`
		AzureRegion string `toml:"azure_region"`
		Voice       string `toml:"voice"`
	} `toml:"voice"`
	Log struct {
		Level string `toml:"level"`
		File  string `toml:"file"`
	} `toml:"log"`
}

// Encode writes c as TOML with secrets masked.
func (c *Config) Encode(w io.Writer) error {
	var f fileView

	f.Completion.Backend = c.Completion.Backend
	f.Completion.APIKey = mask(c.Completion.APIKey)
	f.Completion.Model = c.Completion.Model
	f.Completion.BaseURL = c.Completion.BaseURL
	f.Completion.Window = c.Completion.Window
	f.Completion.Temperature = c.Completion.Temperature
	f.Completion.SystemPrompt = c.Completion.SystemPrompt
	f.Completion.HTTPTimeout = c.Completion.HTTPTimeout.String()
	f.Completion.ReplyTimeout = c.Completion.ReplyTimeout.String()
	f.Completion.VertexProject = c.Completion.VertexProject
	f.Completion.VertexLocation = c.Completion.VertexLocation
	f.Completion.OpenAIEndpoint = c.Completion.OpenAIEndpoint
	f.Completion.OpenAIModel = c.Completion.OpenAIModel
	f.Completion.EchoDelay = c.Completion.EchoDelay.String()
	f.Completion.EchoReply = c.Completion.EchoReply

	f.Speech.Enabled = c.Speech.Enabled
	f.Speech.WhisperBin = c.Speech.WhisperBin
	f.Speech.WhisperModel = c.Speech.WhisperModel
	f.Speech.Locale = c.Speech.Locale
	f.Speech.Chunk = c.Speech.Chunk.String()
	f.Speech.MaxListen = c.Speech.MaxListen.String()
	f.Speech.TempDir = c.Speech.TempDir

	f.Voice.Enabled = c.Voice.Enabled
	f.Voice.AzureKey = mask(c.Voice.AzureKey)
	f.Voice.AzureRegion = c.Voice.AzureRegion
	f.Voice.Voice = c.Voice.Voice

	f.Log.Level = c.Log.Level
	f.Log.File = c.Log.File

	if err := toml.NewEncoder(w).Encode(f); err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	return nil
}

// mask keeps the last four characters of a secret.
func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
