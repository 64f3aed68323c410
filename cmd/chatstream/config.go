package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// errHelp is returned by loadConfig when usage was requested.
var errHelp = errors.New("help requested")

// Config is the resolved command configuration. Precedence, highest first:
// flags, CHATSTREAM_* environment variables, the --config file, defaults.
type Config struct {
	Backend       string   `mapstructure:"backend" validate:"oneof=http anthropic gemini"`
	URL           string   `mapstructure:"url" validate:"omitempty,url"`
	APIKey        string   `mapstructure:"api_key" validate:"required_unless=Backend http"`
	Model         string   `mapstructure:"model"`
	MaxTokens     int      `mapstructure:"max_tokens" validate:"gte=0"`
	ContextFile   string   `mapstructure:"context_file"`
	ClientID      string   `mapstructure:"client_id"`
	UserID        string   `mapstructure:"user_id"`
	FragmentPaths []string `mapstructure:"fragment_paths"`
	MaxPending    int      `mapstructure:"max_pending" validate:"gte=0"`
	KeepPartial   bool     `mapstructure:"keep_partial"`
	Prompt        string   `mapstructure:"prompt"`
	LogFile       string   `mapstructure:"log_file"`
	LogFormat     string   `mapstructure:"log_format" validate:"oneof=text json"`
	LogLevel      string   `mapstructure:"log_level" validate:"oneof=debug info warn error"`
}

// backendKeyEnv names the conventional API key variable of each backend.
var backendKeyEnv = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("chatstream", pflag.ContinueOnError)
	fs.String("config", "", "path to a YAML config file")
	fs.String("backend", "http", "backend: http, anthropic, gemini")
	fs.String("url", "", "endpoint URL for the http backend")
	fs.String("api-key", "", "API key (default: backend's conventional env var)")
	fs.String("model", "", "model ID (anthropic and gemini)")
	fs.Int("max-tokens", 0, "maximum reply length (anthropic and gemini)")
	fs.String("context-file", "", "file with system instructions sent on every turn")
	fs.String("client-id", "", "client identifier sent with requests")
	fs.String("user-id", "", "user identifier sent with requests")
	fs.StringSlice("fragment-paths", nil, "JSON paths holding the text fragment of a payload")
	fs.Int("max-pending", 0, "maximum buffered bytes without a complete event (default 1 MiB)")
	fs.Bool("keep-partial", false, "keep the partial reply of a cancelled turn")
	fs.StringP("prompt", "p", "", "send one message, stream the reply to stdout and exit")
	fs.String("log-file", "", "write logs to this file")
	fs.String("log-format", "text", "log format: text, json")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.BoolP("help", "h", false, "show help")
	return fs
}

// loadConfig parses args and layers them over the environment and an
// optional config file. getenv resolves backend API key variables.
func loadConfig(args []string, getenv func(string) string, stderr io.Writer) (Config, error) {
	fs := newFlagSet()
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return Config{}, errHelp
		}
		return Config{}, err
	}
	if help, _ := fs.GetBool("help"); help {
		fmt.Fprintln(stderr, "Usage: chatstream [flags]")
		fs.PrintDefaults()
		return Config{}, errHelp
	}
	if rest := fs.Args(); len(rest) > 0 {
		return Config{}, fmt.Errorf("unexpected argument: %s", rest[0])
	}

	v := viper.New()
	v.SetEnvPrefix("CHATSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "help" {
			return
		}
		_ = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.APIKey == "" {
		if name, ok := backendKeyEnv[cfg.Backend]; ok {
			cfg.APIKey = getenv(name)
		}
	}
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation error: %w", err)
	}
	if cfg.Backend == "http" && cfg.URL == "" {
		return errors.New("config validation error: url is required for the http backend")
	}
	return nil
}
