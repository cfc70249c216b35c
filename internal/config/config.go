package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	toml "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment variables overriding config values.
const EnvPrefix = "SOCKBENCH_"

type Config struct {
	// Host is the bind address for every listener.
	Host string `koanf:"host"`

	// PublicDir is the root the origin servers and the dashboard serve from.
	PublicDir string `koanf:"public_dir"`

	// ServerName is the value of the Server response header.
	ServerName string `koanf:"server_name"`

	ThreadingPort int `koanf:"threading_port"`
	ForkingPort   int `koanf:"forking_port"`
	ControlPort   int `koanf:"control_port"`

	// ReadTimeout bounds how long an origin server waits for a request
	// to arrive on an accepted connection.
	ReadTimeout time.Duration `koanf:"read_timeout"`

	Bench   BenchConfig   `koanf:"bench"`
	Logging LoggingConfig `koanf:"logging"`
}

// BenchConfig holds orchestrator-side settings.
type BenchConfig struct {
	// RequestTimeout is the connect+read deadline for one benchmark request.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// ProbeTimeout is the dial timeout for target reachability checks.
	ProbeTimeout time.Duration `koanf:"probe_timeout"`

	// MaxWorkers caps concurrent connections during a parallel run.
	MaxWorkers int `koanf:"max_workers"`
}

type LoggingConfig struct {
	Level string `koanf:"level"`
}

func defaultConfig() *Config {
	return &Config{
		Host:          "0.0.0.0",
		PublicDir:     "public",
		ServerName:    "socketbench",
		ThreadingPort: 8080,
		ForkingPort:   8081,
		ControlPort:   8082,
		ReadTimeout:   30 * time.Second,
		Bench: BenchConfig{
			RequestTimeout: 60 * time.Second,
			ProbeTimeout:   2 * time.Second,
			MaxWorkers:     100,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load builds the configuration: defaults, then an optional TOML file, then
// SOCKBENCH_* environment variables. A .env file in the working directory is
// read first so it can feed the env provider.
func Load(configPath string) (*Config, error) {
	// Missing .env is not an error.
	_ = godotenv.Load()

	cfg := defaultConfig()

	k := koanf.New(".")

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		s = strings.ToLower(s)

		// BENCH_ names the nested section; the remaining underscores are
		// literal field-name underscores.
		if rest, ok := strings.CutPrefix(s, "bench_"); ok {
			return "bench." + rest
		}
		if rest, ok := strings.CutPrefix(s, "logging_"); ok {
			return "logging." + rest
		}
		return s
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			TagName:          "koanf",
			WeaklyTypedInput: true,
			Result:           cfg,
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	for name, port := range map[string]int{
		"threading_port": c.ThreadingPort,
		"forking_port":   c.ForkingPort,
		"control_port":   c.ControlPort,
	} {
		if port < 1 || port > 65535 {
			return fmt.Errorf("%s out of range: %d", name, port)
		}
	}
	if c.Bench.MaxWorkers < 1 {
		return fmt.Errorf("bench.max_workers must be positive, got %d", c.Bench.MaxWorkers)
	}
	if c.Bench.RequestTimeout <= 0 {
		return fmt.Errorf("bench.request_timeout must be positive")
	}
	return nil
}
