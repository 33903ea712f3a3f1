package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Mode           string        `mapstructure:"mode"`
	Port           int           `mapstructure:"port"`
	StaticPath     string        `mapstructure:"static_path"`
	ReadLimit      int64         `mapstructure:"read_limit"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	Secret         string        `mapstructure:"secret"`
	LogLevel       string        `mapstructure:"log_level"`
	RevealPolicy   string        `mapstructure:"reveal_policy"`
	Backpressure   string        `mapstructure:"backpressure"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	PublicURL      string        `mapstructure:"public_url"`
	NATSURL        string        `mapstructure:"nats_url"`
	NATSSubject    string        `mapstructure:"nats_subject"`
}

// RegisterFlags adds the command line overrides. Flag names are the config
// keys with dashes.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP("mode", "m", "release", "gin mode: debug or release (env: POKER_MODE)")
	fs.IntP("port", "p", 8080, "port to listen on (env: POKER_PORT)")
	fs.String("static-path", "./web", "directory with the web client (env: POKER_STATIC_PATH)")
	fs.String("log-level", "info", "zerolog level (env: POKER_LOG_LEVEL)")
	fs.String("reveal-policy", "strict", "strict or backfill (env: POKER_REVEAL_POLICY)")
	fs.String("backpressure", "drop", "what to do with slow peers: drop or kick (env: POKER_BACKPRESSURE)")
	fs.Duration("idle-timeout", 0, "close rooms idle for this long, 0 disables (env: POKER_IDLE_TIMEOUT)")
	fs.String("public-url", "", "base URL used in QR join links (env: POKER_PUBLIC_URL)")
	fs.String("nats-url", "", "mirror room events to this NATS server (env: POKER_NATS_URL)")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("secret", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("reveal_policy", "strict")
	v.SetDefault("backpressure", "drop")
	v.SetDefault("sweep_interval", "1m")
	v.SetDefault("idle_timeout", "0s")
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("public_url", "")
	v.SetDefault("nats_url", "")
	v.SetDefault("nats_subject", "poker.rooms")
}

// Load reads config/config.<CONFIG_ENV>.yaml (CONFIG_ENV defaults to dev).
func Load(flags *pflag.FlagSet) (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env), flags)
}

// LoadFile layers defaults, the yaml file, POKER_* env vars and changed
// flags, in increasing priority. A missing file is not an error.
func LoadFile(fileName string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("POKER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			if err := v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("bind flags: %w", bindErr)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config %s: %w", fileName, err)
			}
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("invalid mode %q", c.Mode)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	if c.PingPeriod <= 0 || c.PongWait <= c.PingPeriod {
		return fmt.Errorf("pong_wait (%s) must exceed ping_period (%s)", c.PongWait, c.PingPeriod)
	}
	if c.SendBuffer < 1 {
		return fmt.Errorf("send_buffer must be positive: %d", c.SendBuffer)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("idle_timeout must not be negative: %s", c.IdleTimeout)
	}
	return nil
}

// Level returns the configured zerolog level.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
