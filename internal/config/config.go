package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Port          int
	Bind          string
	RoomTTL       time.Duration
	SweepInterval time.Duration
	RoundDelay    time.Duration
	PollInterval  time.Duration
	LogLevel      string
	LogPretty     bool
	// BaseURL is the public origin used in share links; empty means derive
	// it from the request.
	BaseURL string
}

func Default() Config {
	return Config{
		Port:          8080,
		Bind:          "0.0.0.0",
		RoomTTL:       30 * time.Minute,
		SweepInterval: 30 * time.Minute,
		RoundDelay:    2 * time.Second,
		PollInterval:  time.Second,
		LogLevel:      "info",
	}
}

// Load reads the configuration from the environment only.
func Load() Config {
	var cfg Config
	BindFlags(pflag.NewFlagSet("config", pflag.ContinueOnError), &cfg)
	return cfg
}

// BindFlags registers every setting on fs and seeds it from the environment.
// Flags given on the command line win over the environment; values that do
// not parse keep the default.
func BindFlags(fs *pflag.FlagSet, cfg *Config) *viper.Viper {
	def := Default()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.IntVarP(&cfg.Port, "port", "p", def.Port, "port to listen on (env: PORT)")
	fs.StringVarP(&cfg.Bind, "bind", "b", def.Bind, "address to bind to (env: BIND)")
	fs.DurationVar(&cfg.RoomTTL, "room-ttl", def.RoomTTL, "idle time before a room is swept (env: ROOM_TTL)")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", def.SweepInterval, "time between room sweeps (env: SWEEP_INTERVAL)")
	fs.DurationVar(&cfg.RoundDelay, "round-delay", def.RoundDelay, "pause before the next word once everyone finished (env: ROUND_DELAY)")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", def.PollInterval, "client polling period (env: POLL_INTERVAL)")
	fs.StringVar(&cfg.LogLevel, "log-level", def.LogLevel, "trace, debug, info, warn or error (env: LOG_LEVEL)")
	fs.BoolVar(&cfg.LogPretty, "log-pretty", def.LogPretty, "human readable console logs (env: LOG_PRETTY)")
	fs.StringVar(&cfg.BaseURL, "base-url", def.BaseURL, "public origin for share links (env: BASE_URL)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	return v
}

func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if net.ParseIP(c.Bind) == nil && c.Bind != "localhost" {
		return fmt.Errorf("invalid bind address: %q", c.Bind)
	}
	for name, d := range map[string]time.Duration{
		"room-ttl":       c.RoomTTL,
		"sweep-interval": c.SweepInterval,
		"round-delay":    c.RoundDelay,
		"poll-interval":  c.PollInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("base-url must be an absolute URL such as https://example.com")
		}
	}
	return nil
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}
