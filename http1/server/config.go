package server

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

// Config is read from the environment.
type Config struct {
	BindAddress     string        `env:"BIND_ADDRESS" envDefault:"localhost"`
	Port            int           `env:"PORT" envDefault:"2345"`
	StaticRoot      string        `env:"STATIC_ROOT" envDefault:"./public"`
	DefaultDocument string        `env:"DEFAULT_DOCUMENT" envDefault:"index.html"`
	MaxConns        int64         `env:"MAX_CONNS" envDefault:"64"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	CacheSize       int           `env:"CACHE_SIZE" envDefault:"1024"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"console"`
}

func LoadConfig() (Config, error) {
	return parseConfig(env.Options{})
}

// LoadConfigFrom reads the configuration from environ instead of the process
// environment.
func LoadConfigFrom(environ map[string]string) (Config, error) {
	return parseConfig(env.Options{Environment: environ})
}

func parseConfig(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("parse config: port %d out of range", cfg.Port)
	}
	return cfg, nil
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.BindAddress, strconv.Itoa(c.Port))
}

// NewLogger builds the diagnostic logger. "console" gives human readable
// lines, "json" one object per event.
func (c Config) NewLogger(w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	switch c.LogFormat {
	case "json":
	case "console", "":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	default:
		return zerolog.Logger{}, fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}
