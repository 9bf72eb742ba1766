package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type AppConfig struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// Empty RedisURL selects the in-process store.
	RedisURL    string `env:"REDIS_URL"`
	DatabaseURL string `env:"DATABASE_URL"`

	ResultWebhookURL string        `env:"RESULT_WEBHOOK_URL"`
	WebhookTimeout   time.Duration `env:"RESULT_WEBHOOK_TIMEOUT" envDefault:"5s"`

	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	RoomTTL      time.Duration `env:"ROOM_TTL" envDefault:"10m"`
	TimeControls []string      `env:"TIME_CONTROLS" envDefault:"5,10,30" envSeparator:","`
	RoomMinutes  int           `env:"ROOM_TIME_CONTROL" envDefault:"10"`
	BotMinutes   int           `env:"BOT_TIME_CONTROL" envDefault:"10"`
	BotMoveDelay time.Duration `env:"BOT_MOVE_DELAY" envDefault:"500ms"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	MsgOverrideDir string   `env:"MSG_OVERRIDE_DIR"`

	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat  string `env:"LOG_FORMAT" envDefault:"json"`
	LogConsole bool   `env:"LOG_TO_CONSOLE" envDefault:"true"`
	LogFile    string `env:"LOG_FILE"`
	LogCaller  bool   `env:"LOG_CALLER" envDefault:"false"`
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) normalize() error {
	c.HTTPAddr = strings.TrimSpace(c.HTTPAddr)
	c.RedisURL = strings.TrimSpace(c.RedisURL)
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
	c.ResultWebhookURL = strings.TrimSpace(c.ResultWebhookURL)

	controls := make([]string, 0, len(c.TimeControls))
	for _, raw := range c.TimeControls {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return fmt.Errorf("TIME_CONTROLS: invalid minutes %q", s)
		}
		controls = append(controls, strconv.Itoa(n))
	}
	c.TimeControls = controls

	origins := c.AllowedOrigins[:0]
	for _, o := range c.AllowedOrigins {
		if s := strings.TrimSpace(o); s != "" {
			origins = append(origins, s)
		}
	}
	c.AllowedOrigins = origins

	if c.HTTPAddr == "" {
		return errors.New("HTTP_ADDR is required")
	}
	if len(c.TimeControls) == 0 {
		return errors.New("TIME_CONTROLS must list at least one time control")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be greater than 0")
	}
	if c.RoomTTL <= 0 {
		return errors.New("ROOM_TTL must be greater than 0")
	}
	if c.RoomMinutes <= 0 || c.BotMinutes <= 0 {
		return errors.New("ROOM_TIME_CONTROL and BOT_TIME_CONTROL must be positive")
	}
	if c.BotMoveDelay < 0 {
		c.BotMoveDelay = 0
	}
	return nil
}
