package config

import (
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/bodymap/bodymap/internal/collab"
	"github.com/bodymap/bodymap/internal/engine"
	"github.com/bodymap/bodymap/internal/history"
	"github.com/bodymap/bodymap/internal/stroke"
)

// Config is the relay server configuration.
type Config struct {
	Port            int        `envconfig:"PORT" default:"8080"`
	AllowedOrigins  []string   `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
	LogLevel        slog.Level `envconfig:"LOG_LEVEL" default:"info"`
	MaxMessageBytes int64      `envconfig:"MAX_MESSAGE_BYTES" default:"1048576"`
	MDNSEnabled     bool       `envconfig:"MDNS_ENABLED" default:"false"`
	MDNSInstance    string     `envconfig:"MDNS_INSTANCE"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// OriginPatterns converts the allowed origins to the host patterns the
// websocket handshake checks against.
func (c *Config) OriginPatterns() []string {
	out := make([]string, 0, len(c.AllowedOrigins))
	for _, origin := range c.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			origin = u.Host
		}
		out = append(out, origin)
	}
	return out
}

// Engine tunes the drawing engine and its room session. Variables use the
// BODYMAP_ prefix, e.g. BODYMAP_HISTORY_SIZE.
type Engine struct {
	HistorySize       int           `envconfig:"HISTORY_SIZE" default:"100"`
	HardLimit         int           `envconfig:"MARK_HARD_LIMIT" default:"5000"`
	SoftLimit         int           `envconfig:"MARK_SOFT_LIMIT" default:"4000"`
	CleanupInterval   time.Duration `envconfig:"CLEANUP_INTERVAL" default:"30s"`
	KeepRecent        int           `envconfig:"KEEP_RECENT" default:"1000"`
	ThinStride        int           `envconfig:"THIN_STRIDE" default:"3"`
	PointerInterval   time.Duration `envconfig:"POINTER_INTERVAL" default:"8ms"`
	CursorInterval    time.Duration `envconfig:"CURSOR_INTERVAL" default:"50ms"`
	StateRequestDelay time.Duration `envconfig:"STATE_REQUEST_DELAY" default:"500ms"`
}

func LoadEngine() (*Engine, error) {
	var cfg Engine
	if err := envconfig.Process("bodymap", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultEngine returns the engine configuration with every default applied.
func DefaultEngine() *Engine {
	return &Engine{
		HistorySize:       history.DefaultMaxSize,
		HardLimit:         stroke.DefaultHardLimit,
		SoftLimit:         stroke.DefaultSoftLimit,
		CleanupInterval:   stroke.DefaultCleanupInterval,
		KeepRecent:        stroke.DefaultKeepRecent,
		ThinStride:        stroke.DefaultThinStride,
		PointerInterval:   engine.DefaultPointerInterval,
		CursorInterval:    collab.DefaultCursorInterval,
		StateRequestDelay: collab.DefaultStateRequestDelay,
	}
}

// Options converts the configuration to engine options for playerID.
func (c *Engine) Options(playerID string) engine.Options {
	return engine.Options{
		PlayerID:    playerID,
		HistorySize: c.HistorySize,
		Optimizer: stroke.OptimizerConfig{
			HardLimit:       c.HardLimit,
			SoftLimit:       c.SoftLimit,
			CleanupInterval: c.CleanupInterval,
			KeepRecent:      c.KeepRecent,
			ThinStride:      c.ThinStride,
		},
		PointerInterval: c.PointerInterval,
	}
}

// SessionOptions converts the configuration to session options.
func (c *Engine) SessionOptions(e *engine.Engine, ch collab.Channel) collab.SessionOptions {
	return collab.SessionOptions{
		Engine:            e,
		Channel:           ch,
		StateRequestDelay: c.StateRequestDelay,
		CursorInterval:    c.CursorInterval,
	}
}
