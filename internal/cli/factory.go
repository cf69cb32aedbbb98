package cli

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	weft "github.com/tapestrylab/weft"
	"github.com/tapestrylab/weft/internal/logging"
	"github.com/tapestrylab/weft/pkg/adapters/file"
	"github.com/tapestrylab/weft/pkg/adapters/genhttp"
	weftHTTP "github.com/tapestrylab/weft/pkg/adapters/http"
	"github.com/tapestrylab/weft/pkg/adapters/memory"
	"github.com/tapestrylab/weft/pkg/adapters/redis"
	"github.com/tapestrylab/weft/pkg/observability"
	"github.com/tapestrylab/weft/pkg/persistence/middleware"
	"github.com/tapestrylab/weft/pkg/ports"
	"github.com/tapestrylab/weft/pkg/session"
)

// NewLogger builds the logger the config asks for.
func NewLogger(cfg *Config) *slog.Logger {
	level := ParseLevel(cfg.Log.Level)
	if cfg.Log.Format == "json" {
		return logging.NewJSON(level)
	}
	return logging.New(level)
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewGenerator builds the generation client from config.
func NewGenerator(cfg *Config, logger *slog.Logger) ports.Generator {
	opts := []genhttp.Option{genhttp.WithLogger(logger)}
	if cfg.Backend.APIKey != "" {
		opts = append(opts, genhttp.WithAPIKey(cfg.Backend.APIKey))
	}
	if cfg.Backend.Path != "" {
		opts = append(opts, genhttp.WithPath(cfg.Backend.Path))
	}
	return genhttp.New(cfg.Backend.URL, opts...)
}

// NewSessionManager builds the snapshot store and manager from config.
// Persistence middleware wraps the store inside out: encryption sits
// closest to the backend, PII masking runs first on save.
func NewSessionManager(cfg *Config, logger *slog.Logger) *session.Manager {
	opts := []session.Option{session.WithLogger(logger)}

	var store ports.SnapshotStore
	switch cfg.Sessions.Store {
	case "redis":
		rs := redis.New(
			cfg.Sessions.Redis.Addr,
			cfg.Sessions.Redis.Password,
			cfg.Sessions.Redis.DB,
			redis.WithPrefix(cfg.Sessions.Redis.Prefix),
			redis.WithTTL(time.Duration(cfg.Sessions.TTL)),
		)
		if cfg.Sessions.Redis.Lock {
			locker := redis.NewLocker(rs.Client(), cfg.Sessions.Redis.Prefix+"lock:")
			opts = append(opts, session.WithLocker(locker))
		}
		store = rs
	case "file":
		store = file.NewStore(cfg.Sessions.File.Dir)
	default:
		store = memory.NewStore()
	}

	// Keys were validated with the config; a failure here means the
	// caller skipped Validate.
	active, fallbacks, err := cfg.EncryptionKeys()
	if err != nil {
		panic(err)
	}
	if active != nil {
		store = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallbacks,
		})(store)
	}
	if cfg.Sessions.PII.Mask {
		store = middleware.NewPIIMiddleware(cfg.Sessions.PII.Patterns)(store)
	}
	return session.NewManager(store, opts...)
}

// NewEngineFactory builds the per-session engine constructor used by the
// HTTP adapter. All engines share the generator and the metrics registry.
func NewEngineFactory(cfg *Config, logger *slog.Logger, reg prometheus.Registerer) weftHTTP.EngineFactory {
	gen := NewGenerator(cfg, logger)

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled && reg != nil {
		metrics = observability.NewMetrics(reg)
	}

	return func() *weft.Engine {
		opts := []weft.Option{weft.WithLogger(logger)}
		if cfg.Generation.MaxRetries != nil {
			opts = append(opts, weft.WithMaxRetries(*cfg.Generation.MaxRetries))
		}
		if metrics != nil {
			opts = append(opts, weft.WithMetrics(metrics))
		}
		return weft.New(gen, opts...)
	}
}
