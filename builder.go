package guard

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	internalaudit "github.com/repclub/guard/internal/audit"
)

// Builder assembles an [Engine]. Construction is allocation-only; the
// audit dispatch goroutine starts at Build.
type Builder struct {
	config    Config
	auditSink AuditSink
	redis     *redis.Client
	auditKey  string
	clock     func() time.Time
	built     bool
}

// New returns a Builder preloaded with defaults.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the default configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithAuditSink routes audit events to sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithRedisAudit routes audit events to a capped Redis list on client.
// An explicit WithAuditSink takes precedence.
func (b *Builder) WithRedisAudit(client *redis.Client, key string) *Builder {
	b.redis = client
	b.auditKey = key
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithClock overrides the engine clock. Tests use this to pin
// authentication-horizon comparisons.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b == nil {
		return nil, ErrEngineNotReady
	}
	if b.built {
		return nil, errors.New("guard: builder already used")
	}
	b.built = true

	if b.config.Audit.Enabled && b.config.Audit.BufferSize < 0 {
		return nil, errors.New("guard: negative audit buffer size")
	}

	sink := b.auditSink
	if sink == nil && b.redis != nil {
		sink = internalaudit.NewRedisSink(b.redis, b.auditKey, 0)
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	e := &Engine{
		config: b.config,
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    b.config.Audit.Enabled,
			BufferSize: b.config.Audit.BufferSize,
			DropIfFull: b.config.Audit.DropIfFull,
		}, sink),
		metrics: NewMetrics(b.config.Metrics),
		clock:   clock,
	}
	return e, nil
}
