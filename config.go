package guard

// Config holds engine construction settings. Instances are configured
// once and treated as immutable after Build.
type Config struct {
	Audit   AuditConfig
	Metrics MetricsConfig
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled bool
	// BufferSize bounds the in-flight event queue.
	BufferSize int
	// DropIfFull discards events instead of blocking when the buffer is
	// full; drops are counted and visible via Engine.AuditDropped.
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
	// EnableLatencyHistograms additionally records CheckAccess latency
	// into fixed buckets.
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}
