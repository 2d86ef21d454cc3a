package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/repclub/guard"
)

type metricsSource interface {
	MetricsSnapshot() guard.MetricsSnapshot
	AuditDropped() uint64
}

type counterDef struct {
	id   guard.MetricID
	name string
	help string
}

var counterDefs = []counterDef{
	{id: guard.MetricCheckPassed, name: "guard_check_passed_total", help: "Access checks where every layer passed."},
	{id: guard.MetricCheckDenied, name: "guard_check_denied_total", help: "Access checks stopped by any layer."},
	{id: guard.MetricAuthenticationFailure, name: "guard_authentication_failure_total", help: "Denials at the authentication layer."},
	{id: guard.MetricMFABlocked, name: "guard_mfa_blocked_total", help: "Denials at the MFA layer."},
	{id: guard.MetricPermissionDenied, name: "guard_permission_denied_total", help: "Denials at the permission layer."},
	{id: guard.MetricRoleLevelDenied, name: "guard_role_level_denied_total", help: "Denials at the role-level layer."},
	{id: guard.MetricOwnershipDenied, name: "guard_ownership_denied_total", help: "Denials at the ownership layer."},
	{id: guard.MetricCustomDenied, name: "guard_custom_denied_total", help: "Denials at the custom layer."},
	{id: guard.MetricValidationFailure, name: "guard_validation_failure_total", help: "Checks with malformed input."},
	{id: guard.MetricIncident, name: "guard_incident_total", help: "Failures inside authorized operations."},
}

const (
	latencyName = "guard_check_latency_seconds"
	latencyHelp = "CheckAccess latency histogram."
)

var histogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// Exporter renders guard metrics in Prometheus text exposition format.
type Exporter struct {
	source metricsSource
}

// NewExporter creates an exporter reading from engine.
func NewExporter(engine *guard.Engine) *Exporter {
	return &Exporter{source: engine}
}

// NewExporterFromSource creates an exporter from a custom snapshot
// source.
func NewExporterFromSource(source metricsSource) *Exporter {
	return &Exporter{source: source}
}

// Handler returns an http.Handler serving the current metrics.
func (e *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(e.Render()))
	})
}

// Render returns the current metrics in text exposition format. A nil
// exporter or an engine with metrics disabled renders empty output.
func (e *Exporter) Render() string {
	if e == nil || e.source == nil {
		return ""
	}

	snapshot := e.source.MetricsSnapshot()
	dropped := e.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(4096)

	for _, def := range counterDefs {
		writeCounter(&b, def.name, def.help, snapshot.Counters[def.id])
	}

	if buckets, ok := snapshot.Histograms[guard.MetricCheckLatency]; ok {
		writeHistogram(&b, latencyName, latencyHelp, cumulative(buckets))
	}

	writeCounter(&b, "guard_audit_dropped_total", "Audit events discarded under dispatcher backpressure.", dropped)

	return b.String()
}

func writeCounter(b *strings.Builder, name, help string, value uint64) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(help)
	b.WriteByte('\n')
	b.WriteString("# TYPE ")
	b.WriteString(name)
	b.WriteString(" counter\n")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(value, 10))
	b.WriteByte('\n')
}

func writeHistogram(b *strings.Builder, name, help string, buckets []uint64) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(help)
	b.WriteByte('\n')
	b.WriteString("# TYPE ")
	b.WriteString(name)
	b.WriteString(" histogram\n")

	var count uint64
	for i, le := range histogramBounds {
		if i < len(buckets) {
			count = buckets[i]
		}
		b.WriteString(name)
		b.WriteString("_bucket{le=\"")
		b.WriteString(le)
		b.WriteString("\"} ")
		b.WriteString(strconv.FormatUint(count, 10))
		b.WriteByte('\n')
	}

	b.WriteString(name)
	b.WriteString("_count ")
	b.WriteString(strconv.FormatUint(count, 10))
	b.WriteByte('\n')

	// The core snapshot keeps no sum; emit a stable zero so scrapers see
	// a complete histogram family.
	b.WriteString(name)
	b.WriteString("_sum 0\n")
}

// cumulative converts per-bucket counts to the running totals the text
// format requires.
func cumulative(raw []uint64) []uint64 {
	out := make([]uint64, len(raw))
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
