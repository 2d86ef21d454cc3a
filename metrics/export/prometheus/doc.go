// Package prometheus renders guard engine metrics in Prometheus text
// exposition format.
//
// [NewExporter] accepts a [guard.Engine] and exposes an [net/http.Handler]
// serving all counters and the check-latency histogram. Counter names are
// prefixed guard_*_total; the histogram is guard_check_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry; callers mount
//     the Handler where they want it.
//   - Mutate engine state.
package prometheus
