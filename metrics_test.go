package guard

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsIncAndValue(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Inc(MetricCheckPassed)
	m.Inc(MetricCheckPassed)
	m.Inc(MetricCheckDenied)

	if got := m.Value(MetricCheckPassed); got != 2 {
		t.Fatalf("Value(passed) = %d", got)
	}
	if got := m.Value(MetricCheckDenied); got != 1 {
		t.Fatalf("Value(denied) = %d", got)
	}
	if got := m.Value(MetricIncident); got != 0 {
		t.Fatalf("Value(incident) = %d", got)
	}
}

func TestMetricsDisabled(t *testing.T) {
	m := NewMetrics(MetricsConfig{})
	m.Inc(MetricCheckPassed)
	m.Observe(MetricCheckLatency, time.Millisecond)

	if m.Value(MetricCheckPassed) != 0 {
		t.Fatal("disabled metrics recorded a count")
	}
	snap := m.Snapshot()
	if len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatalf("disabled snapshot = %+v", snap)
	}

	var nilMetrics *Metrics
	nilMetrics.Inc(MetricCheckPassed)
	nilMetrics.Observe(MetricCheckLatency, time.Millisecond)
	if nilMetrics.Value(MetricCheckPassed) != 0 {
		t.Fatal("nil metrics recorded a count")
	}
}

func TestMetricsLatencyBuckets(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	samples := []struct {
		d      time.Duration
		bucket int
	}{
		{time.Millisecond, 0},
		{5 * time.Millisecond, 0},
		{7 * time.Millisecond, 1},
		{20 * time.Millisecond, 2},
		{40 * time.Millisecond, 3},
		{90 * time.Millisecond, 4},
		{200 * time.Millisecond, 5},
		{400 * time.Millisecond, 6},
		{2 * time.Second, 7},
	}
	for _, s := range samples {
		m.Observe(MetricCheckLatency, s.d)
	}

	buckets := m.Snapshot().Histograms[MetricCheckLatency]
	if len(buckets) != 8 {
		t.Fatalf("bucket count = %d", len(buckets))
	}
	want := []uint64{2, 1, 1, 1, 1, 1, 1, 1}
	for i := range want {
		if buckets[i] != want[i] {
			t.Fatalf("bucket[%d] = %d, want %d (all %v)", i, buckets[i], want[i], buckets)
		}
	}
}

func TestMetricsSnapshotIsCopy(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Inc(MetricCheckPassed)

	snap := m.Snapshot()
	snap.Counters[MetricCheckPassed] = 999
	snap.Histograms[MetricCheckLatency][0] = 999

	if m.Value(MetricCheckPassed) != 1 {
		t.Fatal("snapshot mutation reached live counters")
	}
	if m.Snapshot().Histograms[MetricCheckLatency][0] != 0 {
		t.Fatal("snapshot mutation reached live histogram")
	}
}

func TestMetricsConcurrentInc(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 16
	const perGoroutine = 1000

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				m.Inc(MetricCheckPassed)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricCheckPassed); got != goroutines*perGoroutine {
		t.Fatalf("Value = %d, want %d", got, goroutines*perGoroutine)
	}
}
