package guard

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func testMonitor(global, perIP int) (*TrafficMonitor, *[]string, *time.Time) {
	monitor := NewTrafficMonitor(TrafficConfig{
		GlobalPerMinute: global,
		PerIPPerMinute:  perIP,
	})

	warnings := &[]string{}
	monitor.warnf = func(format string, args ...any) {
		*warnings = append(*warnings, fmt.Sprintf(format, args...))
	}

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	monitor.now = func() time.Time { return now }
	return monitor, warnings, &now
}

func TestTrafficWarnsAtThresholdMultiples(t *testing.T) {
	monitor, warnings, _ := testMonitor(100, 3)

	for i := 0; i < 7; i++ {
		monitor.Record("1.2.3.4", "session-a")
	}

	// Threshold 3 fires at counts 3 and 6.
	perIP := 0
	for _, warning := range *warnings {
		if strings.Contains(warning, "per-ip traffic spike") {
			perIP++
		}
	}
	if perIP != 2 {
		t.Fatalf("expected 2 per-ip warnings, got %d (%v)", perIP, *warnings)
	}
}

func TestTrafficGlobalWarning(t *testing.T) {
	monitor, warnings, _ := testMonitor(4, 100)

	for i := 0; i < 4; i++ {
		monitor.Record(fmt.Sprintf("10.0.0.%d", i), "session-a")
	}

	found := false
	for _, warning := range *warnings {
		if strings.Contains(warning, "global traffic spike") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a global spike warning, got %v", *warnings)
	}
}

func TestTrafficCountersResetPerMinute(t *testing.T) {
	monitor, warnings, now := testMonitor(100, 2)

	monitor.Record("1.2.3.4", "session-a")
	*now = now.Add(time.Minute)
	monitor.Record("1.2.3.4", "session-a")

	if len(*warnings) != 0 {
		t.Fatalf("expected no warnings across minute boundaries, got %v", *warnings)
	}
}

func TestTrafficPrunesOldMinutes(t *testing.T) {
	monitor, _, now := testMonitor(100, 100)

	monitor.Record("1.2.3.4", "session-a")
	*now = now.Add(10 * time.Minute)
	monitor.Record("1.2.3.4", "session-a")

	monitor.mu.Lock()
	defer monitor.mu.Unlock()
	if len(monitor.globalCounts) != 1 {
		t.Fatalf("expected stale global counters pruned, have %d", len(monitor.globalCounts))
	}
	if len(monitor.ipCounts) != 1 {
		t.Fatalf("expected stale ip counters pruned, have %d", len(monitor.ipCounts))
	}
}
