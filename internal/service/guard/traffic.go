package guard

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// TrafficConfig sets the per-minute counts at which spike warnings fire.
type TrafficConfig struct {
	GlobalPerMinute int
	PerIPPerMinute  int
}

// TrafficMonitor keeps coarse per-minute request counters and logs a warning
// each time a counter reaches a multiple of its threshold, so a sustained
// spike keeps alerting instead of firing once. Observability only; it never
// blocks a request.
type TrafficMonitor struct {
	mu           sync.Mutex
	cfg          TrafficConfig
	globalCounts map[int64]int
	ipCounts     map[string]int
	now          func() time.Time
	warnf        func(format string, args ...any)
}

// NewTrafficMonitor creates a monitor with the given alert thresholds.
func NewTrafficMonitor(cfg TrafficConfig) *TrafficMonitor {
	return &TrafficMonitor{
		cfg:          cfg,
		globalCounts: make(map[int64]int),
		ipCounts:     make(map[string]int),
		now:          time.Now,
		warnf:        log.Printf,
	}
}

// Record counts one request for the current minute, pruning counters older
// than two minutes.
func (m *TrafficMonitor) Record(ip, sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	minute := m.now().Unix() / 60
	m.pruneLocked(minute)

	global := m.globalCounts[minute] + 1
	m.globalCounts[minute] = global

	ipKey := fmt.Sprintf("%d:%s", minute, ip)
	perIP := m.ipCounts[ipKey] + 1
	m.ipCounts[ipKey] = perIP

	if m.cfg.GlobalPerMinute > 0 && global >= m.cfg.GlobalPerMinute && global%m.cfg.GlobalPerMinute == 0 {
		m.warnf("[chatbot] global traffic spike minute=%d requests=%d threshold=%d", minute, global, m.cfg.GlobalPerMinute)
	}

	if m.cfg.PerIPPerMinute > 0 && perIP >= m.cfg.PerIPPerMinute && perIP%m.cfg.PerIPPerMinute == 0 {
		m.warnf("[chatbot] per-ip traffic spike minute=%d ip=%s session=%s requests=%d threshold=%d", minute, ip, sessionID, perIP, m.cfg.PerIPPerMinute)
	}
}

func (m *TrafficMonitor) pruneLocked(currentMinute int64) {
	for minute := range m.globalCounts {
		if minute < currentMinute-2 {
			delete(m.globalCounts, minute)
		}
	}

	for key := range m.ipCounts {
		var minute int64
		if _, err := fmt.Sscanf(key, "%d:", &minute); err == nil && minute < currentMinute-2 {
			delete(m.ipCounts, key)
		}
	}
}
