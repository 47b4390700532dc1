package workers

import (
	"chat-presence/contract"
	"chat-presence/domain/chat"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

const defaultSaturationRatio = 0.8

// SessionSource exposes the live connections to sample.
type SessionSource interface {
	Sessions() []contract.Session
}

// QueueGauge is implemented by connections that buffer outbound events.
type QueueGauge interface {
	Len() int
	Cap() int
}

// HealthSample is one periodic reading of the server load.
type HealthSample struct {
	At            time.Time
	Sessions      int
	QueuedEvents  int
	QueueCapacity int
	// Saturated lists identities whose outbound buffer is close to full,
	// the ones about to lose events to backpressure.
	Saturated  []chat.UserID
	RSSBytes   uint64
	CPUPercent float64
}

// HealthMonitor periodically samples the registry, the outbound buffer of
// every connection and the process itself.
// Reading len and cap of a buffer is non-blocking, so sampling never slows
// down the connections. A sample may be slightly stale, which is fine for
// a periodic reading.
type HealthMonitor struct {
	log             *slog.Logger
	sessions        SessionSource
	interval        time.Duration
	saturationRatio float64
	handlers        []func(HealthSample)
}

func NewHealthMonitor(log *slog.Logger, sessions SessionSource, interval time.Duration,
	handlers ...func(HealthSample)) *HealthMonitor {
	return &HealthMonitor{
		log:             log,
		sessions:        sessions,
		interval:        interval,
		saturationRatio: defaultSaturationRatio,
		handlers:        handlers,
	}
}

// Run samples every interval until ctx is done.
// Failing to read the process stats does not stop the connection sampling.
func (w *HealthMonitor) Run(ctx context.Context) error {
	w.log.Info("Starting health monitor", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		w.log.Warn("Process stats unavailable", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health monitor")
			return nil
		case <-ticker.C:
			sample := w.sample(p)
			w.report(sample)
			for _, h := range w.handlers {
				h(sample)
			}
		}
	}
}

func (w *HealthMonitor) sample(p *process.Process) HealthSample {
	sessions := w.sessions.Sessions()
	sample := HealthSample{At: time.Now().UTC(), Sessions: len(sessions)}
	for _, s := range sessions {
		gauge, ok := s.Connection.(QueueGauge)
		if !ok {
			continue
		}
		length, capacity := gauge.Len(), gauge.Cap()
		sample.QueuedEvents += length
		sample.QueueCapacity += capacity
		if capacity > 0 && float64(length) >= w.saturationRatio*float64(capacity) {
			sample.Saturated = append(sample.Saturated, s.Identity)
		}
	}
	if p != nil {
		rss, cpu, err := selfStats(p)
		if err != nil {
			w.log.Debug("Failed to collect self stats", "error", err)
		} else {
			sample.RSSBytes, sample.CPUPercent = rss, cpu
		}
	}
	return sample
}

func (w *HealthMonitor) report(sample HealthSample) {
	w.log.Debug("Health sample",
		"sessions", sample.Sessions,
		"queued_events", sample.QueuedEvents,
		"queue_capacity", sample.QueueCapacity,
		"rss_bytes", sample.RSSBytes,
		"cpu_percent", sample.CPUPercent)
	if len(sample.Saturated) > 0 {
		w.log.Warn("Connections close to backpressure", "count", len(sample.Saturated), "user_ids", sample.Saturated)
	}
}

// selfStats retrieves memory and CPU usage of the given process.
func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
