package poller

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"plugmon/internal/metrics"
	"plugmon/internal/models"
)

// Seams for tests.
var (
	exitProcess = func(code int) { os.Exit(code) }
	timeNow     = time.Now
)

// StatusFetcher pulls the device status from the vendor cloud.
type StatusFetcher interface {
	DeviceStatus(ctx context.Context) ([]models.StatusEntry, error)
}

// SampleStore appends telemetry samples.
type SampleStore interface {
	Insert(ctx context.Context, sample *models.TelemetrySample) error
}

// Broadcaster pushes live payloads to subscribers.
type Broadcaster interface {
	Broadcast(payload any)
}

// LatestStore caches the newest reading. Optional.
type LatestStore interface {
	Save(ctx context.Context, reading models.NormalizedReading) error
}

// Config holds poll loop tuning.
type Config struct {
	Interval         time.Duration
	FailureThreshold int
	RestartDelay     time.Duration
}

// Payload is the envelope broadcast to live subscribers.
type Payload struct {
	Type    string `json:"type"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// Poller runs the fixed-interval telemetry loop. Upstream failures accumulate in
// a consecutive-failure counter; when the threshold is reached the poller
// broadcasts an error notice and schedules a process exit so the external
// supervisor restarts it. The counter is atomic but otherwise unsynchronized:
// overlapping cycles may produce an off-by-one tick around the threshold, which
// is acceptable.
type Poller struct {
	fetcher StatusFetcher
	store   SampleStore
	hub     Broadcaster
	latest  LatestStore
	cfg     Config
	logger  *zap.Logger

	failures  atomic.Int64
	escalated atomic.Bool
}

// New builds the poller. latest may be nil.
func New(fetcher StatusFetcher, store SampleStore, hub Broadcaster, latest LatestStore, cfg Config, logger *zap.Logger) *Poller {
	return &Poller{
		fetcher: fetcher,
		store:   store,
		hub:     hub,
		latest:  latest,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run polls until the context is cancelled. Each tick runs in its own goroutine
// so a slow upstream call never delays the next tick; overlap is safe because
// persistence is append-only.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("starting poll loop", zap.Duration("interval", p.cfg.Interval))

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	go p.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poll loop stopped")
			return
		case <-ticker.C:
			go p.pollOnce(ctx)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	metrics.PollsTotal.Inc()

	status, err := p.fetcher.DeviceStatus(ctx)
	if err != nil {
		p.recordFailure(err)
		return
	}

	p.failures.Store(0)
	metrics.ConsecutiveFailures.Set(0)

	now := timeNow().UTC()
	sample := &models.TelemetrySample{RecordedAt: now, Status: status}
	if err := p.store.Insert(ctx, sample); err != nil {
		metrics.PollFailuresTotal.Inc()
		p.logger.Error("failed to persist sample", zap.Error(err))
		return
	}
	metrics.LastSampleTimestamp.Set(float64(now.Unix()))

	reading := models.Normalize(now, status)
	p.hub.Broadcast(Payload{Type: "telemetry", Data: reading})

	if p.latest != nil {
		if err := p.latest.Save(ctx, reading); err != nil {
			p.logger.Warn("failed to cache latest reading", zap.Error(err))
		}
	}
}

func (p *Poller) recordFailure(err error) {
	count := p.failures.Add(1)
	metrics.PollFailuresTotal.Inc()
	metrics.ConsecutiveFailures.Set(float64(count))
	p.logger.Warn("poll failed", zap.Int64("consecutive_failures", count), zap.Error(err))

	if count < int64(p.cfg.FailureThreshold) {
		return
	}
	if !p.escalated.CompareAndSwap(false, true) {
		return
	}

	p.logger.Error("failure threshold reached, scheduling restart",
		zap.Int("threshold", p.cfg.FailureThreshold),
		zap.Duration("restart_delay", p.cfg.RestartDelay))
	p.hub.Broadcast(Payload{Type: "error", Message: "upstream unreachable, collector restarting"})

	time.AfterFunc(p.cfg.RestartDelay, func() {
		exitProcess(1)
	})
}
