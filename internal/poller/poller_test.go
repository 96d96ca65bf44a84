package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"plugmon/internal/models"
)

type fakeFetcher struct {
	mu     sync.Mutex
	status []models.StatusEntry
	err    error
}

func (f *fakeFetcher) DeviceStatus(ctx context.Context) ([]models.StatusEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.err
}

func (f *fakeFetcher) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

type fakeStore struct {
	mu      sync.Mutex
	samples []*models.TelemetrySample
	err     error
}

func (f *fakeStore) Insert(ctx context.Context, sample *models.TelemetrySample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.samples = append(f.samples, sample)
	return nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.samples)
}

type fakeHub struct {
	mu       sync.Mutex
	payloads []Payload
}

func (f *fakeHub) Broadcast(payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := payload.(Payload); ok {
		f.payloads = append(f.payloads, p)
	}
}

func (f *fakeHub) countType(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.payloads {
		if p.Type == kind {
			n++
		}
	}
	return n
}

func newTestPoller(fetcher *fakeFetcher, store *fakeStore, h *fakeHub, threshold int, delay time.Duration) *Poller {
	return New(fetcher, store, h, nil, Config{
		Interval:         time.Second,
		FailureThreshold: threshold,
		RestartDelay:     delay,
	}, zap.NewNop())
}

func TestPollOncePersistsAndBroadcasts(t *testing.T) {
	fetcher := &fakeFetcher{status: []models.StatusEntry{
		{Code: "cur_power", Value: float64(4176)},
		{Code: "switch_1", Value: true},
	}}
	store := &fakeStore{}
	h := &fakeHub{}
	p := newTestPoller(fetcher, store, h, 40, time.Second)

	p.pollOnce(context.Background())

	if store.count() != 1 {
		t.Fatalf("expected 1 persisted sample, got %d", store.count())
	}
	if h.countType("telemetry") != 1 {
		t.Fatalf("expected 1 telemetry broadcast, got %d", h.countType("telemetry"))
	}

	h.mu.Lock()
	reading, ok := h.payloads[0].Data.(models.NormalizedReading)
	h.mu.Unlock()
	if !ok {
		t.Fatalf("expected normalized reading payload")
	}
	if reading.Power != 417.6 {
		t.Fatalf("expected normalized power 417.6, got %v", reading.Power)
	}
}

func TestFailureCounterResetsOnSuccess(t *testing.T) {
	fetcher := &fakeFetcher{status: []models.StatusEntry{{Code: "cur_power", Value: float64(100)}}}
	store := &fakeStore{}
	h := &fakeHub{}
	p := newTestPoller(fetcher, store, h, 40, time.Second)

	fetcher.setErr(errors.New("upstream down"))
	p.pollOnce(context.Background())
	p.pollOnce(context.Background())
	if got := p.failures.Load(); got != 2 {
		t.Fatalf("expected 2 consecutive failures, got %d", got)
	}

	fetcher.setErr(nil)
	p.pollOnce(context.Background())
	if got := p.failures.Load(); got != 0 {
		t.Fatalf("expected counter reset to 0, got %d", got)
	}
}

func TestThresholdEscalatesExactlyOnce(t *testing.T) {
	originalExit := exitProcess
	var exitMu sync.Mutex
	var exits []int
	exitProcess = func(code int) {
		exitMu.Lock()
		exits = append(exits, code)
		exitMu.Unlock()
	}
	t.Cleanup(func() { exitProcess = originalExit })

	fetcher := &fakeFetcher{err: errors.New("upstream down")}
	store := &fakeStore{}
	h := &fakeHub{}
	p := newTestPoller(fetcher, store, h, 3, 10*time.Millisecond)

	for i := 0; i < 6; i++ {
		p.pollOnce(context.Background())
	}

	waitFor(t, 500*time.Millisecond, func() bool {
		exitMu.Lock()
		defer exitMu.Unlock()
		return len(exits) > 0
	})

	if h.countType("error") != 1 {
		t.Fatalf("expected exactly one error broadcast, got %d", h.countType("error"))
	}

	exitMu.Lock()
	defer exitMu.Unlock()
	if len(exits) != 1 {
		t.Fatalf("expected exactly one scheduled exit, got %d", len(exits))
	}
	if exits[0] != 1 {
		t.Fatalf("expected exit code 1, got %d", exits[0])
	}
}

func TestPersistFailureDoesNotEscalate(t *testing.T) {
	fetcher := &fakeFetcher{status: []models.StatusEntry{{Code: "cur_power", Value: float64(100)}}}
	store := &fakeStore{err: errors.New("db down")}
	h := &fakeHub{}
	p := newTestPoller(fetcher, store, h, 1, time.Second)

	p.pollOnce(context.Background())

	if got := p.failures.Load(); got != 0 {
		t.Fatalf("persistence failure must not count toward upstream failures, got %d", got)
	}
	if h.countType("error") != 0 {
		t.Fatalf("expected no error broadcast, got %d", h.countType("error"))
	}
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
