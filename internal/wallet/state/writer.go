package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shandysiswandi/gosats/internal/wallet/gateway"
)

type WriterConfig struct {
	MaxRetries  int
	BaseBackoff time.Duration
}

// SnapshotWriter mirrors ledger snapshots to the gateway from a single
// background goroutine. Pending snapshots coalesce: when mutations arrive
// faster than writes complete, only the newest revision is written.
// Persistence failures are retried with backoff and then logged; they are
// never fatal to the in-memory ledger.
type SnapshotWriter struct {
	gw          gateway.Gateway
	key         string
	maxRetries  int
	baseBackoff time.Duration

	mu      sync.Mutex
	pending []byte
	rev     int64

	kick chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

func NewSnapshotWriter(gw gateway.Gateway, key string, cfg WriterConfig) *SnapshotWriter {
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	baseBackoff := cfg.BaseBackoff
	if baseBackoff <= 0 {
		baseBackoff = 100 * time.Millisecond
	}

	return &SnapshotWriter{
		gw:          gw,
		key:         key,
		maxRetries:  maxRetries,
		baseBackoff: baseBackoff,
		kick:        make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
}

func (w *SnapshotWriter) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop flushes any pending snapshot and waits for the worker to exit.
func (w *SnapshotWriter) Stop(ctx context.Context) error {
	close(w.done)

	finished := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue schedules snapshot for writing. Older revisions arriving late
// are dropped so the gateway always converges on the newest state.
func (w *SnapshotWriter) Enqueue(rev int64, snapshot []byte) {
	w.mu.Lock()
	if rev < w.rev {
		w.mu.Unlock()
		return
	}
	w.pending = snapshot
	w.rev = rev
	w.mu.Unlock()

	select {
	case w.kick <- struct{}{}:
	default:
	}
}

func (w *SnapshotWriter) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.kick:
			w.flush()
		case <-w.done:
			w.flush()
			return
		}
	}
}

func (w *SnapshotWriter) flush() {
	w.mu.Lock()
	snapshot := w.pending
	rev := w.rev
	w.pending = nil
	w.mu.Unlock()

	if snapshot == nil {
		return
	}

	backoff := w.baseBackoff
	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		err := w.gw.Set(context.Background(), w.key, snapshot)
		if err == nil {
			return
		}

		if attempt == w.maxRetries {
			slog.Error("failed to persist ledger snapshot after retries", "key", w.key, "revision", rev, "error", err)
			return
		}

		// during shutdown the remaining attempts run without waiting so
		// Stop is not held up by the backoff schedule
		select {
		case <-w.done:
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
