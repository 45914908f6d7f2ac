package diaglog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// RetentionStore is the slice of the relay store the janitor needs.
type RetentionStore interface {
	ListLogsBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Entry, error)
	DeleteLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Destination receives the JSONL archive of entries about to be purged.
type Destination interface {
	Write(ctx context.Context, data []byte) error
}

// archiveBatchLimit caps how many entries one archive export reads.
const archiveBatchLimit = 10000

// Janitor periodically deletes diagnostic log entries older than the
// retention window, optionally archiving them to a destination first.
// Retention is an operator concern; the delivery path never touches it.
type Janitor struct {
	store     RetentionStore
	dest      Destination // nil = purge without archiving
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewJanitor creates a janitor that keeps entries younger than retention,
// sweeping at the given interval.
func NewJanitor(store RetentionStore, dest Destination, retention, interval time.Duration, logger *slog.Logger) *Janitor {
	return &Janitor{
		store:     store,
		dest:      dest,
		retention: retention,
		interval:  interval,
		logger:    logger,
	}
}

// Start begins periodic cleanup. The first sweep runs immediately.
func (j *Janitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	j.cancel = cancel

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.run(ctx)
	}()
}

// Stop cancels the janitor and waits for an in-progress sweep to finish.
func (j *Janitor) Stop() {
	if j.cancel != nil {
		j.cancel()
	}
	j.wg.Wait()
}

func (j *Janitor) run(ctx context.Context) {
	j.Sweep(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep performs one archive-then-purge pass.
func (j *Janitor) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-j.retention)

	if j.dest != nil {
		entries, err := j.store.ListLogsBefore(ctx, cutoff, archiveBatchLimit)
		if err != nil {
			j.logger.Error("diaglog: archive export failed", "err", err)
			return
		}
		if len(entries) > 0 {
			var buf bytes.Buffer
			if err := ExportJSONL(entries, &buf); err != nil {
				j.logger.Error("diaglog: archive encode failed", "err", err)
				return
			}
			if err := j.dest.Write(ctx, buf.Bytes()); err != nil {
				j.logger.Error("diaglog: archive write failed", "err", err)
				return
			}
		}
	}

	deleted, err := j.store.DeleteLogsBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("diaglog: cleanup failed", "err", err)
		return
	}
	if deleted > 0 {
		j.logger.Info("diaglog: cleaned up", "deleted", deleted, "cutoff", cutoff)
	}
}

// ExportJSONL writes entries to w as JSON lines, oldest first.
func ExportJSONL(entries []*Entry, w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("encode log entry %d: %w", e.ID, err)
		}
	}
	return nil
}
