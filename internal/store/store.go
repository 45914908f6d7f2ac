// Package store defines the relay's persistence interface: the operator
// settings row and the append-only diagnostic log.
package store

import (
	"context"
	"time"

	"github.com/groblegark/pixelrelay/internal/diaglog"
	"github.com/groblegark/pixelrelay/internal/settings"
)

// Store is the relay's persistence interface.
type Store interface {
	// Settings. GetSettings always returns a usable snapshot; a fresh
	// database yields the seeded defaults.
	GetSettings(ctx context.Context) (*settings.Settings, error)
	SaveSettings(ctx context.Context, s *settings.Settings) error

	// Diagnostic log. Entries are append-only; the relay never updates
	// them, and deletion happens only through retention cleanup.
	AppendLog(ctx context.Context, e *diaglog.Entry) error
	ListLogs(ctx context.Context, limit int) ([]*diaglog.Entry, error)
	ListLogsBefore(ctx context.Context, cutoff time.Time, limit int) ([]*diaglog.Entry, error)
	DeleteLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	Close() error
}
