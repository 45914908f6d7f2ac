package capi

import (
	"context"
	"log/slog"
	"sync"
)

// Sender dispatches sends without blocking the caller. The triggering page
// request never waits on the remote acknowledgment; in-flight sends are
// tracked so daemon shutdown can wait for outbound writes to finish rather
// than tearing down the transport under them.
type Sender struct {
	client *Client
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewSender wraps a client in a fire-and-forget dispatcher.
func NewSender(client *Client, logger *slog.Logger) *Sender {
	return &Sender{client: client, logger: logger}
}

// Dispatch sends the batch on a background goroutine. The caller does not
// observe completion; a failed delivery is terminal for the batch and
// surfaces only in logs.
func (s *Sender) Dispatch(auth Auth, events []*Event) {
	if len(events) == 0 {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), RequestTimeout)
		defer cancel()

		if _, err := s.client.Send(ctx, auth, events); err != nil {
			s.logger.Warn("event delivery failed",
				"event_name", events[0].EventName,
				"events", len(events),
				"trace_id", auth.TraceID,
				"err", err)
			return
		}
		s.logger.Debug("event delivered",
			"event_name", events[0].EventName,
			"events", len(events),
			"trace_id", auth.TraceID)
	}()
}

// Wait blocks until all dispatched sends have completed or ctx expires.
func (s *Sender) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
