package track

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/groblegark/pixelrelay/internal/bus"
)

// StartSubscriber consumes page request envelopes from the event bus and
// tracks them. It blocks until ctx is cancelled.
func (t *Tracker) StartSubscriber(ctx context.Context, sub bus.Subscriber) error {
	ch, cancel, err := sub.Subscribe(bus.SubjectRequest)
	if err != nil {
		return fmt.Errorf("track: subscribe: %w", err)
	}
	defer cancel()

	t.logger.Info("track: envelope subscriber started", "subject", bus.SubjectRequest)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("track: envelope subscriber stopping")
			return nil
		case raw, ok := <-ch:
			if !ok {
				t.logger.Info("track: subscription channel closed")
				return nil
			}

			var env Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				t.logger.Warn("track: bad envelope payload", "err", err)
				continue
			}

			if err := t.HandleEnvelope(ctx, &env); err != nil {
				t.logger.Error("track: envelope failed", "trace_id", env.TraceID, "err", err)
			}
		}
	}
}
