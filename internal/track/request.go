package track

import (
	"github.com/groblegark/pixelrelay/internal/capi"
	"github.com/groblegark/pixelrelay/internal/settings"
)

// Request is the per-envelope tracking scope: the settings snapshot, the
// page context, and the deferred delivery queue. A Request is created when
// envelope processing starts and discarded when it ends; the queue never
// outlives it and is never shared between requests.
type Request struct {
	Env      *Envelope
	Settings *settings.Settings

	deferred []*capi.Event
}

func newRequest(env *Envelope, snap *settings.Settings) *Request {
	return &Request{Env: env, Settings: snap}
}

// auth is the delivery snapshot for every send within this request.
func (r *Request) auth() capi.Auth {
	return r.Settings.Auth(r.Env.TraceID)
}

// enqueue appends an event to the deferred queue. Deferred events are
// transmitted at end-of-request, after all hooks have fired, so that
// source data read late (the cart) is complete.
func (r *Request) enqueue(ev *capi.Event) {
	r.deferred = append(r.deferred, ev)
}

// drain returns the deferred events in enqueue order and empties the
// queue. Draining an empty queue returns nil.
func (r *Request) drain() []*capi.Event {
	out := r.deferred
	r.deferred = nil
	return out
}
