// Package bus carries storefront page request envelopes between the host
// platform and the relay. NATS is optional; hosts can POST envelopes to the
// HTTP API instead.
package bus

import "context"

// SubjectRequest is the subject the storefront publishes one envelope per
// rendered page request to.
const SubjectRequest = "storefront.request"

// Publisher emits envelopes onto the bus (used by storefront-side
// integrations and tests).
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
	Close() error
}

// Subscriber receives raw envelope payloads from the bus.
type Subscriber interface {
	// Subscribe delivers raw payloads on the returned channel. Call the
	// returned cancel function to unsubscribe and close the channel.
	Subscribe(subject string) (<-chan []byte, func(), error)
	Close() error
}
