// Package capi implements the Conversions API event model and transport
// client: the wire format the ingestion endpoint accepts, the error
// taxonomy for failed deliveries, and a fire-and-forget sender.
package capi

import (
	"fmt"

	"github.com/groblegark/pixelrelay/internal/identity"
)

// Event names accepted by the ingestion endpoint.
const (
	EventPageView             = "PageView"
	EventViewContent          = "ViewContent"
	EventAddToCart            = "AddToCart"
	EventInitiateCheckout     = "InitiateCheckout"
	EventPurchase             = "Purchase"
	EventSearch               = "Search"
	EventLead                 = "Lead"
	EventCompleteRegistration = "CompleteRegistration"
)

// EventNames lists every event name in settings display order.
var EventNames = []string{
	EventPageView,
	EventViewContent,
	EventAddToCart,
	EventInitiateCheckout,
	EventPurchase,
	EventSearch,
	EventLead,
	EventCompleteRegistration,
}

// ActionSourceWebsite is the only action source this relay reports.
const ActionSourceWebsite = "website"

// ContentTypeProduct is the content_type for all commerce events.
const ContentTypeProduct = "product"

// Content is one line item in an event's contents list.
type Content struct {
	ID        string  `json:"id"`
	Quantity  int     `json:"quantity"`
	ItemPrice float64 `json:"item_price"`
}

// CustomData carries the event-type-specific payload fields.
type CustomData struct {
	ContentIDs      []string  `json:"content_ids,omitempty"`
	ContentType     string    `json:"content_type,omitempty"`
	ContentName     string    `json:"content_name,omitempty"`
	ContentCategory string    `json:"content_category,omitempty"`
	ContentSKU      string    `json:"content_sku,omitempty"`
	Brand           string    `json:"brand,omitempty"`
	Contents        []Content `json:"contents,omitempty"`
	Value           float64   `json:"value,omitempty"`
	Currency        string    `json:"currency,omitempty"`
	NumItems        int       `json:"num_items,omitempty"`
	OrderID         string    `json:"order_id,omitempty"`
}

// Event is one tracked action in Conversions API wire format.
type Event struct {
	EventName      string            `json:"event_name"`
	EventTime      int64             `json:"event_time"`
	ActionSource   string            `json:"action_source"`
	EventSourceURL string            `json:"event_source_url,omitempty"`
	ReferrerURL    string            `json:"referrer_url,omitempty"`
	UserData       identity.UserData `json:"user_data,omitempty"`
	CustomData     *CustomData       `json:"custom_data,omitempty"`
	EventID        string            `json:"event_id,omitempty"`
}

// Validate checks the fields the ingestion API requires on every event.
func (e *Event) Validate() error {
	if e.EventName == "" {
		return fmt.Errorf("%w: event_name", ErrInvalidEvent)
	}
	if e.EventTime == 0 {
		return fmt.Errorf("%w: event_time", ErrInvalidEvent)
	}
	return nil
}
