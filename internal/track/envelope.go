// Package track is the relay's core: it turns storefront page request
// envelopes into enriched Conversions API events and hands them to the
// transport, deferring checkout events to end-of-request so cart data is
// complete.
package track

import (
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Lifecycle hook kinds a storefront can report, in the order they fire
// within a page request.
const (
	HookPageRendered    = "page_rendered"
	HookProductViewed   = "product_viewed"
	HookItemAdded       = "item_added"
	HookCheckoutStarted = "checkout_started"
	HookOrderCompleted  = "order_completed"
)

// PageContext is the shared page/visitor context for one page request.
type PageContext struct {
	URL       string `json:"url"`
	Referrer  string `json:"referrer,omitempty"`
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent"`
	Currency  string `json:"currency,omitempty"`
	ClickID   string `json:"fbc,omitempty"`    // _fbc cookie, verbatim
	BrowserID string `json:"fbp,omitempty"`    // _fbp cookie, verbatim
	FBCLID    string `json:"fbclid,omitempty"` // fbclid URL parameter
}

// Visitor is the logged-in customer, when the storefront knows one.
// Fields are raw; hashing happens when user_data is assembled.
type Visitor struct {
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// CartLine mirrors one cart row at checkout time. LineTotal is the decimal
// string total for the whole line, not the unit price.
type CartLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	LineTotal string `json:"line_total"`
}

// Hook is one lifecycle hook firing within the page request. Which fields
// are set depends on Kind.
type Hook struct {
	Kind        string     `json:"kind"`
	ProductID   string     `json:"product_id,omitempty"`
	VariationID string     `json:"variation_id,omitempty"`
	Quantity    int        `json:"quantity,omitempty"`
	OrderID     string     `json:"order_id,omitempty"`
	Cart        []CartLine `json:"cart,omitempty"`
}

// Envelope is one storefront page request: the ordered lifecycle hook
// firings plus shared context. Processing an envelope is the relay's unit
// of work.
type Envelope struct {
	TraceID string      `json:"trace_id,omitempty"`
	Page    PageContext `json:"page"`
	Visitor Visitor     `json:"visitor"`
	Hooks   []Hook      `json:"hooks"`
}

// EnsureTraceID assigns a trace id when the storefront did not supply one,
// so diagnostic log entries for this request can be correlated.
func (e *Envelope) EnsureTraceID() {
	if e.TraceID != "" {
		return
	}
	if id, err := nanoid.New(); err == nil {
		e.TraceID = id
	}
}

// CurrencyOrDefault returns the storefront currency, defaulting to USD.
func (p *PageContext) CurrencyOrDefault() string {
	if p.Currency != "" {
		return p.Currency
	}
	return "USD"
}

// botPatterns are user-agent substrings identifying crawlers whose traffic
// should never be reported.
var botPatterns = []string{
	"bot", "crawler", "spider", "scraper", "curl", "wget",
	"googlebot", "bingbot", "slurp", "duckduckbot",
	"baiduspider", "yandexbot", "facebookexternalhit",
}

// IsBot reports whether the user agent belongs to a known crawler.
func IsBot(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, pattern := range botPatterns {
		if strings.Contains(ua, pattern) {
			return true
		}
	}
	return false
}
