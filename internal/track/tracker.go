package track

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/groblegark/pixelrelay/internal/capi"
	"github.com/groblegark/pixelrelay/internal/catalog"
	"github.com/groblegark/pixelrelay/internal/diaglog"
	"github.com/groblegark/pixelrelay/internal/eventid"
	"github.com/groblegark/pixelrelay/internal/identity"
	"github.com/groblegark/pixelrelay/internal/money"
	"github.com/groblegark/pixelrelay/internal/settings"
)

// SettingsSource yields the per-request settings snapshot.
type SettingsSource interface {
	GetSettings(ctx context.Context) (*settings.Settings, error)
}

// Dispatcher delivers event batches without blocking the caller.
// *capi.Sender satisfies it.
type Dispatcher interface {
	Dispatch(auth capi.Auth, events []*capi.Event)
}

// Tracker builds Conversions API events from lifecycle hooks and hands
// them to the dispatcher. Build failures drop the affected event only;
// nothing here ever fails envelope ingestion.
type Tracker struct {
	catalog    catalog.Provider
	dispatcher Dispatcher
	source     SettingsSource
	diag       diaglog.Logger
	logger     *slog.Logger
	now        func() time.Time
}

// NewTracker wires the tracking core. diag receives build-failure entries
// when debug mode is on; pass nil to disable.
func NewTracker(cat catalog.Provider, d Dispatcher, source SettingsSource, diag diaglog.Logger, logger *slog.Logger) *Tracker {
	if diag == nil {
		diag = diaglog.NopLogger{}
	}
	return &Tracker{
		catalog:    cat,
		dispatcher: d,
		source:     source,
		diag:       diag,
		logger:     logger,
		now:        time.Now,
	}
}

// HandleEnvelope processes one storefront page request end to end: take a
// settings snapshot, fire each hook in reported order, then flush the
// deferred queue. Returns an error only when the envelope itself cannot be
// processed (settings unavailable); per-event failures are swallowed.
func (t *Tracker) HandleEnvelope(ctx context.Context, env *Envelope) error {
	env.EnsureTraceID()

	if IsBot(env.Page.UserAgent) {
		t.logger.Debug("skipping bot request", "trace_id", env.TraceID, "user_agent", env.Page.UserAgent)
		return nil
	}

	snap, err := t.source.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	r := newRequest(env, snap)
	for _, h := range env.Hooks {
		switch h.Kind {
		case HookPageRendered:
			t.trackPageView(r)
		case HookProductViewed:
			t.trackViewContent(ctx, r, h)
		case HookItemAdded:
			t.trackAddToCart(ctx, r, h)
		case HookCheckoutStarted:
			t.trackInitiateCheckout(ctx, r, h)
		case HookOrderCompleted:
			t.trackPurchase(ctx, r, h)
		default:
			t.logger.Warn("unknown hook kind", "kind", h.Kind, "trace_id", env.TraceID)
		}
	}
	t.flush(r)
	return nil
}

// trackPageView builds the PageView event for the rendered page.
func (t *Tracker) trackPageView(r *Request) {
	if !r.Settings.EventEnabled(capi.EventPageView) {
		return
	}

	now := t.now().Unix()
	ev := &capi.Event{
		EventName:      capi.EventPageView,
		EventTime:      now,
		ActionSource:   capi.ActionSourceWebsite,
		EventSourceURL: r.Env.Page.URL,
		ReferrerURL:    r.Env.Page.Referrer,
		UserData:       t.userData(r),
		CustomData:     &capi.CustomData{},
		EventID:        eventid.New(capi.EventPageView, now, "", r.Env.Page.ClientIP),
	}
	t.send(r, ev)
}

// trackViewContent builds the ViewContent event for a product page.
func (t *Tracker) trackViewContent(ctx context.Context, r *Request, h Hook) {
	if !r.Settings.EventEnabled(capi.EventViewContent) {
		return
	}
	if !t.catalog.Available() {
		return
	}

	p, err := t.catalog.Product(ctx, h.ProductID)
	if err != nil {
		t.drop(ctx, r, capi.EventViewContent, err)
		return
	}

	value, err := money.Value(p.EffectivePrice())
	if err != nil {
		t.drop(ctx, r, capi.EventViewContent, err)
		return
	}

	now := t.now().Unix()
	ev := &capi.Event{
		EventName:      capi.EventViewContent,
		EventTime:      now,
		ActionSource:   capi.ActionSourceWebsite,
		EventSourceURL: r.Env.Page.URL,
		UserData:       t.userData(r),
		CustomData: &capi.CustomData{
			ContentIDs:      []string{p.ID},
			ContentType:     capi.ContentTypeProduct,
			ContentName:     p.Name,
			ContentCategory: strings.Join(p.Categories, ", "),
			ContentSKU:      p.SKU,
			Brand:           p.Brand,
			Value:           value,
			Currency:        r.Env.Page.CurrencyOrDefault(),
		},
		EventID: eventid.New(capi.EventViewContent, now, p.ID, r.Env.Page.ClientIP),
	}
	t.send(r, ev)
}

// trackAddToCart builds the AddToCart event. Variations are priced by the
// variation record; the reported content id stays the parent product.
func (t *Tracker) trackAddToCart(ctx context.Context, r *Request, h Hook) {
	if !r.Settings.EventEnabled(capi.EventAddToCart) {
		return
	}
	if !t.catalog.Available() {
		return
	}

	lookupID := h.ProductID
	if h.VariationID != "" {
		lookupID = h.VariationID
	}
	p, err := t.catalog.Product(ctx, lookupID)
	if err != nil {
		t.drop(ctx, r, capi.EventAddToCart, err)
		return
	}

	value, err := money.Value(p.Price)
	if err != nil {
		t.drop(ctx, r, capi.EventAddToCart, err)
		return
	}

	qty := h.Quantity
	if qty <= 0 {
		qty = 1
	}

	now := t.now().Unix()
	ev := &capi.Event{
		EventName:      capi.EventAddToCart,
		EventTime:      now,
		ActionSource:   capi.ActionSourceWebsite,
		EventSourceURL: r.Env.Page.URL,
		UserData:       t.userData(r),
		CustomData: &capi.CustomData{
			ContentIDs:      []string{h.ProductID},
			ContentType:     capi.ContentTypeProduct,
			ContentName:     p.Name,
			ContentCategory: strings.Join(p.Categories, ", "),
			Value:           value,
			Currency:        r.Env.Page.CurrencyOrDefault(),
			NumItems:        qty,
		},
		EventID: eventid.New(capi.EventAddToCart, now, fmt.Sprintf("%s_%d", h.ProductID, qty), r.Env.Page.ClientIP),
	}
	t.send(r, ev)
}

// trackInitiateCheckout builds the InitiateCheckout event from the cart
// reported with the hook. The event is deferred to end-of-request so a
// cart still being settled while the page renders is read complete.
func (t *Tracker) trackInitiateCheckout(ctx context.Context, r *Request, h Hook) {
	if !r.Settings.EventEnabled(capi.EventInitiateCheckout) {
		return
	}
	if len(h.Cart) == 0 {
		return
	}

	var (
		contentIDs []string
		contents   []capi.Content
		totalQty   int
	)
	total := money.Zero()

	for _, line := range h.Cart {
		lineTotal, err := money.Parse(line.LineTotal)
		if err != nil {
			t.drop(ctx, r, capi.EventInitiateCheckout, err)
			return
		}
		unit, err := money.Unit(lineTotal, line.Quantity)
		if err != nil {
			t.drop(ctx, r, capi.EventInitiateCheckout, err)
			return
		}
		unitPrice, err := money.Round(unit)
		if err != nil {
			t.drop(ctx, r, capi.EventInitiateCheckout, err)
			return
		}
		if err := money.Add(total, lineTotal); err != nil {
			t.drop(ctx, r, capi.EventInitiateCheckout, err)
			return
		}

		contentIDs = append(contentIDs, line.ProductID)
		contents = append(contents, capi.Content{
			ID:        line.ProductID,
			Quantity:  line.Quantity,
			ItemPrice: unitPrice,
		})
		totalQty += line.Quantity
	}

	value, err := money.Round(total)
	if err != nil {
		t.drop(ctx, r, capi.EventInitiateCheckout, err)
		return
	}

	now := t.now().Unix()
	ev := &capi.Event{
		EventName:      capi.EventInitiateCheckout,
		EventTime:      now,
		ActionSource:   capi.ActionSourceWebsite,
		EventSourceURL: r.Env.Page.URL,
		UserData:       t.userData(r),
		CustomData: &capi.CustomData{
			ContentIDs:  contentIDs,
			ContentType: capi.ContentTypeProduct,
			Contents:    contents,
			Value:       value,
			Currency:    r.Env.Page.CurrencyOrDefault(),
			NumItems:    totalQty,
		},
		EventID: eventid.New(capi.EventInitiateCheckout, now, eventid.ContentsDiscriminator(contentIDs), r.Env.Page.ClientIP),
	}
	r.enqueue(ev)
}

// trackPurchase builds the Purchase event from the completed order record,
// with the richer billing identity and the customer IP the order recorded.
func (t *Tracker) trackPurchase(ctx context.Context, r *Request, h Hook) {
	if !r.Settings.EventEnabled(capi.EventPurchase) {
		return
	}
	if !t.catalog.Available() {
		return
	}

	order, err := t.catalog.Order(ctx, h.OrderID)
	if err != nil {
		t.drop(ctx, r, capi.EventPurchase, err)
		return
	}

	var (
		contentIDs []string
		contents   []capi.Content
		totalQty   int
	)
	for _, line := range order.Lines {
		lineTotal, err := money.Parse(line.LineTotal)
		if err != nil {
			t.drop(ctx, r, capi.EventPurchase, err)
			return
		}
		unit, err := money.Unit(lineTotal, line.Quantity)
		if err != nil {
			t.drop(ctx, r, capi.EventPurchase, err)
			return
		}
		unitPrice, err := money.Round(unit)
		if err != nil {
			t.drop(ctx, r, capi.EventPurchase, err)
			return
		}

		contentIDs = append(contentIDs, line.ProductID)
		contents = append(contents, capi.Content{
			ID:        line.ProductID,
			Quantity:  line.Quantity,
			ItemPrice: unitPrice,
		})
		totalQty += line.Quantity
	}

	value, err := money.Value(order.Total)
	if err != nil {
		t.drop(ctx, r, capi.EventPurchase, err)
		return
	}

	now := t.now().Unix()
	ev := &capi.Event{
		EventName:      capi.EventPurchase,
		EventTime:      now,
		ActionSource:   capi.ActionSourceWebsite,
		EventSourceURL: r.Env.Page.URL,
		UserData:       t.orderUserData(r, order),
		CustomData: &capi.CustomData{
			ContentIDs:  contentIDs,
			ContentType: capi.ContentTypeProduct,
			Contents:    contents,
			Value:       value,
			Currency:    order.Currency,
			NumItems:    totalQty,
			OrderID:     order.ID,
		},
		EventID: eventid.New(capi.EventPurchase, now, order.ID, r.Env.Page.ClientIP),
	}
	t.send(r, ev)
}

// send dispatches a single event immediately (fire-and-forget).
func (t *Tracker) send(r *Request, ev *capi.Event) {
	t.dispatcher.Dispatch(r.auth(), []*capi.Event{ev})
}

// flush transmits the deferred queue, in enqueue order, as one batch.
// Flushing an empty queue is a no-op.
func (t *Tracker) flush(r *Request) {
	deferred := r.drain()
	if len(deferred) == 0 {
		return
	}
	t.dispatcher.Dispatch(r.auth(), deferred)
}

// drop logs a build failure and abandons the event. Never escalates: a
// broken product or order record must not interrupt the page request.
func (t *Tracker) drop(ctx context.Context, r *Request, eventName string, err error) {
	t.logger.Warn("dropping event", "event_name", eventName, "trace_id", r.Env.TraceID, "err", err)
	if r.Settings.DebugMode {
		t.diag.Error(ctx, r.Env.TraceID, "BuildError", fmt.Sprintf("%s: %v", eventName, err), 1)
	}
}

// userData assembles identity/context data from the live page request.
func (t *Tracker) userData(r *Request) identity.UserData {
	page := r.Env.Page
	u := identity.UserData{}
	u.SetRaw(identity.FieldClientIP, page.ClientIP)
	u.SetRaw(identity.FieldUserAgent, page.UserAgent)
	u.SetRaw(identity.FieldBrowserID, page.BrowserID)

	switch {
	case page.ClickID != "":
		u.SetRaw(identity.FieldClickID, page.ClickID)
	case page.FBCLID != "":
		u.SetRaw(identity.FieldClickID, identity.ClickIDFromFBCLID(page.FBCLID, t.now()))
	}

	u.SetHashed(identity.FieldEmail, r.Env.Visitor.Email)
	u.SetHashed(identity.FieldFirstName, r.Env.Visitor.FirstName)
	u.SetHashed(identity.FieldLastName, r.Env.Visitor.LastName)
	return u
}

// orderUserData assembles the richer Purchase identity from the order's
// billing record. The client IP comes from the order, not the live page,
// because the confirmation page may be revisited from elsewhere.
func (t *Tracker) orderUserData(r *Request, order *catalog.Order) identity.UserData {
	page := r.Env.Page
	u := identity.UserData{}
	ip := order.CustomerIP
	if ip == "" {
		ip = page.ClientIP
	}
	u.SetRaw(identity.FieldClientIP, ip)
	u.SetRaw(identity.FieldUserAgent, page.UserAgent)
	u.SetRaw(identity.FieldBrowserID, page.BrowserID)
	u.SetRaw(identity.FieldClickID, page.ClickID)

	b := order.Billing
	u.SetHashed(identity.FieldEmail, b.Email)
	u.SetHashed(identity.FieldFirstName, b.FirstName)
	u.SetHashed(identity.FieldLastName, b.LastName)
	u.SetPhone(b.Phone)
	u.SetHashed(identity.FieldCity, b.City)
	u.SetHashed(identity.FieldState, b.State)
	u.SetHashed(identity.FieldPostalCode, b.PostalCode)
	u.SetHashed(identity.FieldCountry, b.Country)
	return u
}
