package track

import (
	"testing"

	"github.com/groblegark/pixelrelay/internal/capi"
)

func TestIsBot(t *testing.T) {
	for _, ua := range []string{
		"Googlebot/2.1 (+http://www.google.com/bot.html)",
		"Mozilla/5.0 (compatible; bingbot/2.0)",
		"curl/8.4.0",
		"facebookexternalhit/1.1",
		"SomeCrawler/1.0",
	} {
		if !IsBot(ua) {
			t.Errorf("IsBot(%q) = false, want true", ua)
		}
	}
	for _, ua := range []string{
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Safari/605.1.15",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)",
		"",
	} {
		if IsBot(ua) {
			t.Errorf("IsBot(%q) = true, want false", ua)
		}
	}
}

func TestEnsureTraceID(t *testing.T) {
	env := &Envelope{}
	env.EnsureTraceID()
	if env.TraceID == "" {
		t.Fatal("trace id should be assigned")
	}

	env2 := &Envelope{TraceID: "keep-me"}
	env2.EnsureTraceID()
	if env2.TraceID != "keep-me" {
		t.Errorf("existing trace id replaced: %s", env2.TraceID)
	}
}

func TestCurrencyOrDefault(t *testing.T) {
	p := &PageContext{}
	if got := p.CurrencyOrDefault(); got != "USD" {
		t.Errorf("default currency = %s, want USD", got)
	}
	p.Currency = "GBP"
	if got := p.CurrencyOrDefault(); got != "GBP" {
		t.Errorf("currency = %s, want GBP", got)
	}
}

func TestRequest_DrainOrderAndReset(t *testing.T) {
	r := newRequest(&Envelope{TraceID: "t"}, allEnabled())
	var evs []*capi.Event
	for _, name := range []string{"A", "B", "C"} {
		ev := &capi.Event{EventName: name, EventTime: 1}
		evs = append(evs, ev)
		r.enqueue(ev)
	}

	got := r.drain()
	if len(got) != 3 {
		t.Fatalf("drained %d events, want 3", len(got))
	}
	for i, ev := range got {
		if ev != evs[i] {
			t.Errorf("position %d: wrong event order", i)
		}
	}
	if again := r.drain(); again != nil {
		t.Errorf("second drain should be empty, got %d", len(again))
	}
}
