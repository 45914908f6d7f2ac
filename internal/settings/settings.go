// Package settings holds the site operator's relay configuration: the
// pixel/account identifier, the API credential, per-event-type enable
// flags, and the debug switch. The tracking core reads one immutable
// snapshot per page request and never writes.
package settings

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/groblegark/pixelrelay/internal/capi"
)

// Settings is the operator configuration snapshot.
type Settings struct {
	PixelID       string          `json:"pixel_id"`
	AccessToken   string          `json:"access_token"`
	TestEventCode string          `json:"test_event_code,omitempty"`
	EnabledEvents map[string]bool `json:"enabled_events"`
	DebugMode     bool            `json:"debug_mode"`
}

// Defaults mirrors first-run configuration: the core purchase funnel on,
// everything else off.
func Defaults() *Settings {
	return &Settings{
		EnabledEvents: map[string]bool{
			capi.EventPageView:             true,
			capi.EventViewContent:          false,
			capi.EventAddToCart:            true,
			capi.EventInitiateCheckout:     true,
			capi.EventPurchase:             true,
			capi.EventSearch:               false,
			capi.EventLead:                 false,
			capi.EventCompleteRegistration: false,
		},
	}
}

// EventEnabled reports whether the given event type should be tracked.
// Unknown names and a missing map are both disabled.
func (s *Settings) EventEnabled(name string) bool {
	return s.EnabledEvents[name]
}

// HasCredentials reports whether both delivery credentials are configured.
func (s *Settings) HasCredentials() bool {
	return s.PixelID != "" && s.AccessToken != ""
}

// Auth returns the per-request delivery snapshot for the transport client.
func (s *Settings) Auth(traceID string) capi.Auth {
	return capi.Auth{
		PixelID:       s.PixelID,
		AccessToken:   s.AccessToken,
		TestEventCode: s.TestEventCode,
		Debug:         s.DebugMode,
		TraceID:       traceID,
	}
}

// Redacted returns a copy safe to show to the operator: the access token
// is reduced to its last four characters.
func (s *Settings) Redacted() *Settings {
	out := *s
	out.EnabledEvents = make(map[string]bool, len(s.EnabledEvents))
	for k, v := range s.EnabledEvents {
		out.EnabledEvents[k] = v
	}
	if n := len(s.AccessToken); n > 4 {
		out.AccessToken = "…" + s.AccessToken[n-4:]
	}
	return &out
}

var (
	pixelIDPattern     = regexp.MustCompile(`^[0-9]{15,16}$`)
	accessTokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// ValidatePixelID checks the pixel/account identifier format (15-16 digits).
func ValidatePixelID(pixelID string) error {
	if !pixelIDPattern.MatchString(pixelID) {
		return errors.New("pixel id must be 15-16 digits")
	}
	return nil
}

// ValidateAccessToken checks the API credential format: longer than 50
// characters of letters, digits, underscore, or hyphen.
func ValidateAccessToken(token string) error {
	if len(token) <= 50 || !accessTokenPattern.MatchString(token) {
		return errors.New("access token must be longer than 50 characters of [A-Za-z0-9_-]")
	}
	return nil
}

// Validate checks the whole snapshot: credential formats (when present)
// and event names. Empty credentials are allowed — the relay runs
// unconfigured, it just cannot deliver.
func (s *Settings) Validate() error {
	var errs []error
	if s.PixelID != "" {
		if err := ValidatePixelID(s.PixelID); err != nil {
			errs = append(errs, err)
		}
	}
	if s.AccessToken != "" {
		if err := ValidateAccessToken(s.AccessToken); err != nil {
			errs = append(errs, err)
		}
	}
	for name := range s.EnabledEvents {
		if !knownEvent(name) {
			errs = append(errs, fmt.Errorf("unknown event name %q", name))
		}
	}
	return errors.Join(errs...)
}

func knownEvent(name string) bool {
	for _, n := range capi.EventNames {
		if n == name {
			return true
		}
	}
	return false
}
