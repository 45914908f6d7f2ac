package capi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/groblegark/pixelrelay/internal/diaglog"
	"github.com/groblegark/pixelrelay/internal/identity"
)

// Conversions API defaults.
const (
	DefaultBaseURL = "https://graph.facebook.com"
	DefaultVersion = "v18.0"

	// RequestTimeout is the generous upper bound on one outbound send.
	RequestTimeout = 30 * time.Second

	// forcedTestEventCode is substituted by TestConnection when no test
	// event code is configured.
	forcedTestEventCode = "TEST12345"
)

// Auth is the per-request snapshot of delivery configuration. It is read
// once when envelope processing starts and never refreshed mid-request.
type Auth struct {
	PixelID       string
	AccessToken   string
	TestEventCode string
	Debug         bool
	TraceID       string
}

// Valid reports whether both credentials are present.
func (a Auth) Valid() bool {
	return a.PixelID != "" && a.AccessToken != ""
}

// Response is a successful (2xx) ingestion API reply.
type Response struct {
	StatusCode int
	Body       map[string]any
}

// payload is the request body wire format.
type payload struct {
	Data          []*Event `json:"data"`
	TestEventCode string   `json:"test_event_code,omitempty"`
}

// Client sends event batches to the Conversions API. One attempt per batch;
// failed deliveries are dropped and surface only in the diagnostic log.
type Client struct {
	baseURL    string
	version    string
	httpClient *http.Client
	diag       diaglog.Logger
}

// NewClient creates a Conversions API client. Empty baseURL or version fall
// back to the production defaults. Diagnostic entries are written through
// diag only for sends whose Auth has Debug set.
func NewClient(baseURL, version string, diag diaglog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if version == "" {
		version = DefaultVersion
	}
	if diag == nil {
		diag = diaglog.NopLogger{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		version:    version,
		httpClient: &http.Client{Timeout: RequestTimeout},
		diag:       diag,
	}
}

// Send delivers a batch of events in one request. Preconditions: both
// credentials present (ErrMissingCredentials otherwise, no network call)
// and every event valid (ErrInvalidEvent otherwise). Transport failures
// return *TransportError, remote error statuses *APIError; neither is
// retried.
func (c *Client) Send(ctx context.Context, auth Auth, events []*Event) (*Response, error) {
	if !auth.Valid() {
		if auth.Debug {
			c.diag.Error(ctx, auth.TraceID, "MissingCredentials", ErrMissingCredentials.Error(), len(events))
		}
		return nil, ErrMissingCredentials
	}

	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			if auth.Debug {
				c.diag.Error(ctx, auth.TraceID, "ValidationError", err.Error(), len(events))
			}
			return nil, err
		}
	}

	endpoint := fmt.Sprintf("%s/%s/%s/events", c.baseURL, c.version, auth.PixelID)
	body := payload{Data: events, TestEventCode: auth.TestEventCode}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal events: %w", err)
	}

	if auth.Debug {
		c.diag.Request(ctx, auth.TraceID, endpoint, body)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+auth.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		terr := &TransportError{Err: err}
		if auth.Debug {
			c.diag.Error(ctx, auth.TraceID, "TransportError", terr.Error(), len(events))
		}
		return nil, terr
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		terr := &TransportError{Err: err}
		if auth.Debug {
			c.diag.Error(ctx, auth.TraceID, "TransportError", terr.Error(), len(events))
		}
		return nil, terr
	}

	if auth.Debug {
		c.diag.Response(ctx, auth.TraceID, resp.StatusCode, string(respBody), len(events))
	}

	if resp.StatusCode >= 400 {
		aerr := &APIError{StatusCode: resp.StatusCode, Message: parseErrorMessage(respBody)}
		if auth.Debug {
			c.diag.Error(ctx, auth.TraceID, "ApiError", aerr.Message, len(events))
		}
		return nil, aerr
	}

	out := &Response{StatusCode: resp.StatusCode}
	// A 2xx with an undecodable body is still a success; Body stays nil.
	_ = json.Unmarshal(respBody, &out.Body)
	return out, nil
}

// SendEvent delivers a single event.
func (c *Client) SendEvent(ctx context.Context, auth Auth, ev *Event) (*Response, error) {
	return c.Send(ctx, auth, []*Event{ev})
}

// TestConnection sends a synthetic PageView to verify credentials and
// connectivity. A recognizable test event code is forced when none is
// configured so the synthetic event never lands in production reporting.
func (c *Client) TestConnection(ctx context.Context, auth Auth, sourceURL, clientIP, userAgent string) (*Response, error) {
	if auth.TestEventCode == "" {
		auth.TestEventCode = forcedTestEventCode
	}

	ud := identity.UserData{}
	ud.SetRaw(identity.FieldClientIP, clientIP)
	ud.SetRaw(identity.FieldUserAgent, userAgent)

	ev := &Event{
		EventName:      EventPageView,
		EventTime:      time.Now().Unix(),
		ActionSource:   ActionSourceWebsite,
		EventSourceURL: sourceURL,
		UserData:       ud,
	}
	return c.SendEvent(ctx, auth, ev)
}

// parseErrorMessage extracts the nested error message from an ingestion API
// error body, preferring error.message over error.error_user_msg.
func parseErrorMessage(body []byte) string {
	var decoded struct {
		Error struct {
			Message      string `json:"message"`
			ErrorUserMsg string `json:"error_user_msg"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &decoded); err == nil {
		if decoded.Error.Message != "" {
			return decoded.Error.Message
		}
		if decoded.Error.ErrorUserMsg != "" {
			return decoded.Error.ErrorUserMsg
		}
	}
	return "unknown API error"
}
