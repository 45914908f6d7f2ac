// Package diaglog records Conversions API traffic for the site operator.
// It is purely observational: nothing in the delivery path consults it, and
// a failed log write never affects event delivery.
package diaglog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Entry statuses.
const (
	StatusRequest  = "request"
	StatusResponse = "response"
	StatusError    = "error"
)

// Entry names. These categorize log rows; they are not tracking event names.
const (
	NameRequest  = "API Request"
	NameResponse = "API Response"
	NameError    = "API Error"
)

// Entry is one append-only diagnostic log row.
type Entry struct {
	ID           int64     `json:"id,omitempty"`
	EventName    string    `json:"event_name"`
	EventData    string    `json:"event_data"`
	ResponseData string    `json:"response_data,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// Sink is the append-only destination for entries.
type Sink interface {
	AppendLog(ctx context.Context, e *Entry) error
}

// Logger records transport requests, responses, and errors. Implementations
// never return errors and never block delivery.
type Logger interface {
	Request(ctx context.Context, traceID, endpoint string, body any)
	Response(ctx context.Context, traceID string, statusCode int, body string, eventCount int)
	Error(ctx context.Context, traceID, errorType, message string, eventCount int)
}

// SinkLogger writes entries to a Sink, reporting write failures only to the
// process log.
type SinkLogger struct {
	sink   Sink
	logger *slog.Logger
}

// NewSinkLogger creates a Logger backed by the given sink.
func NewSinkLogger(sink Sink, logger *slog.Logger) *SinkLogger {
	return &SinkLogger{sink: sink, logger: logger}
}

func (l *SinkLogger) Request(ctx context.Context, traceID, endpoint string, body any) {
	data, err := json.Marshal(map[string]any{
		"trace_id": traceID,
		"endpoint": endpoint,
		"body":     body,
	})
	if err != nil {
		l.logger.Warn("diaglog: marshal request entry", "err", err)
		return
	}
	l.append(ctx, &Entry{
		EventName: NameRequest,
		EventData: string(data),
		Status:    StatusRequest,
	})
}

func (l *SinkLogger) Response(ctx context.Context, traceID string, statusCode int, body string, eventCount int) {
	data, err := json.Marshal(map[string]any{
		"trace_id":    traceID,
		"status_code": statusCode,
		"events":      eventCount,
	})
	if err != nil {
		l.logger.Warn("diaglog: marshal response entry", "err", err)
		return
	}
	l.append(ctx, &Entry{
		EventName:    NameResponse,
		EventData:    string(data),
		ResponseData: body,
		Status:       StatusResponse,
	})
}

func (l *SinkLogger) Error(ctx context.Context, traceID, errorType, message string, eventCount int) {
	data, err := json.Marshal(map[string]any{
		"trace_id":   traceID,
		"error_type": errorType,
		"message":    message,
		"events":     eventCount,
	})
	if err != nil {
		l.logger.Warn("diaglog: marshal error entry", "err", err)
		return
	}
	l.append(ctx, &Entry{
		EventName: NameError,
		EventData: string(data),
		Status:    StatusError,
	})
}

func (l *SinkLogger) append(ctx context.Context, e *Entry) {
	e.CreatedAt = time.Now().UTC()
	if err := l.sink.AppendLog(ctx, e); err != nil {
		l.logger.Warn("diaglog: write failed", "status", e.Status, "err", err)
	}
}

// NopLogger discards everything. Used when debug mode is off.
type NopLogger struct{}

func (NopLogger) Request(context.Context, string, string, any) {}

func (NopLogger) Response(context.Context, string, int, string, int) {}

func (NopLogger) Error(context.Context, string, string, string, int) {}
