package diaglog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
)

// memSink collects appended entries, optionally failing every write.
type memSink struct {
	entries []*Entry
	err     error
}

func (m *memSink) AppendLog(_ context.Context, e *Entry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSinkLogger_Request(t *testing.T) {
	sink := &memSink{}
	l := NewSinkLogger(sink, testLogger())

	l.Request(context.Background(), "trace-1", "https://graph.example/v18.0/1/events", map[string]any{"data": []int{1}})

	if len(sink.entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(sink.entries))
	}
	e := sink.entries[0]
	if e.EventName != NameRequest || e.Status != StatusRequest {
		t.Errorf("entry = %+v", e)
	}
	if e.CreatedAt.IsZero() {
		t.Error("created_at should be stamped")
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(e.EventData), &decoded); err != nil {
		t.Fatalf("event data is not JSON: %v", err)
	}
	if decoded["trace_id"] != "trace-1" {
		t.Errorf("trace_id = %v", decoded["trace_id"])
	}
	if decoded["endpoint"] != "https://graph.example/v18.0/1/events" {
		t.Errorf("endpoint = %v", decoded["endpoint"])
	}
}

func TestSinkLogger_Response(t *testing.T) {
	sink := &memSink{}
	l := NewSinkLogger(sink, testLogger())

	l.Response(context.Background(), "trace-1", 200, `{"events_received":1}`, 3)

	e := sink.entries[0]
	if e.Status != StatusResponse {
		t.Errorf("status = %s", e.Status)
	}
	if e.ResponseData != `{"events_received":1}` {
		t.Errorf("response_data = %s", e.ResponseData)
	}

	var decoded map[string]any
	json.Unmarshal([]byte(e.EventData), &decoded)
	if decoded["status_code"] != float64(200) || decoded["events"] != float64(3) {
		t.Errorf("event data = %v", decoded)
	}
}

func TestSinkLogger_Error(t *testing.T) {
	sink := &memSink{}
	l := NewSinkLogger(sink, testLogger())

	l.Error(context.Background(), "trace-1", "ApiError", "Invalid parameter", 1)

	e := sink.entries[0]
	if e.Status != StatusError || e.EventName != NameError {
		t.Errorf("entry = %+v", e)
	}

	var decoded map[string]any
	json.Unmarshal([]byte(e.EventData), &decoded)
	if decoded["error_type"] != "ApiError" || decoded["message"] != "Invalid parameter" {
		t.Errorf("event data = %v", decoded)
	}
}

func TestSinkLogger_WriteFailureSwallowed(t *testing.T) {
	sink := &memSink{err: errors.New("db down")}
	l := NewSinkLogger(sink, testLogger())

	// Must not panic or propagate; logging is purely observational.
	l.Request(context.Background(), "t", "endpoint", nil)
	l.Response(context.Background(), "t", 200, "{}", 1)
	l.Error(context.Background(), "t", "X", "y", 1)
}

func TestNopLogger(t *testing.T) {
	var l Logger = NopLogger{}
	l.Request(context.Background(), "t", "e", nil)
	l.Response(context.Background(), "t", 200, "", 0)
	l.Error(context.Background(), "t", "", "", 0)
}
