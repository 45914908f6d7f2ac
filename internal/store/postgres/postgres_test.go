package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/groblegark/pixelrelay/internal/diaglog"
	"github.com/groblegark/pixelrelay/internal/settings"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

var logColumns = []string{"id", "event_name", "event_data", "response_data", "status", "created_at"}

func TestGetSettings(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewFromDB(db)

	stored := settings.Defaults()
	stored.PixelID = "123456789012345"
	stored.DebugMode = true
	data, _ := json.Marshal(stored)

	mock.ExpectQuery("SELECT data FROM settings WHERE id = 1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(data))

	got, err := s.GetSettings(context.Background())
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if got.PixelID != "123456789012345" || !got.DebugMode {
		t.Errorf("settings = %+v", got)
	}
}

func TestGetSettings_NoRow(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewFromDB(db)

	mock.ExpectQuery("SELECT data FROM settings WHERE id = 1").
		WillReturnError(sql.ErrNoRows)

	got, err := s.GetSettings(context.Background())
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	// A missing row yields the defaults, never an error.
	if !got.EventEnabled("PageView") {
		t.Errorf("missing row should yield defaults, got %+v", got)
	}
}

func TestSaveSettings(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewFromDB(db)

	set := settings.Defaults()
	set.PixelID = "123456789012345"
	data, _ := json.Marshal(set)

	mock.ExpectExec("INSERT INTO settings").
		WithArgs(data).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.SaveSettings(context.Background(), set); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
}

func TestAppendLog(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewFromDB(db)

	now := time.Now().UTC()
	e := &diaglog.Entry{
		EventName: diaglog.NameRequest,
		EventData: `{"trace_id":"t1"}`,
		Status:    diaglog.StatusRequest,
		CreatedAt: now,
	}

	mock.ExpectQuery("INSERT INTO capi_logs").
		WithArgs(e.EventName, e.EventData, nil, e.Status, now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	if err := s.AppendLog(context.Background(), e); err != nil {
		t.Fatalf("AppendLog: %v", err)
	}
	if e.ID != 7 {
		t.Errorf("entry id = %d, want 7", e.ID)
	}
}

func TestAppendLog_ResponseData(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewFromDB(db)

	now := time.Now().UTC()
	e := &diaglog.Entry{
		EventName:    diaglog.NameResponse,
		EventData:    `{"trace_id":"t1"}`,
		ResponseData: `{"events_received":1}`,
		Status:       diaglog.StatusResponse,
		CreatedAt:    now,
	}

	mock.ExpectQuery("INSERT INTO capi_logs").
		WithArgs(e.EventName, e.EventData, e.ResponseData, e.Status, now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(8)))

	if err := s.AppendLog(context.Background(), e); err != nil {
		t.Fatalf("AppendLog: %v", err)
	}
}

func TestListLogs(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewFromDB(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows(logColumns).
		AddRow(int64(2), diaglog.NameResponse, "{}", `{"ok":true}`, diaglog.StatusResponse, now).
		AddRow(int64(1), diaglog.NameRequest, "{}", "", diaglog.StatusRequest, now)

	mock.ExpectQuery("SELECT .+ FROM capi_logs ORDER BY id DESC LIMIT \\$1").
		WithArgs(50).
		WillReturnRows(rows)

	entries, err := s.ListLogs(context.Background(), 50)
	if err != nil {
		t.Fatalf("ListLogs: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].ID != 2 || entries[1].ID != 1 {
		t.Errorf("entries not newest-first: %d, %d", entries[0].ID, entries[1].ID)
	}
}

func TestListLogsBefore(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewFromDB(db)

	cutoff := time.Now().UTC().Add(-720 * time.Hour)
	rows := sqlmock.NewRows(logColumns).
		AddRow(int64(1), diaglog.NameRequest, "{}", "", diaglog.StatusRequest, cutoff.Add(-time.Hour))

	mock.ExpectQuery("SELECT .+ FROM capi_logs WHERE created_at < \\$1 ORDER BY id ASC LIMIT \\$2").
		WithArgs(cutoff, 10000).
		WillReturnRows(rows)

	entries, err := s.ListLogsBefore(context.Background(), cutoff, 10000)
	if err != nil {
		t.Fatalf("ListLogsBefore: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
}

func TestDeleteLogsBefore(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewFromDB(db)

	cutoff := time.Now().UTC()
	mock.ExpectExec("DELETE FROM capi_logs WHERE created_at < \\$1").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 42))

	deleted, err := s.DeleteLogsBefore(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("DeleteLogsBefore: %v", err)
	}
	if deleted != 42 {
		t.Errorf("deleted = %d, want 42", deleted)
	}
}
