package handlers

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
)

// present starts the session and marks the names present.
func present(t *testing.T, env *testEnv, names ...string) {
	t.Helper()
	if !env.session.Active() {
		if _, err := env.session.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
	}
	env.session.OnFrameResult(names)
}

func TestAttendanceHandler_List(t *testing.T) {
	env := newTestEnv(t)
	handler := NewAttendanceHandler(env.cfg, env.session)

	recorder := httptest.NewRecorder()
	handler.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/attendance", nil))
	if strings.TrimSpace(recorder.Body.String()) != "[]" {
		t.Errorf("expected empty JSON list, got '%s'", recorder.Body.String())
	}

	present(t, env, "Alice", "Bob", "Alice")

	recorder = httptest.NewRecorder()
	handler.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/attendance", nil))

	var records []attendance.Record
	parseJSONResponse(t, recorder, &records)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Date != records[1].Date {
		t.Errorf("expected same date, got %s and %s", records[0].Date, records[1].Date)
	}
}

func TestAttendanceHandler_Reset(t *testing.T) {
	env := newTestEnv(t)
	handler := NewAttendanceHandler(env.cfg, env.session)
	present(t, env, "Alice")

	recorder := httptest.NewRecorder()
	handler.Reset(recorder, httptest.NewRequest(http.MethodDelete, "/api/v1/attendance", nil))

	assertStatusCode(t, recorder, http.StatusNoContent)
	if len(env.session.Records()) != 0 {
		t.Errorf("expected empty log after reset, got %d records", len(env.session.Records()))
	}
	if !env.session.Active() {
		t.Error("expected reset to keep the session active")
	}
}

func TestAttendanceHandler_Export(t *testing.T) {
	inExportDir := func(name string) func(env *testEnv) string {
		return func(env *testEnv) string { return filepath.Join(filepath.Dir(env.cfg.Export.Path), name) }
	}

	tests := []struct {
		name string
		body string
		path func(env *testEnv) string
	}{
		{"default path", "", func(env *testEnv) string { return env.cfg.Export.Path }},
		{"empty object", "{}", func(env *testEnv) string { return env.cfg.Export.Path }},
		{"file name", `{"path": "monday.xlsx"}`, inExportDir("monday.xlsx")},
		{"nested clean path", `{"path": "week1/../monday.xlsx"}`, inExportDir("monday.xlsx")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			handler := NewAttendanceHandler(env.cfg, env.session)
			present(t, env, "Alice", "Bob")

			req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance/export", strings.NewReader(tc.body))
			recorder := httptest.NewRecorder()

			handler.Export(recorder, req)

			assertStatusCode(t, recorder, http.StatusOK)

			var result ExportResponse
			parseJSONResponse(t, recorder, &result)
			want := tc.path(env)
			if result.Path != want {
				t.Errorf("expected path '%s', got '%s'", want, result.Path)
			}
			if result.Records != 2 {
				t.Errorf("expected 2 records, got %d", result.Records)
			}

			rows, err := attendance.ReadExport(want)
			if err != nil {
				t.Fatalf("failed to read export: %v", err)
			}
			if len(rows) != 3 {
				t.Errorf("expected header and 2 rows, got %d rows", len(rows))
			}
		})
	}
}

func TestAttendanceHandler_Export_Errors(t *testing.T) {
	env := newTestEnv(t)
	handler := NewAttendanceHandler(env.cfg, env.session)

	recorder := httptest.NewRecorder()
	handler.Export(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/attendance/export", strings.NewReader("{bad")))
	assertStatusCode(t, recorder, http.StatusBadRequest)

	outside := filepath.Join(t.TempDir(), "out.xlsx")
	tests := []struct {
		name     string
		path     string
		expected int
		written  string
	}{
		{"parent traversal", "../out.xlsx", http.StatusBadRequest, filepath.Join(filepath.Dir(filepath.Dir(env.cfg.Export.Path)), "out.xlsx")},
		{"absolute outside", outside, http.StatusBadRequest, outside},
		{"not a spreadsheet", "roster.json", http.StatusBadRequest, filepath.Join(filepath.Dir(env.cfg.Export.Path), "roster.json")},
		{"missing subdir", "missing/out.xlsx", http.StatusInternalServerError, filepath.Join(filepath.Dir(env.cfg.Export.Path), "missing", "out.xlsx")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			handler.Export(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/attendance/export",
				strings.NewReader(`{"path": "`+tc.path+`"}`)))
			assertStatusCode(t, recorder, tc.expected)
			if _, err := os.Stat(tc.written); !os.IsNotExist(err) {
				t.Errorf("expected no file at %s", tc.written)
			}
		})
	}
}

func TestAttendanceHandler_Events(t *testing.T) {
	env := newTestEnv(t)
	handler := NewAttendanceHandler(env.cfg, env.session)

	server := httptest.NewServer(http.HandlerFunc(handler.Events))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected Content-Type 'text/event-stream', got '%s'", ct)
	}

	reader := bufio.NewReader(resp.Body)
	nextEvent := func() string {
		t.Helper()
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("failed to read event: %v", err)
			}
			if name, ok := strings.CutPrefix(line, "event: "); ok {
				return strings.TrimSpace(name)
			}
		}
	}

	if got := nextEvent(); got != "status" {
		t.Fatalf("expected initial 'status' event, got '%s'", got)
	}

	// The listener is attached before the status event is written.
	present(t, env, "Alice")

	expected := []string{attendance.EventSession, attendance.EventRecord}
	for _, want := range expected {
		if got := nextEvent(); got != want {
			t.Errorf("expected '%s' event, got '%s'", want, got)
		}
	}
}
