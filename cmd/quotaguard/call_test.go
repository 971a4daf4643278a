package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"mercator-hq/quotaguard/pkg/throttle"
)

func remoteConfig(t *testing.T, baseURL string) string {
	t.Helper()
	return remoteConfigWithQuota(t, baseURL, 30000)
}

func remoteConfigWithQuota(t *testing.T, baseURL string, perMonth int) string {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "usage.db")
	return writeConfig(t, fmt.Sprintf(`
services:
  face:
    per_minute: 100
    per_month: %d
    cooldown: "1ms"
    remote:
      base_url: %q
      api_key: "Bearer test-key"
      structural_codes: ["ImageTooLarge"]
storage:
  backend: sqlite
  sqlite:
    path: %q
telemetry:
  logging:
    level: error
`, perMonth, baseURL, dbPath))
}

func TestCallAndUsage(t *testing.T) {
	var calls atomic.Int32
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Method != http.MethodPost || r.URL.Path != "/detect" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"faces": 1}`))
	}))
	defer remote.Close()

	path := remoteConfig(t, remote.URL)

	out, err := executeCommand(t, "call", "face", "post", "/detect", "--config", path, "--body", `{"image_url": "x"}`)
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if strings.TrimSpace(out) != `{"faces": 1}` {
		t.Errorf("expected remote response, got %q", out)
	}

	if _, err := executeCommand(t, "call", "face", "POST", "/detect", "--config", path, "--count", "3"); err != nil {
		t.Fatalf("batch call failed: %v", err)
	}
	if got := calls.Load(); got != 4 {
		t.Errorf("expected 4 remote calls, got %d", got)
	}

	out, err = executeCommand(t, "usage", "--config", path, "--format", "json")
	if err != nil {
		t.Fatalf("usage failed: %v", err)
	}
	var snapshots []throttle.Snapshot
	if err := json.Unmarshal([]byte(out), &snapshots); err != nil {
		t.Fatalf("invalid usage JSON %q: %v", out, err)
	}
	if len(snapshots) != 1 || snapshots[0].MonthlyCount != 4 {
		t.Errorf("expected 4 transactions persisted, got %+v", snapshots)
	}

	out, err = executeCommand(t, "usage", "--config", path, "--service", "face", "--history", "--format", "csv")
	if err != nil {
		t.Fatalf("usage history failed: %v", err)
	}
	today := time.Now().Format("2006-01-02")
	if !strings.Contains(out, today+",face,4") {
		t.Errorf("expected today's record in history, got %q", out)
	}

	out, err = executeCommand(t, "usage", "--config", path, "--summary")
	if err != nil {
		t.Fatalf("usage summary failed: %v", err)
	}
	if !strings.HasPrefix(out, "face: 4 of 30000 transactions used in ") {
		t.Errorf("unexpected summary %q", out)
	}
}

func TestCall_StructuralInvalidIsSkipped(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"code": "ImageTooLarge", "message": "image exceeds 6MB"}}`))
	}))
	defer remote.Close()

	out, err := executeCommand(t, "call", "face", "POST", "/detect", "--config", remoteConfig(t, remote.URL))
	if err != nil {
		t.Fatalf("expected structural rejection to be skipped, got %v", err)
	}
	if !strings.Contains(out, "request skipped") {
		t.Errorf("expected skipped notice, got %q", out)
	}
}

func TestCall_RemoteFailure(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer remote.Close()

	_, err := executeCommand(t, "call", "face", "GET", "/status", "--config", remoteConfig(t, remote.URL))
	if err == nil {
		t.Fatal("expected error from failing remote")
	}
}

func TestCall_Errors(t *testing.T) {
	path := remoteConfig(t, "http://127.0.0.1:1")

	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown service", args: []string{"call", "ocr", "GET", "/", "--config", path}},
		{name: "bad count", args: []string{"call", "face", "GET", "/", "--config", path, "--count", "0"}},
		{name: "missing args", args: []string{"call", "face", "--config", path}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := executeCommand(t, tt.args...); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestHistoryRange(t *testing.T) {
	now := time.Date(2026, time.October, 18, 15, 0, 0, 0, time.UTC)

	from, to, err := historyRange(now, "", "")
	if err != nil {
		t.Fatalf("historyRange failed: %v", err)
	}
	if from.Format("2006-01-02") != "2026-10-01" || to.Format("2006-01-02") != "2026-10-18" {
		t.Errorf("expected 2026-10-01..2026-10-18, got %s..%s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	if _, _, err := historyRange(now, "2026-10-10", "2026-10-01"); err == nil {
		t.Error("expected error for inverted range")
	}
	if _, _, err := historyRange(now, "last week", ""); err == nil {
		t.Error("expected error for malformed date")
	}
}

func TestUsage_HistoryRequiresService(t *testing.T) {
	if _, err := executeCommand(t, "usage", "--history"); err == nil {
		t.Fatal("expected error without --service")
	}
}

func TestCall_RefusesWhenQuotaExhausted(t *testing.T) {
	var calls atomic.Int32
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer remote.Close()

	path := remoteConfigWithQuota(t, remote.URL, 2)

	_, err := executeCommand(t, "call", "face", "GET", "/status", "--config", path, "--count", "3")
	if !errors.Is(err, errQuotaExhausted) {
		t.Fatalf("expected quota exhausted error mid-batch, got %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 remote calls before the quota ran out, got %d", got)
	}

	_, err = executeCommand(t, "call", "face", "GET", "/status", "--config", path)
	if !errors.Is(err, errQuotaExhausted) {
		t.Fatalf("expected quota exhausted error, got %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("expected no remote call once exhausted, got %d calls", got)
	}

	if _, err := executeCommand(t, "call", "face", "GET", "/status", "--config", path, "--force"); err != nil {
		t.Fatalf("expected --force to send the request, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 remote calls after --force, got %d", got)
	}
}
