package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	apperrors "tempo/internal/platform/errors"
)

func run(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", filepath.Join(dataDir, "missing.yaml"), "--data-dir", dataDir}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestStartStatusStopThroughCLI(t *testing.T) {
	dir := t.TempDir()
	if _, err := run(t, dir, "start", "report", "--category", "writing"); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, err := run(t, dir, "start", "other")
	if exitCode(err) != 3 {
		t.Fatalf("expected conflict exit code, got %v", err)
	}

	raw, err := run(t, dir, "--json", "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var status struct {
		TaskID   string `json:"TaskID"`
		Category string `json:"Category"`
	}
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		t.Fatalf("decode status %q: %v", raw, err)
	}
	if status.TaskID != "report" || status.Category != "writing" {
		t.Fatalf("unexpected status %+v", status)
	}

	if _, err := run(t, dir, "stop", "--completed"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	_, err = run(t, dir, "pause")
	if exitCode(err) != 4 {
		t.Fatalf("expected not-found exit code, got %v", err)
	}
}

func TestExitCode(t *testing.T) {
	cases := map[error]int{
		fmt.Errorf("x: %w", apperrors.ErrInvalidInput): 2,
		apperrors.ErrStaleVersion:                      3,
		apperrors.ErrNoActiveSession:                   4,
		fmt.Errorf("disk full"):                        1,
	}
	for err, want := range cases {
		if got := exitCode(err); got != want {
			t.Fatalf("exitCode(%v) = %d, want %d", err, got, want)
		}
	}
}

func TestParseDay(t *testing.T) {
	day, err := parseDay("2026-03-02")
	if err != nil || day.Year() != 2026 || day.Month() != time.March || day.Day() != 2 {
		t.Fatalf("unexpected %v / %v", day, err)
	}
	if zero, err := parseDay(" "); err != nil || !zero.IsZero() {
		t.Fatalf("expected zero time for blank input")
	}
	if _, err := parseDay("03/02/2026"); err == nil {
		t.Fatalf("expected error for unsupported layout")
	}
}

func TestStartMetricsReportsBindFailure(t *testing.T) {
	srv, errCh, err := startMetrics("127.0.0.1:0")
	if err != nil {
		t.Fatalf("start metrics: %v", err)
	}
	resp, err := http.Get("http://" + srv.Addr + "/metrics")
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if _, _, err := startMetrics(srv.Addr); err == nil {
		t.Fatalf("expected an error when the address is taken")
	}

	if err := shutdownMetrics(srv); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err, open := <-errCh; open || err != nil {
		t.Fatalf("expected a closed channel after clean shutdown, got %v", err)
	}
}

func TestTUIFailsOnUnusableMetricsAddr(t *testing.T) {
	srv, _, err := startMetrics("127.0.0.1:0")
	if err != nil {
		t.Fatalf("start metrics: %v", err)
	}
	t.Cleanup(func() { _ = shutdownMetrics(srv) })

	_, err = run(t, t.TempDir(), "tui", "--metrics-addr", srv.Addr)
	if err == nil {
		t.Fatalf("expected the taken metrics address to abort the dashboard")
	}
}
