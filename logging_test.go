package main

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"vatop/config"
)

func TestLogFileNameForDate(t *testing.T) {
	when := time.Date(2026, time.February, 6, 12, 0, 0, 0, time.UTC)
	if got := logFileNameForDate(when); got != "06-Feb-2026.log" {
		t.Fatalf("expected log filename to be 06-Feb-2026.log, got %q", got)
	}
}

func TestParseLogFileDate(t *testing.T) {
	parsed, ok := parseLogFileDate("06-Feb-2026.log")
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if parsed.Year() != 2026 || parsed.Month() != time.February || parsed.Day() != 6 {
		t.Fatalf("unexpected parsed date: %s", parsed.Format(time.RFC3339))
	}
	if _, ok := parseLogFileDate("notes.txt"); ok {
		t.Fatalf("expected non-log file to be rejected")
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		"04-Feb-2026.log",
		"05-Feb-2026.log",
		"06-Feb-2026.log",
		"notes.txt",
	}
	for _, name := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	now := time.Date(2026, time.February, 6, 12, 0, 0, 0, time.UTC)
	if err := cleanupOldLogs(dir, now, 2); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "04-Feb-2026.log")); err == nil {
		t.Fatalf("expected 04-Feb-2026.log to be removed")
	} else if !os.IsNotExist(err) {
		t.Fatalf("stat 04-Feb-2026.log: %v", err)
	}
	for _, name := range []string{"05-Feb-2026.log", "06-Feb-2026.log", "notes.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s to remain: %v", name, err)
		}
	}
}

func TestSetupLoggingDisabled(t *testing.T) {
	var buf bytes.Buffer
	fanout, err := setupLogging(config.LoggingConfig{Enabled: false}, &buf)
	if err != nil {
		t.Fatalf("setupLogging: %v", err)
	}
	defer fanout.Close()

	logger := log.New(fanout, "", 0)
	logger.Print("console only")

	if !strings.Contains(buf.String(), "console only") {
		t.Fatalf("console sink missed the line: %q", buf.String())
	}
	// File-only lines have nowhere to go without a file sink.
	fanout.WriteFileOnlyLine("session summary", time.Now().UTC())
	if strings.Contains(buf.String(), "session summary") {
		t.Fatalf("file-only line leaked to console: %q", buf.String())
	}
}

func TestLogFanoutSplitsLines(t *testing.T) {
	var buf bytes.Buffer
	fanout := newLogFanout(&ioLineSink{w: &buf}, nil)

	if _, err := fanout.Write([]byte("first\nsecond\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || lines[0] != "first" || lines[1] != "second" {
		t.Fatalf("unexpected console lines: %q", lines)
	}
}

func TestLogFanoutDedupesFetchLines(t *testing.T) {
	var buf bytes.Buffer
	fanout := newLogFanout(&ioLineSink{w: &buf}, nil)
	fanout.SetDeduper(newFetchLogDeduper(10*time.Second, 16))

	logger := log.New(fanout, "", 0)
	logger.Print(`poll: stats: Get "http://localhost:8000/api/stats": connection refused`)
	logger.Print(`poll: stats: Get "http://localhost:8000/api/stats": connection refused`)
	logger.Print("UI: refresh interval clamped to 100ms")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 emitted lines, got %d: %q", len(lines), lines)
	}
	if !strings.Contains(lines[0], "connection refused") {
		t.Fatalf("first emission should pass through: %q", lines[0])
	}
	if lines[1] != "UI: refresh interval clamped to 100ms" {
		t.Fatalf("non-fetch line should be untouched: %q", lines[1])
	}
}

func TestWriteFileOnlyLineSkipsConsole(t *testing.T) {
	var console bytes.Buffer
	var file bytes.Buffer
	fanout := newLogFanout(&ioLineSink{w: &console}, nil)
	fanout.SetFileSink(&ioLineSink{w: &file})

	fanout.WriteFileOnlyLine("Session: Polls ok: 12", time.Now().UTC())

	if console.Len() != 0 {
		t.Fatalf("console should stay silent: %q", console.String())
	}
	if !strings.Contains(file.String(), "Session: Polls ok: 12") {
		t.Fatalf("file sink missed the line: %q", file.String())
	}
}

func TestDailyFileSinkRotateHook(t *testing.T) {
	dir := t.TempDir()
	sink, err := newDailyFileSink(dir, 1)
	if err != nil {
		t.Fatalf("newDailyFileSink: %v", err)
	}
	defer sink.Close()

	var gotPrevDate time.Time
	var gotPrevPath string
	var gotNewPath string
	hookDone := make(chan struct{})
	var hookOnce sync.Once
	sink.SetRotateHook(func(prevDate time.Time, prevPath, newPath string) {
		gotPrevDate = prevDate
		gotPrevPath = prevPath
		gotNewPath = newPath
		hookOnce.Do(func() { close(hookDone) })
	})

	day1 := time.Date(2026, time.February, 6, 12, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	sink.WriteLine("first", day1)
	sink.WriteLine("second", day2)

	select {
	case <-hookDone:
	case <-time.After(2 * time.Second):
		t.Fatalf("rotate hook did not complete")
	}
	if gotPrevDate.IsZero() {
		t.Fatalf("expected rotate hook to capture previous date")
	}
	if gotPrevDate.Year() != day1.Year() || gotPrevDate.Month() != day1.Month() || gotPrevDate.Day() != day1.Day() {
		t.Fatalf("unexpected prev date: %s", gotPrevDate.Format(time.RFC3339))
	}
	if gotPrevPath == "" || gotNewPath == "" {
		t.Fatalf("expected prev/new log paths to be set")
	}
	if filepath.Base(gotPrevPath) != "06-Feb-2026.log" {
		t.Fatalf("unexpected prev log path: %s", gotPrevPath)
	}
	if filepath.Base(gotNewPath) != "07-Feb-2026.log" {
		t.Fatalf("unexpected new log path: %s", gotNewPath)
	}
}

func TestRotateHookLoggingDoesNotDeadlock(t *testing.T) {
	dir := t.TempDir()
	sink, err := newDailyFileSink(dir, 1)
	if err != nil {
		t.Fatalf("newDailyFileSink: %v", err)
	}
	defer sink.Close()

	fanout := newLogFanout(nil, sink)
	logger := log.New(fanout, "", 0)

	now := time.Now().UTC()
	sink.WriteLine("prime", now)

	// Force the next log write to rotate without relying on wall-clock midnight.
	sink.mu.Lock()
	sink.currentDate = now.Add(-24 * time.Hour).Format(logFileDateLayout)
	sink.mu.Unlock()

	hookDone := make(chan struct{})
	var hookOnce sync.Once
	sink.SetRotateHook(func(prevDate time.Time, prevPath, newPath string) {
		logger.Printf("rotate hook for %s", prevDate.Format(time.RFC3339))
		hookOnce.Do(func() { close(hookDone) })
	})

	done := make(chan struct{})
	go func() {
		logger.Print("trigger rotation")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("logger.Print deadlocked during rotate hook logging")
	}
	select {
	case <-hookDone:
	case <-time.After(2 * time.Second):
		t.Fatalf("rotate hook did not complete")
	}
}
