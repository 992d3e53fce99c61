package ui

import (
	"strings"
	"testing"

	"vatop/config"
	"vatop/live"
)

func TestApplyANSIMarkup(t *testing.T) {
	colored := applyANSIMarkup("[green]active[-] rest", true)
	if !strings.Contains(colored, "\x1b[32m") {
		t.Fatalf("expected green escape, got %q", colored)
	}
	if !strings.HasSuffix(colored, resetANSI) {
		t.Fatalf("expected trailing reset, got %q", colored)
	}

	stripped := applyANSIMarkup("[green]active[-] rest", false)
	if stripped != "active rest" {
		t.Fatalf("expected tags stripped, got %q", stripped)
	}

	if got := applyANSIMarkup("", true); got != "" {
		t.Fatalf("expected empty passthrough, got %q", got)
	}
}

func TestANSIWriterSplitsLines(t *testing.T) {
	var lines []string
	w := &ansiWriter{append: func(s string) { lines = append(lines, s) }}

	w.Write([]byte("one\r\ntwo part"))
	w.Write([]byte(" two\nthree"))

	if len(lines) != 2 {
		t.Fatalf("expected 2 complete lines, got %v", lines)
	}
	if lines[0] != "one" || lines[1] != "two part two" {
		t.Fatalf("unexpected lines: %v", lines)
	}
}

func TestSnapshotPaneOrder(t *testing.T) {
	p := ringPane{lines: make([]string, 3)}
	c := &ansiConsole{}
	c.feed = p
	for _, line := range []string{"a", "b", "c", "d"} {
		c.append(&c.feed, line)
	}

	buf := make([]string, 3)
	got := snapshotPane(&c.feed, buf)
	if len(got) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(got))
	}
	if got[0] != "b" || got[1] != "c" || got[2] != "d" {
		t.Fatalf("unexpected ring order: %v", got)
	}
}

func TestNewANSIConsoleDisabledIsNil(t *testing.T) {
	if s := NewANSIConsole(config.DefaultConfig().UI, false); s != nil {
		t.Fatalf("expected nil surface when disabled")
	}
}

func testANSIConfig() config.UIConfig {
	cfg := config.DefaultConfig().UI
	cfg.RefreshMS = 0
	cfg.Color = false
	return cfg
}

func TestANSIConsoleSnapshotClampsPanes(t *testing.T) {
	cfg := testANSIConfig()
	cfg.PaneLines.Streams = 2
	cfg.PaneLines.Detections = 1

	surface := NewANSIConsole(cfg, true)
	c := surface.(*ansiConsole)

	surface.SetSnapshot(Snapshot{
		HeaderLines:    []string{"head"},
		StatsLines:     []string{"[green]stats[-]"},
		StreamLines:    []string{"s1", "s2", "s3"},
		DetectionLines: []string{"d1", "d2"},
		FooterLines:    []string{"session"},
		Connection:     live.Disconnected,
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.streams) != 2 {
		t.Fatalf("expected streams clamped to 2, got %v", c.streams)
	}
	if len(c.detections) != 1 {
		t.Fatalf("expected detections clamped to 1, got %v", c.detections)
	}
	if c.stats[0] != "stats" {
		t.Fatalf("expected markup stripped with color off, got %q", c.stats[0])
	}
	if c.stats[len(c.stats)-1] != "session" {
		t.Fatalf("expected session lines after stats, got %v", c.stats)
	}
}

func TestANSIConsoleLinkTransitionsEnterFeed(t *testing.T) {
	surface := NewANSIConsole(testANSIConfig(), true)
	c := surface.(*ansiConsole)

	surface.SetSnapshot(Snapshot{Connection: live.Disconnected})
	surface.SetSnapshot(Snapshot{Connection: live.Connected})
	surface.SetSnapshot(Snapshot{Connection: live.Connected})

	c.mu.Lock()
	feed := snapshotPane(&c.feed, make([]string, len(c.feed.lines)))
	c.mu.Unlock()

	if len(feed) != 1 {
		t.Fatalf("expected exactly one link event, got %v", feed)
	}
	if !strings.Contains(feed[0], "link connected") {
		t.Fatalf("unexpected feed line: %q", feed[0])
	}
}

func TestANSIConsoleStopIdempotent(t *testing.T) {
	surface := NewANSIConsole(testANSIConfig(), true)
	surface.Stop()
	surface.Stop()
}
