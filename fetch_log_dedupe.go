package main

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	defaultFetchLogDedupeMaxKeys = 128
	defaultFetchLogDedupeWindow  = 10 * time.Second
)

// fetchLogDeduper collapses repetitive poll and live-link failure lines.
// A dead backend makes every poll tick and every reconnect attempt log
// the same complaint; without suppression those lines bury everything
// else in the system pane within a minute.
type fetchLogDeduper struct {
	mu      sync.Mutex
	window  time.Duration
	maxKeys int
	now     func() time.Time
	entries map[string]fetchLogDedupeEntry
}

type fetchLogDedupeEntry struct {
	nextEmit   time.Time
	lastSeen   time.Time
	suppressed uint64
}

func newFetchLogDeduper(window time.Duration, maxKeys int) *fetchLogDeduper {
	if window <= 0 || maxKeys <= 0 {
		return nil
	}
	return &fetchLogDeduper{
		window:  window,
		maxKeys: maxKeys,
		now:     func() time.Time { return time.Now().UTC() },
		entries: make(map[string]fetchLogDedupeEntry, maxKeys),
	}
}

// Purpose: Decide whether a log line should be emitted or suppressed.
// Key aspects: Non-matching lines always pass; suppressed repeats are
// summarized once per window.
// Upstream: logFanout.Write line dispatch.
// Downstream: fetchLogDedupeKey and the entries map.
func (d *fetchLogDeduper) Process(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}
	if d == nil {
		return line, true
	}
	key, ok := fetchLogDedupeKey(line)
	if !ok {
		return line, true
	}
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, found := d.entries[key]
	if !found {
		d.evictOneIfNeededLocked()
		d.entries[key] = fetchLogDedupeEntry{
			nextEmit: now.Add(d.window),
			lastSeen: now,
		}
		return line, true
	}
	entry.lastSeen = now
	if now.Before(entry.nextEmit) {
		entry.suppressed++
		d.entries[key] = entry
		return "", false
	}
	suppressed := entry.suppressed
	entry.suppressed = 0
	entry.nextEmit = now.Add(d.window)
	d.entries[key] = entry
	if suppressed > 0 {
		line = fmt.Sprintf("%s (suppressed=%d over %s)", line, suppressed, d.window)
	}
	return line, true
}

func (d *fetchLogDeduper) evictOneIfNeededLocked() {
	if d == nil || d.maxKeys <= 0 {
		return
	}
	if len(d.entries) < d.maxKeys {
		return
	}
	var oldestKey string
	var oldestSeen time.Time
	haveOldest := false
	for key, entry := range d.entries {
		if !haveOldest || entry.lastSeen.Before(oldestSeen) {
			oldestKey = key
			oldestSeen = entry.lastSeen
			haveOldest = true
		}
	}
	if haveOldest {
		delete(d.entries, oldestKey)
	}
}

// fetchLogDedupeKey extracts a suppression key from failure lines emitted
// by the poll loop ("poll: stats: ...") and the live link ("live: connect
// ... failed", "live: connection lost: ..."). The key is the prefix plus
// the first token so distinct resources and stages keep separate windows.
// Anything else passes through untouched.
func fetchLogDedupeKey(line string) (string, bool) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) < 3 {
		return "", false
	}
	switch fields[0] {
	case "poll:", "live:":
	default:
		return "", false
	}
	stage := strings.ToLower(strings.Trim(fields[1], "():,;"))
	if stage == "" {
		return "", false
	}
	return fields[0] + stage, true
}
