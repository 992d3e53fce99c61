// Package stats tracks poll and live-link counters for display in the
// dashboard and periodic console output.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Tracker tracks fetch outcomes per REST resource and live-link activity
type Tracker struct {
	// per-resource counters live in sync.Map + atomic.Uint64 so concurrent
	// fetchers don't fight over a mutex
	pollSuccesses sync.Map // resource -> *atomic.Uint64
	pollFailures  sync.Map // resource -> *atomic.Uint64

	start atomic.Int64

	liveFrames       atomic.Uint64
	liveDecodeErrors atomic.Uint64
	liveDropped      atomic.Uint64
	liveConnects     atomic.Uint64
	liveDisconnects  atomic.Uint64
}

// NewTracker creates a new stats tracker
func NewTracker() *Tracker {
	t := &Tracker{}
	t.start.Store(time.Now().UnixNano())
	return t
}

// IncrementPollSuccess increases the success count for a resource (stats, streams, detections)
func (t *Tracker) IncrementPollSuccess(resource string) {
	incrementCounter(&t.pollSuccesses, resource)
}

// IncrementPollFailure increases the failure count for a resource
func (t *Tracker) IncrementPollFailure(resource string) {
	incrementCounter(&t.pollFailures, resource)
}

// IncrementLiveFrame counts a decoded push frame.
func (t *Tracker) IncrementLiveFrame() {
	t.liveFrames.Add(1)
}

// IncrementLiveDecodeError counts a push frame that failed to decode.
func (t *Tracker) IncrementLiveDecodeError() {
	t.liveDecodeErrors.Add(1)
}

// IncrementLiveDropped counts a push frame with an unrecognized shape.
func (t *Tracker) IncrementLiveDropped() {
	t.liveDropped.Add(1)
}

// IncrementLiveConnect counts an established websocket connection.
func (t *Tracker) IncrementLiveConnect() {
	t.liveConnects.Add(1)
}

// IncrementLiveDisconnect counts a lost websocket connection.
func (t *Tracker) IncrementLiveDisconnect() {
	t.liveDisconnects.Add(1)
}

// GetPollSuccessCounts returns a copy of per-resource success counts
func (t *Tracker) GetPollSuccessCounts() map[string]uint64 {
	return copyCounts(&t.pollSuccesses)
}

// GetPollFailureCounts returns a copy of per-resource failure counts
func (t *Tracker) GetPollFailureCounts() map[string]uint64 {
	return copyCounts(&t.pollFailures)
}

// LiveFrames returns the cumulative number of decoded push frames.
func (t *Tracker) LiveFrames() uint64 {
	return t.liveFrames.Load()
}

// LiveDecodeErrors returns the cumulative number of undecodable frames.
func (t *Tracker) LiveDecodeErrors() uint64 {
	return t.liveDecodeErrors.Load()
}

// LiveDropped returns the cumulative number of unrecognized frames.
func (t *Tracker) LiveDropped() uint64 {
	return t.liveDropped.Load()
}

// LiveConnects returns the cumulative number of established connections.
func (t *Tracker) LiveConnects() uint64 {
	return t.liveConnects.Load()
}

// LiveDisconnects returns the cumulative number of lost connections.
func (t *Tracker) LiveDisconnects() uint64 {
	return t.liveDisconnects.Load()
}

// GetUptime returns how long the tracker has been running
func (t *Tracker) GetUptime() time.Duration {
	start := t.start.Load()
	return time.Since(time.Unix(0, start))
}

// SnapshotLines returns human-readable stats ready for console display.
// Lines come out in a stable order so periodic rendering doesn't flicker.
func (t *Tracker) SnapshotLines() []string {
	lines := make([]string, 0, 4)
	lines = append(lines, formatMapCounts("Polls ok", &t.pollSuccesses))
	lines = append(lines, formatMapCounts("Polls failed", &t.pollFailures))

	frames := t.liveFrames.Load()
	rate := 0.0
	if secs := t.GetUptime().Seconds(); secs > 0 {
		rate = float64(frames) / secs
	}
	lines = append(lines, fmt.Sprintf("Live: frames=%d (%.1f/s), decode_errors=%d, dropped=%d",
		frames, rate, t.liveDecodeErrors.Load(), t.liveDropped.Load()))
	lines = append(lines, fmt.Sprintf("Link: connects=%d, disconnects=%d",
		t.liveConnects.Load(), t.liveDisconnects.Load()))
	return lines
}

func copyCounts(m *sync.Map) map[string]uint64 {
	counts := make(map[string]uint64)
	m.Range(func(key, value any) bool {
		counts[key.(string)] = value.(*atomic.Uint64).Load()
		return true
	})
	return counts
}

func formatMapCounts(label string, counts *sync.Map) string {
	snapshot := copyCounts(counts)
	if len(snapshot) == 0 {
		return label + ": (none)"
	}
	keys := make([]string, 0, len(snapshot))
	for key := range snapshot {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var builder strings.Builder
	builder.WriteString(label)
	builder.WriteString(": ")
	for i, key := range keys {
		if i > 0 {
			builder.WriteString(", ")
		}
		fmt.Fprintf(&builder, "%s=%d", key, snapshot[key])
	}
	return builder.String()
}

func incrementCounter(m *sync.Map, key string) {
	if strings.TrimSpace(key) == "" {
		return
	}
	if value, ok := m.Load(key); ok {
		value.(*atomic.Uint64).Add(1)
		return
	}
	counter := &atomic.Uint64{}
	actual, loaded := m.LoadOrStore(key, counter)
	if loaded {
		actual.(*atomic.Uint64).Add(1)
		return
	}
	counter.Add(1)
}
