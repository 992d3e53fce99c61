package main

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"vatop/stats"
)

const sessionStatsInterval = 30 * time.Second

// sessionStats maintains the session footer lines rendered under the
// stats pane: a runtime line (heap, goroutines, GC pauses) followed by
// the tracker's poll and live counters. The render loop reads them every
// heartbeat; the refresh ticker rebuilds them and mirrors a one-line
// summary into the daily log file.
type sessionStats struct {
	tracker  *stats.Tracker
	gcWindow gcPauseWindow
	lines    atomic.Pointer[[]string]
}

func newSessionStats(tracker *stats.Tracker) *sessionStats {
	s := &sessionStats{tracker: tracker}
	empty := []string{}
	s.lines.Store(&empty)
	return s
}

// Lines returns the most recent footer lines. The slice is replaced
// wholesale on refresh and never mutated afterwards.
func (s *sessionStats) Lines() []string {
	if s == nil {
		return nil
	}
	return *s.lines.Load()
}

// Purpose: Rebuild the footer lines from runtime and tracker state.
// Key aspects: Runs only on the refresh goroutine; gcWindow assumes
// serial snapshots.
// Upstream: startSessionStats ticker.
// Downstream: runtime.ReadMemStats and stats.Tracker.SnapshotLines.
func (s *sessionStats) refresh(now time.Time) []string {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	p99, gcCount, truncated := s.gcWindow.snapshot(&mem)

	lines := make([]string, 0, 8)
	lines = append(lines, formatRuntimeLine(&mem, runtime.NumGoroutine(), p99, gcCount, truncated))
	if s.tracker != nil {
		lines = append(lines, s.tracker.SnapshotLines()...)
	}
	s.lines.Store(&lines)
	return lines
}

// Purpose: Periodically refresh footer lines and log a session summary.
// Key aspects: The summary goes to the file sink only so the system pane
// stays readable.
// Upstream: main startup.
// Downstream: sessionStats.refresh and logFanout.WriteFileOnlyLine.
func startSessionStats(ctx context.Context, s *sessionStats, interval time.Duration, fanout *logFanout) {
	if s == nil {
		return
	}
	if interval <= 0 {
		interval = sessionStatsInterval
	}
	s.refresh(time.Now().UTC())
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := time.Now().UTC()
				lines := s.refresh(now)
				if fanout != nil {
					fanout.WriteFileOnlyLine("Session: "+strings.Join(lines, " | "), now)
				}
			}
		}
	}()
}

// Purpose: Format the runtime footer line.
// Key aspects: GC p99 covers only pauses since the previous refresh; a
// trailing plus marks a truncated pause window.
// Upstream: sessionStats.refresh.
// Downstream: bytesToMB and time.Duration formatting.
func formatRuntimeLine(mem *runtime.MemStats, goroutines int, p99 time.Duration, gcCount int, truncated bool) string {
	gc := "none"
	if gcCount > 0 {
		gc = fmt.Sprintf("%s/%d", p99.Round(time.Microsecond), gcCount)
		if truncated {
			gc += "+"
		}
	}
	return fmt.Sprintf("Runtime: heap=%.1f MB sys=%.1f MB goroutines=%d gc_p99=%s",
		bytesToMB(mem.HeapAlloc), bytesToMB(mem.Sys), goroutines, gc)
}

// Purpose: Convert bytes to megabytes (MB).
// Key aspects: Uses base-2 MB.
// Upstream: formatRuntimeLine and the heap logger.
// Downstream: float math.
func bytesToMB(b uint64) float64 {
	return float64(b) / (1024.0 * 1024.0)
}

// gcPauseWindow tracks GC pauses between session refresh ticks.
// Ownership: sessionStats owns the instance and calls snapshot from its
// refresh goroutine only.
// Invariant: snapshot is called at most once per refresh interval.
type gcPauseWindow struct {
	lastNumGC   uint32
	initialized bool
}

// snapshot returns the p99 pause duration for GCs that occurred since the last
// snapshot, along with the number of pauses considered. If the number of new
// GCs exceeds the pause ring size, the snapshot is truncated to the most recent
// pauses and truncated is true.
func (w *gcPauseWindow) snapshot(mem *runtime.MemStats) (p99 time.Duration, count int, truncated bool) {
	if mem == nil {
		return 0, 0, false
	}
	if !w.initialized {
		w.lastNumGC = mem.NumGC
		w.initialized = true
		return 0, 0, false
	}
	if mem.NumGC <= w.lastNumGC {
		return 0, 0, false
	}
	delta := mem.NumGC - w.lastNumGC
	w.lastNumGC = mem.NumGC

	ringLen := len(mem.PauseNs)
	if ringLen == 0 {
		return 0, 0, false
	}

	needed := int(delta)
	if needed > ringLen {
		needed = ringLen
		truncated = true
	}

	pauses := make([]uint64, 0, needed)
	idx := int((mem.NumGC - 1) % uint32(ringLen))
	for i := 0; i < needed; i++ {
		if v := mem.PauseNs[idx]; v > 0 {
			pauses = append(pauses, v)
		}
		idx--
		if idx < 0 {
			idx = ringLen - 1
		}
	}
	if len(pauses) == 0 {
		return 0, 0, truncated
	}
	sort.Slice(pauses, func(i, j int) bool { return pauses[i] < pauses[j] })
	return time.Duration(p99Index(pauses)), len(pauses), truncated
}

func p99Index(pauses []uint64) uint64 {
	if len(pauses) == 0 {
		return 0
	}
	idx := int(float64(len(pauses)-1) * 0.99)
	if idx < 0 {
		idx = 0
	}
	return pauses[idx]
}
