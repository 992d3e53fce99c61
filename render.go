package main

import (
	"context"
	"log"
	"strings"
	"time"

	"vatop/stats"
	"vatop/ui"
	"vatop/viewstate"
)

const (
	renderHeartbeat       = time.Second
	headlessSummaryRounds = 30
)

// Purpose: Push merged view snapshots to the active console surface.
// Key aspects: Store changes coalesce through a single-slot subscription; the
// heartbeat keeps relative ages ticking while the pipeline is quiet.
// Upstream: main, as a goroutine once the surface is ready.
// Downstream: ui.BuildSnapshot and Surface.SetSnapshot.
func runRenderLoop(ctx context.Context, store *viewstate.Store, surface ui.Surface, tracker *stats.Tracker, session *sessionStats, name string) {
	changes := store.Subscribe()
	ticker := time.NewTicker(renderHeartbeat)
	defer ticker.Stop()

	render := func(now time.Time) ui.Snapshot {
		view := store.View()
		var uptime time.Duration
		if tracker != nil {
			uptime = tracker.GetUptime()
		}
		var footer []string
		if session != nil {
			footer = session.Lines()
		}
		return ui.BuildSnapshot(view, name, uptime, footer, now)
	}

	if surface != nil {
		surface.SetSnapshot(render(time.Now()))
	}
	heartbeats := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
			if surface != nil {
				surface.SetSnapshot(render(time.Now()))
			}
		case <-ticker.C:
			now := time.Now()
			if surface != nil {
				surface.SetSnapshot(render(now))
				continue
			}
			heartbeats++
			if heartbeats%headlessSummaryRounds == 0 {
				logHeadlessSummary(render(now))
			}
		}
	}
}

// Purpose: Log a compact status block when no console surface is active.
// Key aspects: Strips color markup so log files stay plain text.
// Upstream: runRenderLoop heartbeat path in headless mode.
// Downstream: log.Printf.
func logHeadlessSummary(snap ui.Snapshot) {
	lines := make([]string, 0, len(snap.HeaderLines)+len(snap.StatsLines))
	lines = append(lines, snap.HeaderLines...)
	lines = append(lines, snap.StatsLines...)
	for _, line := range lines {
		clean := strings.TrimSpace(ui.StripTags(line))
		if clean == "" {
			continue
		}
		log.Printf("Status: %s", clean)
	}
}
