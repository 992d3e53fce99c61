package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"vatop/live"
	"vatop/viewstate"
)

const (
	sourceHealthInterval  = 30 * time.Second
	sourceIdleThreshold   = 2 * time.Minute
	sourceHealthLogPrefix = "Health: "
)

type sourceHealthSnapshot struct {
	Connected    bool
	LastDataAt   time.Time
	LastErrorAt  time.Time
	Failures     int
	FrameQueue   int
	ResultsQueue int
	HaveQueues   bool
}

type sourceHealth struct {
	name     string
	snapshot func() sourceHealthSnapshot
}

type sourceHealthState struct {
	connected   bool
	idle        bool
	initialized bool
}

// Purpose: Periodically log data-source health transitions with low noise.
// Key aspects: Reports only on connected/idle state changes.
// Upstream: main startup after the poller and live channel are created.
// Downstream: log.Printf.
func startSourceHealthMonitor(ctx context.Context, sources []sourceHealth) {
	if len(sources) == 0 {
		return
	}
	ticker := time.NewTicker(sourceHealthInterval)
	go func() {
		defer ticker.Stop()
		states := make(map[string]sourceHealthState, len(sources))
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := time.Now().UTC()
				for _, source := range sources {
					if source.snapshot == nil {
						continue
					}
					snap := source.snapshot()
					idle := sourceIsIdle(snap, now)
					state := states[source.name]
					if !state.initialized || state.connected != snap.Connected || state.idle != idle {
						log.Printf("%s%s", sourceHealthLogPrefix, formatSourceHealthLine(source.name, snap, idle, now))
						states[source.name] = sourceHealthState{
							connected:   snap.Connected,
							idle:        idle,
							initialized: true,
						}
					}
				}
			}
		}
	}()
}

func sourceIsIdle(snap sourceHealthSnapshot, now time.Time) bool {
	if snap.LastDataAt.IsZero() {
		return true
	}
	return now.Sub(snap.LastDataAt) > sourceIdleThreshold
}

func formatSourceHealthLine(name string, snap sourceHealthSnapshot, idle bool, now time.Time) string {
	status := "connected"
	if !snap.Connected {
		status = "disconnected"
	}
	state := "active"
	if idle {
		state = "idle"
	}
	var b strings.Builder
	b.WriteString(name)
	b.WriteString(" ")
	b.WriteString(status)
	b.WriteString(" ")
	b.WriteString(state)
	if !snap.LastDataAt.IsZero() {
		b.WriteString(" last_data=")
		b.WriteString(ageString(now, snap.LastDataAt))
	}
	if snap.HaveQueues {
		b.WriteString(" queues=")
		b.WriteString(fmt.Sprintf("%d/%d", snap.FrameQueue, snap.ResultsQueue))
	}
	if snap.Failures > 0 {
		b.WriteString(" consec_failures=")
		b.WriteString(fmt.Sprintf("%d", snap.Failures))
	}
	if !snap.LastErrorAt.IsZero() {
		b.WriteString(" last_err=")
		b.WriteString(ageString(now, snap.LastErrorAt))
	}
	return b.String()
}

func ageString(now time.Time, at time.Time) string {
	if at.IsZero() {
		return "never"
	}
	age := now.Sub(at)
	if age < 0 {
		age = 0
	}
	if age < time.Second {
		return "0s"
	}
	return age.Truncate(time.Second).String()
}

// pollHealthSource reports the REST origin as connected while full poll
// rounds keep succeeding.
func pollHealthSource(name string, poller *snapshotPoller) sourceHealth {
	return sourceHealth{
		name: name,
		snapshot: func() sourceHealthSnapshot {
			if poller == nil {
				return sourceHealthSnapshot{}
			}
			health := poller.HealthSnapshot()
			return sourceHealthSnapshot{
				Connected:   !health.LastOKAt.IsZero() && health.ConsecutiveFailures == 0,
				LastDataAt:  health.LastOKAt,
				LastErrorAt: health.LastErrorAt,
				Failures:    health.ConsecutiveFailures,
			}
		},
	}
}

// liveHealthSource reports the websocket link state plus the freshest
// pushed data the merge store has seen.
func liveHealthSource(name string, channel *live.Channel, store *viewstate.Store) sourceHealth {
	return sourceHealth{
		name: name,
		snapshot: func() sourceHealthSnapshot {
			var snap sourceHealthSnapshot
			if channel != nil {
				snap.Connected = channel.State() == live.Connected
			}
			if store != nil {
				view := store.View()
				if view.QueueSource == viewstate.SourceLive {
					snap.LastDataAt = view.QueuesAt
					snap.FrameQueue = view.FrameQueue
					snap.ResultsQueue = view.ResultsQueue
					snap.HaveQueues = true
				}
				if view.HaveLiveDetection && view.LiveDetectionAt.After(snap.LastDataAt) {
					snap.LastDataAt = view.LiveDetectionAt
				}
			}
			return snap
		},
	}
}
