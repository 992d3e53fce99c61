package main

import (
	"testing"
	"time"

	"vatop/live"
	"vatop/viewstate"
)

func TestSourceIsIdle(t *testing.T) {
	now := time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)

	if !sourceIsIdle(sourceHealthSnapshot{}, now) {
		t.Error("snapshot without data should be idle")
	}
	recent := sourceHealthSnapshot{LastDataAt: now.Add(-30 * time.Second)}
	if sourceIsIdle(recent, now) {
		t.Error("recent data should not be idle")
	}
	stale := sourceHealthSnapshot{LastDataAt: now.Add(-sourceIdleThreshold - time.Second)}
	if !sourceIsIdle(stale, now) {
		t.Error("data older than the threshold should be idle")
	}
}

func TestFormatSourceHealthLine(t *testing.T) {
	now := time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		src  string
		snap sourceHealthSnapshot
		idle bool
		want string
	}{
		{
			name: "connected active",
			src:  "api",
			snap: sourceHealthSnapshot{Connected: true, LastDataAt: now.Add(-4 * time.Second)},
			idle: false,
			want: "api connected active last_data=4s",
		},
		{
			name: "disconnected with failures",
			src:  "api",
			snap: sourceHealthSnapshot{
				Failures:    3,
				LastErrorAt: now.Add(-10 * time.Second),
			},
			idle: true,
			want: "api disconnected idle consec_failures=3 last_err=10s",
		},
		{
			name: "live with queue depths",
			src:  "live",
			snap: sourceHealthSnapshot{
				Connected:    true,
				LastDataAt:   now.Add(-2 * time.Second),
				FrameQueue:   5,
				ResultsQueue: 1,
				HaveQueues:   true,
			},
			idle: false,
			want: "live connected active last_data=2s queues=5/1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatSourceHealthLine(tt.src, tt.snap, tt.idle, now)
			if got != tt.want {
				t.Errorf("formatSourceHealthLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAgeString(t *testing.T) {
	now := time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)

	if got := ageString(now, time.Time{}); got != "never" {
		t.Errorf("zero time = %q, want never", got)
	}
	if got := ageString(now, now.Add(-200*time.Millisecond)); got != "0s" {
		t.Errorf("subsecond age = %q, want 0s", got)
	}
	if got := ageString(now, now.Add(-90*time.Second)); got != "1m30s" {
		t.Errorf("90s age = %q, want 1m30s", got)
	}
	if got := ageString(now, now.Add(time.Second)); got != "0s" {
		t.Errorf("future timestamp = %q, want 0s", got)
	}
}

func TestPollHealthSourceSnapshot(t *testing.T) {
	okAt := time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)

	poller := &snapshotPoller{}
	poller.lastOKAt.Store(okAt.UnixNano())

	source := pollHealthSource("api", poller)
	snap := source.snapshot()
	if !snap.Connected {
		t.Error("poller with a clean round should report connected")
	}
	if !snap.LastDataAt.Equal(okAt) {
		t.Errorf("LastDataAt = %v, want %v", snap.LastDataAt, okAt)
	}

	poller.consecFails.Store(2)
	poller.lastErrAt.Store(okAt.Add(5 * time.Second).UnixNano())
	snap = source.snapshot()
	if snap.Connected {
		t.Error("consecutive failures should report disconnected")
	}
	if snap.Failures != 2 {
		t.Errorf("Failures = %d, want 2", snap.Failures)
	}
	if snap.LastErrorAt.IsZero() {
		t.Error("LastErrorAt should be set after a failed round")
	}
}

func TestLiveHealthSourceUsesStoreData(t *testing.T) {
	store := viewstate.NewStore()
	queueAt := time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)
	store.ApplyLive(live.Event{
		Kind:         live.KindQueueDepths,
		FrameQueue:   5,
		ResultsQueue: 1,
		ReceivedAt:   queueAt,
	})

	source := liveHealthSource("live", nil, store)
	snap := source.snapshot()
	if snap.Connected {
		t.Error("nil channel should report disconnected")
	}
	if !snap.HaveQueues || snap.FrameQueue != 5 || snap.ResultsQueue != 1 {
		t.Errorf("queue depths = %+v, want 5/1", snap)
	}
	if !snap.LastDataAt.Equal(queueAt) {
		t.Errorf("LastDataAt = %v, want %v", snap.LastDataAt, queueAt)
	}

	detAt := queueAt.Add(3 * time.Second)
	store.ApplyLive(live.Event{
		Kind:       live.KindDetection,
		Detection:  &live.Detection{StreamID: "cam-front", FrameNumber: 42, Objects: []string{"person"}},
		ReceivedAt: detAt,
	})
	snap = source.snapshot()
	if !snap.LastDataAt.Equal(detAt) {
		t.Errorf("LastDataAt = %v, want newer detection time %v", snap.LastDataAt, detAt)
	}
}
