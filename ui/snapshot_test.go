package ui

import (
	"strings"
	"testing"
	"time"

	"vatop/live"
	"vatop/pipeline"
	"vatop/viewstate"
)

var snapNow = time.Date(2025, 8, 25, 14, 30, 0, 0, time.UTC)

func TestBuildSnapshotEmptyView(t *testing.T) {
	snap := BuildSnapshot(viewstate.View{}, "Video Analytics", 90*time.Second, nil, snapNow)

	if len(snap.HeaderLines) != 2 {
		t.Fatalf("expected 2 header lines, got %v", snap.HeaderLines)
	}
	if !strings.Contains(snap.HeaderLines[0], "Video Analytics") || !strings.Contains(snap.HeaderLines[0], "up 1m30s") {
		t.Fatalf("unexpected header: %q", snap.HeaderLines[0])
	}
	if !strings.Contains(snap.HeaderLines[1], "disconnected") {
		t.Fatalf("expected disconnected link, got %q", snap.HeaderLines[1])
	}
	if snap.StatsLines[0] != "waiting for first stats poll" {
		t.Fatalf("unexpected stats placeholder: %q", snap.StatsLines[0])
	}
	if snap.StatsLines[1] != "Queues: no data yet" {
		t.Fatalf("unexpected queue line: %q", snap.StatsLines[1])
	}
	if snap.StreamLines[0] != "no streams reported" {
		t.Fatalf("unexpected stream placeholder: %q", snap.StreamLines[0])
	}
	if snap.DetectionLines[0] != "no detections yet" {
		t.Fatalf("unexpected detection placeholder: %q", snap.DetectionLines[0])
	}
	if snap.LiveLine != "" {
		t.Fatalf("expected empty live line, got %q", snap.LiveLine)
	}
}

func TestBuildSnapshotFormatsView(t *testing.T) {
	view := viewstate.View{
		Stats: pipeline.Stats{
			TotalFramesProcessed: 1523001,
			TotalDetections:      12042,
			ActiveStreams:        3,
			TotalStreams:         5,
		},
		HaveStats: true,
		Streams: []pipeline.Stream{
			{
				StreamID:        "cam-front",
				VideoSource:     "rtsp://cam-front/stream",
				Status:          pipeline.StreamActive,
				StartedAt:       snapNow.Add(-10 * time.Minute),
				FramesProcessed: 5000,
				TotalDetections: 120,
			},
			{StreamID: "cam-rear", Status: pipeline.StreamError},
		},
		HaveStreams: true,
		Detections: []pipeline.Detection{
			{
				StreamID:      "cam-front",
				FrameNumber:   1203,
				Timestamp:     float64(snapNow.Unix()),
				NumDetections: 3,
				Detections: []pipeline.DetectedObject{
					{ClassName: "person"},
					{ClassName: "car"},
					{ClassName: "person"},
				},
			},
		},
		HaveDetections: true,
		FrameQueue:     4,
		ResultsQueue:   1,
		QueueSource:    viewstate.SourceLive,
		QueuesAt:       snapNow.Add(-3 * time.Second),
		LiveDetection: live.Detection{
			StreamID:    "cam-front",
			FrameNumber: 1207,
			Objects:     []string{"person"},
		},
		HaveLiveDetection: true,
		LiveDetectionAt:   snapNow,
		Connection:        live.Connected,
	}

	snap := BuildSnapshot(view, "Video Analytics", time.Hour, []string{"Polls ok: stats=10"}, snapNow)

	if !strings.Contains(snap.HeaderLines[1], "[green]connected[-]") {
		t.Fatalf("expected connected link, got %q", snap.HeaderLines[1])
	}
	if !strings.Contains(snap.StatsLines[0], "1,523,001") || !strings.Contains(snap.StatsLines[0], "12,042") {
		t.Fatalf("expected separated totals, got %q", snap.StatsLines[0])
	}
	if !strings.Contains(snap.StatsLines[1], "3 active / 5 total") {
		t.Fatalf("unexpected stream summary: %q", snap.StatsLines[1])
	}
	if !strings.Contains(snap.StatsLines[1], "0.0079") {
		t.Fatalf("expected avg detections per frame, got %q", snap.StatsLines[1])
	}
	queue := snap.StatsLines[2]
	if !strings.Contains(queue, "frames=4") || !strings.Contains(queue, "results=1") {
		t.Fatalf("unexpected queue depths: %q", queue)
	}
	if !strings.Contains(queue, "[green]live[-]") || !strings.Contains(queue, "3s ago") {
		t.Fatalf("expected live source and age, got %q", queue)
	}

	if len(snap.StreamLines) != 2 {
		t.Fatalf("expected 2 stream lines, got %v", snap.StreamLines)
	}
	front := snap.StreamLines[0]
	if !strings.Contains(front, "cam-front") || !strings.Contains(front, "[green]active") {
		t.Fatalf("unexpected stream line: %q", front)
	}
	if !strings.Contains(front, "frames=5,000") || !strings.Contains(front, "rtsp://cam-front/stream") {
		t.Fatalf("unexpected stream line: %q", front)
	}
	if !strings.Contains(snap.StreamLines[1], "[red]error") {
		t.Fatalf("expected error status, got %q", snap.StreamLines[1])
	}
	// Zero start time renders a dash instead of a bogus age.
	if !strings.Contains(snap.StreamLines[1], " - ") && !strings.HasSuffix(snap.StreamLines[1], "-") {
		t.Fatalf("expected dash for unknown start, got %q", snap.StreamLines[1])
	}

	det := snap.DetectionLines[0]
	if !strings.Contains(det, "cam-front") || !strings.Contains(det, "f#1203") {
		t.Fatalf("unexpected detection line: %q", det)
	}
	if !strings.Contains(det, "person x2, car") {
		t.Fatalf("expected aggregated objects, got %q", det)
	}

	if !strings.Contains(snap.LiveLine, "[yellow]LIVE[-]") || !strings.Contains(snap.LiveLine, "f#1207") {
		t.Fatalf("unexpected live line: %q", snap.LiveLine)
	}

	if len(snap.FooterLines) != 1 || snap.FooterLines[0] != "Polls ok: stats=10" {
		t.Fatalf("expected session lines passed through, got %v", snap.FooterLines)
	}
	if snap.Connection != live.Connected {
		t.Fatalf("expected connection carried, got %v", snap.Connection)
	}
}

func TestFormatObjectCounts(t *testing.T) {
	cases := []struct {
		name   string
		labels []string
		want   string
	}{
		{"empty", nil, ""},
		{"single", []string{"car"}, "car"},
		{"repeats keep first appearance order", []string{"person", "car", "person"}, "person x2, car"},
		{"blank label", []string{""}, "?"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatObjectCounts(tc.labels); got != tc.want {
				t.Fatalf("FormatObjectCounts(%v) = %q, want %q", tc.labels, got, tc.want)
			}
		})
	}
}

func TestFormatAge(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{-time.Second, "0s"},
		{500 * time.Millisecond, "0s"},
		{3 * time.Second, "3s"},
		{90 * time.Second, "1m30s"},
		{2*time.Hour + 5*time.Minute, "2h05m"},
	}
	for _, tc := range cases {
		if got := formatAge(tc.in); got != tc.want {
			t.Fatalf("formatAge(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestConnectionLabel(t *testing.T) {
	if got := ConnectionLabel(live.Connected); got != "[green]connected[-]" {
		t.Fatalf("unexpected connected label %q", got)
	}
	if got := ConnectionLabel(live.Connecting); got != "[yellow]connecting[-]" {
		t.Fatalf("unexpected connecting label %q", got)
	}
	if got := ConnectionLabel(live.Disconnected); got != "[red]disconnected[-]" {
		t.Fatalf("unexpected disconnected label %q", got)
	}
}

func TestFeedLine(t *testing.T) {
	line := FeedLine(live.Detection{StreamID: "cam-a", FrameNumber: 42, Objects: []string{"car", "car"}})
	if !strings.Contains(line, "cam-a") || !strings.Contains(line, "f#42") || !strings.Contains(line, "car x2") {
		t.Fatalf("unexpected feed line: %q", line)
	}
	empty := FeedLine(live.Detection{StreamID: "cam-b", FrameNumber: 7})
	if !strings.Contains(empty, "(none)") {
		t.Fatalf("expected placeholder objects, got %q", empty)
	}
}
