package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"vatop/live"
	"vatop/pipeline"
	"vatop/viewstate"
)

// Snapshot is a structured view of the pipeline built by the render loop.
// It is immutable once handed to a Surface. Lines may carry tview color
// tags; renderers that cannot display them strip the tags instead.
type Snapshot struct {
	GeneratedAt    time.Time
	HeaderLines    []string
	StatsLines     []string
	StreamLines    []string
	DetectionLines []string
	LiveLine       string
	FooterLines    []string
	Connection     live.State
}

// BuildSnapshot renders a merged view into display lines. The session lines
// (counters, memory) are passed through to the footer pane untouched.
func BuildSnapshot(v viewstate.View, name string, uptime time.Duration, session []string, now time.Time) Snapshot {
	return Snapshot{
		GeneratedAt:    now,
		HeaderLines:    buildHeaderLines(v, name, uptime, now),
		StatsLines:     buildStatsLines(v, now),
		StreamLines:    buildStreamLines(v, now),
		DetectionLines: buildDetectionLines(v),
		LiveLine:       buildLiveLine(v),
		FooterLines:    session,
		Connection:     v.Connection,
	}
}

func buildHeaderLines(v viewstate.View, name string, uptime time.Duration, now time.Time) []string {
	return []string{
		fmt.Sprintf("[white]%s[-]  up %s", name, formatAge(uptime)),
		fmt.Sprintf("link %s  refreshed %s", ConnectionLabel(v.Connection), now.Format("15:04:05")),
	}
}

func buildStatsLines(v viewstate.View, now time.Time) []string {
	lines := make([]string, 0, 3)
	if v.HaveStats {
		lines = append(lines, fmt.Sprintf("Frames processed: %s    Detections: %s",
			humanize.Comma(v.Stats.TotalFramesProcessed), humanize.Comma(v.Stats.TotalDetections)))
		lines = append(lines, fmt.Sprintf("Streams: %d active / %d total    Avg det/frame: %.4f",
			v.Stats.ActiveStreams, v.Stats.TotalStreams, v.AvgDetectionsPerFrame()))
	} else {
		lines = append(lines, "waiting for first stats poll")
	}
	lines = append(lines, queueLine(v, now))
	return lines
}

// queueLine renders the merged queue depths with their source, so an
// operator can tell a pushed reading from a possibly stale polled one.
func queueLine(v viewstate.View, now time.Time) string {
	if v.QueueSource == viewstate.SourceNone {
		return "Queues: no data yet"
	}
	return fmt.Sprintf("Queues: frames=%d results=%d  %s %s ago",
		v.FrameQueue, v.ResultsQueue, sourceTag(v.QueueSource), formatAge(now.Sub(v.QueuesAt)))
}

func sourceTag(s viewstate.QueueSource) string {
	if s == viewstate.SourceLive {
		return "[green]live[-]"
	}
	return "[yellow]poll[-]"
}

func buildStreamLines(v viewstate.View, now time.Time) []string {
	if len(v.Streams) == 0 {
		return []string{"no streams reported"}
	}
	lines := make([]string, 0, len(v.Streams))
	for _, s := range v.Streams {
		lines = append(lines, streamLine(s, now))
	}
	return lines
}

func streamLine(s pipeline.Stream, now time.Time) string {
	age := "-"
	if !s.StartedAt.IsZero() {
		age = formatAge(now.Sub(s.StartedAt))
	}
	return fmt.Sprintf("%-14s %s  frames=%-9s det=%-7s %6s  %s",
		s.StreamID, statusLabel(s.Status),
		humanize.Comma(s.FramesProcessed), humanize.Comma(s.TotalDetections),
		age, s.VideoSource)
}

func statusLabel(status string) string {
	color := "white"
	switch status {
	case pipeline.StreamActive:
		color = "green"
	case pipeline.StreamStopped:
		color = "yellow"
	case pipeline.StreamError:
		color = "red"
	}
	return fmt.Sprintf("[%s]%-7s[-]", color, status)
}

func buildDetectionLines(v viewstate.View) []string {
	if len(v.Detections) == 0 {
		return []string{"no detections yet"}
	}
	lines := make([]string, 0, len(v.Detections))
	for _, d := range v.Detections {
		lines = append(lines, detectionLine(d))
	}
	return lines
}

func detectionLine(d pipeline.Detection) string {
	objects := FormatObjectCounts(d.ClassNames())
	if objects == "" {
		objects = "(none)"
	}
	return fmt.Sprintf("%s %-14s f#%-7d [green]%2d[-]  %s",
		d.Time().Format("15:04:05"), d.StreamID, d.FrameNumber, d.NumDetections, objects)
}

func buildLiveLine(v viewstate.View) string {
	if !v.HaveLiveDetection {
		return ""
	}
	d := v.LiveDetection
	objects := FormatObjectCounts(d.Objects)
	if objects == "" {
		objects = "(none)"
	}
	return fmt.Sprintf("[yellow]LIVE[-] %s %s f#%d  %s",
		v.LiveDetectionAt.Format("15:04:05"), d.StreamID, d.FrameNumber, objects)
}

// FeedLine formats a pushed detection for the live feed pane. The feed row
// carries its own timestamp, so none is included here.
func FeedLine(d live.Detection) string {
	objects := FormatObjectCounts(d.Objects)
	if objects == "" {
		objects = "(none)"
	}
	return fmt.Sprintf("%-14s f#%-7d %s", d.StreamID, d.FrameNumber, objects)
}

// ConnectionLabel renders a websocket link state with a color tag.
func ConnectionLabel(s live.State) string {
	switch s {
	case live.Connected:
		return "[green]connected[-]"
	case live.Connecting:
		return "[yellow]connecting[-]"
	default:
		return "[red]disconnected[-]"
	}
}

// FormatObjectCounts collapses repeated class labels into "person x2, car"
// form, keeping first-appearance order.
func FormatObjectCounts(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	counts := make(map[string]int, len(labels))
	order := make([]string, 0, len(labels))
	for _, label := range labels {
		if label == "" {
			label = "?"
		}
		if counts[label] == 0 {
			order = append(order, label)
		}
		counts[label]++
	}
	var b strings.Builder
	for i, label := range order {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(label)
		if counts[label] > 1 {
			fmt.Fprintf(&b, " x%d", counts[label])
		}
	}
	return b.String()
}

func formatAge(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Second:
		return "0s"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
