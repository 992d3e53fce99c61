package viewstate

import (
	"time"

	"vatop/live"
	"vatop/pipeline"
)

// QueueSource says which feed produced the queue depths in a View.
type QueueSource uint8

const (
	SourceNone QueueSource = iota
	SourcePoll
	SourceLive
)

func (q QueueSource) String() string {
	switch q {
	case SourcePoll:
		return "poll"
	case SourceLive:
		return "live"
	default:
		return "none"
	}
}

// View is one consistent snapshot of everything the dashboard renders.
// Totals, the stream roster, and the detection history always come from
// the poll slots. The pushed live detection rides alongside the polled
// history and is never merged into it.
type View struct {
	Stats     pipeline.Stats
	HaveStats bool
	StatsAt   time.Time

	Streams     []pipeline.Stream
	HaveStreams bool
	StreamsAt   time.Time

	Detections     []pipeline.Detection
	HaveDetections bool
	DetectionsAt   time.Time

	FrameQueue   int
	ResultsQueue int
	QueueSource  QueueSource
	QueuesAt     time.Time

	LiveDetection     live.Detection
	HaveLiveDetection bool
	LiveDetectionAt   time.Time

	Connection live.State

	Version uint64
}

// AvgDetectionsPerFrame derives the mean detections per processed frame
// from the polled totals.
func (v View) AvgDetectionsPerFrame() float64 {
	if v.Stats.TotalFramesProcessed == 0 {
		return 0
	}
	return float64(v.Stats.TotalDetections) / float64(v.Stats.TotalFramesProcessed)
}

// CountObjects aggregates class labels into occurrence counts.
func CountObjects(labels []string) map[string]int {
	if len(labels) == 0 {
		return nil
	}
	counts := make(map[string]int, len(labels))
	for _, label := range labels {
		counts[label]++
	}
	return counts
}
