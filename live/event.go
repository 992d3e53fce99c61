package live

import (
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EventKind distinguishes the push frame shapes the pipeline emits.
type EventKind uint8

const (
	// KindQueueDepths carries the current frame and results queue depths.
	KindQueueDepths EventKind = iota
	// KindDetection carries a summary of the most recent analyzed frame.
	KindDetection
)

func (k EventKind) String() string {
	switch k {
	case KindQueueDepths:
		return "queue_depths"
	case KindDetection:
		return "detection"
	default:
		return "unknown"
	}
}

// Event is one decoded push frame.
type Event struct {
	Kind         EventKind
	FrameQueue   int
	ResultsQueue int
	Detection    *Detection
	ReceivedAt   time.Time
}

// Detection is the compact per-frame summary pushed over the live link.
// Objects holds class labels in wire order, repeats kept.
type Detection struct {
	StreamID    string
	FrameNumber int64
	Objects     []string
}

// errUnrecognized marks a well-formed frame whose shape matches neither
// known kind. The reader drops such frames without tearing the link down.
var errUnrecognized = errors.New("unrecognized frame shape")

type detectedObjectWire struct {
	ClassName string `json:"class_name"`
}

type latestDetectionWire struct {
	StreamID    string               `json:"stream_id"`
	FrameNumber int64                `json:"frame_number"`
	Detections  []detectedObjectWire `json:"detections"`
}

// frameProbe uses pointer fields so absent keys stay distinguishable
// from zero values.
type frameProbe struct {
	FrameQueueSize   *int                 `json:"frame_queue_size"`
	ResultsQueueSize *int                 `json:"results_queue_size"`
	LatestDetection  *latestDetectionWire `json:"latest_detection"`
}

// decodeFrame classifies a raw push frame. A detection wins when a frame
// somehow carries both shapes.
func decodeFrame(data []byte, now time.Time) (Event, error) {
	var probe frameProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return Event{}, err
	}
	if probe.LatestDetection != nil {
		det := &Detection{
			StreamID:    probe.LatestDetection.StreamID,
			FrameNumber: probe.LatestDetection.FrameNumber,
		}
		if n := len(probe.LatestDetection.Detections); n > 0 {
			det.Objects = make([]string, n)
			for i, obj := range probe.LatestDetection.Detections {
				det.Objects[i] = obj.ClassName
			}
		}
		return Event{Kind: KindDetection, Detection: det, ReceivedAt: now}, nil
	}
	if probe.FrameQueueSize != nil && probe.ResultsQueueSize != nil {
		return Event{
			Kind:         KindQueueDepths,
			FrameQueue:   *probe.FrameQueueSize,
			ResultsQueue: *probe.ResultsQueueSize,
			ReceivedAt:   now,
		}, nil
	}
	return Event{}, errUnrecognized
}
