// Package pipeline provides a read-only client for the video analytics
// REST API and the wire types it serves.
package pipeline

import (
	"math"
	"time"
)

// Stream lifecycle states reported by the analytics API.
const (
	StreamActive  = "active"
	StreamStopped = "stopped"
	StreamError   = "error"
)

// Stats is the pipeline-wide counter snapshot served by GET /stats.
type Stats struct {
	TotalFramesProcessed int64 `json:"total_frames_processed"`
	TotalDetections      int64 `json:"total_detections"`
	ActiveStreams        int   `json:"active_streams"`
	TotalStreams         int   `json:"total_streams"`
	FrameQueueSize       int   `json:"frame_queue_size"`
	ResultsQueueSize     int   `json:"results_queue_size"`
}

// Stream describes one registered video source, served by GET /streams.
type Stream struct {
	ID              int64     `json:"id"`
	StreamID        string    `json:"stream_id"`
	VideoSource     string    `json:"video_source"`
	Status          string    `json:"status"`
	StartedAt       time.Time `json:"started_at"`
	FramesProcessed int64     `json:"frames_processed"`
	TotalDetections int64     `json:"total_detections"`
}

// DetectedObject is a single classified object within an analyzed frame.
type DetectedObject struct {
	ClassID    int       `json:"class_id"`
	ClassName  string    `json:"class_name"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox"`
}

// Detection is one analyzed frame result, served by GET /detections
// most recent first.
type Detection struct {
	ID            int64            `json:"id"`
	StreamID      string           `json:"stream_id"`
	FrameNumber   int64            `json:"frame_number"`
	Timestamp     float64          `json:"timestamp"`
	NumDetections int              `json:"num_detections"`
	Detections    []DetectedObject `json:"detections"`
}

// ClassNames returns the object class labels in wire order. Repeated
// labels stay repeated so callers can count occurrences.
func (d Detection) ClassNames() []string {
	if len(d.Detections) == 0 {
		return nil
	}
	names := make([]string, len(d.Detections))
	for i, obj := range d.Detections {
		names[i] = obj.ClassName
	}
	return names
}

// Time converts the epoch-seconds frame timestamp into a time.Time.
func (d Detection) Time() time.Time {
	sec, frac := math.Modf(d.Timestamp)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}
