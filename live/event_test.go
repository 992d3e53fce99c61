package live

import (
	"errors"
	"testing"
	"time"
)

func TestDecodeQueueDepths(t *testing.T) {
	now := time.Now()
	ev, err := decodeFrame([]byte(`{"frame_queue_size": 4, "results_queue_size": 9}`), now)
	if err != nil {
		t.Fatalf("decodeFrame error: %v", err)
	}
	if ev.Kind != KindQueueDepths {
		t.Fatalf("expected queue_depths kind, got %v", ev.Kind)
	}
	if ev.FrameQueue != 4 || ev.ResultsQueue != 9 {
		t.Fatalf("unexpected depths %d/%d", ev.FrameQueue, ev.ResultsQueue)
	}
	if !ev.ReceivedAt.Equal(now) {
		t.Fatalf("expected ReceivedAt %v, got %v", now, ev.ReceivedAt)
	}
}

func TestDecodeQueueDepthsZeroIsValid(t *testing.T) {
	ev, err := decodeFrame([]byte(`{"frame_queue_size": 0, "results_queue_size": 0}`), time.Now())
	if err != nil {
		t.Fatalf("decodeFrame error: %v", err)
	}
	if ev.Kind != KindQueueDepths || ev.FrameQueue != 0 || ev.ResultsQueue != 0 {
		t.Fatalf("expected zero depths event, got %+v", ev)
	}
}

func TestDecodeDetection(t *testing.T) {
	data := []byte(`{"latest_detection": {"stream_id": "cam-entrance", "frame_number": 17,
		"detections": [{"class_name": "person"}, {"class_name": "car"}, {"class_name": "person"}]}}`)
	ev, err := decodeFrame(data, time.Now())
	if err != nil {
		t.Fatalf("decodeFrame error: %v", err)
	}
	if ev.Kind != KindDetection || ev.Detection == nil {
		t.Fatalf("expected detection event, got %+v", ev)
	}
	if ev.Detection.StreamID != "cam-entrance" || ev.Detection.FrameNumber != 17 {
		t.Fatalf("unexpected detection %+v", ev.Detection)
	}
	want := []string{"person", "car", "person"}
	if len(ev.Detection.Objects) != len(want) {
		t.Fatalf("expected %d objects, got %v", len(want), ev.Detection.Objects)
	}
	for i, label := range want {
		if ev.Detection.Objects[i] != label {
			t.Fatalf("expected objects %v, got %v", want, ev.Detection.Objects)
		}
	}
}

func TestDecodeDetectionWithoutObjects(t *testing.T) {
	data := []byte(`{"latest_detection": {"stream_id": "cam-dock", "frame_number": 3, "detections": []}}`)
	ev, err := decodeFrame(data, time.Now())
	if err != nil {
		t.Fatalf("decodeFrame error: %v", err)
	}
	if ev.Kind != KindDetection || len(ev.Detection.Objects) != 0 {
		t.Fatalf("expected empty detection event, got %+v", ev)
	}
}

func TestDetectionWinsOverQueueDepths(t *testing.T) {
	data := []byte(`{"frame_queue_size": 1, "results_queue_size": 2,
		"latest_detection": {"stream_id": "cam-a", "frame_number": 5, "detections": []}}`)
	ev, err := decodeFrame(data, time.Now())
	if err != nil {
		t.Fatalf("decodeFrame error: %v", err)
	}
	if ev.Kind != KindDetection {
		t.Fatalf("expected detection to win, got %v", ev.Kind)
	}
}

func TestDecodeUnrecognizedShapes(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"heartbeat", `{"type": "heartbeat"}`},
		{"empty object", `{}`},
		{"half queue pair", `{"frame_queue_size": 2}`},
		{"other half", `{"results_queue_size": 7}`},
		{"unrelated keys", `{"hello": "world", "n": 3}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decodeFrame([]byte(tc.data), time.Now())
			if !errors.Is(err, errUnrecognized) {
				t.Fatalf("expected unrecognized shape, got %v", err)
			}
		})
	}
}

func TestDecodeMalformedFrame(t *testing.T) {
	_, err := decodeFrame([]byte(`{"frame_queue_size": `), time.Now())
	if err == nil {
		t.Fatalf("expected decode error")
	}
	if errors.Is(err, errUnrecognized) {
		t.Fatalf("malformed frame should not classify as unrecognized shape")
	}
}
