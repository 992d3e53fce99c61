package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"vatop/pipeline"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const detectionHistoryMax = 500

// pipesim serves a synthetic analytics origin (REST endpoints plus the
// websocket push feed) so the dashboard can be exercised without a real
// pipeline. All state lives in memory and resets on restart.
func main() {
	var (
		addr        = flag.String("addr", "localhost:8000", "listen address for REST and websocket")
		streamCount = flag.Int("streams", 3, "number of synthetic streams")
		tick        = flag.Duration("tick", 500*time.Millisecond, "interval between synthetic frames")
		failEvery   = flag.Int("fail-every", 0, "fail every Nth REST request with HTTP 500 (0 disables)")
	)
	flag.Parse()

	if *streamCount <= 0 {
		log.Fatalf("streams must be >0 (got %d)", *streamCount)
	}
	if *tick <= 0 {
		log.Fatalf("tick must be >0 (got %s)", tick.String())
	}

	log.Printf("pipesim: starting with addr=%s streams=%d tick=%s fail-every=%d",
		*addr, *streamCount, tick.String(), *failEvery)

	sim := newSimulator(*streamCount)
	hub := newPushHub()
	go sim.run(*tick, hub)

	mux := http.NewServeMux()
	mux.HandleFunc("/stats", sim.maybeFail(*failEvery, sim.handleStats))
	mux.HandleFunc("/streams", sim.maybeFail(*failEvery, sim.handleStreams))
	mux.HandleFunc("/detections", sim.maybeFail(*failEvery, sim.handleDetections))
	mux.HandleFunc("/ws", hub.handleWS)

	server := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		log.Printf("pipesim: listening on http://%s (push feed at ws://%s/ws)", *addr, *addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("pipesim: serve: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Printf("pipesim: received signal %v, stopping", sig)
	_ = server.Close()
}

var objectClasses = []string{"person", "car", "truck", "bicycle", "dog"}

type simulator struct {
	mu         sync.Mutex
	rng        *rand.Rand
	stats      pipeline.Stats
	streams    []pipeline.Stream
	detections []pipeline.Detection // most recent first
	nextID     int64
	requests   atomic.Uint64
}

func newSimulator(streamCount int) *simulator {
	now := time.Now().UTC()
	rng := rand.New(rand.NewSource(now.UnixNano()))
	streams := make([]pipeline.Stream, streamCount)
	for i := range streams {
		streams[i] = pipeline.Stream{
			ID:          int64(i + 1),
			StreamID:    fmt.Sprintf("cam-%02d", i+1),
			VideoSource: fmt.Sprintf("rtsp://cameras.local/feed-%02d", i+1),
			Status:      pipeline.StreamActive,
			StartedAt:   now.Add(-time.Duration(rng.Intn(3600)) * time.Second),
		}
	}
	return &simulator{
		rng:     rng,
		streams: streams,
		stats: pipeline.Stats{
			ActiveStreams: streamCount,
			TotalStreams:  streamCount,
		},
	}
}

// run advances the synthetic pipeline once per tick and pushes the
// resulting frames to all websocket clients.
func (s *simulator) run(tick time.Duration, hub *pushHub) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for range ticker.C {
		queueFrame, detectionFrame := s.step()
		if queueFrame != nil {
			hub.broadcast(queueFrame)
		}
		if detectionFrame != nil {
			hub.broadcast(detectionFrame)
		}
	}
}

type queueDepthsFrame struct {
	FrameQueueSize   int `json:"frame_queue_size"`
	ResultsQueueSize int `json:"results_queue_size"`
}

type pushedObject struct {
	ClassName string `json:"class_name"`
}

type pushedDetection struct {
	StreamID    string         `json:"stream_id"`
	FrameNumber int64          `json:"frame_number"`
	Detections  []pushedObject `json:"detections"`
}

type latestDetectionFrame struct {
	LatestDetection pushedDetection `json:"latest_detection"`
}

// step analyzes one synthetic frame on a random active stream. It returns
// the marshaled queue-depths frame and, when objects were found, the
// marshaled detection frame.
func (s *simulator) step() ([]byte, []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := make([]int, 0, len(s.streams))
	for i, st := range s.streams {
		if st.Status == pipeline.StreamActive {
			active = append(active, i)
		}
	}
	// Rare status flips keep the roster pane moving.
	if s.rng.Intn(200) == 0 {
		i := s.rng.Intn(len(s.streams))
		if s.streams[i].Status == pipeline.StreamActive && len(active) > 1 {
			s.streams[i].Status = pipeline.StreamStopped
		} else if s.streams[i].Status == pipeline.StreamStopped {
			s.streams[i].Status = pipeline.StreamActive
			s.streams[i].StartedAt = time.Now().UTC()
		}
		s.recountActiveLocked()
	}
	if len(active) == 0 {
		return nil, nil
	}

	i := active[s.rng.Intn(len(active))]
	stream := &s.streams[i]
	stream.FramesProcessed++
	frameNumber := stream.FramesProcessed

	numObjects := s.rng.Intn(4)
	objects := make([]pipeline.DetectedObject, numObjects)
	for j := range objects {
		x := s.rng.Float64() * 0.8
		y := s.rng.Float64() * 0.8
		objects[j] = pipeline.DetectedObject{
			ClassID:    s.rng.Intn(len(objectClasses)),
			ClassName:  objectClasses[s.rng.Intn(len(objectClasses))],
			Confidence: 0.5 + s.rng.Float64()*0.49,
			BBox:       []float64{x, y, x + 0.1, y + 0.1},
		}
	}
	stream.TotalDetections += int64(numObjects)
	s.stats.TotalFramesProcessed++
	s.stats.TotalDetections += int64(numObjects)
	s.stats.FrameQueueSize = s.rng.Intn(8)
	s.stats.ResultsQueueSize = s.rng.Intn(4)

	s.nextID++
	det := pipeline.Detection{
		ID:            s.nextID,
		StreamID:      stream.StreamID,
		FrameNumber:   frameNumber,
		Timestamp:     float64(time.Now().UnixNano()) / float64(time.Second),
		NumDetections: numObjects,
		Detections:    objects,
	}
	s.detections = append([]pipeline.Detection{det}, s.detections...)
	if len(s.detections) > detectionHistoryMax {
		s.detections = s.detections[:detectionHistoryMax]
	}

	queuePayload, err := json.Marshal(queueDepthsFrame{
		FrameQueueSize:   s.stats.FrameQueueSize,
		ResultsQueueSize: s.stats.ResultsQueueSize,
	})
	if err != nil {
		log.Printf("pipesim: marshal queue frame: %v", err)
		queuePayload = nil
	}
	if numObjects == 0 {
		return queuePayload, nil
	}

	pushed := pushedDetection{
		StreamID:    det.StreamID,
		FrameNumber: det.FrameNumber,
		Detections:  make([]pushedObject, numObjects),
	}
	for j, obj := range objects {
		pushed.Detections[j] = pushedObject{ClassName: obj.ClassName}
	}
	detectionPayload, err := json.Marshal(latestDetectionFrame{LatestDetection: pushed})
	if err != nil {
		log.Printf("pipesim: marshal detection frame: %v", err)
		detectionPayload = nil
	}
	return queuePayload, detectionPayload
}

func (s *simulator) recountActiveLocked() {
	n := 0
	for _, st := range s.streams {
		if st.Status == pipeline.StreamActive {
			n++
		}
	}
	s.stats.ActiveStreams = n
}

// maybeFail wraps a handler so every Nth request across all endpoints
// returns HTTP 500, for exercising the dashboard's failure paths.
func (s *simulator) maybeFail(every int, next http.HandlerFunc) http.HandlerFunc {
	if every <= 0 {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if n := s.requests.Add(1); n%uint64(every) == 0 {
			http.Error(w, "synthetic failure", http.StatusInternalServerError)
			return
		}
		next(w, r)
	}
}

func (s *simulator) handleStats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := s.stats
	s.mu.Unlock()
	writeJSON(w, out)
}

func (s *simulator) handleStreams(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]pipeline.Stream, len(s.streams))
	copy(out, s.streams)
	s.mu.Unlock()
	writeJSON(w, out)
}

func (s *simulator) handleDetections(w http.ResponseWriter, r *http.Request) {
	limit := pipeline.DefaultDetectionsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	s.mu.Lock()
	if limit > len(s.detections) {
		limit = len(s.detections)
	}
	out := make([]pipeline.Detection, limit)
	copy(out, s.detections[:limit])
	s.mu.Unlock()
	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// pushHub tracks websocket subscribers. Broadcasts come from the single
// simulator goroutine; per-connection reader goroutines only detect
// disconnects.
type pushHub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
}

func newPushHub() *pushHub {
	return &pushHub{
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *pushHub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("pipesim: websocket upgrade failed: %v", err)
		return
	}
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	log.Printf("pipesim: websocket client connected (%d total)", n)

	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *pushHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		log.Printf("pipesim: websocket client disconnected (%d total)", len(h.clients))
	}
	h.mu.Unlock()
	_ = conn.Close()
}

func (h *pushHub) broadcast(payload []byte) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.drop(c)
		}
	}
}
