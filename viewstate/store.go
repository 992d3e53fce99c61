// Package viewstate merges REST poll snapshots and live push events into
// a single versioned view for rendering.
package viewstate

import (
	"sync"
	"time"

	"vatop/live"
	"vatop/pipeline"
)

// Store is the single authority over what the dashboard shows. The
// poller and the live channel mutate it; renderers take immutable views.
// Poll slots replace wholesale, never merge. Queue depths prefer the
// live reading once one has ever arrived.
type Store struct {
	mu sync.RWMutex

	stats     pipeline.Stats
	haveStats bool
	statsAt   time.Time

	streams     []pipeline.Stream
	haveStreams bool
	streamsAt   time.Time

	detections     []pipeline.Detection
	haveDetections bool
	detectionsAt   time.Time

	liveFrameQueue   int
	liveResultsQueue int
	haveLiveQueues   bool
	liveQueuesAt     time.Time

	liveDetection     live.Detection
	haveLiveDetection bool
	liveDetectionAt   time.Time

	connection live.State

	version uint64
	subs    []chan struct{}
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// SetStats replaces the polled pipeline counters.
func (s *Store) SetStats(stats pipeline.Stats, at time.Time) {
	s.mu.Lock()
	s.stats = stats
	s.haveStats = true
	s.statsAt = at
	s.bumpLocked()
	s.mu.Unlock()
}

// SetStreams replaces the stream roster. The store owns the slice after
// the call.
func (s *Store) SetStreams(streams []pipeline.Stream, at time.Time) {
	s.mu.Lock()
	s.streams = streams
	s.haveStreams = true
	s.streamsAt = at
	s.bumpLocked()
	s.mu.Unlock()
}

// SetDetections replaces the detection history, most recent first. The
// store owns the slice after the call.
func (s *Store) SetDetections(detections []pipeline.Detection, at time.Time) {
	s.mu.Lock()
	s.detections = detections
	s.haveDetections = true
	s.detectionsAt = at
	s.bumpLocked()
	s.mu.Unlock()
}

// ApplyLive folds one push event into the store. A live event only ever
// supersedes earlier data of its own kind; events of unknown kind are
// ignored.
func (s *Store) ApplyLive(ev live.Event) {
	switch ev.Kind {
	case live.KindQueueDepths:
		s.mu.Lock()
		s.liveFrameQueue = ev.FrameQueue
		s.liveResultsQueue = ev.ResultsQueue
		s.haveLiveQueues = true
		s.liveQueuesAt = ev.ReceivedAt
		s.bumpLocked()
		s.mu.Unlock()
	case live.KindDetection:
		if ev.Detection == nil {
			return
		}
		s.mu.Lock()
		s.liveDetection = *ev.Detection
		s.haveLiveDetection = true
		s.liveDetectionAt = ev.ReceivedAt
		s.bumpLocked()
		s.mu.Unlock()
	}
}

// SetConnection records the live link state.
func (s *Store) SetConnection(state live.State) {
	s.mu.Lock()
	s.connection = state
	s.bumpLocked()
	s.mu.Unlock()
}

// Subscribe returns a channel that signals after every mutation.
// Notifications coalesce; a slow reader still sees at least one.
func (s *Store) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

// Version returns the mutation counter.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Store) bumpLocked() {
	s.version++
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// View returns a snapshot for rendering. Top-level slices are copies;
// element payloads are shared and must be treated as read-only.
func (s *Store) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := View{
		Stats:          s.stats,
		HaveStats:      s.haveStats,
		StatsAt:        s.statsAt,
		HaveStreams:    s.haveStreams,
		StreamsAt:      s.streamsAt,
		HaveDetections: s.haveDetections,
		DetectionsAt:   s.detectionsAt,
		Connection:     s.connection,
		Version:        s.version,
	}
	if len(s.streams) > 0 {
		v.Streams = make([]pipeline.Stream, len(s.streams))
		copy(v.Streams, s.streams)
	}
	if len(s.detections) > 0 {
		v.Detections = make([]pipeline.Detection, len(s.detections))
		copy(v.Detections, s.detections)
	}
	switch {
	case s.haveLiveQueues:
		v.FrameQueue = s.liveFrameQueue
		v.ResultsQueue = s.liveResultsQueue
		v.QueueSource = SourceLive
		v.QueuesAt = s.liveQueuesAt
	case s.haveStats:
		v.FrameQueue = s.stats.FrameQueueSize
		v.ResultsQueue = s.stats.ResultsQueueSize
		v.QueueSource = SourcePoll
		v.QueuesAt = s.statsAt
	}
	if s.haveLiveDetection {
		v.LiveDetection = s.liveDetection
		v.HaveLiveDetection = true
		v.LiveDetectionAt = s.liveDetectionAt
	}
	return v
}
