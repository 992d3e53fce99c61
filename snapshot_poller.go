package main

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"vatop/pipeline"
	"vatop/stats"
	"vatop/viewstate"
)

// snapshotPoller refreshes the poll slots of the merge store on a fixed
// cadence. Each tick fetches stats, streams, and detections in parallel;
// whichever succeed land in the store immediately with their own fetch
// times, so one slow resource cannot hold back the others.
type snapshotPoller struct {
	client   *pipeline.Client
	store    *viewstate.Store
	tracker  *stats.Tracker
	interval time.Duration
	timeout  time.Duration
	detLimit int

	lastOKAt    atomic.Int64
	lastErrAt   atomic.Int64
	consecFails atomic.Uint32

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// pollerHealth is a point-in-time view of recent poll outcomes for the
// health monitor. A round counts as OK only when all three resources
// fetched cleanly.
type pollerHealth struct {
	LastOKAt            time.Time
	LastErrorAt         time.Time
	ConsecutiveFailures int
}

// Purpose: Construct a poller over the REST client and merge store.
// Key aspects: Clamps cadence and timeout to sane minimums.
// Upstream: main wiring.
// Downstream: None until Start.
func newSnapshotPoller(client *pipeline.Client, store *viewstate.Store, tracker *stats.Tracker, interval, timeout time.Duration, detLimit int) *snapshotPoller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if detLimit <= 0 {
		detLimit = pipeline.DefaultDetectionsLimit
	}
	return &snapshotPoller{
		client:   client,
		store:    store,
		tracker:  tracker,
		interval: interval,
		timeout:  timeout,
		detLimit: detLimit,
	}
}

// Purpose: Begin polling in the background.
// Key aspects: The first round runs immediately; a second Start is a no-op.
// Upstream: main startup.
// Downstream: snapshotPoller.run goroutine.
func (p *snapshotPoller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(runCtx, p.done)
}

// Purpose: Stop polling and wait for the background goroutine to exit.
// Key aspects: Safe to call more than once; cancels any in-flight fetch.
// Upstream: main shutdown.
// Downstream: context cancellation.
func (p *snapshotPoller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (p *snapshotPoller) run(ctx context.Context, done chan struct{}) {
	// Rounds run detached from the ticker so a hung origin delays at most
	// its own round, never the next tick. Stop still joins every round.
	var rounds sync.WaitGroup
	defer func() {
		rounds.Wait()
		close(done)
	}()

	startRound := func() {
		rounds.Add(1)
		go func() {
			defer rounds.Done()
			p.pollOnce(ctx)
		}()
	}

	startRound()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			startRound()
		}
	}
}

// Purpose: Run one poll round across all three resources.
// Key aspects: Fetches in parallel with per-request timeouts; results that
// arrive after shutdown are discarded rather than stored.
// Upstream: snapshotPoller.run.
// Downstream: pipeline.Client fetches and viewstate.Store setters.
func (p *snapshotPoller) pollOnce(ctx context.Context) {
	errs := make([]error, 3)
	resources := [3]string{"stats", "streams", "detections"}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		st, err := p.client.Stats(reqCtx)
		if err == nil && ctx.Err() == nil {
			p.store.SetStats(st, time.Now())
		}
		errs[0] = err
	}()
	go func() {
		defer wg.Done()
		reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		streams, err := p.client.Streams(reqCtx)
		if err == nil && ctx.Err() == nil {
			p.store.SetStreams(streams, time.Now())
		}
		errs[1] = err
	}()
	go func() {
		defer wg.Done()
		reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		detections, err := p.client.Detections(reqCtx, p.detLimit)
		if err == nil && ctx.Err() == nil {
			p.store.SetDetections(detections, time.Now())
		}
		errs[2] = err
	}()
	wg.Wait()

	// Rounds interrupted by shutdown are not failures.
	if ctx.Err() != nil {
		return
	}

	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			if p.tracker != nil {
				p.tracker.IncrementPollFailure(resources[i])
			}
			log.Printf("poll: %v", err)
			continue
		}
		if p.tracker != nil {
			p.tracker.IncrementPollSuccess(resources[i])
		}
	}

	now := time.Now()
	if failed > 0 {
		p.lastErrAt.Store(now.UnixNano())
		p.consecFails.Add(1)
	} else {
		p.lastOKAt.Store(now.UnixNano())
		p.consecFails.Store(0)
	}
}

// Purpose: Report recent poll outcomes for the health monitor.
// Key aspects: Lock-free reads of atomic round bookkeeping.
// Upstream: pollHealthSource snapshot closure.
// Downstream: None.
func (p *snapshotPoller) HealthSnapshot() pollerHealth {
	if p == nil {
		return pollerHealth{}
	}
	health := pollerHealth{
		ConsecutiveFailures: int(p.consecFails.Load()),
	}
	if v := p.lastOKAt.Load(); v != 0 {
		health.LastOKAt = time.Unix(0, v)
	}
	if v := p.lastErrAt.Load(); v != 0 {
		health.LastErrorAt = time.Unix(0, v)
	}
	return health
}
