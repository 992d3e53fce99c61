package ui

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"vatop/config"
	"vatop/live"
)

const (
	paneWriterMaxBytes = 64 * 1024
	systemPaneMax      = 200
)

const (
	accentTag   = "[#ff69b4]"
	accentReset = "[-]"
)

var (
	uiBorderColor = tcell.ColorGray
	uiTitleColor  = tcell.ColorHotPink
)

// Dashboard implements the pane-based tview UI.
type Dashboard struct {
	app       *tview.Application
	scheduler *frameScheduler
	metrics   *Metrics

	ready  chan struct{}
	onQuit func()

	snapshotMu sync.RWMutex
	snapshot   Snapshot
	lastConn   live.State
	haveConn   bool

	feedBuf *BoundedEventBuffer

	header     *tview.TextView
	stats      *tview.TextView
	streams    *tview.TextView
	detections *tview.TextView
	feed       *feedPane
	system     *logPanel

	focus focusGroup
}

// NewDashboard constructs the tview dashboard if enabled. onQuit is invoked
// from the UI goroutine when the operator presses a quit key; the caller is
// expected to run its normal shutdown, which calls Stop.
func NewDashboard(cfg config.UIConfig, name string, onQuit func(), enable bool) *Dashboard {
	if !enable {
		return nil
	}

	app := tview.NewApplication().EnableMouse(false)
	ready := make(chan struct{})
	var once sync.Once
	app.SetBeforeDrawFunc(func(screen tcell.Screen) bool {
		once.Do(func() { close(ready) })
		return false
	})

	metrics := NewMetrics()
	d := &Dashboard{
		app:     app,
		metrics: metrics,
		ready:   ready,
		onQuit:  onQuit,
	}

	feedPolicy := DropPolicy{
		MaxMessageBytes:  512,
		EvictOnByteLimit: true,
		LogDrops:         true,
	}
	feedMaxBytes := int64(cfg.FeedBuffer.MaxBytesKB) * 1024
	d.feedBuf = NewBoundedEventBuffer("feed", cfg.FeedBuffer.MaxEvents, feedMaxBytes, feedPolicy, log.Printf)

	d.header = newBoxedTextView(name)
	d.stats = newBoxedTextView("Pipeline")
	d.streams = newBoxedTextView("Streams")
	d.streams.SetScrollable(true)
	d.detections = newBoxedTextView("Detections")
	d.detections.SetScrollable(true)
	d.feed = newFeedPane("Live Feed", d.feedBuf)
	d.system = newLogPanel("System", systemPaneMax)
	d.seedPlaceholders()

	d.focus = newFocusGroup(
		newFocusBox(d.stats, "Pipeline", true),
		newFocusBox(d.streams, "Streams", true),
		newFocusBox(d.detections, "Detections", true),
		d.feed,
		d.system,
	)

	d.scheduler = newFrameScheduler(app, cfg.TargetFPS, 100*time.Millisecond, metrics.ObserveRender)
	d.scheduler.Start()

	d.installKeybindings()
	d.installRoot(cfg)

	go func() {
		if err := app.Run(); err != nil {
			log.Printf("UI: tview error: %v", err)
		}
	}()

	return d
}

// installRoot lays the panes out top to bottom. The live feed takes the
// leftover rows so a taller terminal shows more feed history.
func (d *Dashboard) installRoot(cfg config.UIConfig) {
	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(d.header, 4, 0, false).
		AddItem(d.stats, cfg.PaneLines.Stats+2, 0, false).
		AddItem(d.streams, cfg.PaneLines.Streams+2, 0, false).
		AddItem(d.detections, cfg.PaneLines.Detections+2, 0, false).
		AddItem(d.feed.view, 0, 1, false).
		AddItem(d.system.view, cfg.PaneLines.System+2, 0, false).
		AddItem(buildFooter(), 1, 0, false)
	d.app.SetRoot(root, true)
	d.focus.set(d.app, 0)
}

func (d *Dashboard) installKeybindings() {
	d.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if d.focus.handleScroll(d.app, event) {
			return nil
		}

		switch event.Key() {
		case tcell.KeyTab:
			d.focus.cycle(d.app, 1)
			return nil
		case tcell.KeyBacktab:
			d.focus.cycle(d.app, -1)
			return nil
		case tcell.KeyCtrlC:
			d.requestQuit()
			return nil
		}

		switch event.Rune() {
		case 'q', 'Q':
			d.requestQuit()
			return nil
		}

		return event
	})
}

func (d *Dashboard) requestQuit() {
	if d.onQuit != nil {
		d.onQuit()
		return
	}
	d.Stop()
}

func (d *Dashboard) seedPlaceholders() {
	setPaneText(d.stats, nil, statsPlaceholder)
	setPaneText(d.streams, nil, streamsPlaceholder)
	setPaneText(d.detections, nil, detectionsPlaceholder)
}

var (
	statsPlaceholder      = []string{"waiting for first poll"}
	streamsPlaceholder    = []string{"no streams reported"}
	detectionsPlaceholder = []string{"no detections yet"}
)

func (d *Dashboard) WaitReady() {
	if d == nil || d.ready == nil {
		return
	}
	<-d.ready
}

// Stop is safe to call more than once; the quit keybinding and the main
// teardown path both reach it.
func (d *Dashboard) Stop() {
	if d == nil {
		return
	}
	if d.scheduler != nil {
		d.scheduler.Stop()
	}
	if d.app != nil {
		d.app.Stop()
	}
}

func (d *Dashboard) SetSnapshot(snapshot Snapshot) {
	if d == nil {
		return
	}
	d.snapshotMu.Lock()
	d.snapshot = snapshot
	conn := snapshot.Connection
	changed := d.haveConn && conn != d.lastConn
	d.lastConn = conn
	d.haveConn = true
	d.snapshotMu.Unlock()

	// Link transitions show up in the feed between detections, so an
	// operator can correlate a gap with an outage.
	if changed {
		d.appendEvent(EventLink, "link "+StripTags(ConnectionLabel(conn)))
	}

	d.scheduler.Schedule("snapshot", func() {
		d.renderSnapshot()
	})
}

func (d *Dashboard) AppendFeed(line string) {
	if d == nil {
		return
	}
	d.metrics.FeedEvent()
	d.appendEvent(EventDetection, line)
}

func (d *Dashboard) AppendSystem(line string) {
	if d == nil || d.system == nil {
		return
	}
	d.system.Append(StripTags(line))
	// The ring already holds the line; an empty update just forces a frame.
	d.scheduler.Schedule("system", func() {})
}

func (d *Dashboard) appendEvent(kind EventKind, line string) {
	if d == nil || d.feedBuf == nil {
		return
	}
	event := StyledEvent{
		Timestamp: time.Now().UTC(),
		Kind:      kind,
		Message:   StripTags(line),
	}
	if d.feedBuf.Append(event) {
		d.scheduler.Schedule("feed", func() {
			d.feed.refresh()
		})
	}
}

func (d *Dashboard) SystemWriter() io.Writer {
	if d == nil {
		return nil
	}
	return &paneWriter{dash: d}
}

func (d *Dashboard) renderSnapshot() {
	snap := d.snapshotCopy()
	setPaneText(d.header, snap.HeaderLines, nil)

	statsLines := snap.StatsLines
	if len(snap.FooterLines) > 0 {
		statsLines = append(statsLines, "")
		statsLines = append(statsLines, snap.FooterLines...)
	}
	if lat := d.metrics.RenderSnapshot(); lat.N > 0 {
		statsLines = append(statsLines, fmt.Sprintf("UI: draw p50=%s p99=%s feed=%d",
			lat.P50.Round(time.Microsecond), lat.P99.Round(time.Microsecond), d.metrics.FeedEvents()))
	}
	setPaneText(d.stats, statsLines, statsPlaceholder)

	setPaneText(d.streams, snap.StreamLines, streamsPlaceholder)

	det := snap.DetectionLines
	if snap.LiveLine != "" {
		det = append(det, snap.LiveLine)
	}
	setPaneText(d.detections, det, detectionsPlaceholder)
}

// snapshotCopy returns a deep enough copy that renderSnapshot can append
// to the line slices without touching the stored snapshot.
func (d *Dashboard) snapshotCopy() Snapshot {
	d.snapshotMu.RLock()
	defer d.snapshotMu.RUnlock()
	return Snapshot{
		GeneratedAt:    d.snapshot.GeneratedAt,
		HeaderLines:    copyLines(d.snapshot.HeaderLines),
		StatsLines:     copyLines(d.snapshot.StatsLines),
		StreamLines:    copyLines(d.snapshot.StreamLines),
		DetectionLines: copyLines(d.snapshot.DetectionLines),
		LiveLine:       d.snapshot.LiveLine,
		FooterLines:    copyLines(d.snapshot.FooterLines),
		Connection:     d.snapshot.Connection,
	}
}

func copyLines(lines []string) []string {
	if len(lines) == 0 {
		return nil
	}
	out := make([]string, len(lines))
	copy(out, lines)
	return out
}

type paneWriter struct {
	dash *Dashboard
	// buf holds any partial line; it is bounded to avoid unbounded growth when no newline arrives.
	buf          []byte
	mu           sync.Mutex
	droppedBytes uint64
	lastDropLog  time.Time
}

func (w *paneWriter) Write(p []byte) (int, error) {
	if w == nil || w.dash == nil {
		return len(p), nil
	}
	var logDrop bool
	var dropBytes uint64
	var totalDropped uint64
	now := time.Now().UTC()
	w.mu.Lock()
	w.buf = append(w.buf, p...)
	if excess := len(w.buf) - paneWriterMaxBytes; excess > 0 {
		w.buf = w.buf[excess:]
		w.droppedBytes += uint64(excess)
		dropBytes = uint64(excess)
		totalDropped = w.droppedBytes
		if w.lastDropLog.IsZero() || now.Sub(w.lastDropLog) >= 30*time.Second {
			w.lastDropLog = now
			logDrop = true
		}
	}
	data := w.buf
	w.mu.Unlock()
	if logDrop {
		log.Printf("UI: paneWriter dropped %d bytes (total %d) due to missing newline", dropBytes, totalDropped)
	}

	for {
		idx := bytes.IndexByte(data, '\n')
		if idx == -1 {
			break
		}
		line := string(bytes.TrimRight(data[:idx], "\r"))
		w.dash.AppendSystem(line)
		data = data[idx+1:]
	}
	w.mu.Lock()
	w.buf = data
	w.mu.Unlock()
	return len(p), nil
}

func setPaneText(tv *tview.TextView, lines []string, placeholder []string) {
	if tv == nil {
		return
	}
	if len(lines) == 0 {
		lines = placeholder
	}
	tv.SetText(padLines(strings.Join(lines, "\n")))
}

func newBoxedTextView(title string) *tview.TextView {
	tv := tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	tv.SetBorder(true)
	if title != "" {
		tv.SetTitle(accentText(title)).SetTitleAlign(tview.AlignLeft)
	}
	tv.SetBorderColor(uiBorderColor)
	tv.SetTitleColor(uiTitleColor)
	return tv
}

func buildFooter() *tview.TextView {
	return tview.NewTextView().SetDynamicColors(true).SetText(
		accentText("Tab") + "Panes  " + accentText("Up/Dn") + "Scroll  " + accentText("End") + "Follow  [Q]Quit",
	)
}

func scrollTextView(target *tview.TextView, event *tcell.EventKey) bool {
	if target == nil || event == nil {
		return false
	}
	row, col := target.GetScrollOffset()
	page := 10
	_, _, _, height := target.GetInnerRect()
	if height > 0 {
		page = height - 1
		if page < 1 {
			page = 1
		}
	}
	switch event.Key() {
	case tcell.KeyUp:
		if row > 0 {
			row--
		}
	case tcell.KeyDown:
		row++
	case tcell.KeyPgUp:
		row -= page
		if row < 0 {
			row = 0
		}
	case tcell.KeyPgDn:
		row += page
	case tcell.KeyHome:
		row = 0
	case tcell.KeyEnd:
		row = 1 << 30
	default:
		return false
	}
	target.ScrollTo(row, col)
	return true
}

func padLines(text string) string {
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line == "" {
			continue
		}
		lines[i] = " " + line
	}
	return strings.Join(lines, "\n")
}

var tagStripReplacer = strings.NewReplacer(
	"[red]", "",
	"[green]", "",
	"[yellow]", "",
	"[blue]", "",
	"[#ff69b4]", "",
	"[magenta]", "",
	"[cyan]", "",
	"[white]", "",
	"[-]", "",
)

// StripTags removes the color markup used by snapshot lines, leaving
// plain text suitable for log files.
func StripTags(s string) string {
	if s == "" {
		return ""
	}
	return tagStripReplacer.Replace(s)
}

func accentText(text string) string {
	if text == "" {
		return ""
	}
	return accentTag + text + accentReset
}
