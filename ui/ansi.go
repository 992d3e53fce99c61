package ui

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"vatop/config"
	"vatop/live"
)

// ansiConsole is a lightweight, fixed-buffer console renderer that uses ANSI
// escape codes. It is selected solely via ui.mode=ansi in the YAML config.
type ansiConsole struct {
	mu         sync.Mutex
	header     []string
	stats      []string
	streams    []string
	detections []string
	liveLine   string
	feed       ringPane
	system     ringPane
	lastConn   live.State
	haveConn   bool

	maxStreams    int
	maxDetections int

	refresh   time.Duration
	quit      chan struct{}
	writer    *ansiWriter
	color     bool
	clear     bool
	renderBuf bytes.Buffer
	snapFeed  []string
	snapSys   []string
	stopOnce  sync.Once
}

type ringPane struct {
	lines []string
	idx   int
	count int
}

// NewANSIConsole constructs the ANSI renderer when UI output is allowed.
// Pane sizes come from the config; the refresh interval is clamped to a
// floor so a misconfigured value cannot spin the render loop.
func NewANSIConsole(uiCfg config.UIConfig, enable bool) Surface {
	if !enable {
		return nil
	}

	refresh := time.Duration(uiCfg.RefreshMS) * time.Millisecond
	if refresh < 0 {
		refresh = 0
	}
	const minRefresh = 16 * time.Millisecond
	if refresh > 0 && refresh < minRefresh {
		log.Printf("UI: clamping refresh interval to %dms (requested %dms too low)", minRefresh/time.Millisecond, refresh/time.Millisecond)
		refresh = minRefresh
	}

	feedLines := uiCfg.PaneLines.Feed
	if feedLines <= 0 {
		feedLines = 1
	}
	systemLines := uiCfg.PaneLines.System
	if systemLines <= 0 {
		systemLines = 1
	}
	maxStreams := uiCfg.PaneLines.Streams
	if maxStreams <= 0 {
		maxStreams = 1
	}
	maxDetections := uiCfg.PaneLines.Detections
	if maxDetections <= 0 {
		maxDetections = 1
	}

	c := &ansiConsole{
		feed:          ringPane{lines: make([]string, feedLines)},
		system:        ringPane{lines: make([]string, systemLines)},
		maxStreams:    maxStreams,
		maxDetections: maxDetections,
		refresh:       refresh,
		quit:          make(chan struct{}),
		color:         uiCfg.Color,
		clear:         uiCfg.ClearScreen,
		snapFeed:      make([]string, feedLines),
		snapSys:       make([]string, systemLines),
	}
	c.writer = &ansiWriter{append: c.AppendSystem}

	if c.refresh > 0 {
		go c.refreshLoop()
	}

	return c
}

// WaitReady is a no-op; the ANSI renderer has no async initialization.
func (c *ansiConsole) WaitReady() {}

func (c *ansiConsole) Stop() {
	if c == nil {
		return
	}
	c.stopOnce.Do(func() {
		close(c.quit)
	})
}

// SetSnapshot replaces the static sections. Stream and detection lines are
// clamped to their pane sizes here; the feed and system rings keep their
// own bounds.
func (c *ansiConsole) SetSnapshot(snapshot Snapshot) {
	if c == nil {
		return
	}
	header := applyMarkupLines(snapshot.HeaderLines, c.color)
	stats := snapshot.StatsLines
	if len(snapshot.FooterLines) > 0 {
		stats = append(append([]string{}, stats...), snapshot.FooterLines...)
	}
	stats = applyMarkupLines(stats, c.color)
	streams := applyMarkupLines(clampLines(snapshot.StreamLines, c.maxStreams), c.color)
	detections := applyMarkupLines(clampLines(snapshot.DetectionLines, c.maxDetections), c.color)
	liveLine := applyANSIMarkup(snapshot.LiveLine, c.color)

	c.mu.Lock()
	c.header = header
	c.stats = stats
	c.streams = streams
	c.detections = detections
	c.liveLine = liveLine
	conn := snapshot.Connection
	changed := c.haveConn && conn != c.lastConn
	c.lastConn = conn
	c.haveConn = true
	c.mu.Unlock()

	if changed {
		c.AppendFeed("link " + StripTags(ConnectionLabel(conn)))
	}
}

func (c *ansiConsole) AppendFeed(line string) {
	c.append(&c.feed, time.Now().Format("15:04:05 ")+line)
}

func (c *ansiConsole) AppendSystem(line string) {
	c.append(&c.system, line)
}

func (c *ansiConsole) SystemWriter() io.Writer {
	if c == nil {
		return nil
	}
	return c.writer
}

func (c *ansiConsole) append(pane *ringPane, line string) {
	if c == nil || pane == nil {
		return
	}
	line = applyANSIMarkup(line, c.color)
	c.mu.Lock()
	if len(pane.lines) == 0 {
		c.mu.Unlock()
		return
	}
	pane.lines[pane.idx] = line
	pane.idx = (pane.idx + 1) % len(pane.lines)
	if pane.count < len(pane.lines) {
		pane.count++
	}
	c.mu.Unlock()
}

func (c *ansiConsole) refreshLoop() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "ANSI console panic: %v\n", r)
		}
	}()
	ticker := time.NewTicker(c.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.render()
		case <-c.quit:
			return
		}
	}
}

func (c *ansiConsole) render() {
	if c == nil {
		return
	}

	c.mu.Lock()
	header := append([]string{}, c.header...)
	stats := append([]string{}, c.stats...)
	streams := append([]string{}, c.streams...)
	detections := append([]string{}, c.detections...)
	liveLine := c.liveLine
	feed := snapshotPane(&c.feed, c.snapFeed)
	system := snapshotPane(&c.system, c.snapSys)
	c.mu.Unlock()

	c.renderBuf.Reset()
	// Clear screen + home cursor.
	if c.clear {
		c.renderBuf.WriteString("\x1b[2J\x1b[H")
	}

	for _, line := range header {
		if line != "" {
			c.renderBuf.WriteString(line)
		}
		c.renderBuf.WriteByte('\n')
	}

	writePane(&c.renderBuf, "---- Pipeline ----", stats)
	writePane(&c.renderBuf, "---- Streams ----", streams)
	writePane(&c.renderBuf, "---- Detections ----", detections)
	if liveLine != "" {
		c.renderBuf.WriteString(liveLine)
		c.renderBuf.WriteByte('\n')
	}
	writePane(&c.renderBuf, "---- Live Feed ----", feed)
	writePane(&c.renderBuf, "---- System ----", system)

	_, _ = c.renderBuf.WriteTo(os.Stdout)
}

type stringByteWriter interface {
	WriteString(string) (int, error)
	WriteByte(byte) error
}

func writePane(w stringByteWriter, title string, lines []string) {
	w.WriteString(title)
	w.WriteByte('\n')
	for _, line := range lines {
		if line != "" {
			w.WriteString(line)
		}
		w.WriteByte('\n')
	}
}

// snapshotPane copies a ring pane into a caller-provided buffer in append
// order.
func snapshotPane(p *ringPane, buf []string) []string {
	if p == nil || len(p.lines) == 0 || p.count == 0 || len(buf) == 0 {
		return buf[:0]
	}
	start := p.idx - p.count
	if start < 0 {
		start += len(p.lines)
	}
	limit := p.count
	if limit > len(buf) {
		limit = len(buf)
	}
	for i := 0; i < limit; i++ {
		pos := (start + i) % len(p.lines)
		buf[i] = p.lines[pos]
	}
	return buf[:limit]
}

func clampLines(lines []string, max int) []string {
	if max <= 0 || len(lines) <= max {
		return lines
	}
	return lines[:max]
}

func applyMarkupLines(lines []string, enableColor bool) []string {
	if len(lines) == 0 {
		return nil
	}
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = applyANSIMarkup(line, enableColor)
	}
	return out
}

type ansiWriter struct {
	append func(string)
	buf    []byte
	mu     sync.Mutex
}

// Write buffers until newline, applies markup, and bounds buffer growth.
func (w *ansiWriter) Write(p []byte) (int, error) {
	if w == nil || w.append == nil {
		return len(p), nil
	}
	w.mu.Lock()
	w.buf = append(w.buf, p...)
	data := w.buf
	w.mu.Unlock()

	for {
		idx := bytes.IndexByte(data, '\n')
		if idx == -1 {
			break
		}
		line := strings.TrimRight(string(data[:idx]), "\r")
		w.append(line)
		data = data[idx+1:]
	}

	w.mu.Lock()
	const maxWriterBufferSize = 16 * 1024
	if len(data) > maxWriterBufferSize {
		// Drop overflow by forcing a flush of the partial line to avoid unbounded growth.
		trimmed := strings.TrimRight(string(data), "\r")
		if trimmed != "" {
			w.append(trimmed)
		}
		data = data[:0]
	}
	w.buf = data
	w.mu.Unlock()
	return len(p), nil
}

// applyANSIMarkup translates tview-style color tags into ANSI escapes, or
// strips them when color is off.
func applyANSIMarkup(line string, enableColor bool) string {
	if line == "" {
		return line
	}
	if enableColor {
		// Heuristic: any markup brackets triggers a reset append after replacement.
		hasMarkup := strings.Contains(line, "[")
		line = ansiColorReplacer.Replace(line)
		if hasMarkup {
			line += resetANSI
		}
		return line
	}
	return ansiStripReplacer.Replace(line)
}

const resetANSI = "\x1b[0m"

var ansiColorReplacer = strings.NewReplacer(
	"[red]", "\x1b[31m",
	"[green]", "\x1b[32m",
	"[yellow]", "\x1b[33m",
	"[blue]", "\x1b[34m",
	"[magenta]", "\x1b[35m",
	"[cyan]", "\x1b[36m",
	"[white]", "\x1b[37m",
	"[#ff69b4]", "\x1b[95m",
	"[-]", resetANSI,
)

var ansiStripReplacer = strings.NewReplacer(
	"[red]", "",
	"[green]", "",
	"[yellow]", "",
	"[blue]", "",
	"[magenta]", "",
	"[cyan]", "",
	"[white]", "",
	"[#ff69b4]", "",
	"[-]", "",
)
