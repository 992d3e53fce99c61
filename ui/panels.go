package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// focusable abstracts a focusable primitive with optional scroll handling.
type focusable interface {
	Primitive() tview.Primitive
	SetFocused(focused bool)
	HandleScroll(event *tcell.EventKey) bool
}

// applyFocusBoxStyle recolors a pane border to mark keyboard focus.
func applyFocusBoxStyle(box *tview.Box, baseTitle string, focused bool) {
	if box == nil {
		return
	}
	if focused {
		box.SetBorderColor(uiTitleColor)
	} else {
		box.SetBorderColor(uiBorderColor)
	}
	box.SetTitle(accentText(baseTitle))
	box.SetTitleColor(uiTitleColor)
	box.SetTitleAlign(tview.AlignLeft)
}

func applyFocusStyle(tv *tview.TextView, baseTitle string, focused bool) {
	if tv == nil {
		return
	}
	applyFocusBoxStyle(tv.Box, baseTitle, focused)
}

// focusBox wraps a boxed TextView with focus styling metadata.
type focusBox struct {
	tv         *tview.TextView
	baseTitle  string
	scrollable bool
}

func newFocusBox(tv *tview.TextView, baseTitle string, scrollable bool) *focusBox {
	return &focusBox{
		tv:         tv,
		baseTitle:  baseTitle,
		scrollable: scrollable,
	}
}

func (b *focusBox) Primitive() tview.Primitive {
	if b == nil {
		return nil
	}
	return b.tv
}

func (b *focusBox) SetFocused(focused bool) {
	if b == nil {
		return
	}
	applyFocusStyle(b.tv, b.baseTitle, focused)
}

func (b *focusBox) HandleScroll(event *tcell.EventKey) bool {
	if b == nil || !b.scrollable {
		return false
	}
	return scrollTextView(b.tv, event)
}

// focusGroup manages focus cycling and scroll handling for a set of panes.
type focusGroup struct {
	items []focusable
	index int
}

func newFocusGroup(items ...focusable) focusGroup {
	filtered := make([]focusable, 0, len(items))
	for _, item := range items {
		if item == nil || item.Primitive() == nil {
			continue
		}
		filtered = append(filtered, item)
	}
	return focusGroup{items: filtered}
}

func (g *focusGroup) set(app *tview.Application, idx int) {
	if g == nil || len(g.items) == 0 {
		return
	}
	if idx < 0 || idx >= len(g.items) {
		idx = 0
	}
	g.index = idx
	for i, item := range g.items {
		item.SetFocused(i == idx)
	}
	if app != nil {
		app.SetFocus(g.items[idx].Primitive())
	}
}

func (g *focusGroup) cycle(app *tview.Application, delta int) {
	if g == nil || len(g.items) == 0 {
		return
	}
	next := g.index + delta
	if next < 0 {
		next = len(g.items) - 1
	} else if next >= len(g.items) {
		next = 0
	}
	g.set(app, next)
}

func (g *focusGroup) handleScroll(app *tview.Application, event *tcell.EventKey) bool {
	if g == nil || app == nil || event == nil {
		return false
	}
	focused := app.GetFocus()
	for _, item := range g.items {
		if item.Primitive() == focused {
			return item.HandleScroll(event)
		}
	}
	return false
}

// feedPane shows the live detection feed: a virtualized list rendered from
// a bounded event buffer. It follows the newest event until the operator
// scrolls away.
type feedPane struct {
	view      *VirtualList
	buf       *BoundedEventBuffer
	follow    bool
	scratch   []StyledEvent
	baseTitle string
}

func newFeedPane(baseTitle string, buf *BoundedEventBuffer) *feedPane {
	view := NewVirtualList()
	view.SetBorder(true)
	applyFocusBoxStyle(view.Box, baseTitle, false)
	return &feedPane{view: view, buf: buf, follow: true, baseTitle: baseTitle}
}

func (p *feedPane) Primitive() tview.Primitive {
	if p == nil {
		return nil
	}
	return p.view
}

func (p *feedPane) SetFocused(focused bool) {
	if p == nil || p.view == nil {
		return
	}
	applyFocusBoxStyle(p.view.Box, p.baseTitle, focused)
}

func (p *feedPane) HandleScroll(event *tcell.EventKey) bool {
	if p == nil || p.view == nil || event == nil {
		return false
	}
	_, _, _, height := p.view.GetInnerRect()
	page := height - 1
	if page < 1 {
		page = 1
	}
	handled := true
	switch event.Key() {
	case tcell.KeyUp:
		p.view.ScrollUp(1)
		p.follow = false
	case tcell.KeyDown:
		p.view.ScrollDown(1)
	case tcell.KeyPgUp:
		p.view.ScrollUp(page)
		p.follow = false
	case tcell.KeyPgDn:
		p.view.ScrollDown(page)
	case tcell.KeyHome:
		p.view.ScrollToStart()
		p.follow = false
	case tcell.KeyEnd:
		p.view.ScrollToEnd()
		p.follow = true
	case tcell.KeyRune:
		switch event.Rune() {
		case 'k':
			p.view.ScrollUp(1)
			p.follow = false
		case 'j':
			p.view.ScrollDown(1)
		default:
			handled = false
		}
	default:
		handled = false
	}
	if !handled {
		return false
	}
	// Scrolling back to the newest row re-arms follow mode.
	if event.Key() != tcell.KeyEnd && p.view.AtEnd() {
		p.follow = true
	}
	return true
}

// refresh re-reads the buffer into the list. Runs on the UI goroutine via
// the frame scheduler, so reusing the scratch slice is safe.
func (p *feedPane) refresh() {
	if p == nil || p.buf == nil || p.view == nil {
		return
	}
	snap := p.buf.SnapshotInto(p.scratch)
	p.scratch = snap.Events
	p.view.SetSnapshot(snap.Events)
	if p.follow {
		p.view.ScrollToEnd()
	}
}

// logPanel is a bounded scrolling panel for plain log lines.
type logPanel struct {
	view *virtualLogView
}

func newLogPanel(baseTitle string, max int) *logPanel {
	return &logPanel{view: newVirtualLogView(baseTitle, max)}
}

func (p *logPanel) Primitive() tview.Primitive {
	if p == nil {
		return nil
	}
	return p.view
}

func (p *logPanel) SetFocused(focused bool) {
	if p == nil || p.view == nil {
		return
	}
	p.view.SetFocused(focused)
}

func (p *logPanel) HandleScroll(event *tcell.EventKey) bool {
	if p == nil || p.view == nil {
		return false
	}
	return p.view.HandleScroll(event)
}

func (p *logPanel) Append(line string) {
	if p == nil || p.view == nil {
		return
	}
	p.view.Append(line)
}

func (p *logPanel) SnapshotText() string {
	if p == nil || p.view == nil {
		return ""
	}
	return p.view.SnapshotText()
}
