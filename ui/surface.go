package ui

import "io"

// Surface abstracts the dashboard so alternative console renderers can plug in.
// Implementations must be safe for concurrent calls from the poll and live loops.
type Surface interface {
	WaitReady()
	Stop()
	SetSnapshot(snapshot Snapshot)
	AppendFeed(line string)
	AppendSystem(line string)
	SystemWriter() io.Writer
}
