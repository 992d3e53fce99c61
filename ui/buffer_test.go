package ui

import (
	"testing"
	"time"
)

func TestBoundedEventBufferEvictsOldest(t *testing.T) {
	buf := NewBoundedEventBuffer("feed", 2, 0, DropPolicy{MaxMessageBytes: 0, EvictOnByteLimit: true}, nil)
	buf.Append(StyledEvent{Timestamp: time.Unix(1, 0), Kind: EventDetection, Message: "a"})
	buf.Append(StyledEvent{Timestamp: time.Unix(2, 0), Kind: EventDetection, Message: "b"})
	buf.Append(StyledEvent{Timestamp: time.Unix(3, 0), Kind: EventDetection, Message: "c"})

	snap := buf.SnapshotInto(nil)
	if len(snap.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(snap.Events))
	}
	if snap.Events[0].Message != "b" || snap.Events[1].Message != "c" {
		t.Fatalf("unexpected order: %+v", snap.Events)
	}
	drops := buf.DropSnapshot()
	if drops.Evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", drops.Evicted)
	}
}

func TestBoundedEventBufferMaxMessageDrop(t *testing.T) {
	buf := NewBoundedEventBuffer("feed", 2, 0, DropPolicy{MaxMessageBytes: 3, EvictOnByteLimit: true, LogDrops: false}, nil)
	if ok := buf.Append(StyledEvent{Timestamp: time.Now(), Kind: EventDetection, Message: "abcd"}); ok {
		t.Fatalf("expected oversized message drop")
	}
	drops := buf.DropSnapshot()
	if drops.Oversized != 1 {
		t.Fatalf("expected oversized drop count 1, got %d", drops.Oversized)
	}
}

func TestBoundedEventBufferByteLimitReject(t *testing.T) {
	buf := NewBoundedEventBuffer("feed", 10, 4, DropPolicy{MaxMessageBytes: 0, EvictOnByteLimit: false, LogDrops: false}, nil)
	if ok := buf.Append(StyledEvent{Timestamp: time.Now(), Kind: EventDetection, Message: "abcd"}); !ok {
		t.Fatalf("expected first append to succeed")
	}
	if ok := buf.Append(StyledEvent{Timestamp: time.Now(), Kind: EventDetection, Message: "ef"}); ok {
		t.Fatalf("expected byte limit drop")
	}
	drops := buf.DropSnapshot()
	if drops.ByteLimit != 1 {
		t.Fatalf("expected byte limit drop count 1, got %d", drops.ByteLimit)
	}
}

func TestBoundedEventBufferByteLimitEvicts(t *testing.T) {
	buf := NewBoundedEventBuffer("feed", 10, 6, DropPolicy{MaxMessageBytes: 0, EvictOnByteLimit: true}, nil)
	buf.Append(StyledEvent{Kind: EventDetection, Message: "aaa"})
	buf.Append(StyledEvent{Kind: EventDetection, Message: "bbb"})
	if ok := buf.Append(StyledEvent{Kind: EventDetection, Message: "cc"}); !ok {
		t.Fatalf("expected append to evict and succeed")
	}

	snap := buf.SnapshotInto(nil)
	if len(snap.Events) != 2 {
		t.Fatalf("expected 2 events after eviction, got %d", len(snap.Events))
	}
	if snap.Events[0].Message != "bbb" || snap.Events[1].Message != "cc" {
		t.Fatalf("unexpected events: %+v", snap.Events)
	}
	count, _, bytes, _ := buf.BufferUsage()
	if count != 2 || bytes != 5 {
		t.Fatalf("expected usage 2 events / 5 bytes, got %d / %d", count, bytes)
	}
}

func TestSnapshotIntoReusesCapacity(t *testing.T) {
	buf := NewBoundedEventBuffer("feed", 4, 0, DropPolicy{}, nil)
	buf.Append(StyledEvent{Kind: EventDetection, Message: "a"})
	buf.Append(StyledEvent{Kind: EventDetection, Message: "b"})

	scratch := make([]StyledEvent, 0, 8)
	snap := buf.SnapshotInto(scratch)
	if len(snap.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(snap.Events))
	}
	if cap(snap.Events) != 8 {
		t.Fatalf("expected dst capacity to be reused, got %d", cap(snap.Events))
	}
	if snap.Seq != 2 {
		t.Fatalf("expected seq 2, got %d", snap.Seq)
	}
}
