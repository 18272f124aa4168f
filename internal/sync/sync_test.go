package sync

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alfredjeanlab/storyweb/internal/store/memory"
)

// mockDestination records calls to Write.
type mockDestination struct {
	writes atomic.Int64
	last   atomic.Value // []byte
	err    error
}

func (d *mockDestination) Write(_ context.Context, data []byte) error {
	d.writes.Add(1)
	cp := make([]byte, len(data))
	copy(cp, data)
	d.last.Store(cp)
	return d.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestSchedulerStartStop(t *testing.T) {
	dest := &mockDestination{}
	sched := NewScheduler(seedStore(t), []Destination{dest}, 50*time.Millisecond, testLogger())
	sched.Start()
	time.Sleep(120 * time.Millisecond)
	sched.Stop()

	// Nothing changed after the initial sync, so ticks do not rewrite.
	if writes := dest.writes.Load(); writes != 1 {
		t.Fatalf("expected 1 write, got %d", writes)
	}

	data, ok := dest.last.Load().([]byte)
	if !ok || len(data) == 0 {
		t.Fatal("expected non-empty data")
	}
	// 1 header + 2 relationships + 2 graphs
	if lines := nonEmptyLines(string(data)); len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d", len(lines))
	}
}

func TestSchedulerStop_NoStart(t *testing.T) {
	sched := NewScheduler(memory.New(), nil, time.Minute, nil)
	// Stop without Start should not panic.
	sched.Stop()
}

func TestSchedulerMultipleDestinations(t *testing.T) {
	dest1 := &mockDestination{}
	dest2 := &mockDestination{}
	sched := NewScheduler(memory.New(), []Destination{dest1, dest2}, time.Second, testLogger())
	sched.Start()
	time.Sleep(50 * time.Millisecond)
	sched.Stop()

	if dest1.writes.Load() < 1 {
		t.Fatal("dest1 expected at least 1 write")
	}
	if dest2.writes.Load() < 1 {
		t.Fatal("dest2 expected at least 1 write")
	}
}

func TestSyncOnce_SkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	ms := seedStore(t)
	dest := &mockDestination{}
	sched := NewScheduler(ms, []Destination{dest}, time.Minute, testLogger())

	if !sched.SyncOnce(ctx) {
		t.Fatal("first sync should write")
	}
	if sched.SyncOnce(ctx) {
		t.Fatal("unchanged export should be skipped")
	}

	rel, err := ms.GetRelationship(ctx, "rel-a")
	if err != nil {
		t.Fatal(err)
	}
	rel.Name = "Harbor at night"
	if err := ms.SaveRelationship(ctx, rel); err != nil {
		t.Fatal(err)
	}
	if !sched.SyncOnce(ctx) {
		t.Fatal("changed export should be written")
	}
	if n := dest.writes.Load(); n != 2 {
		t.Fatalf("expected 2 writes, got %d", n)
	}
}

func TestSyncOnce_RetriesAfterFailure(t *testing.T) {
	ctx := context.Background()
	dest := &mockDestination{err: errors.New("bucket gone")}
	sched := NewScheduler(seedStore(t), []Destination{dest}, time.Minute, testLogger())

	sched.SyncOnce(ctx)
	dest.err = nil
	if !sched.SyncOnce(ctx) {
		t.Fatal("a failed write must not mark the export as synced")
	}
	if n := dest.writes.Load(); n != 2 {
		t.Fatalf("expected 2 writes, got %d", n)
	}
}

func TestRecordsDigestIgnoresHeader(t *testing.T) {
	a := recordsDigest([]byte(`{"type":"header","timestamp":"1"}` + "\n" + `{"type":"relationship"}` + "\n"))
	b := recordsDigest([]byte(`{"type":"header","timestamp":"2"}` + "\n" + `{"type":"relationship"}` + "\n"))
	c := recordsDigest([]byte(`{"type":"header","timestamp":"2"}` + "\n" + `{"type":"graph"}` + "\n"))
	if a != b {
		t.Fatal("header change should not alter the digest")
	}
	if a == c {
		t.Fatal("record change should alter the digest")
	}
}
