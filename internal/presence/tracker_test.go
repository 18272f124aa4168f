package presence

import (
	"testing"
	"time"
)

// fakeClock returns a tracker whose clock is advanced by hand.
func fakeClock() (*Tracker, *time.Time) {
	tr := New()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }
	return tr, &now
}

func TestRecord_BasicTracking(t *testing.T) {
	tr, _ := fakeClock()

	tr.Record(Activity{Actor: "alice", RelationshipID: "rel-1", ProjectID: "p", Action: ActionCreated})

	roster := tr.Roster("")
	if len(roster) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(roster))
	}
	e := roster[0]
	if e.Actor != "alice" || e.RelationshipID != "rel-1" || e.ProjectID != "p" {
		t.Errorf("unexpected entry %+v", e)
	}
	if e.LastAction != ActionCreated {
		t.Errorf("expected last_action created, got %s", e.LastAction)
	}
	if e.SaveCount != 0 {
		t.Errorf("expected save_count 0 after create, got %d", e.SaveCount)
	}
}

func TestRecord_CountsSaves(t *testing.T) {
	tr, now := fakeClock()

	tr.Record(Activity{Actor: "bob", RelationshipID: "rel-1", Action: ActionCreated})
	*now = now.Add(time.Minute)
	tr.Record(Activity{Actor: "bob", RelationshipID: "rel-1", Action: ActionSaved})
	*now = now.Add(time.Minute)
	tr.Record(Activity{Actor: "bob", RelationshipID: "rel-1", Action: ActionSaved})

	roster := tr.Roster("")
	if len(roster) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(roster))
	}
	e := roster[0]
	if e.SaveCount != 2 {
		t.Errorf("expected 2 saves, got %d", e.SaveCount)
	}
	if e.LastAction != ActionSaved {
		t.Errorf("expected last_action saved, got %s", e.LastAction)
	}
	if got := e.LastSeen.Sub(e.FirstSeen); got != 2*time.Minute {
		t.Errorf("expected 2m between first and last seen, got %v", got)
	}
}

func TestRecord_IgnoresAnonymous(t *testing.T) {
	tr, _ := fakeClock()

	tr.Record(Activity{RelationshipID: "rel-1", Action: ActionSaved})
	tr.Record(Activity{Actor: "alice", Action: ActionSaved})

	if roster := tr.Roster(""); len(roster) != 0 {
		t.Errorf("expected empty roster, got %d entries", len(roster))
	}
}

func TestRoster_ProjectFilterAndOrder(t *testing.T) {
	tr, now := fakeClock()

	tr.Record(Activity{Actor: "first", RelationshipID: "rel-1", ProjectID: "p", Action: ActionSaved})
	*now = now.Add(time.Second)
	tr.Record(Activity{Actor: "other", RelationshipID: "rel-9", ProjectID: "q", Action: ActionSaved})
	*now = now.Add(time.Second)
	tr.Record(Activity{Actor: "second", RelationshipID: "rel-2", ProjectID: "p", Action: ActionSaved})

	roster := tr.Roster("p")
	if len(roster) != 2 {
		t.Fatalf("expected 2 entries for project p, got %d", len(roster))
	}
	if roster[0].Actor != "second" || roster[1].Actor != "first" {
		t.Errorf("expected most recent first, got %s, %s", roster[0].Actor, roster[1].Actor)
	}
	if all := tr.Roster(""); len(all) != 3 {
		t.Errorf("expected 3 entries overall, got %d", len(all))
	}
}

func TestEditors_OneDiagram(t *testing.T) {
	tr, now := fakeClock()

	tr.Record(Activity{Actor: "alice", RelationshipID: "rel-1", Action: ActionSaved})
	tr.Record(Activity{Actor: "bob", RelationshipID: "rel-1", Action: ActionSaved})
	tr.Record(Activity{Actor: "carol", RelationshipID: "rel-2", Action: ActionSaved})

	editors := tr.Editors("rel-1")
	if len(editors) != 2 {
		t.Fatalf("expected 2 editors, got %d", len(editors))
	}
	// Same timestamp: ordered by actor.
	if editors[0].Actor != "alice" || editors[1].Actor != "bob" {
		t.Errorf("unexpected order %s, %s", editors[0].Actor, editors[1].Actor)
	}

	*now = now.Add(20 * time.Minute)
	tr.Record(Activity{Actor: "bob", RelationshipID: "rel-1", Action: ActionSaved})
	tr.sweep(&ReaperConfig{IdleThreshold: 15 * time.Minute, EvictAfter: time.Hour})

	editors = tr.Editors("rel-1")
	if len(editors) != 1 || editors[0].Actor != "bob" {
		t.Errorf("expected only bob after alice went idle, got %+v", editors)
	}
}

func TestSweep_MarksIdleEditors(t *testing.T) {
	tr, now := fakeClock()

	tr.Record(Activity{Actor: "idle-editor", RelationshipID: "rel-1", Action: ActionSaved})
	*now = now.Add(20 * time.Minute)

	var idled []string
	cfg := &ReaperConfig{
		IdleThreshold: 15 * time.Minute,
		EvictAfter:    30 * time.Minute,
		OnIdle: func(actor, relationshipID string) {
			idled = append(idled, actor+"@"+relationshipID)
		},
	}
	tr.sweep(cfg)

	if len(idled) != 1 || idled[0] != "idle-editor@rel-1" {
		t.Errorf("expected idle-editor@rel-1 to go idle, got %v", idled)
	}
	roster := tr.Roster("")
	if len(roster) != 1 || !roster[0].Idle {
		t.Fatalf("expected idle entry in roster, got %+v", roster)
	}
	if !roster[0].IdleSince.Equal(*now) {
		t.Errorf("expected idle_since %v, got %v", *now, roster[0].IdleSince)
	}

	// A second sweep does not report the editor again.
	tr.sweep(cfg)
	if len(idled) != 1 {
		t.Errorf("expected one OnIdle call, got %d", len(idled))
	}
}

func TestSweep_ReturningEditorNotIdle(t *testing.T) {
	tr, now := fakeClock()

	tr.Record(Activity{Actor: "alice", RelationshipID: "rel-1", Action: ActionSaved})
	*now = now.Add(20 * time.Minute)
	tr.sweep(&ReaperConfig{IdleThreshold: 15 * time.Minute, EvictAfter: 30 * time.Minute})

	tr.Record(Activity{Actor: "alice", RelationshipID: "rel-1", Action: ActionSaved})

	roster := tr.Roster("")
	if len(roster) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(roster))
	}
	if roster[0].Idle {
		t.Error("expected alice to be active again")
	}
	if roster[0].SaveCount != 2 {
		t.Errorf("expected 2 saves, got %d", roster[0].SaveCount)
	}
}

func TestSweep_EvictsLongIdleEditors(t *testing.T) {
	tr, now := fakeClock()

	tr.Record(Activity{Actor: "gone", RelationshipID: "rel-1", Action: ActionSaved})
	cfg := &ReaperConfig{IdleThreshold: 15 * time.Minute, EvictAfter: 30 * time.Minute}

	*now = now.Add(20 * time.Minute)
	tr.sweep(cfg)
	*now = now.Add(31 * time.Minute)
	tr.sweep(cfg)

	tr.mu.RLock()
	_, exists := tr.editors[editorKey{actor: "gone", relationshipID: "rel-1"}]
	tr.mu.RUnlock()
	if exists {
		t.Error("expected long-idle editor to be evicted")
	}
}

func TestStartReaper_StopsCleanly(t *testing.T) {
	tr := New()

	tr.StartReaper(&ReaperConfig{
		SweepInterval: 50 * time.Millisecond,
	})

	time.Sleep(150 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		tr.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return within 2 seconds")
	}
}

func TestStop_WithoutStart(t *testing.T) {
	New().Stop()
}
