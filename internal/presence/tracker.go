// Package presence tracks which actors are editing which relationship
// diagrams.
//
// The server records an Activity every time a diagram is created or saved.
// A background reaper marks editors idle once they stop saving and later
// forgets them. Presence is advisory: it lets a client warn that someone
// else touched a diagram recently, but saves stay last-write-wins.
package presence

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Actions recorded by the server.
const (
	ActionCreated = "created"
	ActionSaved   = "saved"
)

// Entry is one actor's presence on one relationship diagram.
type Entry struct {
	Actor          string    `json:"actor"`
	RelationshipID string    `json:"relationship_id"`
	ProjectID      string    `json:"project_id"`
	LastAction     string    `json:"last_action"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
	IdleSecs       float64   `json:"idle_secs"`
	SaveCount      int64     `json:"save_count"`
	Idle           bool      `json:"idle,omitempty"`
	IdleSince      time.Time `json:"idle_since,omitempty"`
}

// Activity is a single create or save by an actor.
type Activity struct {
	Actor          string
	RelationshipID string
	ProjectID      string
	Action         string
}

// ReaperConfig configures the background idle-editor reaper.
type ReaperConfig struct {
	// IdleThreshold is how long an editor may go without saving before
	// being marked idle. Default: 15 minutes.
	IdleThreshold time.Duration

	// EvictAfter is how long an idle editor is kept before being removed.
	// Default: 30 minutes.
	EvictAfter time.Duration

	// SweepInterval is how often the reaper scans. Default: 60 seconds.
	SweepInterval time.Duration

	// OnIdle is called outside the lock for each editor newly marked idle.
	OnIdle func(actor, relationshipID string)
}

type editorKey struct {
	actor          string
	relationshipID string
}

type editorState struct {
	projectID  string
	firstSeen  time.Time
	lastSeen   time.Time
	lastAction string
	saveCount  int64
	idle       bool
	idleSince  time.Time
}

// Tracker maintains an in-memory roster of diagram editors.
type Tracker struct {
	mu      sync.RWMutex
	editors map[editorKey]*editorState
	now     func() time.Time

	reaperStop chan struct{}
	reaperDone chan struct{}
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{
		editors: make(map[editorKey]*editorState),
		now:     time.Now,
	}
}

// Record notes that an actor created or saved a diagram. Anonymous
// activity is ignored.
func (t *Tracker) Record(a Activity) {
	if a.Actor == "" || a.RelationshipID == "" {
		return
	}

	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()

	k := editorKey{actor: a.Actor, relationshipID: a.RelationshipID}
	state, ok := t.editors[k]
	if !ok {
		state = &editorState{firstSeen: now}
		t.editors[k] = state
	}
	if state.idle {
		slog.Debug("presence: editor active again", "actor", a.Actor, "relationship", a.RelationshipID)
		state.idle = false
		state.idleSince = time.Time{}
	}

	state.lastSeen = now
	state.lastAction = a.Action
	if a.ProjectID != "" {
		state.projectID = a.ProjectID
	}
	if a.Action == ActionSaved {
		state.saveCount++
	}
}

// Roster returns every tracked editor, most recently active first. A
// non-empty projectID restricts the roster to that project.
func (t *Tracker) Roster(projectID string) []Entry {
	return t.collect(func(_ editorKey, s *editorState) bool {
		return projectID == "" || s.projectID == projectID
	})
}

// Editors returns the actors currently active on one diagram, most recently
// active first. Idle editors are left out.
func (t *Tracker) Editors(relationshipID string) []Entry {
	return t.collect(func(k editorKey, s *editorState) bool {
		return k.relationshipID == relationshipID && !s.idle
	})
}

func (t *Tracker) collect(keep func(editorKey, *editorState) bool) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := t.now()
	entries := make([]Entry, 0, len(t.editors))
	for k, s := range t.editors {
		if !keep(k, s) {
			continue
		}
		entries = append(entries, Entry{
			Actor:          k.actor,
			RelationshipID: k.relationshipID,
			ProjectID:      s.projectID,
			LastAction:     s.lastAction,
			FirstSeen:      s.firstSeen,
			LastSeen:       s.lastSeen,
			IdleSecs:       now.Sub(s.lastSeen).Seconds(),
			SaveCount:      s.saveCount,
			Idle:           s.idle,
			IdleSince:      s.idleSince,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].LastSeen.Equal(entries[j].LastSeen) {
			return entries[i].LastSeen.After(entries[j].LastSeen)
		}
		if entries[i].Actor != entries[j].Actor {
			return entries[i].Actor < entries[j].Actor
		}
		return entries[i].RelationshipID < entries[j].RelationshipID
	})
	return entries
}

// StartReaper launches a background goroutine that periodically marks
// editors idle and evicts old ones. Call Stop to shut it down.
func (t *Tracker) StartReaper(cfg *ReaperConfig) {
	if cfg == nil {
		cfg = &ReaperConfig{}
	}
	if cfg.IdleThreshold == 0 {
		cfg.IdleThreshold = 15 * time.Minute
	}
	if cfg.EvictAfter == 0 {
		cfg.EvictAfter = 30 * time.Minute
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 60 * time.Second
	}

	t.reaperStop = make(chan struct{})
	t.reaperDone = make(chan struct{})

	go t.reapLoop(cfg)
	slog.Info("presence: reaper started",
		"idle_threshold", cfg.IdleThreshold,
		"sweep_interval", cfg.SweepInterval)
}

// Stop shuts down the reaper goroutine.
func (t *Tracker) Stop() {
	if t.reaperStop != nil {
		close(t.reaperStop)
		<-t.reaperDone
		t.reaperStop = nil
		t.reaperDone = nil
	}
}

func (t *Tracker) reapLoop(cfg *ReaperConfig) {
	defer close(t.reaperDone)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.reaperStop:
			return
		case <-ticker.C:
			t.sweep(cfg)
		}
	}
}

func (t *Tracker) sweep(cfg *ReaperConfig) {
	now := t.now()
	var newlyIdle []editorKey

	t.mu.Lock()
	for k, s := range t.editors {
		if s.idle {
			if now.Sub(s.idleSince) > cfg.EvictAfter {
				delete(t.editors, k)
			}
			continue
		}
		if now.Sub(s.lastSeen) > cfg.IdleThreshold {
			s.idle = true
			s.idleSince = now
			newlyIdle = append(newlyIdle, k)
		}
	}
	t.mu.Unlock()

	for _, k := range newlyIdle {
		slog.Debug("presence: editor marked idle",
			"actor", k.actor,
			"relationship", k.relationshipID,
			"threshold", cfg.IdleThreshold)
		if cfg.OnIdle != nil {
			cfg.OnIdle(k.actor, k.relationshipID)
		}
	}
}
