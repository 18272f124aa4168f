package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Trait keys scored on a 0-10 scale.
const (
	TraitStrength = "strength"
	TraitTension  = "tension"
	TraitTrust    = "trust"
	TraitIntimacy = "intimacy"
	TraitRespect  = "respect"
	TraitLoyalty  = "loyalty"
)

// TraitKeys lists the well-known trait keys in display order.
var TraitKeys = []string{TraitStrength, TraitTension, TraitTrust, TraitIntimacy, TraitRespect, TraitLoyalty}

// Historical field names that have carried character references. Order
// matters: earlier aliases win when more than one is present.
var (
	sideAIDAliases   = []string{"character_a_id", "characterAId", "character1_id", "character1Id", "characterA", "source_id", "from_character_id"}
	sideBIDAliases   = []string{"character_b_id", "characterBId", "character2_id", "character2Id", "characterB", "target_id", "to_character_id"}
	sideANameAliases = []string{"character_a_name", "characterAName", "character1_name", "character1", "source_name", "from_character"}
	sideBNameAliases = []string{"character_b_name", "characterBName", "character2_name", "character2", "target_name", "to_character"}
)

// CharacterRef is one side of a direct relationship: every id and name the
// record carried for it, in alias priority order.
type CharacterRef struct {
	IDs   []string `json:"ids,omitempty"`
	Names []string `json:"names,omitempty"`
}

// IsZero reports whether the reference carries neither ids nor names.
func (r CharacterRef) IsZero() bool {
	return len(r.IDs) == 0 && len(r.Names) == 0
}

// PrimaryID returns the highest-priority id, or "".
func (r CharacterRef) PrimaryID() string {
	if len(r.IDs) == 0 {
		return ""
	}
	return r.IDs[0]
}

// PrimaryName returns the highest-priority name, or "".
func (r CharacterRef) PrimaryName() string {
	if len(r.Names) == 0 {
		return ""
	}
	return r.Names[0]
}

// DirectRelationshipRecord is the legacy pairwise relationship representation.
// It is created outside the core; the core only reads it.
type DirectRelationshipRecord struct {
	ID          string
	ProjectID   string
	A           CharacterRef
	B           CharacterRef
	Type        RelationshipType
	Scores      map[string]float64
	Description string
	History     string
	Dynamics    string
	Notes       string
	UpdatedAt   time.Time
}

// ClampScore bounds a trait score to [0, 10].
func ClampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

// UnmarshalJSON accepts every historical shape of a direct relationship.
// Scores may appear either as top-level trait fields or in a "scores" object;
// the object wins on conflict.
func (r *DirectRelationshipRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = DirectRelationshipRecord{
		ID:          rawString(raw, "id"),
		ProjectID:   firstRawString(raw, "project_id", "projectId"),
		Type:        RelationshipType(firstRawString(raw, "type", "relationship_type", "relationshipType")),
		Description: rawString(raw, "description"),
		History:     rawString(raw, "history"),
		Dynamics:    rawString(raw, "dynamics"),
		Notes:       rawString(raw, "notes"),
	}
	stored := func(key string) CharacterRef {
		var ref CharacterRef
		if msg, ok := raw[key]; ok {
			_ = json.Unmarshal(msg, &ref)
		}
		return ref
	}
	sideA, sideB := stored("a"), stored("b")
	r.A = CharacterRef{
		IDs:   mergeStrings(sideA.IDs, collectRawStrings(raw, sideAIDAliases)),
		Names: mergeStrings(sideA.Names, collectRawStrings(raw, sideANameAliases)),
	}
	r.B = CharacterRef{
		IDs:   mergeStrings(sideB.IDs, collectRawStrings(raw, sideBIDAliases)),
		Names: mergeStrings(sideB.Names, collectRawStrings(raw, sideBNameAliases)),
	}

	if ts := firstRawString(raw, "updated_at", "updatedAt"); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			r.UpdatedAt = t
		}
	}

	scores := make(map[string]float64)
	for _, key := range TraitKeys {
		if v, ok := rawNumber(raw, key); ok {
			scores[key] = ClampScore(v)
		}
	}
	if msg, ok := raw["scores"]; ok {
		var nested map[string]float64
		if err := json.Unmarshal(msg, &nested); err == nil {
			for k, v := range nested {
				scores[k] = ClampScore(v)
			}
		}
	}
	if len(scores) > 0 {
		r.Scores = scores
	}
	return nil
}

// MarshalJSON writes the canonical field names plus the full candidate
// lists of both sides under "a" and "b", which UnmarshalJSON reads first.
func (r DirectRelationshipRecord) MarshalJSON() ([]byte, error) {
	out := struct {
		ID             string             `json:"id"`
		ProjectID      string             `json:"project_id,omitempty"`
		A              *CharacterRef      `json:"a,omitempty"`
		B              *CharacterRef      `json:"b,omitempty"`
		CharacterAID   string             `json:"character_a_id,omitempty"`
		CharacterAName string             `json:"character_a_name,omitempty"`
		CharacterBID   string             `json:"character_b_id,omitempty"`
		CharacterBName string             `json:"character_b_name,omitempty"`
		Type           RelationshipType   `json:"type"`
		Scores         map[string]float64 `json:"scores,omitempty"`
		Description    string             `json:"description,omitempty"`
		History        string             `json:"history,omitempty"`
		Dynamics       string             `json:"dynamics,omitempty"`
		Notes          string             `json:"notes,omitempty"`
		UpdatedAt      *time.Time         `json:"updated_at,omitempty"`
	}{
		ID:             r.ID,
		ProjectID:      r.ProjectID,
		CharacterAID:   r.A.PrimaryID(),
		CharacterAName: r.A.PrimaryName(),
		CharacterBID:   r.B.PrimaryID(),
		CharacterBName: r.B.PrimaryName(),
		Type:           r.Type,
		Scores:         r.Scores,
		Description:    r.Description,
		History:        r.History,
		Dynamics:       r.Dynamics,
		Notes:          r.Notes,
	}
	if !r.A.IsZero() {
		a := r.A
		out.A = &a
	}
	if !r.B.IsZero() {
		b := r.B
		out.B = &b
	}
	if !r.UpdatedAt.IsZero() {
		t := r.UpdatedAt
		out.UpdatedAt = &t
	}
	return json.Marshal(out)
}

func rawString(raw map[string]json.RawMessage, key string) string {
	msg, ok := raw[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(msg, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func firstRawString(raw map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		if s := rawString(raw, k); s != "" {
			return s
		}
	}
	return ""
}

// collectRawStrings returns the non-empty string values of keys, in order,
// without duplicates. Non-string values (null, numbers, objects) are skipped.
func collectRawStrings(raw map[string]json.RawMessage, keys []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, k := range keys {
		s := rawString(raw, k)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// mergeStrings appends the values of extra missing from base, trimming and
// skipping empties.
func mergeStrings(base, extra []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, list := range [][]string{base, extra} {
		for _, s := range list {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

func rawNumber(raw map[string]json.RawMessage, key string) (float64, bool) {
	msg, ok := raw[key]
	if !ok {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(msg, &v); err != nil {
		return 0, false
	}
	return v, true
}
