// Package relgraph reconciles the two persisted relationship shapes (direct
// pairwise records and relationship-web diagrams) into one canonical edge
// list, and derives the overview layout and adjacency matrix from it.
package relgraph

import (
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/alfredjeanlab/storyweb/internal/model"
)

// Input is everything known about one project's relationships.
type Input struct {
	Characters []model.CharacterStub
	Direct     []model.DirectRelationshipRecord
	Diagrams   []model.Relationship
}

// Extract normalizes direct records and web diagram connections into
// canonical edges. Records whose characters cannot be resolved, or that
// resolve to the same character on both sides, are dropped. Edges are not
// deduplicated across sources; see MostRecentPerPair.
func Extract(in Input) []model.CanonicalEdge {
	idx := newCharacterIndex(in.Characters)
	edges := make([]model.CanonicalEdge, 0, len(in.Direct))

	for i := range in.Direct {
		if e, ok := directEdge(idx, &in.Direct[i]); ok {
			edges = append(edges, e)
		}
	}
	for i := range in.Diagrams {
		edges = append(edges, diagramEdges(idx, &in.Diagrams[i])...)
	}
	return edges
}

func directEdge(idx *characterIndex, r *model.DirectRelationshipRecord) (model.CanonicalEdge, bool) {
	a, okA := idx.resolve(r.A)
	b, okB := idx.resolve(r.B)
	if !okA || !okB {
		slog.Debug("relgraph: unresolved direct relationship dropped",
			"record", r.ID, "a", r.A.PrimaryID(), "b", r.B.PrimaryID())
		return model.CanonicalEdge{}, false
	}
	if a == b {
		slog.Debug("relgraph: self-referencing direct relationship dropped", "record", r.ID, "character", a)
		return model.CanonicalEdge{}, false
	}
	var scores map[string]float64
	if len(r.Scores) > 0 {
		scores = maps.Clone(r.Scores)
	}
	return model.CanonicalEdge{
		ID:           r.ID,
		CharacterAID: a,
		CharacterBID: b,
		Type:         r.Type,
		Label:        r.Type.String(),
		Scores:       scores,
		Source:       model.SourceDirect,
		SourceID:     r.ID,
		UpdatedAt:    r.UpdatedAt,
	}, true
}

func diagramEdges(idx *characterIndex, rel *model.Relationship) []model.CanonicalEdge {
	if !rel.IsWeb() {
		return nil
	}
	var out []model.CanonicalEdge
	for _, c := range rel.Snapshot.Connections {
		from, to, ok := ConnectionEndpoints(c)
		if !ok {
			slog.Debug("relgraph: undecodable connection dropped", "relationship", rel.ID, "connection", c.ID)
			continue
		}
		if !idx.has(from) || !idx.has(to) || from == to {
			slog.Debug("relgraph: unresolved connection dropped",
				"relationship", rel.ID, "connection", c.ID, "from", from, "to", to)
			continue
		}
		out = append(out, model.CanonicalEdge{
			ID:           c.ID,
			CharacterAID: from,
			CharacterBID: to,
			Type:         c.Type,
			Label:        c.Label,
			Source:       model.SourceDiagram,
			SourceID:     rel.ID,
			UpdatedAt:    rel.UpdatedAt,
		})
	}
	return out
}

// characterIndex resolves references by exact id, then by case-insensitive
// trimmed name. When two characters share a name the first one wins.
type characterIndex struct {
	byID   map[string]struct{}
	byName map[string]string
}

func newCharacterIndex(chars []model.CharacterStub) *characterIndex {
	idx := &characterIndex{
		byID:   make(map[string]struct{}, len(chars)),
		byName: make(map[string]string, len(chars)),
	}
	for _, c := range chars {
		if c.ID == "" {
			continue
		}
		idx.byID[c.ID] = struct{}{}
		key := nameKey(c.Name)
		if key == "" {
			continue
		}
		if _, taken := idx.byName[key]; !taken {
			idx.byName[key] = c.ID
		}
	}
	return idx
}

func (idx *characterIndex) has(id string) bool {
	_, ok := idx.byID[id]
	return ok
}

func (idx *characterIndex) resolve(ref model.CharacterRef) (string, bool) {
	for _, id := range ref.IDs {
		if idx.has(id) {
			return id, true
		}
	}
	for _, name := range ref.Names {
		if id, ok := idx.byName[nameKey(name)]; ok {
			return id, true
		}
	}
	return "", false
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// MostRecentPerPair keeps, for every character pair, only the edge with the
// latest UpdatedAt. Ties keep the edge that appears first. Output order
// follows the first appearance of each pair.
func MostRecentPerPair(edges []model.CanonicalEdge) []model.CanonicalEdge {
	best := make(map[string]int, len(edges))
	var order []string
	for i := range edges {
		key := edges[i].PairKey()
		j, seen := best[key]
		if !seen {
			best[key] = i
			order = append(order, key)
			continue
		}
		if edges[i].UpdatedAt.After(edges[j].UpdatedAt) {
			best[key] = i
		}
	}
	out := make([]model.CanonicalEdge, 0, len(order))
	for _, key := range order {
		out = append(out, edges[best[key]])
	}
	return out
}

// Characters filters stubs down to the given categories, preserving order.
// With no categories every stub is returned.
func Characters(stubs []model.CharacterStub, categories ...model.ElementCategory) []model.CharacterStub {
	if len(categories) == 0 {
		return slices.Clone(stubs)
	}
	out := make([]model.CharacterStub, 0, len(stubs))
	for _, s := range stubs {
		if slices.Contains(categories, s.Category) {
			out = append(out, s)
		}
	}
	return out
}
