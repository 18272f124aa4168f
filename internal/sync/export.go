package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/storyweb/internal/graphsvc"
	"github.com/alfredjeanlab/storyweb/internal/store"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version           string    `json:"version"`
	Type              string    `json:"type"`
	Timestamp         time.Time `json:"timestamp"`
	RelationshipCount int       `json:"relationship_count"`
	ProjectCount      int       `json:"project_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes every relationship diagram in the store as JSONL to w,
// sorted by ID, followed by one "graph" record per project holding the
// canonical edges derived from that project's diagrams and direct records.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	rels, err := s.ListRelationships(ctx, "")
	if err != nil {
		return fmt.Errorf("list relationships: %w", err)
	}
	sort.Slice(rels, func(i, j int) bool {
		return rels[i].ID < rels[j].ID
	})

	seen := make(map[string]struct{})
	var projects []string
	for _, r := range rels {
		if _, ok := seen[r.ProjectID]; !ok {
			seen[r.ProjectID] = struct{}{}
			projects = append(projects, r.ProjectID)
		}
	}
	sort.Strings(projects)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:           "1",
		Type:              "header",
		Timestamp:         time.Now().UTC(),
		RelationshipCount: len(rels),
		ProjectCount:      len(projects),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, r := range rels {
		if err := enc.Encode(record{Type: "relationship", Data: r}); err != nil {
			return fmt.Errorf("encode relationship %s: %w", r.ID, err)
		}
	}

	graphs := graphsvc.New(s)
	for _, pid := range projects {
		g, err := graphs.Graph(ctx, pid, false)
		if err != nil {
			return fmt.Errorf("graph for project %s: %w", pid, err)
		}
		if err := enc.Encode(record{Type: "graph", Data: g}); err != nil {
			return fmt.Errorf("encode graph %s: %w", pid, err)
		}
	}

	return nil
}
