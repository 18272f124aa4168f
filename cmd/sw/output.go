package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/storyweb/internal/diagram"
	"github.com/alfredjeanlab/storyweb/internal/graphsvc"
	"github.com/alfredjeanlab/storyweb/internal/model"
	"github.com/alfredjeanlab/storyweb/internal/presence"
	"github.com/alfredjeanlab/storyweb/internal/relgraph"
	"github.com/alfredjeanlab/storyweb/internal/ui"
)

const timeLayout = "2006-01-02 15:04:05"

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

// Colored cells go last in every table: escape codes would otherwise throw
// off tabwriter's column widths.

func printElements(w io.Writer, els []*model.WorldElement) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY")
	for _, el := range els {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", el.ID, truncate(el.Name, 40), ui.RenderHex(el.Category.DefaultColor(), el.Category.String()))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d elements\n", len(els))
}

func refLabel(r model.CharacterRef) string {
	id, name := r.PrimaryID(), r.PrimaryName()
	switch {
	case id != "" && name != "":
		return name + " (" + id + ")"
	case name != "":
		return name
	default:
		return id
	}
}

func formatScores(scores map[string]float64) string {
	if len(scores) == 0 {
		return "-"
	}
	var parts []string
	seen := make(map[string]bool)
	for _, k := range model.TraitKeys {
		if v, ok := scores[k]; ok {
			parts = append(parts, fmt.Sprintf("%s=%g", k, v))
			seen[k] = true
		}
	}
	var extra []string
	for k := range scores {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		parts = append(parts, fmt.Sprintf("%s=%g", k, scores[k]))
	}
	return strings.Join(parts, " ")
}

func printDirect(w io.Writer, recs []model.DirectRelationshipRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tA\tB\tSCORES\tTYPE")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, refLabel(r.A), refLabel(r.B), formatScores(r.Scores), ui.RenderType(r.Type, r.Type.String()))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d direct relationships\n", len(recs))
}

func printRelationships(w io.Writer, rels []*model.Relationship) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tNODES\tCONNECTIONS\tUPDATED\tNAME")
	for _, r := range rels {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
			r.ID,
			r.Kind,
			len(r.Snapshot.Nodes),
			len(r.Snapshot.Connections),
			formatTime(r.UpdatedAt),
			truncate(r.Name, 50),
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d relationships\n", len(rels))
}

func printRelationship(w io.Writer, rel *model.Relationship) {
	fmt.Fprintf(w, "ID:          %s\n", rel.ID)
	fmt.Fprintf(w, "Name:        %s\n", rel.Name)
	fmt.Fprintf(w, "Kind:        %s\n", rel.Kind)
	fmt.Fprintf(w, "Project:     %s\n", rel.ProjectID)
	fmt.Fprintf(w, "Created At:  %s\n", formatTime(rel.CreatedAt))
	fmt.Fprintf(w, "Updated At:  %s\n", formatTime(rel.UpdatedAt))

	d := diagram.FromSnapshot(rel.Snapshot)
	nodes := d.Nodes()
	fmt.Fprintf(w, "\n%s (%d)\n", ui.RenderAccent("Nodes"), len(nodes))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, n := range nodes {
		fmt.Fprintf(tw, "  %s\t%s\t(%g, %g)\t%s\n", n.ID, n.Name, n.X, n.Y, ui.RenderMuted(n.Type.String()))
	}
	tw.Flush()

	resolved := d.ResolvedConnections()
	fmt.Fprintf(w, "\n%s (%d)\n", ui.RenderAccent("Connections"), len(resolved))
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, c := range resolved {
		arrow := "--"
		switch {
		case c.HasArrow && c.HasReverseArrow:
			arrow = "<->"
		case c.HasArrow:
			arrow = "->"
		case c.HasReverseArrow:
			arrow = "<-"
		}
		fmt.Fprintf(tw, "  %s\t%s %s %s\t%s\t%s\n", c.ID, c.From.Name, arrow, c.To.Name, c.Label, ui.RenderType(c.Type, c.Type.String()))
	}
	tw.Flush()
	if dangling := len(d.Connections()) - len(resolved); dangling > 0 {
		fmt.Fprintf(w, "  %s\n", ui.RenderMuted(fmt.Sprintf("(%d dangling connections hidden)", dangling)))
	}
}

func printRoutes(w io.Writer, routes []diagram.Route) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CONNECTION\tLABEL AT\tPATH")
	for _, r := range routes {
		fmt.Fprintf(tw, "%s\t(%.1f, %.1f)\t%s\n", r.Connection.ID, r.LabelAt.X, r.LabelAt.Y, r.Path)
	}
	tw.Flush()
}

func printEvents(w io.Writer, evs []*model.Event) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAT\tACTOR\tTOPIC")
	for _, e := range evs {
		actor := e.Actor
		if actor == "" {
			actor = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.ID, formatTime(e.CreatedAt), actor, e.Topic)
	}
	tw.Flush()
}

// characterNames indexes stub names by id.
func characterNames(stubs []model.CharacterStub) map[string]string {
	names := make(map[string]string, len(stubs))
	for _, s := range stubs {
		names[s.ID] = s.Name
	}
	return names
}

func nameOr(names map[string]string, id string) string {
	if n, ok := names[id]; ok && n != "" {
		return n
	}
	return id
}

func printEdges(w io.Writer, g *graphsvc.Graph) {
	names := characterNames(g.Characters)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "A\tB\tSOURCE\tLABEL\tTYPE")
	for _, e := range g.Edges {
		fmt.Fprintf(tw, "%s\t%s\t%s:%s\t%s\t%s\n",
			nameOr(names, e.CharacterAID),
			nameOr(names, e.CharacterBID),
			e.Source, e.SourceID,
			truncate(e.Label, 40),
			ui.RenderType(e.Type, e.Type.String()),
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d edges between %d characters\n", len(g.Edges), len(g.Characters))
}

func printOverview(w io.Writer, l *relgraph.Layout) {
	fmt.Fprintf(w, "Viewport %gx%g, center (%g, %g), radius %g\n\n", l.Width, l.Height, l.Center.X, l.Center.Y, l.Radius)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHARACTER\tX\tY\tDEGREE")
	for _, n := range l.Nodes {
		fmt.Fprintf(tw, "%s\t%.1f\t%.1f\t%d\n", n.Name, n.X, n.Y, n.Degree)
	}
	tw.Flush()
}

// printMatrix draws the adjacency matrix with one letter per cell: the first
// letter of the pair's relationship type, or "." when unrelated.
func printMatrix(w io.Writer, m *relgraph.Matrix) {
	n := len(m.Characters)
	fmt.Fprintf(w, "%d characters, %d related pairs\n\n", n, m.Related())
	for i, c := range m.Characters {
		var row strings.Builder
		for j := range n {
			switch e := m.At(i, j); {
			case i == j:
				row.WriteString(" \\")
			case e == nil:
				row.WriteString(" " + ui.RenderMuted("."))
			default:
				letter := "?"
				if t := e.Type.String(); t != "" {
					letter = t[:1]
				}
				row.WriteString(" " + ui.RenderType(e.Type, letter))
			}
		}
		fmt.Fprintf(w, "%3d %-20s%s\n", i+1, truncate(c.Name, 20), row.String())
	}
}

func printPresence(w io.Writer, entries []presence.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "no active editors")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ACTOR\tRELATIONSHIP\tSAVES\tLAST SEEN\tSTATE")
	for _, e := range entries {
		state := ui.RenderAccent("active")
		if e.Idle {
			state = ui.RenderMuted("idle")
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", e.Actor, e.RelationshipID, e.SaveCount, formatTime(e.LastSeen), state)
	}
	tw.Flush()
}
