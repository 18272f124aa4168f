package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/alfredjeanlab/storyweb/internal/diagram"
	"github.com/alfredjeanlab/storyweb/internal/model"
	"github.com/alfredjeanlab/storyweb/internal/relgraph"
)

func testDiagram() *diagram.Diagram {
	return diagram.FromSnapshot(model.DiagramSnapshot{
		Nodes: []model.DiagramNode{
			{ID: "a", Name: "Ada <the bold>", X: 0, Y: 0, Width: 100, Height: 50, Color: "#3b82f6"},
			{ID: "b", Name: "Bram", X: 300, Y: 0, Width: 100, Height: 50, Color: `red";onload="x`},
		},
		Connections: []model.DiagramConnection{
			{ID: "cx-1", FromNodeID: "a", ToNodeID: "b", Label: "rivals", Type: model.RelRival, Color: "#f97316", HasArrow: true, StrokeDasharray: "4 2"},
			{ID: "cx-2", FromNodeID: "a", ToNodeID: "gone"},
		},
	})
}

func TestDiagram(t *testing.T) {
	var buf bytes.Buffer
	if err := Diagram(&buf, testDiagram()); err != nil {
		t.Fatalf("Diagram: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		`d="M 100 25 C 180 25, 220 25, 300 25"`,
		"stroke-dasharray:4 2",
		"rivals",
		"Ada &lt;the bold&gt;",
		`viewBox="-40 -40 480 130"`,
		"<polygon",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "onload") {
		t.Error("unsafe color leaked into output")
	}
	if strings.Count(out, "<path") != 1 {
		t.Errorf("expected one path (dangling connection skipped), got %d", strings.Count(out, "<path"))
	}
}

func TestDiagram_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := Diagram(&buf, diagram.New()); err != nil {
		t.Fatalf("Diagram: %v", err)
	}
	if !strings.Contains(buf.String(), "<svg") || !strings.Contains(buf.String(), "</svg>") {
		t.Errorf("not an svg document: %s", buf.String())
	}
}

func TestOverview(t *testing.T) {
	chars := []model.CharacterStub{
		{ID: "a", Name: "Ada", Category: model.CategoryCharacter},
		{ID: "b", Name: "Bram", Category: model.CategoryCharacter},
	}
	edges := []model.CanonicalEdge{{ID: "e1", CharacterAID: "a", CharacterBID: "b", Type: model.RelFriend}}
	l := relgraph.Overview(chars, edges, 800, 600)

	var buf bytes.Buffer
	if err := Overview(&buf, l); err != nil {
		t.Fatalf("Overview: %v", err)
	}
	out := buf.String()
	if strings.Count(out, "<circle") != 2 || strings.Count(out, "<line") != 1 {
		t.Errorf("unexpected shapes:\n%s", out)
	}
	if !strings.Contains(out, "Bram") {
		t.Error("missing node label")
	}
}

func TestOverview_InvalidSize(t *testing.T) {
	var buf bytes.Buffer
	if err := Overview(&buf, relgraph.Layout{}); err == nil {
		t.Fatal("expected error for zero-size layout")
	}
}

func TestSafeColor(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"#abc", "#abc"},
		{"rebeccapurple", "rebeccapurple"},
		{"rgba(1, 2, 3, 0.5)", "rgba(1, 2, 3, 0.5)"},
		{"", "#000"},
		{"url(#x)", "#000"},
		{`red;x:"y"`, "#000"},
	}
	for _, tt := range tests {
		if got := safeColor(tt.in, "#000"); got != tt.want {
			t.Errorf("safeColor(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
