package relgraph

import "github.com/alfredjeanlab/storyweb/internal/model"

// Matrix is an N x N view of which character pairs are related. Cells hold
// the first edge found for a pair and are nil on the diagonal and for
// unrelated pairs. It records existence, not direction, so it is symmetric.
type Matrix struct {
	Characters []model.CharacterStub     `json:"characters"`
	Cells      [][]*model.CanonicalEdge `json:"cells"`
}

// BuildMatrix fills the matrix from edges in order. Later edges for an
// already-filled pair are ignored.
func BuildMatrix(characters []model.CharacterStub, edges []model.CanonicalEdge) Matrix {
	n := len(characters)
	m := Matrix{
		Characters: characters,
		Cells:      make([][]*model.CanonicalEdge, n),
	}
	for i := range m.Cells {
		m.Cells[i] = make([]*model.CanonicalEdge, n)
	}

	pos := make(map[string]int, n)
	for i, c := range characters {
		if _, dup := pos[c.ID]; !dup {
			pos[c.ID] = i
		}
	}
	for k := range edges {
		i, okA := pos[edges[k].CharacterAID]
		j, okB := pos[edges[k].CharacterBID]
		if !okA || !okB || i == j || m.Cells[i][j] != nil {
			continue
		}
		e := edges[k]
		m.Cells[i][j] = &e
		m.Cells[j][i] = &e
	}
	return m
}

// Size returns N.
func (m Matrix) Size() int { return len(m.Characters) }

// At returns the edge between characters i and j, or nil.
func (m Matrix) At(i, j int) *model.CanonicalEdge {
	if i < 0 || j < 0 || i >= len(m.Cells) || j >= len(m.Cells[i]) {
		return nil
	}
	return m.Cells[i][j]
}

// Related reports how many distinct pairs have an edge.
func (m Matrix) Related() int {
	count := 0
	for i := range m.Cells {
		for j := i + 1; j < len(m.Cells[i]); j++ {
			if m.Cells[i][j] != nil {
				count++
			}
		}
	}
	return count
}
