package server

import (
	"bytes"
	"math"
	"net/http"
	"strconv"

	"github.com/alfredjeanlab/storyweb/internal/render"
)

// Default overview viewport when the caller does not send one.
const (
	defaultOverviewWidth  = 800
	defaultOverviewHeight = 600
)

// handleGetGraph handles GET /v1/projects/{pid}/graph.
// With ?latest=true only the most recent edge per character pair is returned.
func (s *Server) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	latest, _ := strconv.ParseBool(r.URL.Query().Get("latest"))
	g, err := s.Graph(r.Context(), r.PathValue("pid"), latest)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// handleGetOverview handles GET /v1/projects/{pid}/overview?width=&height=.
func (s *Server) handleGetOverview(w http.ResponseWriter, r *http.Request) {
	width, height, ok := overviewSize(w, r)
	if !ok {
		return
	}
	l, err := s.Overview(r.Context(), r.PathValue("pid"), width, height)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// handleRenderOverview handles GET /v1/projects/{pid}/overview.svg.
func (s *Server) handleRenderOverview(w http.ResponseWriter, r *http.Request) {
	width, height, ok := overviewSize(w, r)
	if !ok {
		return
	}
	l, err := s.Overview(r.Context(), r.PathValue("pid"), width, height)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := render.Overview(&buf, l); err != nil {
		writeServiceError(w, err)
		return
	}
	writeSVG(w, buf.Bytes())
}

// handleRenderRelationship handles GET /v1/relationships/{id}/svg.
func (s *Server) handleRenderRelationship(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.RenderRelationship(r.Context(), r.PathValue("id"), &buf); err != nil {
		writeServiceError(w, err)
		return
	}
	writeSVG(w, buf.Bytes())
}

// handleGetMatrix handles GET /v1/projects/{pid}/matrix.
func (s *Server) handleGetMatrix(w http.ResponseWriter, r *http.Request) {
	m, err := s.Matrix(r.Context(), r.PathValue("pid"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// overviewSize reads width and height query parameters, writing a 400 and
// returning false when either is malformed.
func overviewSize(w http.ResponseWriter, r *http.Request) (float64, float64, bool) {
	q := r.URL.Query()
	width, height := float64(defaultOverviewWidth), float64(defaultOverviewHeight)
	for _, p := range []struct {
		name string
		dst  *float64
	}{{"width", &width}, {"height", &height}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil || n <= 0 || math.IsInf(n, 0) || math.IsNaN(n) {
			writeError(w, http.StatusBadRequest, p.name+" must be a positive number")
			return 0, 0, false
		}
		*p.dst = n
	}
	return width, height, true
}

func writeSVG(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
