package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alfredjeanlab/storyweb/internal/model"
	"github.com/alfredjeanlab/storyweb/internal/store"
)

// actorHeader names the editor in recorded events.
const actorHeader = "X-Storyweb-Actor"

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *Server) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/projects/{pid}/elements", s.handleListElements)
	mux.HandleFunc("POST /v1/projects/{pid}/elements", s.handleCreateElement)
	mux.HandleFunc("GET /v1/elements/{id}", s.handleGetElement)
	mux.HandleFunc("GET /v1/projects/{pid}/direct-relationships", s.handleListDirect)
	mux.HandleFunc("POST /v1/projects/{pid}/direct-relationships", s.handleCreateDirect)
	mux.HandleFunc("GET /v1/projects/{pid}/relationships", s.handleListRelationships)
	mux.HandleFunc("POST /v1/projects/{pid}/relationships", s.handleCreateRelationship)
	mux.HandleFunc("GET /v1/relationships/{id}", s.handleGetRelationship)
	mux.HandleFunc("DELETE /v1/relationships/{id}", s.handleDeleteRelationship)
	mux.HandleFunc("PUT /v1/relationships/{id}/snapshot", s.handleSaveSnapshot)
	mux.HandleFunc("GET /v1/relationships/{id}/routes", s.handleGetRoutes)
	mux.HandleFunc("GET /v1/relationships/{id}/svg", s.handleRenderRelationship)
	mux.HandleFunc("GET /v1/relationships/{id}/events", s.handleGetEvents)
	mux.HandleFunc("GET /v1/relationships/{id}/editors", s.handleGetEditors)
	mux.HandleFunc("GET /v1/presence", s.handlePresence)
	mux.HandleFunc("GET /v1/projects/{pid}/graph", s.handleGetGraph)
	mux.HandleFunc("GET /v1/projects/{pid}/overview", s.handleGetOverview)
	mux.HandleFunc("GET /v1/projects/{pid}/overview.svg", s.handleRenderOverview)
	mux.HandleFunc("GET /v1/projects/{pid}/matrix", s.handleGetMatrix)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	return AuthMiddleware(authToken, mux)
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListElements handles GET /v1/projects/{pid}/elements.
func (s *Server) handleListElements(w http.ResponseWriter, r *http.Request) {
	var cats []model.ElementCategory
	if v := r.URL.Query().Get("category"); v != "" {
		for _, c := range strings.Split(v, ",") {
			if c = strings.TrimSpace(c); c != "" {
				cats = append(cats, model.ElementCategory(c))
			}
		}
	}
	els, err := s.ListElements(r.Context(), r.PathValue("pid"), cats...)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, els)
}

// handleCreateElement handles POST /v1/projects/{pid}/elements.
func (s *Server) handleCreateElement(w http.ResponseWriter, r *http.Request) {
	var in createElementInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	el, err := s.CreateElement(r.Context(), r.PathValue("pid"), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, el)
}

// handleGetElement handles GET /v1/elements/{id}.
func (s *Server) handleGetElement(w http.ResponseWriter, r *http.Request) {
	el, err := s.GetElement(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, el)
}

// handleListDirect handles GET /v1/projects/{pid}/direct-relationships.
func (s *Server) handleListDirect(w http.ResponseWriter, r *http.Request) {
	recs, err := s.ListDirectRelationships(r.Context(), r.PathValue("pid"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// handleCreateDirect handles POST /v1/projects/{pid}/direct-relationships.
// Any historical field naming is accepted.
func (s *Server) handleCreateDirect(w http.ResponseWriter, r *http.Request) {
	var rec model.DirectRelationshipRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.CreateDirectRelationship(r.Context(), r.PathValue("pid"), &rec); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// handleListRelationships handles GET /v1/projects/{pid}/relationships.
func (s *Server) handleListRelationships(w http.ResponseWriter, r *http.Request) {
	rels, err := s.ListRelationships(r.Context(), r.PathValue("pid"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rels)
}

// handleCreateRelationship handles POST /v1/projects/{pid}/relationships.
func (s *Server) handleCreateRelationship(w http.ResponseWriter, r *http.Request) {
	var in createRelationshipInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	rel, err := s.CreateRelationship(r.Context(), r.PathValue("pid"), r.Header.Get(actorHeader), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rel)
}

// handleGetRelationship handles GET /v1/relationships/{id}.
func (s *Server) handleGetRelationship(w http.ResponseWriter, r *http.Request) {
	rel, err := s.GetRelationship(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

// handleDeleteRelationship handles DELETE /v1/relationships/{id}.
func (s *Server) handleDeleteRelationship(w http.ResponseWriter, r *http.Request) {
	if err := s.DeleteRelationship(r.Context(), r.PathValue("id"), r.Header.Get(actorHeader)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSaveSnapshot handles PUT /v1/relationships/{id}/snapshot. The body is
// the persisted snapshot document.
func (s *Server) handleSaveSnapshot(w http.ResponseWriter, r *http.Request) {
	var snap model.DiagramSnapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	rel, err := s.SaveSnapshot(r.Context(), r.PathValue("id"), r.Header.Get(actorHeader), snap)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

// handleGetRoutes handles GET /v1/relationships/{id}/routes.
func (s *Server) handleGetRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := s.Routes(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, routes)
}

// handleGetEvents handles GET /v1/relationships/{id}/events.
func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	evs, err := s.store.GetEvents(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if evs == nil {
		evs = []*model.Event{}
	}
	writeJSON(w, http.StatusOK, evs)
}

// handleGetEditors handles GET /v1/relationships/{id}/editors.
func (s *Server) handleGetEditors(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.GetRelationship(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.presence.Editors(id))
}

// handlePresence handles GET /v1/presence?project=.
func (s *Server) handlePresence(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.presence.Roster(r.URL.Query().Get("project")))
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps a service error to a status code: missing records
// are 404, bad input is 400 and anything else is 500.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case isInputError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
