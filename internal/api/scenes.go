package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-lighting/internal/automation"
)

// maxQueryParamLen limits query parameter length to prevent DoS via oversized URL params.
const maxQueryParamLen = 100

// handleListScenes returns all scenes ordered by name.
func (s *Server) handleListScenes(w http.ResponseWriter, r *http.Request) {
	scenes, err := s.scenes.ListScenes(r.Context())
	if err != nil {
		s.logger.Error("failed to list scenes", "error", err)
		writeInternalError(w, "failed to list scenes")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenes": scenes, "count": len(scenes)})
}

// handleGetScene returns a single scene by ID.
func (s *Server) handleGetScene(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid scene ID")
		return
	}

	scene, err := s.scenes.GetScene(r.Context(), id)
	if err != nil {
		s.logUnexpected("failed to get scene", err)
		writeDomainError(w, err, "failed to get scene")
		return
	}
	writeJSON(w, http.StatusOK, scene)
}

// handleCreateScene creates a new scene.
func (s *Server) handleCreateScene(w http.ResponseWriter, r *http.Request) {
	var scene automation.Scene
	if err := json.NewDecoder(r.Body).Decode(&scene); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.scenes.CreateScene(r.Context(), &scene); err != nil {
		s.logUnexpected("failed to create scene", err)
		writeDomainError(w, err, "failed to create scene")
		return
	}
	writeJSON(w, http.StatusCreated, scene)
}

// handleDeleteScene removes a scene. Batches it already dispatched keep
// running to CONFIRMED or TIMEOUT.
func (s *Server) handleDeleteScene(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid scene ID")
		return
	}

	if err := s.scenes.DeleteScene(r.Context(), id); err != nil {
		s.logUnexpected("failed to delete scene", err)
		writeDomainError(w, err, "failed to delete scene")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleActivateScene dispatches a scene as one correlated command batch.
//
// POST /scenes/{id}/activate
// Response: 202 Accepted with {"correlation_id", "targets", "published"}
func (s *Server) handleActivateScene(w http.ResponseWriter, r *http.Request) {
	if s.sceneEngine == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "scene engine is not configured")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid scene ID")
		return
	}

	dispatch, err := s.sceneEngine.ActivateScene(r.Context(), id, "api")
	if err != nil {
		s.logUnexpected("failed to activate scene", err)
		writeDomainError(w, err, "failed to activate scene")
		return
	}
	writeJSON(w, http.StatusAccepted, dispatch)
}
