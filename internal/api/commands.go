package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-lighting/internal/command"
)

// CommandRequest is the body of POST /commands.
type CommandRequest struct {
	Target  string           `json:"target"`
	Effects []command.Effect `json:"effects"`
}

// handleDispatchCommand applies effects to every device behind a target
// under one correlation ID.
//
// POST /commands
// Body: {"target": "room:kitchen", "effects": [{"kind": "set_brightness", "brightness": 40}]}
// Response: 202 Accepted with the dispatch; progress arrives on the
// "scene.commands" WebSocket channel.
func (s *Server) handleDispatchCommand(w http.ResponseWriter, r *http.Request) {
	if s.dispatcher == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "command dispatch is not configured")
		return
	}

	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Target) == "" {
		writeBadRequest(w, "target is required")
		return
	}

	dispatch, err := s.dispatcher.DispatchSceneCommand(r.Context(), req.Target, req.Effects)
	if err != nil {
		s.logUnexpected("failed to dispatch command", err)
		writeDomainError(w, err, "failed to dispatch command")
		return
	}
	writeJSON(w, http.StatusAccepted, dispatch)
}

// handleGetCommand reports the state of an in-flight or recently finished
// command batch.
//
// GET /commands/{correlationId}
func (s *Server) handleGetCommand(w http.ResponseWriter, r *http.Request) {
	if s.dispatcher == nil {
		writeNotFound(w, "command not found")
		return
	}

	snap, ok := s.dispatcher.Tracker().Snapshot(chi.URLParam(r, "correlationId"))
	if !ok {
		writeNotFound(w, "command not found")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
