package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/nerrad567/gray-logic-lighting/internal/nlp"
)

// NLPRequest is the body of POST /nlp/execute. Command, when present, is
// executed as-is; otherwise Text is passed to the configured parser.
type NLPRequest struct {
	Text    string             `json:"text,omitempty"`
	Command *nlp.ParsedCommand `json:"command,omitempty"`
}

// handleNLPExecute runs a natural-language command.
//
// Immediate commands return 202 with the correlation ID. Scheduled
// commands return 201 with the saved schedule, or 409 with the NLP result
// (including its conflict analysis) when the schedule conflicts.
func (s *Server) handleNLPExecute(w http.ResponseWriter, r *http.Request) {
	if s.nlp == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "nlp is not configured")
		return
	}

	var req NLPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	var (
		res nlp.Result
		err error
	)
	switch {
	case req.Command != nil:
		res, err = s.nlp.Execute(r.Context(), req.Command)
	case strings.TrimSpace(req.Text) != "":
		res, err = s.nlp.ExecuteText(r.Context(), req.Text)
	default:
		writeBadRequest(w, "text or command is required")
		return
	}

	if err != nil {
		if res.Conflicts != nil {
			writeJSON(w, http.StatusConflict, res)
			return
		}
		s.logUnexpected("failed to execute nlp command", err)
		writeDomainError(w, err, "failed to execute command")
		return
	}

	status := http.StatusAccepted
	if res.Scheduled {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}
