package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-lighting/internal/schedule"
)

// ScheduleRequest is the body of schedule create and update requests.
// Confirm saves the schedule even when it conflicts with others. Enabled
// defaults to true when omitted.
type ScheduleRequest struct {
	schedule.Schedule
	Confirm bool `json:"confirm"`
}

// ResolutionRequest is the optional body of a resolution request.
type ResolutionRequest struct {
	Params map[string]any `json:"params"`
}

// handleListSchedules returns every schedule ordered by name.
func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := s.schedules.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list schedules", "error", err)
		writeInternalError(w, "failed to list schedules")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedules": schedules, "count": len(schedules)})
}

// handleGetSchedule returns a single schedule.
func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	sched, err := s.schedules.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.logUnexpected("failed to get schedule", err)
		writeDomainError(w, err, "failed to get schedule")
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

// handleCreateSchedule checks a new schedule for conflicts and saves it.
//
// POST /schedules
// Response: 201 Created, 409 with the conflict result when the schedule
// conflicts and "confirm" was not set, or 409 when the body's id is taken.
func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	req := ScheduleRequest{Schedule: schedule.Schedule{Enabled: true}}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	candidate := req.Schedule

	saved, err := s.conflicts.Submit(r.Context(), &candidate, req.Confirm)
	if err != nil {
		s.logUnexpected("failed to save schedule", err)
		writeDomainError(w, err, "failed to save schedule")
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// handleUpdateSchedule replaces a schedule after a conflict check. The
// schedule never conflicts with its own previous version.
//
// PUT /schedules/{id}
func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	existing, err := s.schedules.Get(ctx, id)
	if err != nil {
		s.logUnexpected("failed to get schedule", err)
		writeDomainError(w, err, "failed to get schedule")
		return
	}

	req := ScheduleRequest{Schedule: schedule.Schedule{Enabled: true}}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	candidate := req.Schedule
	candidate.ID = existing.ID
	candidate.CreatedAt = existing.CreatedAt
	candidate.LastTriggeredAt = existing.LastTriggeredAt
	candidate.TriggerCount = existing.TriggerCount

	saved, err := s.conflicts.Replace(ctx, &candidate, req.Confirm)
	if err != nil {
		s.logUnexpected("failed to save schedule", err)
		writeDomainError(w, err, "failed to save schedule")
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// handleDeleteSchedule removes a schedule.
func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.conflicts.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.logUnexpected("failed to delete schedule", err)
		writeDomainError(w, err, "failed to delete schedule")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCheckConflicts analyses a new schedule without saving it. The
// conflicts stay resolvable by ID for the service's pending TTL. Edits of
// stored schedules go through PUT.
//
// POST /schedules/conflicts/check
// Response: {"candidate_id", "has_conflicts", "conflicts", "summary"}
func (s *Server) handleCheckConflicts(w http.ResponseWriter, r *http.Request) {
	candidate := schedule.Schedule{Enabled: true}
	if err := json.NewDecoder(r.Body).Decode(&candidate); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	result, err := s.conflicts.CheckNew(r.Context(), &candidate)
	if err != nil {
		s.logUnexpected("failed to check schedule conflicts", err)
		writeDomainError(w, err, "failed to check schedule conflicts")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleApplyResolution applies a proposed resolution and saves the
// candidate it was proposed for.
//
// POST /schedules/conflicts/{conflictId}/resolutions/{resolutionId}
// Body (optional): {"params": {"minutes": 20}}
// Response: {"schedules": [...], "count": N}, candidate first
func (s *Server) handleApplyResolution(w http.ResponseWriter, r *http.Request) {
	var req ResolutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	updated, err := s.conflicts.ApplyResolution(r.Context(),
		chi.URLParam(r, "conflictId"),
		chi.URLParam(r, "resolutionId"),
		req.Params,
	)
	if err != nil {
		s.logUnexpected("failed to apply resolution", err)
		writeDomainError(w, err, "failed to apply resolution")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedules": updated, "count": len(updated)})
}
