package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-lighting/internal/device"
)

// handleListGroups returns all device groups.
//
// GET /groups
// Response: {"groups": [...], "count": N}
func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	if s.groups == nil {
		writeJSON(w, http.StatusOK, map[string]any{"groups": []device.DeviceGroup{}, "count": 0})
		return
	}
	groups, err := s.groups.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list device groups", "error", err)
		writeInternalError(w, "failed to list device groups")
		return
	}
	if groups == nil {
		groups = []device.DeviceGroup{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups, "count": len(groups)})
}

// handleCreateGroup creates a new device group.
//
// POST /groups
// Body: DeviceGroup JSON; type defaults to static
// Response: 201 Created with the created group
func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	if s.groups == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "device groups are not configured")
		return
	}

	var group device.DeviceGroup
	if err := json.NewDecoder(r.Body).Decode(&group); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if group.Type == "" {
		group.Type = device.GroupTypeStatic
	}

	if err := s.groups.Create(r.Context(), &group); err != nil {
		s.logUnexpected("failed to create device group", err)
		writeDomainError(w, err, "failed to create device group")
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

// handleGetGroup returns a single device group with its resolved members.
//
// GET /groups/{id}
// Response: {"group": {...}, "devices": [...]}
func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	if s.groups == nil {
		writeNotFound(w, "device group not found")
		return
	}
	ctx := r.Context()

	group, err := s.groups.GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		s.logUnexpected("failed to get device group", err)
		writeDomainError(w, err, "failed to get device group")
		return
	}

	members, err := device.ResolveGroup(ctx, group, s.devices)
	if err != nil {
		s.logger.Error("failed to resolve device group", "group_id", group.ID, "error", err)
		writeInternalError(w, "failed to resolve device group")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"group": group, "devices": members})
}
