package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-lighting/internal/audit"
)

// handleListActivity returns journal entries, most recent first.
//
// Query parameters:
//   - event_type: filter by event type (SCENE_CONFIRMED, SCHEDULE_SAVED, ...)
//   - entity_type: filter by entity type (batch, scene, schedule)
//   - entity_id: filter by correlation, scene or schedule ID
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	if s.activity == nil {
		writeNotFound(w, "activity journal disabled")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		EventType:  q.Get("event_type"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
	}
	for _, v := range []string{filter.EventType, filter.EntityType, filter.EntityID} {
		if len(v) > maxQueryParamLen {
			writeBadRequest(w, "query parameter exceeds maximum length")
			return
		}
	}

	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.activity.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list activity", "error", err)
		writeInternalError(w, "failed to list activity")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
