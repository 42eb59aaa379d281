package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-lighting/internal/device"
)

// handleListDevices returns all devices, with optional query filters.
//
// Query parameters:
//   - room_id: filter by room
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		devices []device.Device
		err     error
	)
	if roomID := r.URL.Query().Get("room_id"); roomID != "" {
		if len(roomID) > maxQueryParamLen {
			writeBadRequest(w, "room_id exceeds maximum length")
			return
		}
		devices, err = s.devices.GetDevicesByRoom(ctx, roomID)
	} else {
		devices, err = s.devices.ListDevices(ctx)
	}
	if err != nil {
		s.logger.Error("failed to list devices", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.devices.GetDevice(r.Context(), id)
	if err != nil {
		s.logUnexpected("failed to get device", err)
		writeDomainError(w, err, "failed to get device")
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// handleCreateDevice registers a new lighting device.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var dev device.Device
	if err := json.NewDecoder(r.Body).Decode(&dev); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.devices.CreateDevice(r.Context(), &dev); err != nil {
		s.logUnexpected("failed to create device", err)
		writeDomainError(w, err, "failed to create device")
		return
	}
	writeJSON(w, http.StatusCreated, dev)
}

// logUnexpected logs errors that map to a 500.
func (s *Server) logUnexpected(msg string, err error) {
	if !isKnownError(err) {
		s.logger.Error(msg, "error", err)
	}
}
