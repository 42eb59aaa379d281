package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-lighting/internal/automation"
	"github.com/nerrad567/gray-logic-lighting/internal/command"
	"github.com/nerrad567/gray-logic-lighting/internal/conflict"
	"github.com/nerrad567/gray-logic-lighting/internal/device"
	"github.com/nerrad567/gray-logic-lighting/internal/nlp"
	"github.com/nerrad567/gray-logic-lighting/internal/schedule"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ConflictError is the 409 body returned when a schedule needs
// confirmation. Result carries the conflicts and their resolutions.
type ConflictError struct {
	Error
	Result conflict.Result `json:"result"`
}

// Common error codes.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeConflict    = "conflict"
	ErrCodeInternal    = "internal_error"
	ErrCodeValidation  = "validation_error"
	ErrCodeUnavailable = "service_unavailable"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeBlocking writes the 409 conflict response for an unconfirmed
// schedule.
func writeBlocking(w http.ResponseWriter, result conflict.Result) {
	writeJSON(w, http.StatusConflict, ConflictError{
		Error: Error{
			Status:  http.StatusConflict,
			Code:    ErrCodeConflict,
			Message: result.Summary,
		},
		Result: result,
	})
}

// validationErrors map to 400.
var validationErrors = []error{
	device.ErrInvalidDevice,
	device.ErrInvalidGroup,
	device.ErrUnknownTarget,
	command.ErrInvalidEffect,
	command.ErrEmptyTarget,
	automation.ErrInvalidScene,
	automation.ErrInvalidName,
	automation.ErrInvalidSlug,
	automation.ErrNoActions,
	automation.ErrInvalidAction,
	schedule.ErrInvalidSchedule,
	schedule.ErrInvalidTrigger,
	conflict.ErrInvalidParams,
	nlp.ErrUnknownIntent,
	nlp.ErrInvalidParams,
	nlp.ErrInvalidTrigger,
}

var notFoundErrors = []error{
	device.ErrDeviceNotFound,
	device.ErrGroupNotFound,
	automation.ErrSceneNotFound,
	schedule.ErrScheduleNotFound,
	conflict.ErrConflictNotFound,
	conflict.ErrResolutionNotFound,
}

var existsErrors = []error{
	device.ErrDeviceExists,
	device.ErrGroupExists,
	automation.ErrSceneExists,
	schedule.ErrScheduleExists,
	automation.ErrSceneDisabled,
}

// writeDomainError maps a domain error onto a status code. Unknown errors
// are logged by the caller and reported as fallback.
func writeDomainError(w http.ResponseWriter, err error, fallback string) {
	var blocking *conflict.BlockingError
	switch {
	case errors.As(err, &blocking):
		writeBlocking(w, blocking.Result)
	case isAny(err, validationErrors):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case isAny(err, notFoundErrors):
		writeNotFound(w, err.Error())
	case isAny(err, existsErrors):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, command.ErrMQTTUnavailable), errors.Is(err, command.ErrTrackerClosed), errors.Is(err, nlp.ErrNoParser):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	default:
		writeInternalError(w, fallback)
	}
}

// isKnownError reports whether writeDomainError maps err to a client error.
func isKnownError(err error) bool {
	var blocking *conflict.BlockingError
	return errors.As(err, &blocking) ||
		isAny(err, validationErrors) ||
		isAny(err, notFoundErrors) ||
		isAny(err, existsErrors) ||
		errors.Is(err, command.ErrMQTTUnavailable) ||
		errors.Is(err, command.ErrTrackerClosed) ||
		errors.Is(err, nlp.ErrNoParser)
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}
