package handlers

import (
	"encoding/json"
	"net/http"

	"courier/internal/engine/events"
	"courier/internal/pkg/errors"
)

type EventsHandler struct {
	handler *events.Handler
}

func NewEventsHandler(handler *events.Handler) *EventsHandler {
	return &EventsHandler{handler: handler}
}

type eventEnvelope struct {
	Type       string          `json:"type"`
	Grade      json.RawMessage `json:"grade,omitempty"`
	Enrollment json.RawMessage `json:"enrollment,omitempty"`
}

// Intake accepts platform events from the LMS. Admission failures never
// surface here; the response only acknowledges receipt.
func (h *EventsHandler) Intake(w http.ResponseWriter, r *http.Request) {
	var env eventEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	switch env.Type {
	case "grade":
		var event events.GradeEvent
		if err := json.Unmarshal(env.Grade, &event); err != nil {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid grade event", nil)
			return
		}
		h.handler.HandleGrade(&event)
	case "enrollment":
		var event events.EnrollmentEvent
		if err := json.Unmarshal(env.Enrollment, &event); err != nil {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid enrollment event", nil)
			return
		}
		h.handler.HandleEnrollment(&event)
	default:
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Unknown event type", nil)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
