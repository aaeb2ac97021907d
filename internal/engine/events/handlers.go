package events

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"courier/internal/engine/webhooks"
	"courier/internal/platform/config"
	"courier/internal/platform/models"
	"courier/internal/platform/repositories"
)

// GradeEvent is the platform's persistent-grade signal. PassedAt is set only
// when the learner crossed the passing threshold.
type GradeEvent struct {
	UserID         string  `json:"user_id"`
	CourseKey      string  `json:"course_key"`
	CourseName     string  `json:"course_name"`
	PercentGrade   float64 `json:"percent_grade"`
	LetterGrade    string  `json:"letter_grade"`
	PassedAt       *int64  `json:"passed_at,omitempty"`
	EnrollmentMode string  `json:"enrollment_mode,omitempty"`
}

type EnrollmentEvent struct {
	UserID     string `json:"user_id"`
	CourseKey  string `json:"course_key"`
	CourseName string `json:"course_name"`
	Mode       string `json:"mode"`
}

// Handler translates platform events into queue admissions. It fans out one
// admission per enterprise membership and never propagates errors upward:
// the learner-facing event pipeline must not fail because a webhook has no
// destination.
type Handler struct {
	users        *repositories.UserRepository
	enterprises  *repositories.EnterpriseRepository
	router       *webhooks.Router
	features     config.FeaturesConfig
	learningTime LearningTimeSource
}

func NewHandler(users *repositories.UserRepository, enterprises *repositories.EnterpriseRepository, router *webhooks.Router, features config.FeaturesConfig, learningTime LearningTimeSource) *Handler {
	return &Handler{
		users:        users,
		enterprises:  enterprises,
		router:       router,
		features:     features,
		learningTime: learningTime,
	}
}

// HandleGrade admits a course_completion delivery for a passing grade.
// Non-passing grade updates are ignored.
func (h *Handler) HandleGrade(event *GradeEvent) {
	if event.UserID == "" || event.CourseKey == "" {
		log.Warn().Msg("Grade event missing user or course, dropping")
		return
	}
	if event.PassedAt == nil {
		return
	}

	user, enterprises, ok := h.resolveLearner(event.UserID)
	if !ok {
		return
	}

	completion := map[string]interface{}{
		"percent_grade": event.PercentGrade,
		"letter_grade":  event.LetterGrade,
	}
	if h.features.LearningTimeEnrichment && h.learningTime != nil {
		seconds, found, err := h.learningTime.LearningTimeSeconds(event.UserID, event.CourseKey)
		if err != nil {
			log.Warn().Err(err).Str("course_key", event.CourseKey).Msg("Learning time lookup failed, delivering unenriched")
		} else if found {
			completion["learning_time"] = seconds
		}
	}

	payload := map[string]interface{}{
		"completion": completion,
		"course": map[string]interface{}{
			"course_key":   event.CourseKey,
			"display_name": event.CourseName,
		},
		"content_id":            event.CourseKey,
		"user":                  user.Username,
		"status":                "completed",
		"event_date":            time.Now().UTC().Format(time.RFC3339),
		"completion_percentage": 100,
	}
	if event.EnrollmentMode != "" {
		payload["enrollment"] = map[string]interface{}{"mode": event.EnrollmentMode}
	}

	h.fanOut(enterprises, event.UserID, event.CourseKey, models.EventTypeCompletion, payload)
}

// HandleEnrollment admits a course_enrollment delivery.
func (h *Handler) HandleEnrollment(event *EnrollmentEvent) {
	if event.UserID == "" || event.CourseKey == "" {
		log.Warn().Msg("Enrollment event missing user or course, dropping")
		return
	}

	user, enterprises, ok := h.resolveLearner(event.UserID)
	if !ok {
		return
	}

	payload := map[string]interface{}{
		"enrollment": map[string]interface{}{"mode": event.Mode},
		"course": map[string]interface{}{
			"course_key":   event.CourseKey,
			"display_name": event.CourseName,
		},
		"content_id":            event.CourseKey,
		"user":                  user.Username,
		"status":                "started",
		"event_date":            time.Now().UTC().Format(time.RFC3339),
		"completion_percentage": 0,
	}

	h.fanOut(enterprises, event.UserID, event.CourseKey, models.EventTypeEnrollment, payload)
}

func (h *Handler) resolveLearner(userID string) (*models.User, []*models.Enterprise, bool) {
	user, err := h.users.GetByID(userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Error().Str("user_id", userID).Msg("User not found for event")
		} else {
			log.Error().Err(err).Str("user_id", userID).Msg("User lookup failed")
		}
		return nil, nil, false
	}

	enterprises, err := h.enterprises.EnterprisesForUser(userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Enterprise lookup failed")
		return nil, nil, false
	}
	if len(enterprises) == 0 {
		log.Info().Str("user_id", userID).Msg("Learner has no enterprise membership, dropping event")
		return nil, nil, false
	}

	return user, enterprises, true
}

func (h *Handler) fanOut(enterprises []*models.Enterprise, userID, courseKey, eventType string, payload map[string]interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to serialize event payload")
		return
	}

	for _, enterprise := range enterprises {
		_, _, err := h.router.Route(userID, enterprise.ID, courseKey, eventType, body)
		if err != nil {
			var noConfig *webhooks.ErrNoWebhookConfigured
			if errors.As(err, &noConfig) {
				log.Debug().
					Str("enterprise_id", enterprise.ID).
					Str("event_type", eventType).
					Str("reason", noConfig.Reason).
					Msg("No webhook destination, dropping event")
				continue
			}
			log.Error().Err(err).
				Str("enterprise_id", enterprise.ID).
				Str("event_type", eventType).
				Msg("Webhook admission failed")
		}
	}
}
