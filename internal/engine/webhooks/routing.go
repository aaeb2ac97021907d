package webhooks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"courier/internal/platform/models"
	"courier/internal/platform/repositories"
)

// ErrNoWebhookConfigured signals that routing found no usable destination.
// Callers drop the event; only a configuration change can recover it.
type ErrNoWebhookConfigured struct {
	Reason string
}

func (e *ErrNoWebhookConfigured) Error() string {
	return e.Reason
}

type Router struct {
	configs    *repositories.WebhookConfigRepository
	queue      *repositories.QueueRepository
	classifier *RegionClassifier
	scheduler  Scheduler
}

func NewRouter(configs *repositories.WebhookConfigRepository, queue *repositories.QueueRepository, classifier *RegionClassifier, scheduler Scheduler) *Router {
	return &Router{
		configs:    configs,
		queue:      queue,
		classifier: classifier,
		scheduler:  scheduler,
	}
}

// resolveConfig finds the active configuration for the region, falling back
// to the enterprise's OTHER catch-all.
func (r *Router) resolveConfig(enterpriseID, region string) (*models.WebhookConfiguration, error) {
	cfg, err := r.configs.GetActive(enterpriseID, region)
	if err != nil {
		return nil, err
	}
	if cfg == nil && region != models.RegionOther {
		cfg, err = r.configs.GetActive(enterpriseID, models.RegionOther)
		if err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// DeduplicationKey collapses duplicate platform events for the same fact on
// the same UTC calendar day to one admission.
func DeduplicationKey(enterpriseID, userID, courseID, eventType string, at time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%s:%s",
		enterpriseID, userID, courseID, eventType, at.UTC().Format("2006-01-02"))
}

// Route is the idempotent admission point. The resolved region and webhook
// URL are snapshotted on the entry; retries do not re-resolve them. Only a
// freshly created entry is submitted to the scheduler.
func (r *Router) Route(userID, enterpriseID, courseID, eventType string, payload json.RawMessage) (*models.QueueEntry, bool, error) {
	region := r.classifier.ResolveRegion(userID, enterpriseID)

	cfg, err := r.resolveConfig(enterpriseID, region)
	if err != nil {
		return nil, false, err
	}
	if cfg == nil {
		return nil, false, &ErrNoWebhookConfigured{
			Reason: fmt.Sprintf("No active webhook configuration for enterprise %s region %s", enterpriseID, region),
		}
	}
	if eventType == models.EventTypeEnrollment && !cfg.EnrollmentEventsEnabled {
		return nil, false, &ErrNoWebhookConfigured{Reason: "Enrollment events processing disabled"}
	}

	entry := &models.QueueEntry{
		EnterpriseID:     enterpriseID,
		UserID:           userID,
		CourseID:         courseID,
		EventType:        eventType,
		UserRegion:       region,
		WebhookURL:       cfg.WebhookURL,
		Payload:          payload,
		DeduplicationKey: DeduplicationKey(enterpriseID, userID, courseID, eventType, time.Now()),
	}

	entry, created, err := r.queue.GetOrCreate(entry)
	if err != nil {
		return nil, false, err
	}

	if created {
		log.Info().
			Str("entry_id", entry.ID).
			Str("enterprise_id", enterpriseID).
			Str("event_type", eventType).
			Str("region", region).
			Msg("Webhook delivery admitted")
		r.scheduler.Submit(entry.ID, 0)
	}

	return entry, created, nil
}
