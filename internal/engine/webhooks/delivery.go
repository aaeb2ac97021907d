package webhooks

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"courier/internal/platform/config"
	"courier/internal/platform/models"
	"courier/internal/platform/repositories"
)

const maxResponseBodyBytes = 10000

// Worker executes delivery attempts against the durable queue. Process is
// re-entrant: duplicate submissions for the same entry are absorbed by the
// terminal-state check and the pending-only claim, with the queue row as the
// source of truth.
type Worker struct {
	queue   *repositories.QueueRepository
	configs *repositories.WebhookConfigRepository
	tokens  *TokenCache
	limiter *DestinationLimiter

	scheduler Scheduler
	cfg       config.WebhooksConfig
}

func NewWorker(queue *repositories.QueueRepository, configs *repositories.WebhookConfigRepository, tokens *TokenCache, limiter *DestinationLimiter, scheduler Scheduler, cfg config.WebhooksConfig) *Worker {
	return &Worker{
		queue:     queue,
		configs:   configs,
		tokens:    tokens,
		limiter:   limiter,
		scheduler: scheduler,
		cfg:       cfg,
	}
}

func (w *Worker) Process(entryID string) {
	entry, err := w.queue.GetByID(entryID)
	if err != nil {
		log.Error().Err(err).Str("entry_id", entryID).Msg("Failed to load queue entry")
		return
	}
	if entry == nil {
		log.Warn().Str("entry_id", entryID).Msg("Queue item " + entryID + " not found")
		return
	}
	if entry.IsTerminal() {
		return
	}

	claimed, err := w.queue.MarkProcessing(entry.ID)
	if err != nil {
		log.Error().Err(err).Str("entry_id", entry.ID).Msg("Failed to mark entry processing")
		return
	}
	if !claimed {
		// Lost the claim race: cancelled, or another submission owns it.
		return
	}
	attemptCount := entry.AttemptCount + 1

	whc, err := w.resolveConfig(entry)
	if err != nil {
		log.Error().Err(err).Str("entry_id", entry.ID).Msg("Configuration lookup failed")
		// Store errors are transient; retry with the default budget.
		w.handleFailure(entry, &models.WebhookConfiguration{RetryAttempts: 3}, attemptCount, nil, err.Error())
		return
	}
	if whc == nil {
		// Configuration gone since admission. Waiting cannot fix this.
		if err := w.queue.MarkFailed(entry.ID, nil, "No active webhook configuration found"); err != nil {
			log.Error().Err(err).Str("entry_id", entry.ID).Msg("Failed to mark entry failed")
		}
		log.Warn().Str("entry_id", entry.ID).Msg("No active webhook configuration found")
		return
	}

	if !w.limiter.Allow(whc.ID, whc.MaxRequestsPerMinute) {
		w.handleFailure(entry, whc, attemptCount, nil, "Rate limit exceeded")
		return
	}

	token, err := w.resolveAuth(entry.UserRegion, whc)
	if err != nil {
		w.handleFailure(entry, whc, attemptCount, nil, "Token API error: "+err.Error())
		return
	}

	status, body, err := w.post(entry, whc, token)
	if err != nil {
		w.handleFailure(entry, whc, attemptCount, nil, classifyNetworkError(err))
		return
	}

	if status >= 200 && status <= 299 {
		if err := w.queue.MarkSuccess(entry.ID, status, truncate(body, maxResponseBodyBytes)); err != nil {
			log.Error().Err(err).Str("entry_id", entry.ID).Msg("Failed to mark entry success")
			return
		}
		log.Info().
			Str("entry_id", entry.ID).
			Int("http_status", status).
			Int("attempt", attemptCount).
			Msg("Webhook delivered")
		return
	}

	w.handleFailure(entry, whc, attemptCount, &status, fmt.Sprintf("HTTP %d", status))
}

// resolveConfig repeats the admission-time region fallback at delivery time.
func (w *Worker) resolveConfig(entry *models.QueueEntry) (*models.WebhookConfiguration, error) {
	cfg, err := w.configs.GetActive(entry.EnterpriseID, entry.UserRegion)
	if err != nil {
		return nil, err
	}
	if cfg == nil && entry.UserRegion != models.RegionOther {
		cfg, err = w.configs.GetActive(entry.EnterpriseID, models.RegionOther)
		if err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// resolveAuth picks the credential: OAuth client credentials over static
// token over unauthenticated.
func (w *Worker) resolveAuth(region string, whc *models.WebhookConfiguration) (string, error) {
	if whc.HasOAuthCredentials() {
		return w.tokens.GetToken(region, whc)
	}
	return whc.AuthToken, nil
}

func (w *Worker) post(entry *models.QueueEntry, whc *models.WebhookConfiguration, token string) (int, string, error) {
	req, err := http.NewRequest(http.MethodPost, entry.WebhookURL, bytes.NewReader(entry.Payload))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", w.cfg.UserAgent)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: time.Duration(whc.TimeoutSeconds) * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes+1))
	if err != nil {
		body = nil
	}
	return resp.StatusCode, string(body), nil
}

func (w *Worker) handleFailure(entry *models.QueueEntry, whc *models.WebhookConfiguration, attemptCount int, httpStatus *int, errorMessage string) {
	if attemptCount <= whc.RetryAttempts {
		delay := RetryDelay(attemptCount, w.cfg.BaseRetryDelay, w.cfg.MaxRetryDelay)
		nextRetryAt := time.Now().Add(delay)
		if err := w.queue.MarkRetry(entry.ID, httpStatus, errorMessage, nextRetryAt); err != nil {
			log.Error().Err(err).Str("entry_id", entry.ID).Msg("Failed to schedule retry")
			return
		}
		log.Warn().
			Str("entry_id", entry.ID).
			Int("attempt", attemptCount).
			Dur("retry_in", delay).
			Str("error", errorMessage).
			Msg("Webhook delivery failed, retrying")
		w.scheduler.Submit(entry.ID, delay)
		return
	}

	if err := w.queue.MarkFailed(entry.ID, httpStatus, errorMessage); err != nil {
		log.Error().Err(err).Str("entry_id", entry.ID).Msg("Failed to mark entry failed")
		return
	}
	log.Error().
		Str("entry_id", entry.ID).
		Int("attempt", attemptCount).
		Str("error", errorMessage).
		Msg("Webhook delivery failed permanently")
}

func classifyNetworkError(err error) string {
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return "Connection timeout"
	}
	return "Connection error: " + err.Error()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
