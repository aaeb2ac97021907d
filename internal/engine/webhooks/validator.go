package webhooks

import (
	"net/netip"
	"net/url"
	"strings"

	"courier/internal/pkg/errors"
	"courier/internal/platform/models"
)

// ValidateConfiguration is the write-time gate for webhook destinations.
// Nothing that fails here reaches the store.
func ValidateConfiguration(c *models.WebhookConfiguration) error {
	if err := ValidateWebhookURL(c.WebhookURL); err != nil {
		return err
	}
	if c.TimeoutSeconds < 5 || c.TimeoutSeconds > 300 {
		return errors.NewValidationError("timeout_seconds", "must be between 5 and 300")
	}
	if c.RetryAttempts < 0 {
		return errors.NewValidationError("retry_attempts", "must not be negative")
	}
	if c.MaxRequestsPerMinute <= 0 {
		return errors.NewValidationError("max_requests_per_minute", "must be positive")
	}
	switch c.Region {
	case models.RegionUS, models.RegionEU, models.RegionUK, models.RegionOther:
	default:
		return errors.NewValidationError("region", "unknown region code")
	}
	return nil
}

// ValidateWebhookURL rejects destinations that could reach internal
// infrastructure. An empty URL is allowed so a configuration can be staged
// before its destination exists.
func ValidateWebhookURL(rawURL string) error {
	if rawURL == "" {
		return nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return errors.NewValidationError("webhook_url", "Invalid webhook URL")
	}
	if u.Scheme != "https" {
		return errors.NewValidationError("webhook_url", "Webhook URL must use HTTPS")
	}

	host := u.Hostname()
	if host == "" {
		return errors.NewValidationError("webhook_url", "Invalid webhook URL")
	}

	if isLoopbackHost(host) {
		return errors.NewValidationError("webhook_url", "Webhook URL cannot point to localhost or loopback")
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if addr.IsLoopback() || addr.IsUnspecified() {
			return errors.NewValidationError("webhook_url", "Webhook URL cannot point to localhost or loopback")
		}
		if addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() {
			return errors.NewValidationError("webhook_url", "Webhook URL cannot point to private or reserved IP")
		}
	}

	return nil
}

func isLoopbackHost(host string) bool {
	switch strings.ToLower(host) {
	case "localhost", "127.0.0.1", "0.0.0.0", "::1":
		return true
	}
	return false
}
