package webhooks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"courier/internal/platform/config"
	"courier/internal/platform/models"
)

type cachedToken struct {
	AccessToken string
	ExpiresAt   time.Time
}

// TokenCache fetches and caches OAuth2 client-credentials tokens per
// (region, client id). Concurrent misses on the same key may double-fetch;
// the second result simply overwrites the first.
type TokenCache struct {
	cfg    config.OAuthConfig
	client *http.Client
	store  sync.Map // map[string]*cachedToken keyed "region:client_id"
}

func NewTokenCache(cfg config.OAuthConfig) *TokenCache {
	return &TokenCache{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.FetchTimeout},
	}
}

type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
	Scope        string `json:"scope"`
	ProviderName string `json:"provider_name,omitempty"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   *int   `json:"expires_in"`
}

// GetToken returns a bearer token for the configuration, hitting the token
// endpoint only when no unexpired cached token exists.
func (t *TokenCache) GetToken(region string, whc *models.WebhookConfiguration) (string, error) {
	key := region + ":" + whc.ClientID

	if val, ok := t.store.Load(key); ok {
		cached := val.(*cachedToken)
		if time.Now().Before(cached.ExpiresAt) {
			return cached.AccessToken, nil
		}
		t.store.Delete(key)
	}

	endpoint := whc.TokenAPIURL
	if endpoint == "" {
		endpoint = t.cfg.TokenURLs[region]
	}
	if endpoint == "" {
		return "", fmt.Errorf("no token endpoint configured for region %s", region)
	}

	body, err := json.Marshal(tokenRequest{
		ClientID:     whc.ClientID,
		ClientSecret: whc.ClientSecret,
		GrantType:    "client_credentials",
		Scope:        "api",
		ProviderName: whc.ProviderName,
	})
	if err != nil {
		return "", err
	}

	resp, err := t.client.Post(endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("token endpoint returned HTTP %d", resp.StatusCode)
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	var parsed tokenResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("token endpoint returned unparseable body: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("token endpoint response missing 'access_token'")
	}
	if parsed.ExpiresIn == nil {
		return "", fmt.Errorf("token endpoint response missing 'expires_in'")
	}

	ttl := time.Duration(*parsed.ExpiresIn)*time.Second - t.cfg.ExpiryBuffer
	if ttl < 0 {
		ttl = 0
	}
	t.store.Store(key, &cachedToken{
		AccessToken: parsed.AccessToken,
		ExpiresAt:   time.Now().Add(ttl),
	})

	return parsed.AccessToken, nil
}
