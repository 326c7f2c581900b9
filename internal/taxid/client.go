// Package taxid validates RNC and cédula numbers against the external
// registry service. Validation happens before the purchase transaction
// begins, never inside it; an unreachable validator degrades to a typed
// error instead of blocking intake.
package taxid

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/larimar-erp/larimar-erp/internal/shared"
)

// Result is the validator's answer for one tax id.
type Result struct {
	Valid        bool   `json:"valid"`
	NormalizedID string `json:"normalized_id"`
	LegalName    string `json:"legal_name,omitempty"`
	Status       string `json:"status,omitempty"`
}

// ErrValidatorUnavailable indicates the external service could not answer
// within the timeout.
var ErrValidatorUnavailable = shared.NewError(shared.KindExternalService, "tax id validator unavailable")

// Client queries the registry with a bounded timeout and caches answers in
// Redis.
type Client struct {
	baseURL  string
	http     *http.Client
	cache    *redis.Client
	cacheTTL time.Duration
}

// NewClient builds Client. cache may be nil to disable caching.
func NewClient(baseURL string, timeout time.Duration, cache *redis.Client, cacheTTL time.Duration) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

func cacheKey(taxID string) string {
	return "taxid:" + taxID
}

// Validate checks one tax id. Cached answers are served without touching
// the external service.
func (c *Client) Validate(ctx context.Context, taxID string) (Result, error) {
	normalized := strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(taxID))
	if normalized == "" {
		return Result{}, shared.NewError(shared.KindValidation, "tax id is required")
	}

	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, cacheKey(normalized)).Result(); err == nil {
			var result Result
			if err := json.Unmarshal([]byte(cached), &result); err == nil {
				return result, nil
			}
		}
	}

	result, err := c.fetch(ctx, normalized)
	if err != nil {
		return Result{Valid: false, NormalizedID: normalized}, err
	}

	if c.cache != nil {
		if payload, err := json.Marshal(result); err == nil {
			c.cache.Set(ctx, cacheKey(normalized), payload, c.cacheTTL)
		}
	}
	return result, nil
}

func (c *Client) fetch(ctx context.Context, taxID string) (Result, error) {
	endpoint := fmt.Sprintf("%s/contribuyentes/%s", c.baseURL, url.PathEscape(taxID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{}, fmt.Errorf("taxid: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrValidatorUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Result{Valid: false, NormalizedID: taxID, Status: "not registered"}, nil
	case resp.StatusCode != http.StatusOK:
		return Result{}, fmt.Errorf("%w: status %d", ErrValidatorUnavailable, resp.StatusCode)
	}

	var body struct {
		RNC       string `json:"rnc"`
		LegalName string `json:"razon_social"`
		Status    string `json:"estado"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, fmt.Errorf("%w: decode: %v", ErrValidatorUnavailable, err)
	}
	return Result{
		Valid:        strings.EqualFold(body.Status, "activo"),
		NormalizedID: taxID,
		LegalName:    body.LegalName,
		Status:       body.Status,
	}, nil
}
