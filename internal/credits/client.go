// Package credits talks to the external credit ledger with idempotent
// deductions and a short-lived balance cache.
package credits

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/visara/reading-engine/internal/config"
)

// Balance is the ledger's view of an account.
type Balance struct {
	ServiceBalance   int `json:"service_balance"`
	UniversalBalance int `json:"universal_balance"`
	TotalAvailable   int `json:"total_available"`
}

// Deduction is the outcome of a deduct call. Duplicate means the idempotency
// key was already consumed: the charge happened exactly once, earlier.
type Deduction struct {
	TransactionID string `json:"transaction_id"`
	Duplicate     bool   `json:"-"`
}

// LedgerError represents a non-success ledger response.
type LedgerError struct {
	Status int
	Body   string
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("credit ledger error: status %d: %s", e.Status, e.Body)
}

// balanceCache is the narrow cache surface the client needs; *redisc.Client
// satisfies it.
type balanceCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Client is the ledger HTTP client.
type Client struct {
	cfg    config.CreditsConfig
	http   *http.Client
	cache  balanceCache
	logger *zap.Logger
}

// NewClient builds a ledger client. The cache may be nil, in which case every
// check hits the ledger.
func NewClient(cfg config.CreditsConfig, cache balanceCache, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: 15 * time.Second},
		cache:  cache,
		logger: logger,
	}
}

func (c *Client) cacheKey(accountID uuid.UUID) string {
	return fmt.Sprintf("credits:balance:%s:%s", c.cfg.ServiceSlug, accountID)
}

// Check returns the account balance, serving from the short-TTL cache when
// possible to bound the request volume imposed on the ledger per session.
func (c *Client) Check(ctx context.Context, accountID uuid.UUID) (*Balance, error) {
	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, c.cacheKey(accountID)); err == nil && cached != "" {
			var balance Balance
			if err := json.Unmarshal([]byte(cached), &balance); err == nil {
				return &balance, nil
			}
		}
	}

	url := fmt.Sprintf("%s/v1/accounts/%s/balance?service=%s",
		strings.TrimRight(c.cfg.BaseURL, "/"), accountID, c.cfg.ServiceSlug)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build balance request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("balance check failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read balance response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &LedgerError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var balance Balance
	if err := json.Unmarshal(body, &balance); err != nil {
		return nil, fmt.Errorf("failed to parse balance response: %w", err)
	}

	if c.cache != nil {
		if encoded, err := json.Marshal(balance); err == nil {
			if err := c.cache.Set(ctx, c.cacheKey(accountID), string(encoded), c.cfg.CacheTTL); err != nil {
				c.logger.Warn("failed to cache balance", zap.Error(err))
			}
		}
	}
	return &balance, nil
}

// Deduct consumes one credit, keyed by idempotencyKey so repeated dispatch
// cannot double-bill. A 409 from the ledger means the key was already
// consumed and is reported as a duplicate, not an error. Any attempt,
// success or duplicate, invalidates the cached balance.
func (c *Client) Deduct(ctx context.Context, accountID uuid.UUID, idempotencyKey string) (*Deduction, error) {
	defer func() {
		if c.cache != nil {
			if err := c.cache.Del(ctx, c.cacheKey(accountID)); err != nil {
				c.logger.Warn("failed to invalidate balance cache", zap.Error(err))
			}
		}
	}()

	payload, err := json.Marshal(map[string]string{
		"service_slug":    c.cfg.ServiceSlug,
		"idempotency_key": idempotencyKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal deduct request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/accounts/%s/deduct", strings.TrimRight(c.cfg.BaseURL, "/"), accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build deduct request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deduct call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read deduct response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		var deduction Deduction
		if err := json.Unmarshal(body, &deduction); err != nil {
			return nil, fmt.Errorf("failed to parse deduct response: %w", err)
		}
		return &deduction, nil
	case http.StatusConflict:
		c.logger.Info("deduct key already consumed",
			zap.String("idempotency_key", idempotencyKey))
		return &Deduction{Duplicate: true}, nil
	default:
		return nil, &LedgerError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
}
