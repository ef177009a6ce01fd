package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// HTTPConfig configures the catalog client.
type HTTPConfig struct {
	BaseURL          string
	Timeout          time.Duration
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// HTTPResolver asks the catalog service for the owner of a court:
//
//	GET {BaseURL}/resources/{id}/owner -> {"resource_id":5,"company_id":2,"owner_user_id":100}
//
// Calls go through a circuit breaker so a failing catalog is not hammered
// by every submission.  A 404 is an answer, not a failure, and does not
// count against the breaker.
type HTTPResolver struct {
	base    string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[uint64]
	logger  *zap.Logger
}

type ownerResponse struct {
	ResourceID  uint64 `json:"resource_id"`
	CompanyID   uint64 `json:"company_id"`
	OwnerUserID uint64 `json:"owner_user_id"`
}

// NewHTTPResolver builds a resolver for cfg.  Zero values get defaults.
func NewHTTPResolver(cfg HTTPConfig, logger *zap.Logger) *HTTPResolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	settings := gobreaker.Settings{
		Name:        "catalog",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrUnknownResource) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &HTTPResolver{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker[uint64](settings),
		logger:  logger,
	}
}

func (r *HTTPResolver) ResolveProcessor(ctx context.Context, resourceID uint64) (uint64, error) {
	id, err := r.breaker.Execute(func() (uint64, error) { return r.fetch(ctx, resourceID) })
	switch {
	case err == nil:
		return id, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return 0, err
}

func (r *HTTPResolver) fetch(ctx context.Context, resourceID uint64) (uint64, error) {
	url := fmt.Sprintf("%s/resources/%d/owner", r.base, resourceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn("catalog request failed", zap.Uint64("resource_id", resourceID), zap.Error(err))
		return 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, ErrUnknownResource
	case resp.StatusCode != http.StatusOK:
		r.logger.Warn("catalog returned unexpected status",
			zap.Uint64("resource_id", resourceID), zap.Int("status", resp.StatusCode))
		return 0, fmt.Errorf("%w: catalog status %d", ErrUnavailable, resp.StatusCode)
	}

	var body ownerResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("%w: decode catalog response: %w", ErrUnavailable, err)
	}
	if body.OwnerUserID == 0 {
		return 0, ErrUnknownResource
	}
	return body.OwnerUserID, nil
}
