// Package meraki provides a typed client for the Meraki Dashboard network management API.
package meraki

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/liptonj/wpn-provisioner/internal/metrics"
	"github.com/liptonj/wpn-provisioner/internal/models"
	"github.com/rs/zerolog"
)

// Defaults for the retry policy and request timeout.
const (
	DefaultBaseURL        = "https://api.meraki.com/api/v1"
	DefaultTimeout        = 30 * time.Second
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = 500 * time.Millisecond
)

// Service defines the idempotent operations the provisioner needs from the network
// management API. Mutating calls are safe to retry.
type Service interface {
	GetSSID(ctx context.Context, networkID string, number int) (*models.SSIDSummary, error)
	UpdateSSID(ctx context.Context, networkID string, number int, patch models.SSIDPatch) (*models.SSIDSummary, error)
	ListGroupPolicies(ctx context.Context, networkID string) ([]models.GroupPolicy, error)
	CreateGroupPolicy(ctx context.Context, networkID string, spec models.GroupPolicySpec) (*models.GroupPolicy, error)
	UpdateGroupPolicy(ctx context.Context, networkID, id string, spec models.GroupPolicySpec) (*models.GroupPolicy, error)
	ListIdentityPSKs(ctx context.Context, networkID string, number int) ([]models.IdentityPSK, error)
	CreateIdentityPSK(ctx context.Context, networkID string, number int, spec models.IdentityPSKSpec) (*models.IdentityPSK, error)
}

// HTTPClient allows mocking HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Impl implements the Service interface over HTTP.
type Impl struct {
	httpClient     HTTPClient
	logger         zerolog.Logger
	baseURL        string
	apiKey         string
	timeout        time.Duration
	maxAttempts    int
	initialBackoff time.Duration
	locks          *resourceLocks
}

// New creates a new client from configuration.
func New(logger zerolog.Logger, cfg models.MerakiConfig) *Impl {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return NewWithClient(logger, &http.Client{Timeout: timeout}, cfg)
}

// NewWithClient creates a new client with a custom HTTP client (for testing).
func NewWithClient(logger zerolog.Logger, httpClient HTTPClient, cfg models.MerakiConfig) *Impl {
	s := &Impl{
		httpClient:     httpClient,
		logger:         logger,
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		timeout:        cfg.Timeout,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		locks:          newResourceLocks(),
	}
	if s.baseURL == "" {
		s.baseURL = DefaultBaseURL
	}
	if s.timeout == 0 {
		s.timeout = DefaultTimeout
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = DefaultMaxAttempts
	}
	if s.initialBackoff == 0 {
		s.initialBackoff = DefaultInitialBackoff
	}
	return s
}

func (s *Impl) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initialBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.maxAttempts-1)), ctx)
}

// do performs one logical API call, retrying transient failures with exponential backoff.
// 4xx responses other than 429 fail immediately.
func (s *Impl) do(ctx context.Context, operation, method, path string, body, out any) error {
	payload, err := marshalBody(operation, body)
	if err != nil {
		return err
	}
	return s.retry(ctx, operation, func(int) error {
		return s.doOnce(ctx, method, path, payload, out)
	})
}

// create POSTs a new resource. A failed attempt may still have been committed remotely,
// so every retry first calls find and adopts a matching resource instead of posting again.
func (s *Impl) create(ctx context.Context, operation, path string, body, out any, find func(ctx context.Context) (bool, error)) error {
	payload, err := marshalBody(operation, body)
	if err != nil {
		return err
	}
	return s.retry(ctx, operation, func(attempt int) error {
		if attempt > 1 {
			found, err := find(ctx)
			if err != nil {
				return err
			}
			if found {
				s.logger.Info().
					Str("operation", operation).
					Int("attempt", attempt).
					Msg("adopted resource committed by an earlier attempt")
				return nil
			}
		}
		return s.doOnce(ctx, "POST", path, payload, out)
	})
}

func marshalBody(operation string, body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", operation, err)
	}
	return payload, nil
}

func (s *Impl) retry(ctx context.Context, operation string, attemptFn func(attempt int) error) error {
	start := time.Now()
	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		return attemptFn(attempt)
	}, s.newBackOff(ctx), func(err error, wait time.Duration) {
		metrics.APIRetriesTotal.WithLabelValues(operation).Inc()
		s.logger.Warn().
			Err(err).
			Str("operation", operation).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("network API call failed, retrying")
	})
	metrics.APILatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.APICallsTotal.WithLabelValues(operation, "error").Inc()
		s.logger.Debug().Err(err).Str("operation", operation).Int("attempts", attempt).Msg("network API call failed")
		return fmt.Errorf("%s failed after %d attempt(s): %w", operation, attempt, err)
	}

	metrics.APICallsTotal.WithLabelValues(operation, "success").Inc()
	return nil
}

type errorResponse struct {
	Errors []string `json:"errors"`
}

func (s *Impl) doOnce(ctx context.Context, method, path string, payload []byte, out any) error {
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, s.baseURL+path, reqBody)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		// Caller cancellation is final; per-attempt timeouts and transport errors are not.
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Method: method, Path: path, StatusCode: resp.StatusCode}
		var errBody errorResponse
		if data, readErr := io.ReadAll(resp.Body); readErr == nil && len(data) > 0 {
			if json.Unmarshal(data, &errBody) == nil {
				apiErr.Errors = errBody.Errors
			}
		}
		if apiErr.Retryable() {
			return apiErr
		}
		return backoff.Permanent(apiErr)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
