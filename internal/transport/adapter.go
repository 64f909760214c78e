// Package transport turns raw Rodin replies into typed results. Every failure
// leaves as a *domain.Error carrying the raw body for logs.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"rodinstudio/internal/domain"
	"rodinstudio/internal/infra"
	"rodinstudio/internal/metrics"
	"rodinstudio/internal/providers/rodin"
)

const (
	DefaultSubmitTimeout  = 60 * time.Second
	DefaultResolveTimeout = 30 * time.Second
)

// Options configures the Adapter.
type Options struct {
	SubmitTimeout  time.Duration
	ResolveTimeout time.Duration
	Metrics        *metrics.Collector
	Logger         *infra.Logger
}

// Adapter performs the three upstream operations of a generation lifecycle.
type Adapter struct {
	client         *rodin.Client
	submitTimeout  time.Duration
	resolveTimeout time.Duration
	metrics        *metrics.Collector
	logger         *infra.Logger
}

func NewAdapter(client *rodin.Client, opts Options) *Adapter {
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = DefaultSubmitTimeout
	}
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = DefaultResolveTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Adapter{
		client:         client,
		submitTimeout:  opts.SubmitTimeout,
		resolveTimeout: opts.ResolveTimeout,
		metrics:        opts.Metrics,
		logger:         logger,
	}
}

type submitResponse struct {
	UUID string `json:"uuid"`
	Jobs struct {
		SubscriptionKey string `json:"subscription_key"`
	} `json:"jobs"`
}

type statusResponse struct {
	Jobs json.RawMessage `json:"jobs"`
}

type downloadResponse struct {
	Error *string               `json:"error"`
	List  []domain.ArtifactFile `json:"list"`
}

// Submit validates sub and posts it as a new generation task.
func (a *Adapter) Submit(ctx context.Context, sub domain.Submission) (domain.SubmissionResult, error) {
	if err := sub.Validate(); err != nil {
		return domain.SubmissionResult{}, err
	}
	body, contentType, err := rodin.EncodeSubmission(sub)
	if err != nil {
		return domain.SubmissionResult{}, domain.Transport("submit", 0, "", err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.submitTimeout)
	defer cancel()

	start := time.Now()
	resp, err := a.client.Submit(ctx, body, contentType)
	raw, err := a.checkJSON("submit", resp, err, start)
	if err != nil {
		return domain.SubmissionResult{}, err
	}

	var decoded submitResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return domain.SubmissionResult{}, a.fail("submit", resp.StatusCode, raw, fmt.Errorf("decode response: %w", err))
	}
	if decoded.UUID == "" || decoded.Jobs.SubscriptionKey == "" {
		return domain.SubmissionResult{}, a.fail("submit", resp.StatusCode, raw, domain.ErrMissingSubscription)
	}
	a.logger.Info().Str("task_uuid", decoded.UUID).Msg("generation task submitted")
	return domain.SubmissionResult{TaskUUID: decoded.UUID, SubscriptionKey: decoded.Jobs.SubscriptionKey}, nil
}

// CheckStatus returns the per-job states for a subscription.
func (a *Adapter) CheckStatus(ctx context.Context, subscriptionKey string) ([]domain.JobStatus, error) {
	start := time.Now()
	resp, err := a.client.Status(ctx, subscriptionKey)
	raw, err := a.checkJSON("status", resp, err, start)
	if err != nil {
		return nil, err
	}

	var decoded statusResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, a.fail("status", resp.StatusCode, raw, fmt.Errorf("decode response: %w", err))
	}
	var jobs []domain.JobStatus
	if len(decoded.Jobs) == 0 || json.Unmarshal(decoded.Jobs, &jobs) != nil || len(jobs) == 0 {
		return nil, a.fail("status", resp.StatusCode, raw, domain.ErrEmptyJobList)
	}
	return jobs, nil
}

// ResolveDownload fetches the file list of a finished task.
func (a *Adapter) ResolveDownload(ctx context.Context, taskUUID string) (domain.ResolvedArtifact, error) {
	ctx, cancel := context.WithTimeout(ctx, a.resolveTimeout)
	defer cancel()

	start := time.Now()
	resp, err := a.client.Download(ctx, taskUUID)
	raw, err := a.checkJSON("download", resp, err, start)
	if err != nil {
		return domain.ResolvedArtifact{}, err
	}

	var decoded downloadResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return domain.ResolvedArtifact{}, a.fail("download", resp.StatusCode, raw, fmt.Errorf("decode response: %w", err))
	}
	if decoded.Error == nil {
		return domain.ResolvedArtifact{}, domain.Resolution(string(raw), domain.ErrMissingDownloadStatus)
	}
	if *decoded.Error != "OK" {
		return domain.ResolvedArtifact{}, domain.Resolution(string(raw), fmt.Errorf("service reported %q", *decoded.Error))
	}
	if len(decoded.List) == 0 {
		return domain.ResolvedArtifact{}, domain.Resolution(string(raw), domain.ErrNoFiles)
	}
	return domain.ResolvedArtifact{Files: decoded.List}, nil
}

// checkJSON applies the shared reply checks: network error, 2xx status and a
// JSON content type.
func (a *Adapter) checkJSON(op string, resp *rodin.Response, err error, start time.Time) ([]byte, error) {
	if err != nil {
		a.metrics.ObserveUpstream(op, outcomeFor(err), time.Since(start))
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, a.fail(op, 0, nil, fmt.Errorf("deadline exceeded: %w", err))
		}
		return nil, a.fail(op, 0, nil, err)
	}
	if !resp.OK() {
		a.metrics.ObserveUpstream(op, "http_error", time.Since(start))
		return nil, a.fail(op, resp.StatusCode, resp.Body, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	if !resp.IsJSON() {
		a.metrics.ObserveUpstream(op, "non_json", time.Since(start))
		return nil, a.fail(op, resp.StatusCode, resp.Body, domain.ErrNonJSONResponse)
	}
	a.metrics.ObserveUpstream(op, "ok", time.Since(start))
	return resp.Body, nil
}

func (a *Adapter) fail(op string, status int, body []byte, err error) error {
	detail := strings.TrimSpace(string(body))
	a.logger.Warn().
		Err(err).
		Str("op", op).
		Int("status", status).
		Str("detail", detail).
		Msg("rodin call failed")
	return domain.Transport(op, status, detail, err)
}

func outcomeFor(err error) string {
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "transport"
}
