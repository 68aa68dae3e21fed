package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/quotagate/quotagate/internal/core"
	apperrors "github.com/quotagate/quotagate/internal/errors"
	"github.com/quotagate/quotagate/internal/metrics"
	"github.com/quotagate/quotagate/internal/observability"
	"github.com/quotagate/quotagate/internal/server/middleware"
)

const maxAdmitBodyBytes = 4 << 10

// Limiter is the admission surface the HTTP handlers need.
type Limiter interface {
	Admit(ctx context.Context, permits int) error
	Usage() core.Usage
}

// AdmitRequest is the body of POST /v1/admit.
type AdmitRequest struct {
	Permits int `json:"permits"`
	// Timeout bounds the wait, as a Go duration string ("5s"). Empty means
	// wait as long as the request stays open.
	Timeout string `json:"timeout,omitempty"`
}

// AdmitResponse reports a granted batch.
type AdmitResponse struct {
	Permits    int       `json:"permits"`
	WaitedMS   int64     `json:"waited_ms"`
	AdmittedAt time.Time `json:"admitted_at"`
	RequestID  string    `json:"request_id,omitempty"`
}

// UsageResponse reports current limiter capacity.
type UsageResponse struct {
	Limit        int     `json:"limit"`
	WindowMS     int64   `json:"window_ms"`
	InUse        int     `json:"in_use"`
	Available    int     `json:"available"`
	Entries      int     `json:"entries"`
	NextExpiryMS int64   `json:"next_expiry_ms"`
	Utilization  float64 `json:"utilization"`
}

// LimiterHandlers serves admission requests against one shared limiter.
type LimiterHandlers struct {
	limiter    Limiter
	maxTimeout time.Duration
	clock      func() time.Time
	waiters    atomic.Int64
}

// NewLimiterHandlers wires handlers to limiter. maxTimeout caps client
// supplied timeouts; zero leaves them uncapped.
func NewLimiterHandlers(limiter Limiter, maxTimeout time.Duration) *LimiterHandlers {
	return &LimiterHandlers{
		limiter:    limiter,
		maxTimeout: maxTimeout,
		clock:      time.Now,
	}
}

// Admit blocks until the requested permits are granted.
func (h *LimiterHandlers) Admit(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.limiter == nil {
		apperrors.RespondWithError(w, r, apperrors.NewServiceUnavailableError("rate limiter not configured"))
		return
	}

	req, err := decodeAdmitRequest(r)
	if err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "invalid admit request"))
		return
	}

	ctx := r.Context()
	timeout, err := h.resolveTimeout(req.Timeout)
	if err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapInvalidInput(ctx, err, "invalid admit timeout"))
		return
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	started := h.clock()
	metrics.SetActiveWaiters(h.waiters.Add(1))
	err = h.limiter.Admit(ctx, req.Permits)
	metrics.SetActiveWaiters(h.waiters.Add(-1))
	if err != nil {
		metrics.RecordRejection(apperrors.RejectionReason(err))
		apperrors.RespondWithError(w, r, err)
		return
	}
	admittedAt := h.clock()
	waited := admittedAt.Sub(started)
	metrics.SetPermitsInUse(h.limiter.Usage())

	if observability.ServerLogger != nil {
		observability.ServerLogger.Debug("Permits admitted",
			zap.Int("permits", req.Permits),
			zap.Duration("waited", waited),
			zap.String("request_id", middleware.GetRequestID(r.Context())))
	}

	writeJSON(w, http.StatusOK, AdmitResponse{
		Permits:    req.Permits,
		WaitedMS:   waited.Milliseconds(),
		AdmittedAt: admittedAt.UTC(),
		RequestID:  middleware.GetRequestID(r.Context()),
	})
}

// Usage reports the current window usage.
func (h *LimiterHandlers) Usage(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.limiter == nil {
		apperrors.RespondWithError(w, r, apperrors.NewServiceUnavailableError("rate limiter not configured"))
		return
	}

	usage := h.limiter.Usage()
	metrics.SetPermitsInUse(usage)

	resp := UsageResponse{
		Limit:        usage.Limit,
		WindowMS:     usage.Window.Milliseconds(),
		InUse:        usage.InUse,
		Available:    usage.Available,
		Entries:      usage.Entries,
		NextExpiryMS: usage.NextExpiry.Milliseconds(),
	}
	if usage.Limit > 0 {
		resp.Utilization = float64(usage.InUse) / float64(usage.Limit)
	}
	writeJSON(w, http.StatusOK, resp)
}

// CheckHealth reports unhealthy when no limiter is attached.
func (h *LimiterHandlers) CheckHealth(ctx context.Context) error {
	if h == nil || h.limiter == nil {
		return apperrors.NewServiceUnavailableError("rate limiter not configured")
	}
	return nil
}

func (h *LimiterHandlers) resolveTimeout(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return h.maxTimeout, nil
	}
	timeout, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if timeout <= 0 {
		return 0, fmt.Errorf("timeout must be positive, got %s", raw)
	}
	if h.maxTimeout > 0 && timeout > h.maxTimeout {
		timeout = h.maxTimeout
	}
	return timeout, nil
}

func decodeAdmitRequest(r *http.Request) (AdmitRequest, error) {
	var req AdmitRequest
	if r.Body == nil {
		return req, errors.New("request body is required")
	}
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxAdmitBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return req, errors.New("request body is required")
		}
		return req, fmt.Errorf("decode body: %w", err)
	}
	return req, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
