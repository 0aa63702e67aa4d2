package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"consultas-gateway/internal/metrics"
	"consultas-gateway/pkg/logging/logging"
)

// Result is a successful upstream answer.
type Result struct {
	Status      int
	ContentType string
	Body        []byte
}

// Get calls GET <BaseURL><path>?<params> exactly once. Failures are returned
// as *Error.
func (c *Client) Get(parentCtx context.Context, path string, params url.Values) (*Result, error) {
	start := time.Now()
	logger := logging.L(parentCtx).With(zap.String("upstream_path", path))

	ctx, cancel := context.WithTimeout(parentCtx, c.cfg.Timeout)
	defer cancel()

	target := c.cfg.BaseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, c.fail(logger, path, start, &Error{Kind: KindInternal, Message: "build request", Err: err})
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	logger.Debug("upstream request starting")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(parentCtx.Err(), context.Canceled) {
			// caller went away
			return nil, c.fail(logger, path, start, &Error{Kind: KindInternal, Message: "request cancelled", Err: err})
		}
		return nil, c.fail(logger, path, start, transportError(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, c.fail(logger, path, start, transportError(fmt.Errorf("read body: %w", err)))
	}
	if int64(len(body)) > c.cfg.MaxBodyBytes {
		return nil, c.fail(logger, path, start, &Error{
			Kind:    KindInternal,
			Message: "upstream response exceeds " + strconv.FormatInt(c.cfg.MaxBodyBytes, 10) + " bytes",
		})
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.fail(logger, path, start, statusError(resp.StatusCode, body))
	}

	metrics.UpstreamLatencySeconds.WithLabelValues(path, "ok").Observe(time.Since(start).Seconds())
	logger.Info("upstream request completed",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(start)),
	)

	return &Result{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func (c *Client) fail(logger *zap.Logger, path string, start time.Time, uerr *Error) *Error {
	metrics.UpstreamLatencySeconds.WithLabelValues(path, string(uerr.Kind)).Observe(time.Since(start).Seconds())

	fields := []zap.Field{
		zap.String("kind", string(uerr.Kind)),
		zap.Duration("duration", time.Since(start)),
		zap.Error(uerr),
	}
	if uerr.Kind == KindStatus {
		fields = append(fields, zap.Int("status", uerr.Status))
		logger.Warn("upstream error status", fields...)
	} else {
		logger.Error("upstream request failed", fields...)
	}
	return uerr
}
