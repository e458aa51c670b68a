// Package scan talks to the external scan/lock service that opens a scan
// window for a passport and reports when the passport has been scanned.
package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"passport-id/internal/identity"
	"passport-id/internal/platform/privacy"
	"passport-id/internal/platform/tracer"
)

const scanPath = "/api/scan"

// Status is a decoded poll result.
type Status struct {
	// Confirmed is true once the passport has been scanned.
	Confirmed bool
	// TOTPNeeded is meaningful only when Confirmed is true.
	TOTPNeeded bool
}

// HTTPClient calls the scan service over HTTP.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	tracer     tracer.Tracer
}

// Option configures the HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		c.httpClient = client
	}
}

// WithTracer sets the tracer used for outbound calls.
func WithTracer(t tracer.Tracer) Option {
	return func(c *HTTPClient) {
		c.tracer = t
	}
}

// NewHTTPClient creates a scan service client rooted at baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		tracer:     tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type openRequest struct {
	ID     identity.Identity `json:"id"`
	Secret string            `json:"secret"`
}

type statusResponse struct {
	TOTPNeeded bool `json:"totp_needed"`
}

// Open asks the service to start a scan window for id.
//
// Any 2xx is success. 400, 404 and 409 are reported as CategoryRejected;
// everything else is a transient failure.
func (c *HTTPClient) Open(ctx context.Context, id identity.Identity) (err error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanScanOpen, tracer.String(tracer.AttrIdentity, privacy.HashIdentity(uint32(id))))
	defer func() { span.End(err) }()

	body, err := json.Marshal(openRequest{ID: id})
	if err != nil {
		return newError(CategoryInternal, 0, "failed to encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+scanPath, bytes.NewReader(body))
	if err != nil {
		return newError(CategoryInternal, 0, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	span.SetAttributes(tracer.Int64(tracer.AttrHTTPStatus, int64(resp.StatusCode)))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusNotFound,
		resp.StatusCode == http.StatusConflict:
		return newError(CategoryRejected, resp.StatusCode, "scan request rejected", nil)
	case resp.StatusCode >= 500:
		return newError(CategoryUnavailable, resp.StatusCode, "scan service error", nil)
	default:
		return newError(CategoryBadResponse, resp.StatusCode, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}
}

// Status polls whether id has been scanned.
//
// 200 with a JSON body is confirmed; 201, 202 and 204 are still pending.
// Anything else is returned as an error the caller should treat as transient.
func (c *HTTPClient) Status(ctx context.Context, id identity.Identity) (status Status, err error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanScanStatus, tracer.String(tracer.AttrIdentity, privacy.HashIdentity(uint32(id))))
	defer func() { span.End(err) }()

	endpoint := c.baseURL + scanPath + "?" + url.Values{"id": {id.String()}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Status{}, newError(CategoryInternal, 0, "failed to create request", err)
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return Status{}, err
	}
	defer resp.Body.Close()
	span.SetAttributes(tracer.Int64(tracer.AttrHTTPStatus, int64(resp.StatusCode)))

	switch resp.StatusCode {
	case http.StatusOK:
		var body statusResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return Status{}, newError(CategoryBadResponse, resp.StatusCode, "failed to decode scan status", err)
		}
		span.SetAttributes(tracer.String(tracer.AttrOutcome, "confirmed"))
		return Status{Confirmed: true, TOTPNeeded: body.TOTPNeeded}, nil
	case http.StatusCreated, http.StatusAccepted, http.StatusNoContent:
		_, _ = io.Copy(io.Discard, resp.Body)
		span.SetAttributes(tracer.String(tracer.AttrOutcome, "pending"))
		return Status{}, nil
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode >= 500 {
			return Status{}, newError(CategoryUnavailable, resp.StatusCode, "scan service error", nil)
		}
		return Status{}, newError(CategoryBadResponse, resp.StatusCode, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}
}

func (c *HTTPClient) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err == nil {
		return resp, nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || isTimeout(err) {
		return nil, newError(CategoryTimeout, 0, "request timeout", err)
	}
	return nil, newError(CategoryUnavailable, 0, "failed to execute request", err)
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
