package slogx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
)

// Transport is an http.RoundTripper that logs every outgoing request and
// attaches a generated X-Request-ID header if the caller did not set one.
// Wrap a client's base transport with NewTransport to get request logging
// without touching call sites.
type Transport struct {
	Base   http.RoundTripper
	Logger *slog.Logger
}

// NewTransport wraps base with request logging. A nil base falls back to
// http.DefaultTransport, a nil logger to the contextual logger carried on
// each request's context (FromContext).
func NewTransport(base http.RoundTripper, logger *slog.Logger) *Transport {
	return &Transport{Base: base, Logger: logger}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	logger := t.Logger
	if logger == nil {
		logger = FromContext(req.Context())
	}

	reqID := req.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = ulid.Make().String()
		// Clone before mutating headers; RoundTrippers must not modify
		// the caller's request.
		req = req.Clone(req.Context())
		req.Header.Set("X-Request-ID", reqID)
	}

	start := time.Now()
	resp, err := base.RoundTrip(req)
	duration := time.Since(start).Milliseconds()

	l := logger.With(
		"req_id", reqID,
		"method", req.Method,
		"host", req.URL.Host,
		"path", req.URL.Path,
		"duration_ms", duration,
	)

	if err != nil {
		l.Warn("http_request_failed", "error", err)
		return nil, err
	}

	l.Debug("http_request", "status", resp.StatusCode)
	return resp, nil
}
