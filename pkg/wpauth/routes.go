package wpauth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// restNoRoute is the WordPress error code for "this REST path does not
// exist". Sites with pretty permalinks disabled 404 every /wp-json path with
// this code while still serving the legacy ?rest_route= form.
const restNoRoute = "rest_no_route"

// request is one logical backend call. The same request is reused verbatim
// for the fallback attempt.
type request struct {
	method      string
	path        string // canonical /wp-json path
	query       url.Values
	body        []byte
	contentType string
	headers     map[string]string
}

// response pairs the HTTP result with its fully-read body.
type response struct {
	status int
	header http.Header
	body   []byte
}

// send performs req against the canonical REST path and, when the server
// reports the route missing (404 + code "rest_no_route"), retries the
// identical call once against the legacy ?rest_route= form. Any other 404 is
// returned unmodified. Both attempts flow through the cookie jar: persisted
// cookies are attached unless the caller set its own Cookie header, and
// Set-Cookie headers from every response are merged back into the jar.
func (c *Client) send(ctx context.Context, req request) (*response, error) {
	resp, err := c.sendOnce(ctx, req, c.primaryURL(req))
	if err != nil {
		return nil, err
	}

	if resp.status == http.StatusNotFound && bodyErrorCode(resp.body) == restNoRoute {
		c.logger.Debug("rest route missing, retrying legacy form", "path", req.path)
		return c.sendOnce(ctx, req, c.fallbackURL(req))
	}

	return resp, nil
}

// primaryURL builds the canonical form: {base}{path}?{query}.
func (c *Client) primaryURL(req request) string {
	u := c.baseURL + req.path
	if q := c.requestQuery(req); len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// fallbackURL builds the legacy form: {base}/?rest_route={path minus
// /wp-json}&{query}.
func (c *Client) fallbackURL(req request) string {
	route := strings.TrimPrefix(req.path, wpJSONPrefix)
	q := c.requestQuery(req)
	q.Set("rest_route", route)
	return c.baseURL + "/?" + q.Encode()
}

// requestQuery copies the caller's query parameters and, for storefront
// paths, appends the configured consumer key/secret. The copy keeps the
// fallback attempt from mutating the caller's values.
func (c *Client) requestQuery(req request) url.Values {
	q := url.Values{}
	for k, vs := range req.query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	if isStorefrontPath(req.path) && c.consumerKey != "" && c.consumerSecret != "" {
		q.Set("consumer_key", c.consumerKey)
		q.Set("consumer_secret", c.consumerSecret)
	}
	return q
}

// sendOnce performs a single HTTP attempt against rawURL, syncing the cookie
// jar from the result.
func (c *Client) sendOnce(ctx context.Context, req request, rawURL string) (*response, error) {
	var bodyReader io.Reader
	if req.body != nil {
		bodyReader = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, rawURL, bodyReader)
	if err != nil {
		return nil, networkError(req.path, err)
	}

	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	if err := c.applyCookies(ctx, httpReq); err != nil {
		return nil, err
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, networkError(req.path, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, networkError(req.path, err)
	}

	if err := c.syncCookies(ctx, httpResp); err != nil {
		return nil, err
	}

	return &response{
		status: httpResp.StatusCode,
		header: httpResp.Header,
		body:   respBody,
	}, nil
}

// bodyErrorCode extracts the "code" field from a JSON error body, or "".
func bodyErrorCode(body []byte) string {
	var eb struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	return eb.Code
}

// ok reports whether status is a 2xx.
func (r *response) ok() bool {
	return r.status >= 200 && r.status < 300
}
