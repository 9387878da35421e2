package wpauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"

	"github.com/harborperks/membersdk/internal/store"
	"github.com/harborperks/membersdk/pkg/secrets"
)

// Session is the persisted envelope every feature collaborator reads. The
// token, if present, is never a URL or a one-time login link; those are
// consumed at login time and converted or discarded.
type Session struct {
	Token        string
	RefreshToken string
	RestNonce    string
	User         *User
	Locked       bool
}

// expiryBuffer makes the preemptive refresh fire slightly before the server
// would reject the token.
const expiryBuffer = 30 * time.Second

// CurrentSession assembles the session envelope from persisted storage.
// An absent token yields a session with empty Token, not an error.
func (c *Client) CurrentSession(ctx context.Context) (*Session, error) {
	sess := &Session{}

	var err error
	if sess.Token, err = c.storedString(ctx, store.KeyToken); err != nil {
		return nil, err
	}
	if sess.RefreshToken, err = c.storedString(ctx, store.KeyRefreshToken); err != nil {
		return nil, err
	}
	if sess.RestNonce, err = c.storedString(ctx, store.KeyRestNonce); err != nil {
		return nil, err
	}

	locked, err := c.storedString(ctx, store.KeySessionLocked)
	if err != nil {
		return nil, err
	}
	sess.Locked = locked == "1"

	rawUser, err := c.storedString(ctx, store.KeyUser)
	if err != nil {
		return nil, err
	}
	if rawUser != "" {
		var u User
		if err := json.Unmarshal([]byte(rawUser), &u); err == nil {
			sess.User = &u
		}
	}

	return sess, nil
}

// storedString reads a key, mapping absence to "".
func (c *Client) storedString(ctx context.Context, k string) (string, error) {
	v, err := c.store.Get(ctx, k)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	return v, err
}

// SetLocked engages or releases the device-level session lock. While locked,
// automatic re-validation (preemptive refresh, silent reauth) is suppressed.
func (c *Client) SetLocked(ctx context.Context, locked bool) error {
	if locked {
		return c.store.Set(ctx, store.KeySessionLocked, "1")
	}
	return c.store.Delete(ctx, store.KeySessionLocked)
}

// PasswordAuthenticated reports whether this device has completed a password
// login since the last logout.
func (c *Client) PasswordAuthenticated(ctx context.Context) (bool, error) {
	v, err := c.storedString(ctx, store.KeyPasswordAuth)
	return v == "1", err
}

// DeviceID returns the stable per-install identifier, generating and
// persisting a ULID on first use.
func (c *Client) DeviceID(ctx context.Context) (string, error) {
	id, err := c.storedString(ctx, store.KeyDeviceID)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}

	id = ulid.Make().String()
	if err := c.store.Set(ctx, store.KeyDeviceID, id); err != nil {
		return "", err
	}
	return id, nil
}

// ============================================================================
// Token validity
// ============================================================================

// EnsureValidToken returns a bearer token ready to attach to a request,
// preemptively refreshing when the persisted expiry timestamp has passed.
// While the session is locked the stored token is returned as-is; the lock
// takes precedence over re-validation.
func (c *Client) EnsureValidToken(ctx context.Context) (string, error) {
	token, err := c.storedString(ctx, store.KeyToken)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrTokenUnavailable
	}

	locked, err := c.storedString(ctx, store.KeySessionLocked)
	if err != nil {
		return "", err
	}
	if locked == "1" {
		return token, nil
	}

	expired, err := c.tokenExpired(ctx)
	if err != nil {
		return "", err
	}
	if !expired {
		return token, nil
	}

	// Guaranteed round-trip failure otherwise; refresh (and reauth on
	// failure) before attempting the call.
	return c.recoverSession(ctx)
}

// tokenExpired checks the persisted expiry timestamp. A missing timestamp
// means the token never preemptively refreshes; recovery then happens on the
// first 401.
func (c *Client) tokenExpired(ctx context.Context) (bool, error) {
	raw, err := c.storedString(ctx, store.KeyTokenExpiry)
	if err != nil || raw == "" {
		return false, err
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, nil
	}
	return time.Now().After(time.Unix(secs, 0)), nil
}

// persistToken stores a normalized token plus its expiry timestamp. expiresIn
// of 0 falls back to the exp claim for JWT-shaped tokens.
func (c *Client) persistToken(ctx context.Context, token string, expiresIn int64) error {
	if err := c.store.Set(ctx, store.KeyToken, token); err != nil {
		return err
	}

	var expiry time.Time
	if expiresIn > 0 {
		expiry = time.Now().Add(time.Duration(expiresIn) * time.Second)
	} else {
		expiry = jwtExpiry(token)
	}

	if expiry.IsZero() {
		return c.store.Delete(ctx, store.KeyTokenExpiry)
	}
	expiry = expiry.Add(-expiryBuffer)
	return c.store.Set(ctx, store.KeyTokenExpiry, strconv.FormatInt(expiry.Unix(), 10))
}

// jwtExpiry extracts the exp claim from a JWT-shaped token without verifying
// the signature. Opaque tokens yield the zero time.
func jwtExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// persistUser serializes the canonical user record.
func (c *Client) persistUser(ctx context.Context, u *User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, store.KeyUser, string(data))
}

// ============================================================================
// Refresh / Reauth Orchestrator
// ============================================================================

// refreshFlight is the shared result of an in-flight refresh/reauth attempt.
type refreshFlight struct {
	done  chan struct{}
	token string
	err   error
}

// recoverSession runs the refresh-then-reauth state machine and returns the
// new bearer token. Concurrent callers share a single in-flight attempt
// rather than each starting their own refresh; whichever caller arrives first
// does the work, the rest wait on its outcome.
func (c *Client) recoverSession(ctx context.Context) (string, error) {
	c.sfMu.Lock()
	if f := c.inflight; f != nil {
		c.sfMu.Unlock()
		select {
		case <-f.done:
			return f.token, f.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	f := &refreshFlight{done: make(chan struct{})}
	c.inflight = f
	c.sfMu.Unlock()

	f.token, f.err = c.refreshOrReauth(ctx)

	c.sfMu.Lock()
	c.inflight = nil
	c.sfMu.Unlock()
	close(f.done)

	return f.token, f.err
}

// refreshOrReauth makes exactly one refresh attempt and, on failure, exactly
// one reauth attempt when a remembered credential pair exists. Anything less
// clears the session. Failures are never retried in a loop: a permanently
// invalid token must not recurse.
func (c *Client) refreshOrReauth(ctx context.Context) (string, error) {
	if !c.refreshLim.Allow() {
		return "", newAPIError(ErrorCodeTokenExpired,
			"too many session refresh attempts, try again shortly", 0, pathRefresh)
	}

	token, err := c.refreshAccessToken(ctx)
	if err == nil {
		return token, nil
	}
	c.logger.Info("token refresh failed, considering reauth", "error", err)

	email, password, ok := c.rememberedCredentials(ctx)
	if !ok {
		if clearErr := c.clearSession(ctx); clearErr != nil {
			return "", clearErr
		}
		return "", ErrReauthFailed
	}

	sess, err := c.LoginWithPassword(ctx, email, password, LoginOptions{Remember: true})
	if err != nil {
		if clearErr := c.clearSession(ctx); clearErr != nil {
			return "", clearErr
		}
		return "", ErrReauthFailed
	}
	return sess.Token, nil
}

// refreshAccessToken calls the refresh endpoint with the current, possibly
// expired, bearer token.
func (c *Client) refreshAccessToken(ctx context.Context) (string, error) {
	current, err := c.storedString(ctx, store.KeyToken)
	if err != nil {
		return "", err
	}
	if current == "" {
		return "", ErrTokenUnavailable
	}

	refresh, err := c.storedString(ctx, store.KeyRefreshToken)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	if refresh != "" {
		form.Set("refresh_token", refresh)
	}

	resp, err := c.send(ctx, request{
		method:      http.MethodPost,
		path:        pathRefresh,
		body:        []byte(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
		headers:     map[string]string{"Authorization": "Bearer " + current},
	})
	if err != nil {
		return "", err
	}
	if !resp.ok() {
		return "", parseErrorResponse(resp.status, resp.body, pathRefresh, ErrorCodeTokenExpired)
	}

	var body struct {
		OK        bool   `json:"ok"`
		Success   bool   `json:"success"`
		Token     string `json:"token"`
		Refresh   string `json:"refresh_token"`
		ExpiresIn int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(resp.body, &body); err != nil {
		return "", newAPIError(ErrorCodeInvalidResponse,
			"refresh payload is not valid JSON", resp.status, pathRefresh)
	}
	if !body.OK && !body.Success {
		return "", newAPIError(ErrorCodeTokenExpired, "refresh rejected", resp.status, pathRefresh)
	}

	token, ok := NormalizeToken(body.Token)
	if !ok {
		return "", newAPIError(ErrorCodeInvalidResponse,
			"refresh returned no usable token", resp.status, pathRefresh)
	}

	if err := c.persistToken(ctx, token, body.ExpiresIn); err != nil {
		return "", err
	}
	if body.Refresh != "" {
		if err := c.store.Set(ctx, store.KeyRefreshToken, body.Refresh); err != nil {
			return "", err
		}
	}

	c.logger.Debug("access token refreshed")
	return token, nil
}

// rememberedCredentials pulls the opted-in credential pair from the vault.
func (c *Client) rememberedCredentials(ctx context.Context) (email, password string, ok bool) {
	if c.vault == nil {
		return "", "", false
	}
	email, err := c.vault.GetSecret(ctx, secrets.KeyRememberedEmail)
	if err != nil {
		return "", "", false
	}
	password, err = c.vault.GetSecret(ctx, secrets.KeyRememberedPassword)
	if err != nil {
		return "", "", false
	}
	return email, password, email != "" && password != ""
}

// clearSession removes every persisted session field and drops the cookie
// jar and WooCommerce header caches. The remembered credential pair and the
// device ID survive; Logout with forget=true removes the pair too.
func (c *Client) clearSession(ctx context.Context) error {
	keys := []string{
		store.KeyToken,
		store.KeyRefreshToken,
		store.KeyTokenExpiry,
		store.KeyRestNonce,
		store.KeyUser,
		store.KeySessionLocked,
		store.KeyPasswordAuth,
		store.KeyTokenLoginURL,
		store.KeyCookieHeader,
		store.KeyWooAuthHeader,
	}
	for _, k := range keys {
		if err := c.store.Delete(ctx, k); err != nil {
			return err
		}
	}

	c.ResetJar()

	c.wooMu.Lock()
	c.wooHeader = ""
	c.wooLoaded = false
	c.wooMu.Unlock()

	return nil
}

// ============================================================================
// Authenticated requests
// ============================================================================

// doAuthorized is the request path every authenticated feature collaborator
// goes through. It attaches a validated bearer token (refreshing
// preemptively when the persisted expiry has passed), and on a 401/403 runs
// the recovery state machine once and replays the original call once with
// the new token.
func (c *Client) doAuthorized(ctx context.Context, req request) (*response, error) {
	token, err := c.EnsureValidToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.sendWithToken(ctx, req, token)
	if err != nil {
		return nil, err
	}

	if resp.status != http.StatusUnauthorized && resp.status != http.StatusForbidden {
		return resp, nil
	}

	locked, lockErr := c.storedString(ctx, store.KeySessionLocked)
	if lockErr != nil {
		return nil, lockErr
	}
	if locked == "1" {
		return nil, ErrSessionLocked
	}

	token, err = c.recoverSession(ctx)
	if err != nil {
		return nil, err
	}

	return c.sendWithToken(ctx, req, token)
}

func (c *Client) sendWithToken(ctx context.Context, req request, token string) (*response, error) {
	headers := make(map[string]string, len(req.headers)+2)
	for k, v := range req.headers {
		headers[k] = v
	}
	headers["Authorization"] = "Bearer " + token

	if nonce, err := c.storedString(ctx, store.KeyRestNonce); err == nil && nonce != "" {
		headers["X-WP-Nonce"] = nonce
	}

	authedReq := req
	authedReq.headers = headers
	return c.send(ctx, authedReq)
}

// doStorefront targets the WooCommerce namespace: bearer auth when a session
// token exists, falling back to the cached Basic-Auth header when the token
// is unavailable or rejected.
func (c *Client) doStorefront(ctx context.Context, req request) (*response, error) {
	token, err := c.EnsureValidToken(ctx)
	if err == nil {
		resp, sendErr := c.sendWithToken(ctx, req, token)
		if sendErr != nil {
			return nil, sendErr
		}
		if resp.status != http.StatusUnauthorized && resp.status != http.StatusForbidden {
			return resp, nil
		}
		// Bearer rejected by the storefront; fall through to Basic auth
	} else if !errors.Is(err, ErrTokenUnavailable) {
		return nil, err
	}

	header, err := c.wooAuthHeader(ctx)
	if err != nil {
		return nil, err
	}
	if header == "" {
		return nil, ErrTokenUnavailable
	}

	basicReq := req
	basicReq.headers = make(map[string]string, len(req.headers)+1)
	for k, v := range req.headers {
		basicReq.headers[k] = v
	}
	basicReq.headers["Authorization"] = header
	return c.send(ctx, basicReq)
}
