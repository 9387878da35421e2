package wpauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/harborperks/membersdk/internal/store"
	"github.com/harborperks/membersdk/pkg/secrets"
)

// LoginWithPassword posts credentials to the canonical login endpoint and
// reconciles whichever response shape the backend generation returns into
// one persisted session. Token resolution priority:
//
//  1. an explicit opaque API token (api_token)
//  2. a JWT-style token field; a URL-shaped value here is not a token and
//     is stored as a one-time token-login URL instead
//  3. a token embedded in a returned login URL
//
// With opts.Remember the credential pair is stored in the secret vault for
// silent reauthentication; otherwise any previously remembered pair is
// purged.
func (c *Client) LoginWithPassword(ctx context.Context, identifier, password string, opts LoginOptions) (*Session, error) {
	deviceID, err := c.DeviceID(ctx)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("username", identifier)
	form.Set("password", password)
	// Stable per-install identifier so the backend can tie tokens to devices
	form.Set("device_id", deviceID)

	resp, err := c.send(ctx, request{
		method:      http.MethodPost,
		path:        pathLogin,
		body:        []byte(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, parseErrorResponse(resp.status, resp.body, pathLogin, ErrorCodeInvalidCredentials)
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.body, &payload); err != nil {
		return nil, newAPIError(ErrorCodeInvalidResponse,
			"login payload is not valid JSON", resp.status, pathLogin)
	}

	token, err := c.resolveLoginToken(ctx, payload)
	if err != nil {
		return nil, err
	}

	if err := c.persistToken(ctx, token, intField(payload, "expires_in")); err != nil {
		return nil, err
	}
	if refresh := firstOf(payload, key("refresh_token")); refresh != "" {
		if err := c.store.Set(ctx, store.KeyRefreshToken, refresh); err != nil {
			return nil, err
		}
	}
	if nonce := firstOf(payload, key("rest_nonce"), key("nonce")); nonce != "" {
		if err := c.store.Set(ctx, store.KeyRestNonce, nonce); err != nil {
			return nil, err
		}
	}
	if err := c.store.Set(ctx, store.KeyPasswordAuth, "1"); err != nil {
		return nil, err
	}

	if err := c.adoptWooCredentials(ctx, payload); err != nil {
		return nil, err
	}

	user, err := c.adoptLoginUser(ctx, payload, token)
	if err != nil {
		return nil, err
	}

	if err := c.rememberOrPurge(ctx, identifier, password, opts.Remember); err != nil {
		return nil, err
	}

	c.logger.Info("login complete", "user_id", user.ID)
	return &Session{Token: token, User: user}, nil
}

// resolveLoginToken applies the token priority order to a login payload.
func (c *Client) resolveLoginToken(ctx context.Context, payload map[string]any) (string, error) {
	if raw := firstOf(payload, key("api_token")); raw != "" {
		if tok, ok := NormalizeToken(raw); ok {
			return tok, nil
		}
	}

	if raw := firstOf(payload, key("token"), key("jwt"), key("access_token")); raw != "" {
		if IsTokenLoginURL(raw) {
			// URL-shaped token field: a one-time login link, not a bearer
			// token. Keep it for a cookie-session bootstrap visit.
			if err := c.store.Set(ctx, store.KeyTokenLoginURL, raw); err != nil {
				return "", err
			}
		} else if tok, ok := NormalizeToken(raw); ok {
			return tok, nil
		}
	}

	if raw := firstOf(payload, key("login_url"), key("url")); raw != "" {
		if tok, ok := NormalizeToken(raw); ok {
			return tok, nil
		}
		if err := c.store.Set(ctx, store.KeyTokenLoginURL, raw); err != nil {
			return "", err
		}
	}

	return "", newAPIError(ErrorCodeInvalidResponse,
		"login response carried no usable token", 0, pathLogin)
}

// adoptLoginUser normalizes the inline user payload when present, otherwise
// fetches the profile endpoint with the fresh token.
func (c *Client) adoptLoginUser(ctx context.Context, payload map[string]any, token string) (*User, error) {
	if rawUser, ok := payload["user"].(map[string]any); ok {
		user, err := normalizeUser(rawUser)
		if err == nil {
			if err := c.persistUser(ctx, user); err != nil {
				return nil, err
			}
			return user, nil
		}
		// Inline user payload unusable; fall through to the profile fetch
	}

	user, _, err := c.FetchProfile(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := c.persistUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// adoptWooCredentials derives and caches the storefront bundle when the
// login payload carries consumer credentials.
func (c *Client) adoptWooCredentials(ctx context.Context, payload map[string]any) error {
	woo, ok := payload["woo"].(map[string]any)
	if !ok {
		return nil
	}
	creds := DeriveWooCredentials(
		firstOf(woo, key("consumer_key")),
		firstOf(woo, key("consumer_secret")),
		firstOf(woo, key("basic_auth")),
	)
	if creds == nil {
		return nil
	}
	return c.cacheWooHeader(ctx, creds)
}

// rememberOrPurge applies the remember-me choice to the secret vault.
func (c *Client) rememberOrPurge(ctx context.Context, email, password string, remember bool) error {
	if c.vault == nil {
		return nil
	}
	if remember {
		if err := c.vault.SetSecret(ctx, secrets.KeyRememberedEmail, email); err != nil {
			return err
		}
		return c.vault.SetSecret(ctx, secrets.KeyRememberedPassword, password)
	}
	if err := c.vault.RemoveSecret(ctx, secrets.KeyRememberedEmail); err != nil {
		return err
	}
	return c.vault.RemoveSecret(ctx, secrets.KeyRememberedPassword)
}

// intField reads a numeric JSON field as int64.
func intField(m map[string]any, name string) int64 {
	raw := firstOf(m, key(name))
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// ============================================================================
// Logout
// ============================================================================

// Logout tells the backend to drop the session (best effort) and destroys
// all persisted session state. With forget the remembered credential pair is
// removed too.
func (c *Client) Logout(ctx context.Context, forget bool) error {
	if token, err := c.storedString(ctx, store.KeyToken); err == nil && token != "" {
		// Best effort; local teardown proceeds regardless
		if _, err := c.send(ctx, request{
			method:  http.MethodPost,
			path:    pathLogout,
			headers: map[string]string{"Authorization": "Bearer " + token},
		}); err != nil {
			c.logger.Debug("server-side logout failed", "error", err)
		}
	}

	if err := c.clearSession(ctx); err != nil {
		return err
	}

	if forget && c.vault != nil {
		if err := c.vault.RemoveSecret(ctx, secrets.KeyRememberedEmail); err != nil {
			return err
		}
		if err := c.vault.RemoveSecret(ctx, secrets.KeyRememberedPassword); err != nil {
			return err
		}
	}

	c.logger.Info("logout complete")
	return nil
}

// ============================================================================
// Registration
// ============================================================================

// registrationBody is the wire payload for account registration. Member
// registrations embed a storefront order that auto-purchases the entry-tier
// membership; vendor registrations embed a pending-approval marker instead.
type registrationBody struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`

	AccountType string `json:"account_type"`

	BusinessName string `json:"business_name,omitempty"`
	Status       string `json:"status,omitempty"`

	Order    *storefrontOrder    `json:"order,omitempty"`
	Customer *storefrontCustomer `json:"customer,omitempty"`
}

type storefrontOrder struct {
	PaymentMethod string          `json:"payment_method"`
	SetPaid       bool            `json:"set_paid"`
	LineItems     []orderLineItem `json:"line_items"`
}

type orderLineItem struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

type storefrontCustomer struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// entryTierSKU is the storefront product for the auto-purchased entry-tier
// membership.
const entryTierSKU = "membership-entry"

// Register creates a new account. Member accounts are activated immediately
// with an entry-tier membership order and signed straight in; vendor
// accounts are created in pending-approval state and return a nil session
// because they cannot authenticate until approved.
func (c *Client) Register(ctx context.Context, req RegistrationRequest) (*Session, error) {
	body := registrationBody{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}

	switch req.Kind {
	case RegisterVendor:
		body.AccountType = AccountTypeVendor
		body.BusinessName = req.BusinessName
		body.Status = StatusPending
	default:
		body.AccountType = AccountTypeMember
		body.Customer = &storefrontCustomer{
			Email:     req.Email,
			FirstName: req.FirstName,
			LastName:  req.LastName,
		}
		body.Order = &storefrontOrder{
			PaymentMethod: "membership_signup",
			LineItems:     []orderLineItem{{SKU: entryTierSKU, Quantity: 1}},
		}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, request{
		method:      http.MethodPost,
		path:        pathRegister,
		body:        data,
		contentType: "application/json",
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, parseErrorResponse(resp.status, resp.body, pathRegister, ErrorCodeServer)
	}

	// Vendor accounts can't sign in until approved
	if req.Kind == RegisterVendor {
		return nil, nil
	}

	return c.LoginWithPassword(ctx, req.Email, req.Password, LoginOptions{})
}
