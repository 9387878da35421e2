package wpauth

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/harborperks/membersdk/internal/store"
)

// WooCredentials is the consumer-key/secret bundle for the storefront REST
// namespace, with its ready-to-send Basic-Auth header form.
type WooCredentials struct {
	ConsumerKey     string
	ConsumerSecret  string
	BasicAuthHeader string
}

// DeriveWooCredentials builds a credential bundle from raw key/secret strings
// and an optional pre-built Basic-Auth header supplied by the backend. It
// returns nil when either credential is blank. A missing header is derived as
// "Basic " + base64(key:secret); a supplied header missing the "Basic "
// prefix is normalized by prefixing it.
func DeriveWooCredentials(key, secret, suppliedHeader string) *WooCredentials {
	key = strings.TrimSpace(key)
	secret = strings.TrimSpace(secret)
	if key == "" || secret == "" {
		return nil
	}

	header := strings.TrimSpace(suppliedHeader)
	switch {
	case header == "":
		header = "Basic " + base64.StdEncoding.EncodeToString([]byte(key+":"+secret))
	case !strings.HasPrefix(header, "Basic "):
		header = "Basic " + header
	}

	return &WooCredentials{
		ConsumerKey:     key,
		ConsumerSecret:  secret,
		BasicAuthHeader: header,
	}
}

// cacheWooHeader persists the derived Basic-Auth header alongside the session
// so later requests don't re-encode it.
func (c *Client) cacheWooHeader(ctx context.Context, creds *WooCredentials) error {
	c.wooMu.Lock()
	defer c.wooMu.Unlock()

	if creds == nil {
		c.wooHeader = ""
		c.wooLoaded = true
		return c.store.Delete(ctx, store.KeyWooAuthHeader)
	}

	c.wooHeader = creds.BasicAuthHeader
	c.wooLoaded = true
	return c.store.Set(ctx, store.KeyWooAuthHeader, creds.BasicAuthHeader)
}

// wooAuthHeader returns the cached storefront Basic-Auth header, hydrating
// from persisted storage on first use. Empty when storefront credentials are
// not configured.
func (c *Client) wooAuthHeader(ctx context.Context) (string, error) {
	c.wooMu.Lock()
	defer c.wooMu.Unlock()

	if !c.wooLoaded {
		header, err := c.store.Get(ctx, store.KeyWooAuthHeader)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return "", err
		}
		if errors.Is(err, store.ErrNotFound) {
			// Fall back to deriving from configured credentials
			if creds := DeriveWooCredentials(c.consumerKey, c.consumerSecret, ""); creds != nil {
				header = creds.BasicAuthHeader
			}
		}
		c.wooHeader = header
		c.wooLoaded = true
	}

	return c.wooHeader, nil
}
