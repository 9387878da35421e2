package wpauth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/harborperks/membersdk/internal/store"
)

// cookiePrefixes are the cookie-name prefixes mirrored into the jar. The
// request layer has no native cookie store wired in, so WordPress session
// cookies are replayed by hand; everything else is ignored.
var cookiePrefixes = []string{
	"wordpress_",
	"wp-",
	"wp_",
	"woocommerce_",
}

// hydrateJar loads the persisted merged cookie header into the in-memory jar
// on first use. Callers must hold jarMu.
func (c *Client) hydrateJar(ctx context.Context) error {
	if c.jarLoaded {
		return nil
	}

	header, err := c.store.Get(ctx, store.KeyCookieHeader)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	c.jar = make(map[string]string)
	c.jarOrder = c.jarOrder[:0]
	for _, pair := range strings.Split(header, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || name == "" {
			continue
		}
		if _, exists := c.jar[name]; !exists {
			c.jarOrder = append(c.jarOrder, name)
		}
		c.jar[name] = value
	}

	c.jarLoaded = true
	return nil
}

// cookieHeader serializes the jar to one Cookie header value, preserving
// insertion order. Callers must hold jarMu.
func (c *Client) cookieHeader() string {
	if len(c.jarOrder) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(c.jarOrder))
	for _, name := range c.jarOrder {
		pairs = append(pairs, name+"="+c.jar[name])
	}
	return strings.Join(pairs, "; ")
}

// applyCookies attaches the persisted merged cookie header to req unless the
// caller already supplied one.
func (c *Client) applyCookies(ctx context.Context, req *http.Request) error {
	if req.Header.Get("Cookie") != "" {
		return nil
	}

	c.jarMu.Lock()
	defer c.jarMu.Unlock()

	if err := c.hydrateJar(ctx); err != nil {
		return err
	}
	if header := c.cookieHeader(); header != "" {
		req.Header.Set("Cookie", header)
	}
	return nil
}

// syncCookies merges recognized Set-Cookie values from resp into the jar and
// writes the merged header through to the store, but only when at least one
// entry actually changed.
func (c *Client) syncCookies(ctx context.Context, resp *http.Response) error {
	setCookies := resp.Header.Values("Set-Cookie")
	if len(setCookies) == 0 {
		return nil
	}

	c.jarMu.Lock()
	defer c.jarMu.Unlock()

	if err := c.hydrateJar(ctx); err != nil {
		return err
	}

	changed := false
	for _, sc := range setCookies {
		name, value, ok := parseSetCookie(sc)
		if !ok || !recognizedCookie(name) {
			continue
		}

		if value == "" || strings.EqualFold(value, "deleted") {
			if _, exists := c.jar[name]; exists {
				delete(c.jar, name)
				c.jarOrder = removeString(c.jarOrder, name)
				changed = true
			}
			continue
		}

		if current, exists := c.jar[name]; !exists || current != value {
			if !exists {
				c.jarOrder = append(c.jarOrder, name)
			}
			c.jar[name] = value
			changed = true
		}
	}

	if !changed {
		return nil
	}

	header := c.cookieHeader()
	if header == "" {
		return c.store.Delete(ctx, store.KeyCookieHeader)
	}
	return c.store.Set(ctx, store.KeyCookieHeader, header)
}

// ResetJar drops the in-memory jar cache so the next use re-hydrates from
// persisted storage. Used by tests and by full logout.
func (c *Client) ResetJar() {
	c.jarMu.Lock()
	defer c.jarMu.Unlock()
	c.jar = make(map[string]string)
	c.jarOrder = nil
	c.jarLoaded = false
}

// parseSetCookie extracts the leading name=value pair from a Set-Cookie
// header value, ignoring attributes like Path and Expires.
func parseSetCookie(sc string) (name, value string, ok bool) {
	pair, _, _ := strings.Cut(sc, ";")
	name, value, ok = strings.Cut(strings.TrimSpace(pair), "=")
	if !ok || name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(value), true
}

func recognizedCookie(name string) bool {
	lower := strings.ToLower(name)
	for _, prefix := range cookiePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func removeString(s []string, v string) []string {
	out := s[:0]
	for _, e := range s {
		if e != v {
			out = append(out, e)
		}
	}
	return out
}
