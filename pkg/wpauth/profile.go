package wpauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

// The backend spans several plugin generations that each spell profile
// fields differently. Every logical field is resolved by an ordered list of
// extractors tried in priority order; the list documents exactly which
// spellings are covered.

// extractor pulls one candidate value out of a raw payload.
type extractor func(m map[string]any) (string, bool)

// key extracts a top-level string (or number, stringified) field.
func key(name string) extractor {
	return func(m map[string]any) (string, bool) {
		return stringValue(m[name])
	}
}

// nested extracts a field from a nested object, e.g. meta.first_name.
func nested(path ...string) extractor {
	return func(m map[string]any) (string, bool) {
		cur := m
		for _, p := range path[:len(path)-1] {
			next, ok := cur[p].(map[string]any)
			if !ok {
				return "", false
			}
			cur = next
		}
		return stringValue(cur[path[len(path)-1]])
	}
}

// firstOf runs extractors in order and returns the first hit.
func firstOf(m map[string]any, extractors ...extractor) string {
	for _, ex := range extractors {
		if v, ok := ex(m); ok {
			return v
		}
	}
	return ""
}

func stringValue(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return "", false
		}
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}

// FetchProfile requests the canonical profile endpoint with the given bearer
// token and maps the payload into a canonical User. On failure it returns a
// nil user and the HTTP status so callers can distinguish rejected
// credentials (401/403) from network unreachable (0) from other server
// errors.
func (c *Client) FetchProfile(ctx context.Context, token string) (*User, int, error) {
	resp, err := c.send(ctx, request{
		method:  http.MethodGet,
		path:    pathProfile,
		query:   map[string][]string{"context": {"edit"}},
		headers: map[string]string{"Authorization": "Bearer " + token},
	})
	if err != nil {
		return nil, 0, err
	}
	if !resp.ok() {
		return nil, resp.status, parseErrorResponse(resp.status, resp.body, pathProfile, ErrorCodeServer)
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.body, &payload); err != nil {
		return nil, resp.status, newAPIError(ErrorCodeInvalidResponse,
			"profile payload is not valid JSON", resp.status, pathProfile)
	}

	user, err := normalizeUser(payload)
	if err != nil {
		return nil, resp.status, err
	}
	return user, resp.status, nil
}

// normalizeUser maps a raw profile payload onto the canonical User record.
func normalizeUser(m map[string]any) (*User, error) {
	rawID := firstOf(m, key("id"), key("ID"))
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return nil, newAPIError(ErrorCodeInvalidResponse,
			fmt.Sprintf("profile payload has no usable id (got %q)", rawID), 0, pathProfile)
	}

	email := firstOf(m, key("email"), key("user_email"), nested("data", "user_email"))

	user := &User{
		ID:    id,
		Email: email,
		DisplayName: firstOf(m,
			key("name"),
			key("user_display_name"),
			key("display_name"),
			key("username"),
			key("user_login"),
			func(map[string]any) (string, bool) { return stringValue(email) },
		),
		FirstName: firstOf(m,
			key("first_name"),
			key("firstName"),
			nested("meta", "first_name"),
			nested("acf", "first_name"),
		),
		LastName: firstOf(m,
			key("last_name"),
			key("lastName"),
			nested("meta", "last_name"),
			nested("acf", "last_name"),
		),
		AvatarURL:  normalizeAvatarURL(m["avatar_urls"]),
		Membership: normalizeMembership(m),
		AccountType: normalizeAccountType(firstOf(m,
			key("account_type"),
			key("role"),
			key("user_role"),
			nested("meta", "account_type"),
		)),
		AccountStatus: normalizeStatus(firstOf(m,
			key("account_status"),
			key("status"),
			nested("meta", "account_status"),
		)),
		VendorTier: firstOf(m,
			key("vendor_tier"),
			nested("vendor", "tier"),
			nested("meta", "vendor_tier"),
		),
	}

	if rawVendorStatus := firstOf(m,
		key("vendor_status"),
		nested("vendor", "status"),
		nested("meta", "vendor_status"),
	); rawVendorStatus != "" {
		user.VendorStatus = normalizeStatus(rawVendorStatus)
	}

	return user, nil
}

// avatarSizePreference: "full" wins, then the largest pixel sizes, then any
// remaining string value.
func normalizeAvatarURL(raw any) string {
	sizes, ok := raw.(map[string]any)
	if !ok || len(sizes) == 0 {
		return ""
	}

	pick := ""
	if v, ok := stringValue(sizes["full"]); ok {
		pick = v
	}

	if pick == "" {
		numeric := make([]int, 0, len(sizes))
		for k := range sizes {
			if n, err := strconv.Atoi(k); err == nil {
				numeric = append(numeric, n)
			}
		}
		sort.Sort(sort.Reverse(sort.IntSlice(numeric)))
		for _, n := range numeric {
			if v, ok := stringValue(sizes[strconv.Itoa(n)]); ok {
				pick = v
				break
			}
		}
	}

	if pick == "" {
		// Deterministic: smallest key wins among the leftovers
		keys := make([]string, 0, len(sizes))
		for k := range sizes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if v, ok := stringValue(sizes[k]); ok {
				pick = v
				break
			}
		}
	}

	if pick == "" {
		return ""
	}
	return cacheBust(pick, time.Now())
}

// cacheBust appends a v= query parameter so UI image caches refetch after
// avatar mutations.
func cacheBust(rawURL string, now time.Time) string {
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + "v=" + strconv.FormatInt(now.Unix(), 10)
}

func normalizeMembership(m map[string]any) *Membership {
	tier := firstOf(m,
		key("membership_tier"),
		nested("membership", "tier"),
		nested("membership", "level"),
		nested("meta", "membership_tier"),
	)
	if tier == "" {
		return nil
	}

	membership := &Membership{Tier: tier}

	if rawExpiry := firstOf(m,
		nested("membership", "expires_at"),
		nested("membership", "expiry"),
		key("membership_expires"),
	); rawExpiry != "" {
		membership.ExpiresAt = parseExpiry(rawExpiry)
	}

	if rawBenefits, ok := benefitsList(m); ok {
		membership.Benefits = rawBenefits
	}

	return membership
}

func benefitsList(m map[string]any) ([]string, bool) {
	var raw any
	if mm, ok := m["membership"].(map[string]any); ok {
		raw = mm["benefits"]
	}
	if raw == nil {
		raw = m["membership_benefits"]
	}

	list, ok := raw.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := stringValue(item); ok {
			out = append(out, s)
		}
	}
	return out, len(out) > 0
}

// parseExpiry accepts RFC 3339, bare dates, and unix-second timestamps.
func parseExpiry(raw string) time.Time {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).UTC()
	}
	return time.Time{}
}

func normalizeAccountType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "administrator", "admin":
		return AccountTypeAdmin
	case "vendor", "seller", "shop_vendor":
		return AccountTypeVendor
	default:
		return AccountTypeMember
	}
}

func normalizeStatus(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending", "awaiting_approval", "review":
		return StatusPending
	case "suspended", "banned", "blocked", "inactive":
		return StatusSuspended
	default:
		return StatusActive
	}
}
