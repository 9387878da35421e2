package wpauth

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/harborperks/membersdk/internal/store"
	"github.com/harborperks/membersdk/pkg/secrets"
)

// Canonical REST paths. Every request is attempted against its /wp-json form
// first and retried on the legacy ?rest_route= form when the server reports
// the route missing (see routes.go).
const (
	pathLogin                  = "/wp-json/harborperks/v1/login"
	pathLogout                 = "/wp-json/harborperks/v1/logout"
	pathRefresh                = "/wp-json/harborperks/v1/token/refresh"
	pathProfile                = "/wp-json/wp/v2/users/me"
	pathAvatar                 = "/wp-json/harborperks/v1/profile/avatar"
	pathChangePassword         = "/wp-json/harborperks/v1/profile/password"
	pathChangePasswordFallback = "/wp-json/harborperks/v1/account/password"
	pathPasswordResetRequest   = "/wp-json/harborperks/v1/password/reset-request"
	pathPasswordReset          = "/wp-json/harborperks/v1/password/reset"
	pathRegister               = "/wp-json/harborperks/v1/register"
	pathQRIssue                = "/wp-json/harborperks/v1/member/qr"
	pathQRValidate             = "/wp-json/harborperks/v1/member/qr/validate"
	pathDiscounts              = "/wp-json/harborperks/v1/discounts"
	pathVendorTiers            = "/wp-json/harborperks/v1/vendor/tiers"

	// Storefront (WooCommerce) namespace; requests under this prefix get
	// consumer key/secret query parameters and Basic-Auth fallback.
	storefrontPrefix = "/wp-json/wc/"
	pathWooOrders    = "/wp-json/wc/v3/orders"
	pathWooCustomers = "/wp-json/wc/v3/customers"
)

// wpJSONPrefix is stripped from canonical paths to build the legacy
// ?rest_route= form.
const wpJSONPrefix = "/wp-json"

// Config carries everything needed to construct a Client.
type Config struct {
	// BaseURL is the site root, e.g. "https://market.example.com".
	BaseURL string

	// ConsumerKey / ConsumerSecret authenticate against the storefront
	// REST namespace. Leave blank to disable storefront calls.
	ConsumerKey    string
	ConsumerSecret string

	// HTTPClient overrides the default transport (10s timeout).
	HTTPClient *http.Client

	// Logger receives structured request/state logs. Defaults to
	// slog.Default().
	Logger *slog.Logger

	// DiscountRate computes a best-effort member discount fraction
	// locally when the remote lookup fails. Optional.
	DiscountRate func(memberTier, vendorTier string) float64
}

// Client is the session-manager object owning the in-memory caches that
// mirror persisted storage (cookie jar, WooCommerce header, token expiry)
// and the refresh/reauth orchestration. Construct one per process and pass
// it by reference to every collaborator; there is no package-level state.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	store store.Store
	vault secrets.Vault // nil disables remember-me and silent reauth

	consumerKey    string
	consumerSecret string
	discountRate   func(memberTier, vendorTier string) float64

	// Cookie jar cache, hydrated lazily from the store (see cookiejar.go).
	jarMu     sync.Mutex
	jar       map[string]string
	jarOrder  []string
	jarLoaded bool

	// WooCommerce Basic-Auth header cache (see woo.go).
	wooMu     sync.Mutex
	wooHeader string
	wooLoaded bool

	// Refresh/reauth single-flight guard (see session.go).
	sfMu       sync.Mutex
	inflight   *refreshFlight
	refreshLim *rate.Limiter
}

// New constructs a Client around the given persisted store and secret vault.
// vault may be nil, which disables the remembered-credential capability.
func New(cfg Config, st store.Store, vault secrets.Vault) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:        strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient:     httpClient,
		logger:         logger,
		store:          st,
		vault:          vault,
		consumerKey:    cfg.ConsumerKey,
		consumerSecret: cfg.ConsumerSecret,
		discountRate:   cfg.DiscountRate,
		jar:            make(map[string]string),
		// One refresh attempt per 10s steady-state with a small burst:
		// enough for legitimate expiry, a brake on refresh storms against
		// a backend that keeps answering 401.
		refreshLim: rate.NewLimiter(rate.Every(10*time.Second), 3),
	}
}

// BaseURL returns the configured site root.
func (c *Client) BaseURL() string { return c.baseURL }

// isStorefrontPath reports whether path targets the WooCommerce namespace.
func isStorefrontPath(path string) bool {
	return strings.HasPrefix(path, storefrontPrefix)
}
