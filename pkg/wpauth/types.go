package wpauth

import "time"

// ============================================================================
// Canonical User Record
// ============================================================================

// Account type vocabulary. Backend payloads spell these many ways; the
// profile normalizer maps them all onto this closed set.
const (
	AccountTypeMember = "member"
	AccountTypeVendor = "vendor"
	AccountTypeAdmin  = "admin"
)

// Account / vendor status vocabulary.
const (
	StatusActive    = "active"
	StatusPending   = "pending"
	StatusSuspended = "suspended"
)

// User is the canonical identity record. It is owned by the session store
// and rebuilt from backend payloads through the profile normalizer; feature
// code never patches it field-by-field from raw input.
type User struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`

	// AvatarURL is cache-busted so UI image caches don't show stale photos.
	AvatarURL string `json:"avatar_url,omitempty"`

	Membership *Membership `json:"membership,omitempty"`

	AccountType   string `json:"account_type"`
	AccountStatus string `json:"account_status"`
	VendorTier    string `json:"vendor_tier,omitempty"`
	VendorStatus  string `json:"vendor_status,omitempty"`

	QRIdentity *QRIdentity `json:"qr_identity,omitempty"`
}

// Membership describes the user's paid membership.
type Membership struct {
	Tier      string    `json:"tier"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	Benefits  []string  `json:"benefits,omitempty"`
}

// Expired reports whether the membership expiry has passed. A zero expiry
// means the backend did not report one and the membership is treated as
// current.
func (m *Membership) Expired(now time.Time) bool {
	return !m.ExpiresAt.IsZero() && m.ExpiresAt.Before(now)
}

// QRIdentity is the member's scannable pass: an opaque payload identifying
// the member plus a shared secret for the rolling verification code.
type QRIdentity struct {
	Payload string `json:"payload"`
	Secret  string `json:"secret"`
	Period  uint   `json:"period,omitempty"` // seconds, defaults to 30
}

// ============================================================================
// Login / Registration
// ============================================================================

// LoginOptions controls LoginWithPassword behavior.
type LoginOptions struct {
	// Remember stores the credential pair in the secret vault so the
	// orchestrator can silently re-login after a failed token refresh.
	// When false, any previously remembered pair is purged.
	Remember bool
}

// RegistrationKind selects the registration payload shape.
type RegistrationKind string

const (
	// RegisterMember creates a member account with an auto-purchased
	// entry-tier membership order.
	RegisterMember RegistrationKind = "member"

	// RegisterVendor creates a vendor account awaiting admin approval.
	RegisterVendor RegistrationKind = "vendor"
)

// RegistrationRequest is the input to Register.
type RegistrationRequest struct {
	Kind      RegistrationKind
	Email     string
	Password  string
	FirstName string
	LastName  string

	// BusinessName is required for vendor registrations.
	BusinessName string
}

// ============================================================================
// Discounts / Vendor Catalog
// ============================================================================

// DiscountScope selects whose discount records an operation touches.
type DiscountScope string

const (
	ScopeMember DiscountScope = "member"
	ScopeVendor DiscountScope = "vendor"
)

// DiscountQuote is the result of a discount lookup. Local is true when the
// remote lookup failed and the rate was computed from the local table; such
// quotes are best-effort and their transaction records are marked failed.
type DiscountQuote struct {
	VendorID   int64   `json:"vendor_id"`
	Rate       float64 `json:"rate"` // fraction, e.g. 0.15
	Amount     float64 `json:"amount"`
	Discounted float64 `json:"discounted"`
	Local      bool    `json:"local,omitempty"`
}

// TransactionRecord is one recorded discount redemption.
type TransactionRecord struct {
	ID        string    `json:"id"` // ULID
	VendorID  int64     `json:"vendor_id"`
	MemberID  int64     `json:"member_id"`
	Amount    float64   `json:"amount"`
	Rate      float64   `json:"rate"`
	CreatedAt time.Time `json:"created_at"`
	Failed    bool      `json:"failed,omitempty"`
	FailCode  string    `json:"fail_code,omitempty"`
}

// VendorTier is one entry of the vendor-tier catalog.
type VendorTier struct {
	Slug         string  `json:"slug"`
	Name         string  `json:"name"`
	DiscountRate float64 `json:"discount_rate"`
	MonthlyFee   float64 `json:"monthly_fee"`
}
