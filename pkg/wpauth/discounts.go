package wpauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
)

// LookupDiscount asks the backend for the member's discount at a vendor.
// When the remote lookup fails and a local rate table is configured, a
// best-effort quote is computed locally and flagged Local; the caller shows
// it, but any transaction recorded from it is marked failed with the
// propagated error (see RecordTransaction).
func (c *Client) LookupDiscount(ctx context.Context, scope DiscountScope, vendorID int64, amount float64) (*DiscountQuote, error) {
	q := url.Values{}
	q.Set("scope", string(scope))
	q.Set("vendor_id", strconv.FormatInt(vendorID, 10))
	q.Set("amount", strconv.FormatFloat(amount, 'f', 2, 64))

	resp, err := c.doAuthorized(ctx, request{
		method: http.MethodGet,
		path:   pathDiscounts,
		query:  q,
	})
	if err == nil && resp.ok() {
		var quote DiscountQuote
		if jsonErr := json.Unmarshal(resp.body, &quote); jsonErr == nil {
			return &quote, nil
		}
		err = newAPIError(ErrorCodeInvalidResponse,
			"discount payload is not valid JSON", resp.status, pathDiscounts)
	} else if err == nil {
		err = parseErrorResponse(resp.status, resp.body, pathDiscounts, ErrorCodeDiscountUnavailable)
	}

	// Session-level failures are not papered over with a local guess
	if errors.Is(err, ErrTokenUnavailable) || errors.Is(err, ErrSessionLocked) || errors.Is(err, ErrReauthFailed) {
		return nil, err
	}

	quote := c.localQuote(ctx, vendorID, amount)
	if quote == nil {
		return nil, err
	}
	c.logger.Warn("remote discount lookup failed, using local rate", "error", err)
	return quote, err
}

// localQuote computes the optimistic local discount when a rate table was
// configured. Returns nil when no local computation is possible.
func (c *Client) localQuote(ctx context.Context, vendorID int64, amount float64) *DiscountQuote {
	if c.discountRate == nil {
		return nil
	}

	sess, err := c.CurrentSession(ctx)
	if err != nil || sess.User == nil || sess.User.Membership == nil {
		return nil
	}

	rate := c.discountRate(sess.User.Membership.Tier, sess.User.VendorTier)
	if rate <= 0 {
		return nil
	}

	return &DiscountQuote{
		VendorID:   vendorID,
		Rate:       rate,
		Amount:     amount,
		Discounted: amount * (1 - rate),
		Local:      true,
	}
}

// RecordTransaction records a discount redemption. Quotes computed locally
// (after a failed remote lookup) produce a record marked failed carrying the
// failure code, so reconciliation can find them later.
func (c *Client) RecordTransaction(ctx context.Context, quote *DiscountQuote, lookupErr error) (*TransactionRecord, error) {
	sess, err := c.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	if sess.User == nil {
		return nil, ErrTokenUnavailable
	}

	record := &TransactionRecord{
		ID:        ulid.Make().String(),
		VendorID:  quote.VendorID,
		MemberID:  sess.User.ID,
		Amount:    quote.Amount,
		Rate:      quote.Rate,
		CreatedAt: time.Now().UTC(),
	}
	if quote.Local {
		record.Failed = true
		record.FailCode = ErrorCodeDiscountUnavailable
		var apiErr *APIError
		if errors.As(lookupErr, &apiErr) {
			record.FailCode = apiErr.Code
		}
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}

	resp, err := c.doAuthorized(ctx, request{
		method:      http.MethodPost,
		path:        pathDiscounts,
		body:        data,
		contentType: "application/json",
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, parseErrorResponse(resp.status, resp.body, pathDiscounts, ErrorCodeTransactionFailed)
	}

	return record, nil
}

// TransactionHistory lists recorded redemptions for the member or, with
// ScopeVendor, for the vendor's storefront.
func (c *Client) TransactionHistory(ctx context.Context, scope DiscountScope) ([]TransactionRecord, error) {
	q := url.Values{}
	q.Set("scope", string(scope))

	resp, err := c.doAuthorized(ctx, request{
		method: http.MethodGet,
		path:   pathDiscounts,
		query:  q,
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, parseErrorResponse(resp.status, resp.body, pathDiscounts, ErrorCodeTransactionFailed)
	}

	var body struct {
		Transactions []TransactionRecord `json:"transactions"`
	}
	if err := json.Unmarshal(resp.body, &body); err != nil {
		return nil, newAPIError(ErrorCodeInvalidResponse,
			"transaction history payload is not valid JSON", resp.status, pathDiscounts)
	}
	return body.Transactions, nil
}

// VendorTiers fetches the vendor-tier catalog. No session is required; the
// catalog backs the public vendor signup screen.
func (c *Client) VendorTiers(ctx context.Context) ([]VendorTier, error) {
	resp, err := c.send(ctx, request{
		method: http.MethodGet,
		path:   pathVendorTiers,
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, parseErrorResponse(resp.status, resp.body, pathVendorTiers, ErrorCodeVendorCatalog)
	}

	var body struct {
		Tiers []VendorTier `json:"tiers"`
	}
	if err := json.Unmarshal(resp.body, &body); err != nil {
		return nil, newAPIError(ErrorCodeInvalidResponse,
			"vendor tier payload is not valid JSON", resp.status, pathVendorTiers)
	}
	return body.Tiers, nil
}
