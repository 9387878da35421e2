package wpauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Order is one storefront order, reduced to the fields the membership flows
// need.
type Order struct {
	ID        int64       `json:"id"`
	Status    string      `json:"status"`
	Total     string      `json:"total"`
	CreatedAt time.Time   `json:"date_created"`
	LineItems []OrderItem `json:"line_items"`
}

type OrderItem struct {
	Name     string `json:"name"`
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// MemberOrders lists the signed-in member's storefront orders, newest first.
// The storefront is reached with bearer auth when a session exists, falling
// back to the consumer-credential Basic header otherwise.
func (c *Client) MemberOrders(ctx context.Context) ([]Order, error) {
	sess, err := c.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	if sess.User == nil {
		return nil, ErrTokenUnavailable
	}

	q := url.Values{}
	q.Set("customer", strconv.FormatInt(sess.User.ID, 10))
	q.Set("orderby", "date")
	q.Set("order", "desc")

	resp, err := c.doStorefront(ctx, request{
		method: http.MethodGet,
		path:   pathWooOrders,
		query:  q,
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, parseErrorResponse(resp.status, resp.body, pathWooOrders, ErrorCodePaymentFailed)
	}

	var orders []Order
	if err := json.Unmarshal(resp.body, &orders); err != nil {
		return nil, newAPIError(ErrorCodeInvalidResponse,
			"order list payload is not valid JSON", resp.status, pathWooOrders)
	}
	return orders, nil
}

// PurchaseMembership creates a paid storefront order for the given membership
// tier SKU, then refetches the profile so the persisted user record picks up
// the new tier.
func (c *Client) PurchaseMembership(ctx context.Context, tierSKU string) (*User, error) {
	sess, err := c.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	if sess.User == nil {
		return nil, ErrTokenUnavailable
	}

	body, err := json.Marshal(map[string]any{
		"customer_id":    sess.User.ID,
		"payment_method": "membership_signup",
		"set_paid":       true,
		"line_items":     []orderLineItem{{SKU: tierSKU, Quantity: 1}},
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.doStorefront(ctx, request{
		method:      http.MethodPost,
		path:        pathWooOrders,
		body:        body,
		contentType: "application/json",
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, parseErrorResponse(resp.status, resp.body, pathWooOrders, ErrorCodePaymentFailed)
	}

	return c.RefreshProfile(ctx)
}

// StorefrontCustomer fetches the member's storefront customer record, mostly
// for billing details the profile endpoint does not expose.
func (c *Client) StorefrontCustomer(ctx context.Context) (map[string]any, error) {
	sess, err := c.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	if sess.User == nil {
		return nil, ErrTokenUnavailable
	}

	resp, err := c.doStorefront(ctx, request{
		method: http.MethodGet,
		path:   pathWooCustomers + "/" + strconv.FormatInt(sess.User.ID, 10),
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, parseErrorResponse(resp.status, resp.body, pathWooCustomers, ErrorCodeServer)
	}

	var customer map[string]any
	if err := json.Unmarshal(resp.body, &customer); err != nil {
		return nil, newAPIError(ErrorCodeInvalidResponse,
			"customer payload is not valid JSON", resp.status, pathWooCustomers)
	}
	return customer, nil
}
