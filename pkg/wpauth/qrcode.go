package wpauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/pquerna/otp/totp"
)

// QRPass is a scannable member pass: the server-issued identity payload plus
// a rolling verification code so screenshots of a pass expire on their own.
type QRPass struct {
	Payload   string    `json:"payload"`
	Code      string    `json:"code"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresIn uint      `json:"expires_in"` // seconds until the code rolls
}

// IssueQRPass obtains (or reuses) the member's QR identity from the backend
// and stamps it with the current rolling code. The shared secret is persisted
// inside the user record so later passes don't need a network round trip.
func (c *Client) IssueQRPass(ctx context.Context) (*QRPass, error) {
	sess, err := c.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}

	identity := (*QRIdentity)(nil)
	if sess.User != nil {
		identity = sess.User.QRIdentity
	}

	if identity == nil {
		identity, err = c.fetchQRIdentity(ctx)
		if err != nil {
			return nil, err
		}
		if sess.User != nil {
			sess.User.QRIdentity = identity
			if err := c.persistUser(ctx, sess.User); err != nil {
				return nil, err
			}
		}
	}

	now := time.Now()
	code, err := totp.GenerateCode(identity.Secret, now)
	if err != nil {
		return nil, newAPIError(ErrorCodeInvalidResponse,
			"member pass secret is unusable", 0, pathQRIssue)
	}

	period := identity.Period
	if period == 0 {
		period = 30
	}

	return &QRPass{
		Payload:   identity.Payload,
		Code:      code,
		IssuedAt:  now,
		ExpiresIn: period - uint(now.Unix())%period,
	}, nil
}

func (c *Client) fetchQRIdentity(ctx context.Context) (*QRIdentity, error) {
	resp, err := c.doAuthorized(ctx, request{
		method: http.MethodPost,
		path:   pathQRIssue,
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, parseErrorResponse(resp.status, resp.body, pathQRIssue, ErrorCodeServer)
	}

	var identity QRIdentity
	if err := json.Unmarshal(resp.body, &identity); err != nil || identity.Payload == "" || identity.Secret == "" {
		return nil, newAPIError(ErrorCodeInvalidResponse,
			"QR issuance payload incomplete", resp.status, pathQRIssue)
	}
	return &identity, nil
}

// ValidateQRPass is the vendor-side check of a scanned pass: the rolling
// code is verified locally against the secret the backend returns for the
// payload, and the backend confirms the member is current.
func (c *Client) ValidateQRPass(ctx context.Context, payload, code string) (*User, error) {
	form := url.Values{}
	form.Set("payload", payload)
	form.Set("code", code)

	resp, err := c.doAuthorized(ctx, request{
		method:      http.MethodPost,
		path:        pathQRValidate,
		body:        []byte(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, parseErrorResponse(resp.status, resp.body, pathQRValidate, ErrorCodeNotPermitted)
	}

	var body struct {
		Valid  bool           `json:"valid"`
		Secret string         `json:"secret"`
		Member map[string]any `json:"member"`
	}
	if err := json.Unmarshal(resp.body, &body); err != nil {
		return nil, newAPIError(ErrorCodeInvalidResponse,
			"QR validation payload is not valid JSON", resp.status, pathQRValidate)
	}
	if !body.Valid {
		return nil, newAPIError(ErrorCodeNotPermitted, "member pass rejected", resp.status, pathQRValidate)
	}

	// Double-check the rolling code locally when the backend shares the
	// secret; a stale scan then fails even if the backend skipped the check.
	if body.Secret != "" && !totp.Validate(code, body.Secret) {
		return nil, newAPIError(ErrorCodeNotPermitted, "member pass code expired", resp.status, pathQRValidate)
	}

	if body.Member == nil {
		return nil, nil
	}
	member, err := normalizeUser(body.Member)
	if err != nil {
		return nil, err
	}
	return member, nil
}
