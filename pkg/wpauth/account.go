package wpauth

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"
)

// ============================================================================
// Avatar
// ============================================================================

// UploadAvatar sends the image as a multipart POST and updates the persisted
// user record with the new, cache-busted avatar URL.
func (c *Client) UploadAvatar(ctx context.Context, filename string, image []byte) (*User, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("avatar", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(image); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	resp, err := c.doAuthorized(ctx, request{
		method:      http.MethodPost,
		path:        pathAvatar,
		body:        buf.Bytes(),
		contentType: w.FormDataContentType(),
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, parseErrorResponse(resp.status, resp.body, pathAvatar, ErrorCodeServer)
	}

	var body struct {
		AvatarURL string `json:"avatar_url"`
	}
	if err := json.Unmarshal(resp.body, &body); err != nil || body.AvatarURL == "" {
		return nil, newAPIError(ErrorCodeInvalidResponse,
			"avatar upload returned no URL", resp.status, pathAvatar)
	}

	return c.mutateUserAvatar(ctx, cacheBust(body.AvatarURL, time.Now()))
}

// DeleteAvatar removes the custom avatar server-side and from the persisted
// user record.
func (c *Client) DeleteAvatar(ctx context.Context) (*User, error) {
	resp, err := c.doAuthorized(ctx, request{
		method: http.MethodDelete,
		path:   pathAvatar,
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, parseErrorResponse(resp.status, resp.body, pathAvatar, ErrorCodeServer)
	}

	return c.mutateUserAvatar(ctx, "")
}

// mutateUserAvatar is the one sanctioned field-level user mutation: the
// avatar URL after an upload/delete the backend already confirmed.
func (c *Client) mutateUserAvatar(ctx context.Context, avatarURL string) (*User, error) {
	sess, err := c.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	if sess.User == nil {
		return nil, ErrTokenUnavailable
	}

	sess.User.AvatarURL = avatarURL
	if err := c.persistUser(ctx, sess.User); err != nil {
		return nil, err
	}
	return sess.User, nil
}

// RefreshProfile refetches the canonical profile and replaces the persisted
// user record.
func (c *Client) RefreshProfile(ctx context.Context) (*User, error) {
	token, err := c.EnsureValidToken(ctx)
	if err != nil {
		return nil, err
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

// ============================================================================
// Password management
// ============================================================================

// ChangePassword updates the account password. Some backend generations only
// expose the older account path, so a failure on the canonical path is
// retried once against the secondary one.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	form := url.Values{}
	form.Set("current_password", current)
	form.Set("new_password", next)
	body := []byte(form.Encode())

	resp, err := c.doAuthorized(ctx, request{
		method:      http.MethodPost,
		path:        pathChangePassword,
		body:        body,
		contentType: "application/x-www-form-urlencoded",
	})
	if err == nil && resp.ok() {
		return nil
	}

	resp, err = c.doAuthorized(ctx, request{
		method:      http.MethodPost,
		path:        pathChangePasswordFallback,
		body:        body,
		contentType: "application/x-www-form-urlencoded",
	})
	if err != nil {
		return err
	}
	if !resp.ok() {
		return parseErrorResponse(resp.status, resp.body, pathChangePasswordFallback, ErrorCodeServer)
	}
	return nil
}

// RequestPasswordReset asks the backend to email a reset verification code.
// No session is required.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	form := url.Values{}
	form.Set("email", email)

	resp, err := c.send(ctx, request{
		method:      http.MethodPost,
		path:        pathPasswordResetRequest,
		body:        []byte(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	})
	if err != nil {
		return err
	}
	if !resp.ok() {
		return parseErrorResponse(resp.status, resp.body, pathPasswordResetRequest, ErrorCodeServer)
	}
	return nil
}

// ResetPassword performs a direct password reset with the emailed
// verification code.
func (c *Client) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	form := url.Values{}
	form.Set("email", email)
	form.Set("code", code)
	form.Set("new_password", newPassword)

	resp, err := c.send(ctx, request{
		method:      http.MethodPost,
		path:        pathPasswordReset,
		body:        []byte(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	})
	if err != nil {
		return err
	}
	if !resp.ok() {
		return parseErrorResponse(resp.status, resp.body, pathPasswordReset, ErrorCodeInvalidCredentials)
	}
	return nil
}
