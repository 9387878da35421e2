/*
Package wpauth reconciles several generations of incompatible WordPress
authentication APIs into one stable, persisted session abstraction for the
membership marketplace client.

# Overview

The backend grew through cookie sessions, a JWT-style token endpoint, an
opaque long-lived API token, and OAuth-style client-credential tokens for the
storefront. This package hides all of that behind a single Client:

	st, _ := sqlite.NewStore("membersdk.db")
	_ = st.ApplyMigrations()
	vault := secrets.NewFileVault("vault.json", "device.key")

	client := wpauth.New(wpauth.Config{
		BaseURL:        "https://market.example.com",
		ConsumerKey:    "ck_...",
		ConsumerSecret: "cs_...",
	}, st, vault)

	sess, err := client.LoginWithPassword(ctx, "member", "passw0rd",
		wpauth.LoginOptions{Remember: true})

Every feature call after login goes through the same machinery:

  - the route resolver retries /wp-json paths on the legacy ?rest_route=
    form when the server reports the route missing (rest_no_route)
  - the hand-rolled cookie jar replays WordPress session cookies and merges
    Set-Cookie headers back into persisted storage
  - the refresh/reauth orchestrator recovers from 401/403 with one token
    refresh and, when a remembered credential pair exists, one silent
    password re-login, then replays the original call once
  - tokens whose persisted expiry has passed are refreshed preemptively
    before a request is even issued

# Session Lifecycle

A session is created by LoginWithPassword or Register, kept current by the
orchestrator, and destroyed entirely by Logout or an unrecoverable 401:
token, refresh token, user record, cookie jar, and WooCommerce header are all
removed. SetLocked suspends automatic re-validation while the device-level
passcode lock is engaged.

Concurrent recovery is single-flight: when two collaborators hit a 401 at
the same time, one refresh runs and both wait on its outcome.

# Storefront Requests

Requests under /wp-json/wc/ automatically carry the configured consumer
key/secret as query parameters and fall back to the cached Basic-Auth header
when bearer authentication is unavailable or rejected.

# Errors

All failures surface as *APIError with a short stable code, a sanitized
human-readable message, the HTTP status (0 when the network was unreachable)
and the endpoint. Sentinels such as ErrTokenUnavailable and ErrSessionLocked
compare with errors.Is.
*/
package wpauth
