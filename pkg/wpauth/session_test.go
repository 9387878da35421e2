package wpauth

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harborperks/membersdk/internal/store"
	"github.com/harborperks/membersdk/pkg/secrets"
)

func seedSession(t *testing.T, tc *testClient, token string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, tc.store.Set(ctx, store.KeyToken, token))
	require.NoError(t, tc.store.Set(ctx, store.KeyUser, `{"id":42,"email":"m@example.com","account_type":"member","account_status":"active","membership":{"tier":"plus"}}`))
}

func TestRefreshAndReplayOn401(t *testing.T) {
	t.Parallel()

	var refreshCalls, historyCalls atomic.Int32
	var secondAuth string

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case pathRefresh:
			refreshCalls.Add(1)
			require.Equal(t, "Bearer old", r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, `{"ok":true,"token":"new","expires_in":3600}`)
		case pathDiscounts:
			if historyCalls.Add(1) == 1 {
				writeJSON(w, http.StatusUnauthorized, `{"code":"rest_invalid_token","message":"Expired token."}`)
				return
			}
			secondAuth = r.Header.Get("Authorization")
			writeJSON(w, http.StatusOK, `{"transactions":[]}`)
		default:
			http.NotFound(w, r)
		}
	})

	tc := newTestClient(t, handler)
	seedSession(t, tc, "old")

	records, err := tc.TransactionHistory(context.Background(), ScopeMember)
	require.NoError(t, err)
	require.Empty(t, records)

	require.Equal(t, int32(1), refreshCalls.Load(), "exactly one refresh attempt")
	require.Equal(t, int32(2), historyCalls.Load(), "original call replayed once")
	require.Equal(t, "Bearer new", secondAuth)

	// New token persisted with its expiry
	tok, err := tc.store.Get(context.Background(), store.KeyToken)
	require.NoError(t, err)
	require.Equal(t, "new", tok)

	rawExpiry, err := tc.store.Get(context.Background(), store.KeyTokenExpiry)
	require.NoError(t, err)
	secs, err := strconv.ParseInt(rawExpiry, 10, 64)
	require.NoError(t, err)
	require.Greater(t, secs, time.Now().Unix())
}

func TestRefreshFailureWithoutRememberedCredsClearsSession(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case pathRefresh:
			writeJSON(w, http.StatusUnauthorized, `{"code":"rest_invalid_token","message":"Dead token."}`)
		case pathDiscounts:
			writeJSON(w, http.StatusUnauthorized, `{"code":"rest_invalid_token","message":"Expired token."}`)
		default:
			http.NotFound(w, r)
		}
	})

	tc := newTestClient(t, handler)
	seedSession(t, tc, "old")

	_, err := tc.TransactionHistory(context.Background(), ScopeMember)
	require.ErrorIs(t, err, ErrReauthFailed)

	_, err = tc.store.Get(context.Background(), store.KeyToken)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = tc.store.Get(context.Background(), store.KeyUser)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRefreshFailureFallsBackToRememberedCreds(t *testing.T) {
	t.Parallel()

	var loginCalls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case pathRefresh:
			writeJSON(w, http.StatusUnauthorized, `{"code":"rest_invalid_token","message":"Dead token."}`)
		case pathLogin:
			loginCalls.Add(1)
			require.NoError(t, r.ParseForm())
			require.Equal(t, "m@example.com", r.PostForm.Get("username"))
			require.Equal(t, "passw0rd", r.PostForm.Get("password"))
			writeJSON(w, http.StatusOK, `{"success":true,"token":"relogged","user":{"id":42,"email":"m@example.com"}}`)
		case pathDiscounts:
			if r.Header.Get("Authorization") == "Bearer relogged" {
				writeJSON(w, http.StatusOK, `{"transactions":[]}`)
				return
			}
			writeJSON(w, http.StatusUnauthorized, `{"code":"rest_invalid_token","message":"Expired token."}`)
		default:
			http.NotFound(w, r)
		}
	})

	tc := newTestClient(t, handler)
	seedSession(t, tc, "old")
	ctx := context.Background()
	require.NoError(t, tc.vault.SetSecret(ctx, secrets.KeyRememberedEmail, "m@example.com"))
	require.NoError(t, tc.vault.SetSecret(ctx, secrets.KeyRememberedPassword, "passw0rd"))

	records, err := tc.TransactionHistory(ctx, ScopeMember)
	require.NoError(t, err)
	require.Empty(t, records)
	require.Equal(t, int32(1), loginCalls.Load())

	tok, err := tc.store.Get(ctx, store.KeyToken)
	require.NoError(t, err)
	require.Equal(t, "relogged", tok)
}

func TestPreemptiveRefreshBeforeCall(t *testing.T) {
	t.Parallel()

	var sawOldToken atomic.Bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case pathRefresh:
			writeJSON(w, http.StatusOK, `{"ok":true,"token":"fresh","expires_in":3600}`)
		case pathDiscounts:
			if r.Header.Get("Authorization") == "Bearer stale" {
				sawOldToken.Store(true)
			}
			writeJSON(w, http.StatusOK, `{"transactions":[]}`)
		default:
			http.NotFound(w, r)
		}
	})

	tc := newTestClient(t, handler)
	seedSession(t, tc, "stale")
	ctx := context.Background()

	// Persisted expiry in the past forces the preemptive path
	past := strconv.FormatInt(time.Now().Add(-time.Minute).Unix(), 10)
	require.NoError(t, tc.store.Set(ctx, store.KeyTokenExpiry, past))

	_, err := tc.TransactionHistory(ctx, ScopeMember)
	require.NoError(t, err)
	require.False(t, sawOldToken.Load(), "expired token must never hit the wire")
}

func TestLockedSessionSkipsRevalidation(t *testing.T) {
	t.Parallel()

	var refreshCalls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case pathRefresh:
			refreshCalls.Add(1)
			writeJSON(w, http.StatusOK, `{"ok":true,"token":"fresh"}`)
		case pathDiscounts:
			writeJSON(w, http.StatusOK, `{"transactions":[]}`)
		default:
			http.NotFound(w, r)
		}
	})

	tc := newTestClient(t, handler)
	seedSession(t, tc, "stale")
	ctx := context.Background()

	past := strconv.FormatInt(time.Now().Add(-time.Minute).Unix(), 10)
	require.NoError(t, tc.store.Set(ctx, store.KeyTokenExpiry, past))
	require.NoError(t, tc.SetLocked(ctx, true))

	_, err := tc.TransactionHistory(ctx, ScopeMember)
	require.NoError(t, err)
	require.Zero(t, refreshCalls.Load(), "lock suppresses preemptive refresh")
}

func TestConcurrentRecoveryIsSingleFlight(t *testing.T) {
	t.Parallel()

	var refreshCalls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == pathRefresh {
			refreshCalls.Add(1)
			time.Sleep(50 * time.Millisecond)
			writeJSON(w, http.StatusOK, `{"ok":true,"token":"shared","expires_in":3600}`)
			return
		}
		http.NotFound(w, r)
	})

	tc := newTestClient(t, handler)
	seedSession(t, tc, "old")

	const callers = 4
	tokens := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			tokens[i], errs[i] = tc.recoverSession(context.Background())
		}()
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, "shared", tokens[i])
	}
	require.Equal(t, int32(1), refreshCalls.Load(), "concurrent callers share one refresh")
}

func TestTokenExpiryFromJWTExpClaim(t *testing.T) {
	t.Parallel()

	// header {"alg":"none"} . claims {"exp": 4102444800} (2100-01-01), unsigned
	token := "eyJhbGciOiJub25lIn0.eyJleHAiOjQxMDI0NDQ4MDB9."

	tc := newTestClient(t, http.NotFoundHandler())
	ctx := context.Background()
	require.NoError(t, tc.persistToken(ctx, token, 0))

	raw, err := tc.store.Get(ctx, store.KeyTokenExpiry)
	require.NoError(t, err)
	secs, err := strconv.ParseInt(raw, 10, 64)
	require.NoError(t, err)
	require.Equal(t, int64(4102444800)-int64(expiryBuffer.Seconds()), secs)
}

func TestOpaqueTokenHasNoExpiry(t *testing.T) {
	t.Parallel()

	tc := newTestClient(t, http.NotFoundHandler())
	ctx := context.Background()
	require.NoError(t, tc.persistToken(ctx, "opaque-api-token", 0))

	_, err := tc.store.Get(ctx, store.KeyTokenExpiry)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestEnsureValidTokenWithoutSession(t *testing.T) {
	t.Parallel()

	tc := newTestClient(t, http.NotFoundHandler())
	_, err := tc.EnsureValidToken(context.Background())
	require.ErrorIs(t, err, ErrTokenUnavailable)
}
