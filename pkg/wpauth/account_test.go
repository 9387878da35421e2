package wpauth

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChangePasswordCanonicalPath(t *testing.T) {
	t.Parallel()

	var canonicalCalls, fallbackCalls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case pathChangePassword:
			canonicalCalls.Add(1)
			require.NoError(t, r.ParseForm())
			require.Equal(t, "oldpw", r.PostForm.Get("current_password"))
			require.Equal(t, "newpw", r.PostForm.Get("new_password"))
			writeJSON(w, http.StatusOK, `{"ok":true}`)
		case pathChangePasswordFallback:
			fallbackCalls.Add(1)
			writeJSON(w, http.StatusOK, `{"ok":true}`)
		default:
			http.NotFound(w, r)
		}
	})

	tc := newTestClient(t, handler)
	seedSession(t, tc, "tok")

	require.NoError(t, tc.ChangePassword(context.Background(), "oldpw", "newpw"))
	require.Equal(t, int32(1), canonicalCalls.Load())
	require.Zero(t, fallbackCalls.Load(), "fallback path untouched when the canonical one works")
}

func TestChangePasswordFallsBackToSecondaryPath(t *testing.T) {
	t.Parallel()

	var fallbackBody string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case pathChangePassword:
			// Older backend generation: the canonical route does not exist
			writeJSON(w, http.StatusNotFound, restNoRouteBody)
		case pathChangePasswordFallback:
			require.NoError(t, r.ParseForm())
			fallbackBody = r.PostForm.Encode()
			writeJSON(w, http.StatusOK, `{"ok":true}`)
		default:
			http.NotFound(w, r)
		}
	})

	tc := newTestClient(t, handler)
	seedSession(t, tc, "tok")

	require.NoError(t, tc.ChangePassword(context.Background(), "oldpw", "newpw"))
	require.Contains(t, fallbackBody, "current_password=oldpw")
	require.Contains(t, fallbackBody, "new_password=newpw")
}

func TestChangePasswordBothPathsFailing(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest,
			`{"code":"weak_password","message":"<strong>Error:</strong> password too weak."}`)
	})

	tc := newTestClient(t, handler)
	seedSession(t, tc, "tok")

	err := tc.ChangePassword(context.Background(), "oldpw", "123")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "Error: password too weak.", apiErr.Message)
	require.Equal(t, pathChangePasswordFallback, apiErr.Endpoint)
}
