package wpauth

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRouteFallbackOnRestNoRoute(t *testing.T) {
	t.Parallel()

	var primaryCalls, fallbackCalls atomic.Int32
	var fallbackMethod, fallbackBody, fallbackRoute string

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/wp-json/harborperks/v1/discounts" {
			primaryCalls.Add(1)
			writeJSON(w, http.StatusNotFound, restNoRouteBody)
			return
		}
		if route := r.URL.Query().Get("rest_route"); route != "" {
			fallbackCalls.Add(1)
			fallbackRoute = route
			fallbackMethod = r.Method
			body, _ := io.ReadAll(r.Body)
			fallbackBody = string(body)
			writeJSON(w, http.StatusOK, `{"ok":true}`)
			return
		}
		http.NotFound(w, r)
	})

	tc := newTestClient(t, handler)
	resp, err := tc.send(context.Background(), request{
		method:      http.MethodPost,
		path:        pathDiscounts,
		body:        []byte(`{"vendor_id":7}`),
		contentType: "application/json",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.status)

	require.Equal(t, int32(1), primaryCalls.Load())
	require.Equal(t, int32(1), fallbackCalls.Load())
	require.Equal(t, "/harborperks/v1/discounts", fallbackRoute)
	require.Equal(t, http.MethodPost, fallbackMethod)
	require.Equal(t, `{"vendor_id":7}`, fallbackBody)
}

func TestNoFallbackOnOtherNotFound(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusNotFound, `{"code":"rest_post_invalid_id","message":"Invalid post ID."}`)
	})

	tc := newTestClient(t, handler)
	resp, err := tc.send(context.Background(), request{
		method: http.MethodGet,
		path:   pathVendorTiers,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.status)
	require.Equal(t, int32(1), calls.Load(), "resource-level 404 must not trigger the fallback")
}

func TestStorefrontConsumerParamsOnBothForms(t *testing.T) {
	t.Parallel()

	var sawPrimary, sawFallback bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == pathWooOrders {
			sawPrimary = true
			require.Equal(t, "ck_abc", r.URL.Query().Get("consumer_key"))
			require.Equal(t, "cs_def", r.URL.Query().Get("consumer_secret"))
			writeJSON(w, http.StatusNotFound, restNoRouteBody)
			return
		}
		if r.URL.Query().Get("rest_route") == "/wc/v3/orders" {
			sawFallback = true
			require.Equal(t, "ck_abc", r.URL.Query().Get("consumer_key"))
			require.Equal(t, "cs_def", r.URL.Query().Get("consumer_secret"))
			writeJSON(w, http.StatusOK, `{"ok":true}`)
			return
		}
		http.NotFound(w, r)
	})

	tc := newTestClient(t, handler)
	tc.consumerKey = "ck_abc"
	tc.consumerSecret = "cs_def"

	resp, err := tc.send(context.Background(), request{
		method: http.MethodGet,
		path:   pathWooOrders,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.status)
	require.True(t, sawPrimary)
	require.True(t, sawFallback)
}

func TestSendSyncsCookiesFromFallbackResponse(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("rest_route") != "" {
			w.Header().Add("Set-Cookie", "wordpress_logged_in_9=fromfallback; path=/")
			writeJSON(w, http.StatusOK, `{"ok":true}`)
			return
		}
		writeJSON(w, http.StatusNotFound, restNoRouteBody)
	})

	tc := newTestClient(t, handler)
	_, err := tc.send(context.Background(), request{method: http.MethodGet, path: pathVendorTiers})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, "https://example.com/", nil)
	require.NoError(t, err)
	require.NoError(t, tc.applyCookies(context.Background(), req))
	require.Contains(t, req.Header.Get("Cookie"), "wordpress_logged_in_9=fromfallback")
}
