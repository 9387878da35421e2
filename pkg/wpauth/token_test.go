package wpauth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeToken(t *testing.T) {
	t.Parallel()

	t.Run("plain token passes through", func(t *testing.T) {
		tok, ok := NormalizeToken("abc123")
		require.True(t, ok)
		require.Equal(t, "abc123", tok)
	})

	t.Run("whitespace is trimmed", func(t *testing.T) {
		tok, ok := NormalizeToken("  abc123\n")
		require.True(t, ok)
		require.Equal(t, "abc123", tok)
	})

	t.Run("bearer prefix is stripped", func(t *testing.T) {
		tok, ok := NormalizeToken("Bearer abc123")
		require.True(t, ok)
		require.Equal(t, "abc123", tok)
	})

	t.Run("stacked bearer prefixes are stripped", func(t *testing.T) {
		tok, ok := NormalizeToken("Bearer bearer abc123")
		require.True(t, ok)
		require.Equal(t, "abc123", tok)
	})

	t.Run("empty is rejected", func(t *testing.T) {
		_, ok := NormalizeToken("   ")
		require.False(t, ok)
	})

	t.Run("bare bearer prefix is rejected", func(t *testing.T) {
		_, ok := NormalizeToken("Bearer ")
		require.False(t, ok)
	})

	t.Run("token extracted from URL query", func(t *testing.T) {
		tok, ok := NormalizeToken("https://example.com/login?token=xyz789")
		require.True(t, ok)
		require.Equal(t, "xyz789", tok)
	})

	t.Run("token extracted from URL fragment", func(t *testing.T) {
		tok, ok := NormalizeToken("https://example.com/cb#access_token=frag42")
		require.True(t, ok)
		require.Equal(t, "frag42", tok)
	})

	t.Run("query wins over fragment", func(t *testing.T) {
		tok, ok := NormalizeToken("https://example.com/cb?jwt=fromquery#token=fromfrag")
		require.True(t, ok)
		require.Equal(t, "fromquery", tok)
	})

	t.Run("parameter priority order", func(t *testing.T) {
		tok, ok := NormalizeToken("https://example.com/?api_token=low&token=high")
		require.True(t, ok)
		require.Equal(t, "high", tok)
	})

	t.Run("URL without a token parameter is rejected", func(t *testing.T) {
		_, ok := NormalizeToken("https://example.com/wp-login.php?action=magic&key=onetime")
		require.False(t, ok)
	})

	t.Run("embedded bearer value is normalized recursively", func(t *testing.T) {
		tok, ok := NormalizeToken("https://example.com/?token=Bearer%20deep1")
		require.True(t, ok)
		require.Equal(t, "deep1", tok)
	})

	t.Run("idempotent", func(t *testing.T) {
		inputs := []string{
			"abc123",
			"Bearer abc123",
			"https://example.com/login?token=xyz789",
			"https://example.com/no-token-here",
			"",
		}
		for _, in := range inputs {
			once, okOnce := NormalizeToken(in)
			if !okOnce {
				require.Empty(t, once, "input %q", in)
				continue
			}
			twice, okTwice := NormalizeToken(once)
			require.True(t, okTwice, "input %q", in)
			require.Equal(t, once, twice, "input %q", in)
		}
	})
}

func TestIsTokenLoginURL(t *testing.T) {
	t.Parallel()

	require.True(t, IsTokenLoginURL("https://example.com/wp-login.php?action=magic&key=onetime"))
	require.False(t, IsTokenLoginURL("https://example.com/login?token=xyz"))
	require.False(t, IsTokenLoginURL("plain-token"))
	require.False(t, IsTokenLoginURL(""))
}
