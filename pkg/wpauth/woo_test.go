package wpauth

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveWooCredentials(t *testing.T) {
	t.Parallel()

	t.Run("derives basic auth header", func(t *testing.T) {
		creds := DeriveWooCredentials("ck_test", "cs_test", "")
		require.NotNil(t, creds)

		expected := "Basic " + base64.StdEncoding.EncodeToString([]byte("ck_test:cs_test"))
		require.Equal(t, expected, creds.BasicAuthHeader)
		require.Equal(t, "ck_test", creds.ConsumerKey)
		require.Equal(t, "cs_test", creds.ConsumerSecret)
	})

	t.Run("keeps supplied header", func(t *testing.T) {
		creds := DeriveWooCredentials("ck_test", "cs_test", "Basic cHJlYnVpbHQ=")
		require.NotNil(t, creds)
		require.Equal(t, "Basic cHJlYnVpbHQ=", creds.BasicAuthHeader)
	})

	t.Run("prefixes supplied header missing scheme", func(t *testing.T) {
		creds := DeriveWooCredentials("ck_test", "cs_test", "cHJlYnVpbHQ=")
		require.NotNil(t, creds)
		require.Equal(t, "Basic cHJlYnVpbHQ=", creds.BasicAuthHeader)
	})

	t.Run("blank key or secret yields nil", func(t *testing.T) {
		require.Nil(t, DeriveWooCredentials("", "cs_test", ""))
		require.Nil(t, DeriveWooCredentials("ck_test", "", ""))
		require.Nil(t, DeriveWooCredentials("  ", "  ", ""))
	})
}
