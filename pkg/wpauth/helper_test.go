package wpauth

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/harborperks/membersdk/internal/store"
	"github.com/harborperks/membersdk/pkg/secrets"
)

// testClient wires a Client to an httptest server with in-memory storage.
type testClient struct {
	*Client
	store  *store.Memory
	vault  *secrets.MemVault
	server *httptest.Server
}

func newTestClient(t *testing.T, handler http.Handler) *testClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	st := store.NewMemory()
	vault := secrets.NewMemVault()

	client := New(Config{
		BaseURL: server.URL,
		Logger:  slog.Default(),
	}, st, vault)

	return &testClient{
		Client: client,
		store:  st,
		vault:  vault,
		server: server,
	}
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// restNoRouteBody is the WordPress "this path does not exist" envelope.
const restNoRouteBody = `{"code":"rest_no_route","message":"No route was found matching the URL and request method.","data":{"status":404}}`
