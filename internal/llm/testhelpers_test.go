package llm

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// newTestServer creates an httptest server that responds with the given handler.
func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

// fastRetries keeps retry tests quick.
func fastRetries(maxRetries int) ProviderOptions {
	return ProviderOptions{
		Timeout:    5 * time.Second,
		MaxRetries: maxRetries,
		RetryDelay: time.Millisecond,
	}
}
