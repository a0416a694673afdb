package provider

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

// upstream fakes a completion API on 127.0.0.1. The test is skipped when
// the environment forbids loopback listeners.
func upstream(t *testing.T, h http.Handler) *httptest.Server {
	t.Helper()

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("no loopback listener: %v", err)
	}
	srv := &httptest.Server{Listener: ln, Config: &http.Server{Handler: h}}
	srv.Start()
	t.Cleanup(srv.Close)
	return srv
}

// canned answers every request with status and a JSON body.
func canned(status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}
