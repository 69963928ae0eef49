package proxy

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
)

type staticRoutes map[string]int

func (s staticRoutes) Routes() map[string]int { return s }

func backendServer(t *testing.T, body string) (*httptest.Server, int) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	addr := strings.TrimPrefix(srv.URL, "http://")
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split backend addr: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse backend port: %v", err)
	}
	return srv, port
}

func TestSubdomainStripsPortAndExtraLabels(t *testing.T) {
	cases := map[string]string{
		"web.localhost:7080": "web",
		"web.localhost":      "web",
		"web":                "web",
		"api.internal.test":  "api",
	}
	for host, want := range cases {
		if got := subdomain(host); got != want {
			t.Fatalf("subdomain(%q) = %q, want %q", host, got, want)
		}
	}
}

func TestProxyForwardsToRoutedBackend(t *testing.T) {
	_, port := backendServer(t, "hello from backend")

	p := New(staticRoutes{"web": port})
	req := httptest.NewRequest(http.MethodGet, "http://web.localhost/", nil)
	req.Host = "web.localhost"
	rec := httptest.NewRecorder()

	p.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != "hello from backend" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestProxyReturns404WithKnownSubdomainsOnMiss(t *testing.T) {
	p := New(staticRoutes{"web": 9999, "api": 9998})
	req := httptest.NewRequest(http.MethodGet, "http://missing.localhost/", nil)
	req.Host = "missing.localhost"
	rec := httptest.NewRecorder()

	p.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "api") || !strings.Contains(body, "web") {
		t.Fatalf("expected known subdomains listed, got %q", body)
	}
}

func TestProxySetsForwardedHeaders(t *testing.T) {
	var gotFor, gotHost, gotProto string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFor = r.Header.Get("X-Forwarded-For")
		gotHost = r.Header.Get("X-Forwarded-Host")
		gotProto = r.Header.Get("X-Forwarded-Proto")
	}))
	defer srv.Close()
	addr := strings.TrimPrefix(srv.URL, "http://")
	_, portStr, _ := net.SplitHostPort(addr)
	port, _ := strconv.Atoi(portStr)

	p := New(staticRoutes{"web": port})
	req := httptest.NewRequest(http.MethodGet, "http://web.localhost/", nil)
	req.Host = "web.localhost"
	req.RemoteAddr = "203.0.113.5:54321"
	rec := httptest.NewRecorder()

	p.ServeHTTP(rec, req)

	if gotFor != "203.0.113.5" {
		t.Fatalf("expected X-Forwarded-For set, got %q", gotFor)
	}
	if gotHost != "web.localhost" {
		t.Fatalf("expected X-Forwarded-Host set, got %q", gotHost)
	}
	if gotProto != "http" {
		t.Fatalf("expected X-Forwarded-Proto http, got %q", gotProto)
	}
}
