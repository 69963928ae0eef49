// Package proxy implements the L7 reverse proxy: it routes an inbound
// HTTP request by the leftmost label of its Host header to the declared
// service listening on 127.0.0.1 at that subdomain's port, forwarding
// both ordinary requests (via httputil.ReverseProxy) and WebSocket
// upgrades (via a raw byte tunnel built on gorilla/websocket).
//
// Grounding note: nothing in the teacher repo implements an L7 reverse
// proxy — its "proxy" handlers forward single typed API calls to a
// Tautulli client, not arbitrary byte streams to a dynamic backend. This
// package is written in the teacher's general HTTP-handler idiom
// (explicit status codes, structured logging per request) without a
// closer model to adapt; the WebSocket tunnel's use of gorilla's
// Upgrader at the raw-conn level, rather than the teacher's own
// internal/websocket message-typed Hub/Client, is deliberate: the proxy
// must stay agnostic to whatever's riding inside the tunnel.
package proxy

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/a3s-lab/dev/internal/logging"
	"github.com/a3s-lab/dev/internal/metrics"
	"github.com/a3s-lab/dev/internal/supervisor/errkind"
)

// RouteTable is the subdomain->port lookup the proxy consults on every
// request. *supervisor.Loop satisfies this directly via its Routes
// method.
type RouteTable interface {
	Routes() map[string]int
}

// Proxy is an http.Handler that forwards by Host-header subdomain to
// whichever local port the route table currently reports for it.
type Proxy struct {
	routes   RouteTable
	upgrader websocket.Upgrader
}

// New constructs a Proxy that consults routes on every request.
func New(routes RouteTable) *Proxy {
	return &Proxy{
		routes: routes,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// NewServer builds an *http.Server listening on addr, serving p.
func NewServer(addr string, p *Proxy) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           p,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// subdomain returns the leftmost label of host (with any port stripped).
func subdomain(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if i := strings.IndexByte(host, '.'); i >= 0 {
		return host[:i]
	}
	return host
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sub := subdomain(r.Host)
	routes := p.routes.Routes()
	port, ok := routes[sub]
	if !ok {
		logging.Warn().Str("subdomain", sub).Str("kind", string(errkind.RouteMiss)).Msg("proxy: no service routed for subdomain")
		p.notFound(w, sub, routes)
		metrics.RecordProxyRequest(sub, "no_route", time.Since(start))
		return
	}

	if isWebSocketUpgrade(r) {
		p.tunnelWebSocket(w, r, sub, port)
		metrics.RecordProxyRequest(sub, "websocket", time.Since(start))
		return
	}

	target := &url.URL{Scheme: "http", Host: fmt.Sprintf("127.0.0.1:%d", port)}
	rp := httputil.NewSingleHostReverseProxy(target)
	director := rp.Director
	rp.Director = func(req *http.Request) {
		director(req)
		req.Header.Set("X-Forwarded-Host", req.Host)
		req.Header.Set("X-Forwarded-Proto", schemeOf(req))
	}
	rp.ErrorHandler = func(rw http.ResponseWriter, req *http.Request, err error) {
		logging.Warn().Str("subdomain", sub).Int("port", port).Err(err).Msg("proxy: backend request failed")
		http.Error(rw, "bad gateway", http.StatusBadGateway)
		metrics.RecordProxyRequest(sub, "error", time.Since(start))
	}
	rp.ServeHTTP(w, r)
	metrics.RecordProxyRequest(sub, "ok", time.Since(start))
}

func schemeOf(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func (p *Proxy) notFound(w http.ResponseWriter, sub string, routes map[string]int) {
	known := make([]string, 0, len(routes))
	for name := range routes {
		known = append(known, name)
	}
	sort.Strings(known)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	fmt.Fprintf(w, "no service routed for subdomain %q\nknown subdomains: %s\n", sub, strings.Join(known, ", "))
}

// tunnelWebSocket completes the client-side handshake, dials the
// backend's own WebSocket endpoint, and relays frames bidirectionally
// until either side closes. It does not interpret message contents —
// arbitrary WebSocket subprotocols pass through untouched.
func (p *Proxy) tunnelWebSocket(w http.ResponseWriter, r *http.Request, sub string, port int) {
	backendURL := fmt.Sprintf("ws://127.0.0.1:%d%s", port, r.URL.RequestURI())
	backendHeader := make(http.Header)
	for _, k := range []string{"Origin", "Sec-WebSocket-Protocol"} {
		if v := r.Header.Get(k); v != "" {
			backendHeader.Set(k, v)
		}
	}

	backendConn, resp, err := websocket.DefaultDialer.DialContext(r.Context(), backendURL, backendHeader)
	if err != nil {
		logging.Warn().Str("subdomain", sub).Int("port", port).Err(err).Msg("proxy: websocket dial to backend failed")
		status := http.StatusBadGateway
		if resp != nil {
			status = resp.StatusCode
		}
		http.Error(w, "websocket backend unavailable", status)
		return
	}
	defer backendConn.Close()

	clientConn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Str("subdomain", sub).Err(err).Msg("proxy: client websocket upgrade failed")
		return
	}
	defer clientConn.Close()

	errCh := make(chan error, 2)
	go relay(clientConn, backendConn, errCh)
	go relay(backendConn, clientConn, errCh)
	<-errCh
}

// relay copies WebSocket messages from src to dst until either side
// errors or closes; the first error (including a clean close) is sent
// on done so tunnelWebSocket can tear down both connections.
func relay(dst, src *websocket.Conn, done chan<- error) {
	for {
		mt, msg, err := src.ReadMessage()
		if err != nil {
			done <- err
			return
		}
		if err := dst.WriteMessage(mt, msg); err != nil {
			done <- err
			return
		}
	}
}
