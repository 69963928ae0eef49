/*
Package proxy implements the orchestrator's L7 reverse proxy.

Inbound requests are routed by the leftmost label of the Host header
(e.g. "web" out of "web.localhost:7080") against the supervisor loop's
live subdomain->port map. A miss returns 404 with the list of currently
known subdomains. A hit forwards the request to 127.0.0.1:<port> via
httputil.ReverseProxy, with X-Forwarded-Host/-Proto set and the client
IP appended to X-Forwarded-For. WebSocket
upgrade requests are instead tunneled byte-for-byte through a second
gorilla/websocket connection dialed to the backend.

The proxy holds no state of its own beyond the RouteTable it was built
with; it is safe to rebuild per-request from the loop's current Routes()
view, since routes change only when a service crosses into or out of a
routable phase.
*/
package proxy
