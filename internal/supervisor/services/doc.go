/*
Package services provides suture.Service wrappers that adapt ordinary
lifecycle interfaces to suture's context-aware Serve pattern.

# Overview

Each wrapper implements the suture.Service interface:

	type Service interface {
	    Serve(ctx context.Context) error
	}

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Converts ListenAndServe pattern to Serve
  - Configurable shutdown timeout for draining connections
  - Used for both the reverse proxy listener and the control API server

# Usage Example

	import (
	    "net/http"
	    "time"

	    "github.com/a3s-lab/dev/internal/supervisor"
	    "github.com/a3s-lab/dev/internal/supervisor/services"
	)

	func wireEdge(tree *supervisor.ResilienceTree, proxySrv, apiSrv *http.Server) {
	    tree.AddEdgeService(services.NewHTTPServerService(proxySrv, 10*time.Second))
	    tree.AddEdgeService(services.NewHTTPServerService(apiSrv, 10*time.Second))
	}

# Error Handling

Return values determine supervisor behavior:

	nil         -> Service stopped cleanly, will not restart
	error       -> Service crashed, supervisor will restart
	ctx.Err()   -> Shutdown requested, normal termination

# See Also

  - internal/supervisor: ResilienceTree that manages these services
  - github.com/thejerf/suture/v4: Underlying supervision library
*/
package services
