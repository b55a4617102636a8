package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hjoelr/trading-signals/internal/logging"
)

// HandleHealth reports liveness. It answers 503 once the root context has
// been cancelled so load balancers stop routing during shutdown.
func HandleHealth(ctx context.Context) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			logging.FromContext(r.Context()).Debugf("health: shutting down")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, `{"status": "shutting down"}`)
		default:
			w.WriteHeader(http.StatusOK)
			_, _ = fmt.Fprintf(w, `{"status": "ok"}`)
		}
	})
}
