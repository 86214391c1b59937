package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inovex/illuminatio-go/log"
)

// HTTPPort is the port the metrics endpoint listens on (includes the
// preceding colon).
const HTTPPort = ":8000"

// MetricsPath is where the metrics endpoint is exposed.
const MetricsPath = "/metrics"

var started = false

// StartHTTP starts the Prometheus scrape endpoint in a goroutine,
// returning a shutdown func the caller runs before exiting.
func StartHTTP() func(context.Context) error {
	if started {
		return func(context.Context) error { return nil }
	}
	started = true

	mux := http.NewServeMux()
	mux.Handle(MetricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: HTTPPort, Handler: mux}

	go func() {
		log.Printf("[metrics] serving %s%s", HTTPPort, MetricsPath)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[metrics] http server stopped: %v", err)
		}
	}()
	time.Sleep(100 * time.Millisecond)

	return srv.Shutdown
}
