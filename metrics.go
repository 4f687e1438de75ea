package aprsis

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsHandler exposes the App's prometheus.Registry at /metrics for
// scraping, alongside the admin JSON surface's own numeric sections
// (the two overlap in content but serve different consumers: one a
// scraper, the other an operator's browser or a CLI `status` call).
func (a *App) metricsHandler() http.Handler {
	return promhttp.HandlerFor(a.Metrics.Reg, promhttp.HandlerOpts{})
}
