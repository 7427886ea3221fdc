// Package exporters exposes the metrics registry over HTTP.
package exporters

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smazurov/xpathnode/internal/version"
)

var buildInfoOnce sync.Once

// HTTPHandler returns the handler mounted at /metrics. It serves every
// promauto-registered metric plus xpathnode_build_info, and counts its own
// scrapes.
func HTTPHandler() http.Handler {
	buildInfoOnce.Do(func() {
		info := version.Get()
		promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "xpathnode",
			Name:      "build_info",
			Help:      "Build metadata of the running supervisor, always 1",
			ConstLabels: prometheus.Labels{
				"version":   info.Version,
				"commit":    info.GitCommit,
				"goversion": info.GoVersion,
			},
		}).Set(1)
	})

	return promhttp.InstrumentMetricHandler(prometheus.DefaultRegisterer,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			ErrorHandling:     promhttp.ContinueOnError,
			EnableOpenMetrics: true,
		}))
}
