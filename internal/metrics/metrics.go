// Package metrics exposes crawl and topology counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nithronos/nosdu/internal/crawler"
	"nithronos/nosdu/internal/storage/volumes"
)

type Metrics struct {
	reg            *prometheus.Registry
	crawls         *prometheus.CounterVec
	crawlLatency   prometheus.Histogram
	crawlObjects   *prometheus.CounterVec
	resolves       *prometheus.CounterVec
	resolveLatency prometheus.Histogram
	drives         *prometheus.GaugeVec
	buildInfoGauge prometheus.Gauge
}

// New returns a Metrics with its own registry.
func New(version, rev string) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		crawls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nosdu_crawls_total",
				Help: "Total number of finished crawls by result.",
			},
			[]string{"result"},
		),
		crawlLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nosdu_crawl_duration_seconds",
			Help:    "Wall time of crawls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		crawlObjects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nosdu_crawl_objects_total",
				Help: "Filesystem objects seen by crawls by outcome.",
			},
			[]string{"outcome"},
		),
		resolves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nosdu_resolves_total",
				Help: "Total number of topology resolution passes by result.",
			},
			[]string{"result"},
		),
		resolveLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nosdu_resolve_duration_seconds",
			Help:    "Latency of topology resolution passes in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		drives: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "nosdu_drives",
				Help: "Drives in the latest topology snapshot by kind.",
			},
			[]string{"kind"},
		),
		buildInfoGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "nosdu_build_info",
			Help:        "Build info of nosdu.",
			ConstLabels: prometheus.Labels{"version": version, "rev": rev},
		}),
	}
	m.reg.MustRegister(m.crawls, m.crawlLatency, m.crawlObjects, m.resolves, m.resolveLatency, m.drives, m.buildInfoGauge)
	m.buildInfoGauge.Set(1)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Registry is exposed for tests and for registering extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// ObserveCrawl records one finished crawl.
func (m *Metrics) ObserveCrawl(res crawler.Result) {
	result := "ok"
	if res.Failed() {
		result = "failed"
	}
	m.crawls.WithLabelValues(result).Inc()
	m.crawlLatency.Observe(res.Duration.Seconds())
	m.crawlObjects.WithLabelValues("visited").Add(float64(res.Progress.Visited))
	m.crawlObjects.WithLabelValues("skipped").Add(float64(res.Progress.Skipped))
	m.crawlObjects.WithLabelValues("pruned").Add(float64(res.Progress.Pruned))
	m.crawlObjects.WithLabelValues("denied").Add(float64(res.Progress.Denied))
}

// ObserveResolve records one resolution pass. The drive gauges keep their
// previous values when the pass failed.
func (m *Metrics) ObserveResolve(drives volumes.Drives, err error, took time.Duration) {
	m.resolveLatency.Observe(took.Seconds())
	if err != nil {
		m.resolves.WithLabelValues("failed").Inc()
		return
	}
	m.resolves.WithLabelValues("ok").Inc()
	local, network := drives.Counts()
	m.drives.WithLabelValues(volumes.KindLocal).Set(float64(local))
	m.drives.WithLabelValues(volumes.KindNetwork).Set(float64(network))
}
