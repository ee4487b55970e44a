package metrics

import (
	"net/http"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rulegrid"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	nodeDuration *prom.HistogramVec
	nodeResults  *prom.CounterVec
	nodeRequests *prom.CounterVec
	graphSize    prom.Gauge
	invalidated  prom.Counter
}

// NewPrometheusRecorder constructs the engine metrics and registers them
// with reg. A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		nodeDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "Time spent running rule bodies, per rule",
			Buckets:   prom.DefBuckets,
		}, []string{"rule"}),
		nodeResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "node_results_total",
			Help:      "Completed nodes by rule and outcome",
		}, []string{"rule", "result"}),
		nodeRequests: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "node_requests_total",
			Help:      "Node requests, split by whether an existing node was reused",
		}, []string{"memoized"}),
		graphSize: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_nodes",
			Help:      "Nodes currently held by the product graph",
		}),
		invalidated: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "invalidated_nodes_total",
			Help:      "Nodes removed by invalidation",
		}),
	}
	reg.MustRegister(pr.nodeDuration, pr.nodeResults, pr.nodeRequests, pr.graphSize, pr.invalidated)
	return pr
}

func (p *PrometheusRecorder) ObserveNodeDuration(rule string, d time.Duration) {
	if p == nil || p.nodeDuration == nil {
		return
	}
	p.nodeDuration.WithLabelValues(rule).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncNodeResult(rule string, result ResultLabel) {
	if p == nil || p.nodeResults == nil {
		return
	}
	p.nodeResults.WithLabelValues(rule, string(result)).Inc()
}

func (p *PrometheusRecorder) IncNodeRequest(memoized bool) {
	if p == nil || p.nodeRequests == nil {
		return
	}
	p.nodeRequests.WithLabelValues(strconv.FormatBool(memoized)).Inc()
}

func (p *PrometheusRecorder) SetGraphSize(n int) {
	if p == nil || p.graphSize == nil {
		return
	}
	p.graphSize.Set(float64(n))
}

func (p *PrometheusRecorder) AddInvalidated(n int) {
	if p == nil || p.invalidated == nil {
		return
	}
	p.invalidated.Add(float64(n))
}

// HTTPHandler returns an http.Handler that serves Prometheus metrics for the provided registry.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
