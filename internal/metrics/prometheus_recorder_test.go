package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.ObserveNodeDuration("greet", 150*time.Millisecond)
	pr.IncNodeResult("greet", ResultReturn)
	pr.IncNodeResult("greet", ResultReturn)
	pr.IncNodeResult("greet", ResultThrow)
	pr.IncNodeRequest(true)
	pr.SetGraphSize(7)
	pr.AddInvalidated(3)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, l := range m.GetLabel() {
				key += "," + l.GetValue()
			}
			switch {
			case m.GetCounter() != nil:
				values[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[key] = m.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(t, 2.0, values["rulegrid_node_results_total,return,greet"])
	assert.Equal(t, 1.0, values["rulegrid_node_results_total,throw,greet"])
	assert.Equal(t, 7.0, values["rulegrid_graph_nodes"])
	assert.Equal(t, 3.0, values["rulegrid_invalidated_nodes_total"])
}

func TestPrometheusRecorder_NilSafe(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.ObserveNodeDuration("x", time.Second)
		pr.IncNodeResult("x", ResultNoop)
		pr.IncNodeRequest(false)
		pr.SetGraphSize(1)
		pr.AddInvalidated(1)
	})
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.SetGraphSize(2)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rulegrid_graph_nodes 2")
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.IncNodeResult("x", ResultReturn)
	r.SetGraphSize(1)
}
