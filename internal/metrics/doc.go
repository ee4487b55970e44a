// Package metrics records engine activity.
//
// Components take a Recorder and default to NoopRecorder, so call sites never
// check for nil. PrometheusRecorder forwards to a prometheus registry, which
// the app exposes on /metrics next to the health check.
package metrics
