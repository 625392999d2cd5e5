// Package prometheus provides Prometheus collectors for adminhub metrics.
//
// [NewPrometheusExporter] accepts an [adminhub.Engine] and exposes an [http.Handler]
// that renders all adminhub counters and histograms in Prometheus text exposition format.
// Counter names are prefixed adminhub_*_total; the single histogram is
// adminhub_authenticate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate engine state.
package prometheus
