// Package prometheus renders goIdentity metrics for Prometheus scrapes.
//
// [NewPrometheusExporter] accepts a [goIdentity.Engine] and exposes an
// [http.Handler] that renders all counters and histograms in text
// exposition format. Counter names are prefixed goidentity_*_total; the
// single histogram is goidentity_verify_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount
//     the Handler.
//   - Mutate engine state.
package prometheus
