// Package metrics exposes Prometheus metrics for lifecycle operations,
// convergence waits, volume cleanup and the polling watcher.
//
// Metrics are registered with the default registry at init. The watch
// command serves them over HTTP when watch.metrics_addr is set:
//
//	http.Handle("/metrics", metrics.Handler())
//
// Operations record themselves with a Timer:
//
//	timer := metrics.NewTimer()
//	err := doWork()
//	metrics.RecordOperation("start", timer, err)
package metrics
