// Package metrics records build and stage metrics for xcodebuilder.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics collection needs no nil checks:
//
//	orch := pipeline.New(cfg, run, pipeline.WithRecorder(metrics.NoopRecorder{}))
//
// When a metrics textfile is configured the CLI swaps in a PrometheusRecorder
// and writes its registry after each run in the node_exporter textfile format:
//
//	rec := metrics.NewPrometheusRecorder(nil)
//	...
//	err := rec.WriteTextfile("/var/lib/node_exporter/xcodebuilder.prom")
package metrics
