/*
Package monitoring collects Prometheus metrics for benchmark runs and the
HTTP control plane.

# Overview

Each Metrics value owns its own registry so that tests and embedded runners
do not collide on the global default registry.

# Metrics

- Run outcomes, durations and last throughput (concurrent and baseline)
- Verification errors
- Per-queue occupancy and per-stage progress, sampled while a run is live
- HTTP request counts and latency
- WebSocket subscribers and messages
- Uptime

# Usage

	metrics := monitoring.NewMetrics()
	defer metrics.Close()

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	metrics.RecordRun("completed", elapsed, mpps, baselineMpps, errors)
*/
package monitoring
