// Command pipebench measures the throughput of a multi-stage batched ring
// pipeline against a single-threaded pass over the same items.
//
// Usage:
//
//	# One run with the default shape (2 stages, 2^20 items, batch 32, capacity 1024)
//	pipebench
//
//	# Five runs, four stages, with a compressed report
//	pipebench run -stages 4 -runs 5 -report results.json.zst
//
//	# HTTP control plane with Prometheus metrics and a websocket live feed
//	pipebench serve -port 8080
//
// Configuration is read from PIPEBENCH_* and related environment variables,
// then from the -config file, then from flags.
//
// Signals:
//   - SIGINT, SIGTERM: abort the current run, or shut the server down
package main
