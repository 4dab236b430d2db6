// Package bench runs benchmarks on behalf of the CLI and the control plane.
//
// The Manager executes one run at a time, assigns run ids, keeps a bounded
// history of results, records metrics and fans live progress samples out to
// subscribers while a run is in flight.
package bench
