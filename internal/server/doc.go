// Package server wires the pipebench control plane.
//
// It builds the bench manager and metrics, installs the middleware stack
// (recovery, request logging, metrics, CORS, rate limiting) and registers the
// REST, metrics and live feed routes on a Gin router.
//
// Server Lifecycle:
//  1. Load configuration from environment, file and flags
//  2. Create the logger
//  3. NewServer builds metrics, manager and routes
//  4. Run serves until Shutdown
//  5. Shutdown drains connections and stops the metrics updater
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv := server.NewServer(cfg, logging.Nop())
//	go srv.Run()
//	<-ctx.Done()
//	srv.Shutdown(context.Background())
package server
