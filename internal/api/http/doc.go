// Package http contains the HTTP handlers of the pipebench control plane.
//
// Routes:
//   - GET  /health         liveness and manager state
//   - GET  /stats          JSON snapshot of the run metrics
//   - GET  /runs           retained results and their summary
//   - GET  /runs/:id       one result
//   - GET  /report         all retained results encoded as json, yaml, toml or csv
//   - POST /runs           execute a run, optionally overriding parameters
package http
