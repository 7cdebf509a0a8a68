// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Gateway connection state, closes by code and reconnects by kind
//   - Heartbeat round-trip latency and zombie connections
//   - Dispatch throughput, decode failures and unhandled events
//   - Cache size and last sequence number
//
// A nil *Collector is valid and records nothing.
package metrics
