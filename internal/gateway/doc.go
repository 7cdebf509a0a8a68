// Package gateway implements a long-lived client for the real-time gateway.
//
// A Client owns one websocket at a time. After the server's Hello it starts
// the heartbeat and either identifies or resumes. Every dispatch event is
// applied to the local cache and then published on the Bus with its stable
// lower-case name ("guild create", "member update", ...). Transient
// disconnects are recovered by the reconnection policy in reconnect.go;
// fatal close codes terminate the client and surface through Done and Err.
//
// Frames from one connection are handled strictly in arrival order on a
// single goroutine, which is also where dispatch observers run.
package gateway
