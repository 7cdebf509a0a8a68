// Package connection implements the gateway transport.
//
// A Transport wraps a single websocket connection:
//   - Writes are serialized so concurrent senders never interleave frames
//   - Inbound frames are queued in arrival order and never dropped
//   - When the socket ends, the close code, reason and whether a close
//     frame was exchanged are reported through CloseEvent
//
// A Transport is single-use. Reconnecting means dialing a new one.
package connection
