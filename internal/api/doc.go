// Package api provides the REST collaborator of the gateway client.
//
// REST endpoints:
//   - GET /gateway/bot resolves the websocket URL for bot accounts
//
// Requests authenticate with "Authorization: Bot <token>". Budget throttles
// outbound requests and gateway commands and is reset before every
// gateway reconnect.
package api
