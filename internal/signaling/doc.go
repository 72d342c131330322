// Package signaling serves the chat relay's WebSocket endpoint.
//
// Each connection gets a Mediator that drives WebRTC negotiation for the
// session and turns chat input (from the DataChannel, or the WebSocket when no
// DataChannel is open) into broadcasts.
package signaling
