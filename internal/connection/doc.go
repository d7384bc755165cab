// Package connection implements the persistent chat connection manager.
//
// The manager:
//   - Maintains one logical WebSocket connection per chat session
//   - Gates traffic behind the backend's authorization handshake
//   - Queues pending sends across reconnects, dropping oldest when full
//   - Keeps the socket alive with application-level ping frames
//   - Reconnects with capped exponential backoff plus jitter
//   - Surfaces lifecycle and inbound frames through an EventHandler
package connection
