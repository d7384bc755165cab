// Package wire implements the chat socket's JSON frame protocol.
//
// The protocol:
//   - Text frames only, discriminated by a "type" field
//   - Client sends authorization first, then pings and business payloads
//   - Server answers with auth_success, history, then streamed reply
//     frames (message, reference, audio) terminated by done
//
// Inbound frames decode into a closed Frame union so consumers can match
// exhaustively; payloads that don't parse stay byte-faithful for
// passthrough.
package wire
