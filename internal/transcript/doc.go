// Package transcript records a client-side copy of the conversation.
//
// A Recorder accumulates entries per session:
//   - user entries from locally sent messages
//   - assistant entries assembled from streamed message chunks,
//     committed when the done frame arrives
//   - server history dumps, which reset the local record
//
// Flush persists the record as JSON under the transcript directory,
// one file per session, written atomically.
package transcript
