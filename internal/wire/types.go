package wire

import "encoding/json"

// Frame type discriminators.
const (
	TypeAuthorization = "authorization"
	TypePing          = "ping"
	TypeAuthSuccess   = "auth_success"
	TypePong          = "pong"
	TypeHistory       = "history"
	TypeMessage       = "message"
	TypeReference     = "reference"
	TypeAudio         = "audio"
	TypeDone          = "done"
)

// Frame is one inbound frame, classified by its type discriminator.
// The variant set is closed; consumers match with a type switch.
// Payload returns the frame exactly as it arrived so passthrough
// forwarding stays byte-faithful.
type Frame interface {
	Payload() []byte

	frame()
}

// AuthSuccess acknowledges a valid authorization frame.
type AuthSuccess struct {
	Raw []byte
}

func (f AuthSuccess) Payload() []byte { return f.Raw }
func (AuthSuccess) frame()            {}

// Pong answers an application-level ping.
type Pong struct {
	Raw []byte
}

func (f Pong) Payload() []byte { return f.Raw }
func (Pong) frame()            {}

// History carries the stored conversation for the session. The server
// sends it once, right after auth_success.
type History struct {
	Raw      []byte
	Messages []ChatMessage
}

func (f History) Payload() []byte { return f.Raw }
func (History) frame()            {}

// ChatMessage is one entry inside a history frame.
type ChatMessage struct {
	Role      string   `json:"role"`
	Content   string   `json:"content"`
	Timestamp string   `json:"timestamp,omitempty"`
	Images    []string `json:"images,omitempty"`
}

// Message is one streamed chunk of an assistant reply.
type Message struct {
	Raw     []byte
	Content string
}

func (f Message) Payload() []byte { return f.Raw }
func (Message) frame()            {}

// Reference carries retrieval citations for the current reply. The
// payload shape varies by knowledge base, so it stays opaque.
type Reference struct {
	Raw       []byte
	Reference json.RawMessage
}

func (f Reference) Payload() []byte { return f.Raw }
func (Reference) frame()            {}

// Audio announces a synthesized speech file for a finished reply.
type Audio struct {
	Raw  []byte
	File string
}

func (f Audio) Payload() []byte { return f.Raw }
func (Audio) frame()            {}

// Done terminates a streamed reply. Error is set when Success is false.
type Done struct {
	Raw         []byte
	Success     bool
	Error       string
	SavedImages []string
}

func (f Done) Payload() []byte { return f.Raw }
func (Done) frame()            {}

// Unknown is a parseable JSON frame whose type has no decoder here.
type Unknown struct {
	Raw  []byte
	Type string
}

func (f Unknown) Payload() []byte { return f.Raw }
func (Unknown) frame()            {}

// Opaque is a frame with no usable type discriminator: non-JSON
// payloads, JSON scalars or arrays, and objects without a type field.
type Opaque struct {
	Raw []byte
}

func (f Opaque) Payload() []byte { return f.Raw }
func (Opaque) frame()            {}
