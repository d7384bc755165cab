package wire

import "encoding/json"

// envelope extracts just the discriminator.
type envelope struct {
	Type string `json:"type"`
}

// Wire structs for frame bodies.

type historyWire struct {
	Messages []ChatMessage `json:"messages"`
}

type messageWire struct {
	Content string `json:"content"`
}

type referenceWire struct {
	Reference json.RawMessage `json:"reference"`
}

type audioWire struct {
	File string `json:"file"`
}

type doneWire struct {
	Success     bool     `json:"success"`
	Error       string   `json:"error"`
	SavedImages []string `json:"saved_images"`
}

// Decode classifies one inbound payload. It is total: anything without
// a recognized JSON shape comes back as Opaque or Unknown rather than
// an error, because those frames are forwarded untouched. The type
// field alone decides the variant; body fields are filled best-effort.
func Decode(data []byte) Frame {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
		return Opaque{Raw: data}
	}

	switch env.Type {
	case TypeAuthSuccess:
		return AuthSuccess{Raw: data}

	case TypePong:
		return Pong{Raw: data}

	case TypeHistory:
		var w historyWire
		_ = json.Unmarshal(data, &w)
		return History{Raw: data, Messages: w.Messages}

	case TypeMessage:
		var w messageWire
		_ = json.Unmarshal(data, &w)
		return Message{Raw: data, Content: w.Content}

	case TypeReference:
		var w referenceWire
		_ = json.Unmarshal(data, &w)
		return Reference{Raw: data, Reference: w.Reference}

	case TypeAudio:
		var w audioWire
		_ = json.Unmarshal(data, &w)
		return Audio{Raw: data, File: w.File}

	case TypeDone:
		var w doneWire
		_ = json.Unmarshal(data, &w)
		return Done{Raw: data, Success: w.Success, Error: w.Error, SavedImages: w.SavedImages}

	default:
		return Unknown{Raw: data, Type: env.Type}
	}
}
