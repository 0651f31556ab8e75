package bus

// Topics the core publishes and consumes. Producers outside the core (UI,
// voice front-ends) use the same constants.
const (
	TopicInputText        = "input.text"
	TopicInputTextPartial = "input.text.partial"
	TopicOutputText       = "output.text"
)

// Source identifies the producer of an input event.
type Source string

const (
	SourceUI    Source = "ui"
	SourceCLI   Source = "cli"
	SourceVoice Source = "voice"
)

// InputText is the payload for input.text and input.text.partial.
type InputText struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	TS        int64  `json:"ts"`
	Text      string `json:"text"`
	Source    Source `json:"source"`
}

// OutputText is the payload for output.text. Thinking carries optional
// model reasoning for front-ends that render it.
type OutputText struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	TS        int64  `json:"ts"`
	Text      string `json:"text"`
	Thinking  string `json:"thinking,omitempty"`
}
