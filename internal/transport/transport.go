// Package transport defines the common chat-channel abstraction every transport binds
// to (§6 glossary: "Transport — a chat channel abstracted to a common envelope"). The
// inbound flow is Transport -> Envelope -> MessageProcessor (§1); this package owns only
// the envelope shape and the interface, not any one transport's wire protocol — those are
// out-of-scope collaborators per §6 ("core depends on, does not implement"), except for
// the WhatsApp webhook handshake/signature check, which §6 specifies completely enough
// to implement directly.
package transport

import (
	"context"
	"time"

	"github.com/jnyross/secondbrain/internal/types"
)

// Envelope is the transport-agnostic shape an inbound message is normalized into before
// reaching the message processor, and the shape an outbound reply is expressed in before
// a transport renders it onto its own wire protocol.
type Envelope struct {
	Source    types.Source
	ChatID    string
	MessageID string
	Text      string
	// AudioURL is set instead of Text for voice messages (§1's "voice transcriptions");
	// the speech-to-text step is an out-of-scope collaborator (§6) run upstream of here.
	AudioURL  string
	Timestamp time.Time
}

// IsVoice reports whether this envelope carries audio rather than already-transcribed
// text.
func (e Envelope) IsVoice() bool { return e.AudioURL != "" }

// Transport is the common interface every chat channel binds to (§6 glossary).
type Transport interface {
	// Send delivers an outbound envelope (only ChatID and Text are used).
	Send(ctx context.Context, env Envelope) error
	// Receive returns the channel inbound envelopes arrive on. Closed when the
	// transport's Run loop exits.
	Receive() <-chan Envelope
}
