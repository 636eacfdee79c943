// Package telegram binds transport.Transport to Telegram. The real Bot API SDK (long
// polling or webhook ingestion, update parsing) is an out-of-scope collaborator per §6;
// this package's job is narrower: normalize whatever the client already parsed into the
// common Envelope shape and hand it to the message processor's inbound channel. Grounded
// on the teacher's internal/adapters/botapi/notifier (same "thin struct wrapping an
// outbound sender" shape as BotSender), generalized to also carry inbound updates since
// this spec's transport is bidirectional, not send-only.
package telegram

import (
	"context"
	"time"

	"github.com/jnyross/secondbrain/internal/logging"
	"github.com/jnyross/secondbrain/internal/transport"
	"github.com/jnyross/secondbrain/internal/types"
	"go.uber.org/zap"
)

// Update is one inbound Telegram message already parsed by BotAPIClient; this package
// only normalizes it into an Envelope, it does not parse Bot API JSON itself.
type Update struct {
	ChatID    string
	MessageID string
	Text      string
	AudioURL  string // set for voice messages instead of Text
	Timestamp time.Time
}

// BotAPIClient is the out-of-scope collaborator wrapping the real Telegram Bot API SDK
// (§6): outbound sendMessage plus a channel of already-parsed inbound updates.
type BotAPIClient interface {
	SendMessage(ctx context.Context, chatID, text string) error
	Updates() <-chan Update
}

// Transport adapts a BotAPIClient to transport.Transport.
type Transport struct {
	client BotAPIClient
	out    chan transport.Envelope
}

var _ transport.Transport = (*Transport)(nil)

// New builds a Telegram Transport. bufferSize sizes the inbound envelope channel;
// pass 0 for a reasonable default.
func New(client BotAPIClient, bufferSize int) *Transport {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Transport{client: client, out: make(chan transport.Envelope, bufferSize)}
}

// Send delivers env.Text to env.ChatID via the Bot API.
func (t *Transport) Send(ctx context.Context, env transport.Envelope) error {
	return t.client.SendMessage(ctx, env.ChatID, env.Text)
}

// Receive returns the channel normalized inbound envelopes arrive on.
func (t *Transport) Receive() <-chan transport.Envelope { return t.out }

// Run drains the client's update channel into normalized envelopes until ctx is
// cancelled or the client closes its channel, then closes Receive()'s channel.
func (t *Transport) Run(ctx context.Context) {
	defer close(t.out)
	updates := t.client.Updates()
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			env := normalize(u)
			select {
			case t.out <- env:
			case <-ctx.Done():
				return
			default:
				logging.Warn("telegram: dropping update, receiver channel full",
					zap.String("chat_id", u.ChatID), zap.String("message_id", u.MessageID))
			}
		}
	}
}

func normalize(u Update) transport.Envelope {
	source := types.SourceTelegramText
	if u.AudioURL != "" {
		source = types.SourceTelegramVoice
	}
	ts := u.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return transport.Envelope{
		Source:    source,
		ChatID:    u.ChatID,
		MessageID: u.MessageID,
		Text:      u.Text,
		AudioURL:  u.AudioURL,
		Timestamp: ts,
	}
}
