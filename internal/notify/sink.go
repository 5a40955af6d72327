// Package notify delivers one completion summary per finished call to the
// owning group's chat channel. Delivery is at-least-once: a record is
// marked notified only after the sink confirms the send.
package notify

import "context"

// Sink is the outbound delivery contract. Platform implementations live in
// the slack and discord subpackages.
type Sink interface {
	// Send delivers text to a channel. A nil return means the platform
	// accepted the message.
	Send(ctx context.Context, channelID, text string) error
}
