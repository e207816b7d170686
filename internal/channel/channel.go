// Package channel routes request notifications to the sender registered for
// the contact channel a request names. It also provides helpers shared by
// concrete senders: responder allow-lists and text chunking.
package channel

import "github.com/flemzord/hlbroker/internal/approval"

// Sender delivers notifications over one kind of contact channel.
// Every concrete channel module (Slack, ...) implements this interface and
// is registered on the Router during wiring.
type Sender interface {
	approval.Notifier

	// Kind is the ContactChannel variant this sender serves.
	Kind() approval.ChannelKind
}
