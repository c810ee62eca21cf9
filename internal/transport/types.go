package transport

import "context"

// Sender delivers one message to one destination address.
//
// Implementations block until the transport reports success or failure; the
// scheduler serializes sends, so adapters don't need their own queueing.
// Failures come back as errors, never as process aborts.
type Sender interface {
	Send(ctx context.Context, address, text string) error
	Close(ctx context.Context) error
}
