package queue

import "context"

// Job handles one message type.
type Job interface {
	Name() string
	// Type is the message type routed to this job.
	Type() string
	// Handle receives the payload as json.RawMessage; use ParsePayload.
	// A returned error schedules a retry until the retry limit is reached.
	Handle(ctx context.Context, payload interface{}) error
}
