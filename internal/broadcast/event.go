package broadcast

import "github.com/google/uuid"

// SourceType labels who originated an Event for diagnostics. It is never
// observable on the SSE wire.
type SourceType string

// Known event source types.
const (
	SourcePublish SourceType = "publish"
)

// Event carries exactly one semantically meaningful field: Payload, the
// opaque string handed to Broadcast. ChannelID and Source are retained
// only for diagnostics and are never serialized to the wire.
type Event struct {
	Payload   string
	ChannelID uuid.UUID
	Source    SourceType
}

// newEvent builds an Event for delivery on channel id.
func newEvent(channelID uuid.UUID, payload string) Event {
	return Event{
		Payload:   payload,
		ChannelID: channelID,
		Source:    SourcePublish,
	}
}
