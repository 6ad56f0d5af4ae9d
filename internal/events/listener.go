package events

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// ChannelListener buffers delivered events on a channel and drops events
// once the buffer is full.
type ChannelListener struct {
	id        string
	profileID string
	ch        chan *Event
	dropped   atomic.Int64
}

// NewChannelListener creates a listener for profileID with room for size
// undelivered events.
func NewChannelListener(profileID string, size int) *ChannelListener {
	if size <= 0 {
		size = 1
	}
	return &ChannelListener{
		id:        uuid.NewString(),
		profileID: profileID,
		ch:        make(chan *Event, size),
	}
}

func (l *ChannelListener) ID() string        { return l.id }
func (l *ChannelListener) ProfileID() string { return l.profileID }

func (l *ChannelListener) Deliver(evt *Event) {
	select {
	case l.ch <- evt:
	default:
		l.dropped.Add(1)
	}
}

// Events returns the delivery channel.
func (l *ChannelListener) Events() <-chan *Event {
	return l.ch
}

// Dropped returns how many events were discarded for lack of room.
func (l *ChannelListener) Dropped() int64 {
	return l.dropped.Load()
}
