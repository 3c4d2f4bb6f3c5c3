// Package correlator groups the raw protocol message stream by content
// stream for display. It observes the same messages the session sends and
// receives but never feeds anything back into the session.
package correlator

import (
	"fmt"
	"sync"

	"github.com/koscakluka/ema-s2s/core/events"
)

const shortIDLength = 8

type Group struct {
	Key       string
	Name      string
	Direction events.Direction
	Messages  []events.Message
	// Interrupted is set when the group holds the assistant's barge-in
	// marker.
	Interrupted bool
}

func (g Group) Count() int { return len(g.Messages) }

type Correlator struct {
	mu sync.Mutex

	// oldest first
	groups []*Group
	index  map[string]*Group

	inboundAudioStarts int
	lastStamp          int64

	maxGroups int
	onUpdate  func()
}

type Option func(*Correlator)

// WithMaxGroups bounds how many groups are kept. The oldest ones are
// forgotten first.
func WithMaxGroups(groups int) Option {
	return func(c *Correlator) {
		c.maxGroups = groups
	}
}

func WithUpdateCallback(callback func()) Option {
	return func(c *Correlator) {
		c.onUpdate = callback
	}
}

func New(opts ...Option) *Correlator {
	c := &Correlator{index: map[string]*Group{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Observe files msg under its display key. A message whose key and
// direction match an existing group joins it, otherwise it opens a new one.
func (c *Correlator) Observe(msg events.Message) {
	c.mu.Lock()
	key := c.keyLocked(msg)
	indexKey := string(msg.Direction) + "|" + key

	group, ok := c.index[indexKey]
	if !ok {
		group = &Group{Key: key, Name: msg.Name(), Direction: msg.Direction}
		c.groups = append(c.groups, group)
		c.index[indexKey] = group
		c.trimLocked()
	}
	group.Messages = append(group.Messages, msg)
	if textOutput, ok := msg.Event.(events.TextOutput); ok && textOutput.Interrupted() {
		group.Interrupted = true
	}
	c.mu.Unlock()

	if c.onUpdate != nil {
		c.onUpdate()
	}
}

// Groups returns a snapshot of the groups, newest first.
func (c *Correlator) Groups() []Group {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := make([]Group, 0, len(c.groups))
	for i := len(c.groups) - 1; i >= 0; i-- {
		group := *c.groups[i]
		group.Messages = append([]events.Message(nil), group.Messages...)
		snapshot = append(snapshot, group)
	}
	return snapshot
}

func (c *Correlator) Reset() {
	c.mu.Lock()
	c.groups = nil
	c.index = map[string]*Group{}
	c.inboundAudioStarts = 0
	c.lastStamp = 0
	c.mu.Unlock()

	if c.onUpdate != nil {
		c.onUpdate()
	}
}

func (c *Correlator) keyLocked(msg events.Message) string {
	switch event := msg.Event.(type) {
	case events.AudioOutput:
		return fmt.Sprintf("%s-%s", events.KindAudioOutput, short(event.ContentID))
	case events.AudioInput:
		return fmt.Sprintf("%s-%s-%d", events.KindAudioInput, short(event.ContentName), c.inboundAudioStarts)
	case events.ContentStart:
		key := fmt.Sprintf("%s-%s-%d", events.KindContentStart, event.Type, c.stampLocked(msg))
		if msg.Direction == events.DirectionInbound && event.Type == events.ContentTypeAudio {
			c.inboundAudioStarts++
		}
		return key
	default:
		return fmt.Sprintf("%s-%d", msg.Name(), c.stampLocked(msg))
	}
}

// stampLocked returns the message time in milliseconds, bumped past the
// previous stamp so no two id-less messages share a key.
func (c *Correlator) stampLocked(msg events.Message) int64 {
	stamp := msg.Timestamp.UnixMilli()
	if stamp <= c.lastStamp {
		stamp = c.lastStamp + 1
	}
	c.lastStamp = stamp
	return stamp
}

func (c *Correlator) trimLocked() {
	if c.maxGroups <= 0 || len(c.groups) <= c.maxGroups {
		return
	}

	drop := len(c.groups) - c.maxGroups
	for _, group := range c.groups[:drop] {
		delete(c.index, string(group.Direction)+"|"+group.Key)
	}
	c.groups = append([]*Group(nil), c.groups[drop:]...)
}

func short(id string) string {
	if len(id) > shortIDLength {
		return id[:shortIDLength]
	}
	return id
}
