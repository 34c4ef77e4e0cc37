package testutil

import (
	"errors"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
)

// ErrBusDown is returned by NATSBus.PublishMsg after FailNext
var ErrBusDown = errors.New("nats: connection closed")

// NATSBus stands in for a NATS server shared by several connections.
// Messages are delivered synchronously to every subscription whose subject
// pattern matches ("*" matches one token).
type NATSBus struct {
	mu       sync.Mutex
	handlers map[string][]nats.MsgHandler
	failNext bool
}

// NewNATSBus creates an empty bus
func NewNATSBus() *NATSBus {
	return &NATSBus{handlers: make(map[string][]nats.MsgHandler)}
}

// PublishMsg delivers the message to matching subscribers
func (b *NATSBus) PublishMsg(msg *nats.Msg) error {
	b.mu.Lock()
	if b.failNext {
		b.failNext = false
		b.mu.Unlock()
		return ErrBusDown
	}
	var targets []nats.MsgHandler
	for pattern, hs := range b.handlers {
		if MatchSubject(pattern, msg.Subject) {
			targets = append(targets, hs...)
		}
	}
	b.mu.Unlock()

	for _, h := range targets {
		h(msg)
	}
	return nil
}

// Subscribe registers a handler. The returned subscription is always nil.
func (b *NATSBus) Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[subject] = append(b.handlers[subject], cb)
	return nil, nil
}

// FailNext makes the next publish fail
func (b *NATSBus) FailNext() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext = true
}

// MatchSubject reports whether a subject matches a pattern
func MatchSubject(pattern, subject string) bool {
	p := strings.Split(pattern, ".")
	s := strings.Split(subject, ".")
	if len(p) != len(s) {
		return false
	}
	for i := range p {
		if p[i] != "*" && p[i] != s[i] {
			return false
		}
	}
	return true
}
