// Package bus provides the default dispatch sink for the governor's event
// coalescer: a plain observer registry with per-handler fault isolation.
package bus

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Handler receives a finalized event dispatch.
type Handler func(name string, args ...any)

// FaultReporter receives handler panics. Matches the governor's
// DiagnosticSink shape loosely so a Bus can be wired to one with a closure.
type FaultReporter func(message string)

// Bus is a minimal publish/subscribe registry. Dispatch invokes every
// handler registered for the event name; a panicking handler is isolated,
// reported, and does not stop delivery to the rest.
//
// Not thread-safe; like the governor itself it expects a single logical
// thread.
type Bus struct {
	handlers map[string][]*subscription
	onFault  FaultReporter
}

type subscription struct {
	h Handler
}

// New creates an empty Bus. A nil reporter logs faults via logrus.
func New(onFault FaultReporter) *Bus {
	if onFault == nil {
		onFault = func(msg string) { logrus.WithField("component", "bus").Error(msg) }
	}
	return &Bus{
		handlers: make(map[string][]*subscription),
		onFault:  onFault,
	}
}

// Subscribe registers h for name and returns a token for Unsubscribe.
func (b *Bus) Subscribe(name string, h Handler) *Subscription {
	if h == nil {
		return nil
	}
	s := &subscription{h: h}
	b.handlers[name] = append(b.handlers[name], s)
	return &Subscription{bus: b, name: name, sub: s}
}

// Dispatch delivers the event to every current subscriber of name.
func (b *Bus) Dispatch(name string, args ...any) {
	for _, s := range b.handlers[name] {
		b.deliver(name, s, args)
	}
}

func (b *Bus) deliver(name string, s *subscription, args []any) {
	defer func() {
		if r := recover(); r != nil {
			b.onFault(fmt.Sprintf("handler panic for %q: %v", name, r))
		}
	}()
	s.h(name, args...)
}

// SubscriberCount returns the number of handlers registered for name.
func (b *Bus) SubscriberCount(name string) int {
	return len(b.handlers[name])
}

// Subscription identifies one Subscribe call.
type Subscription struct {
	bus  *Bus
	name string
	sub  *subscription
}

// Unsubscribe removes the handler. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.bus == nil {
		return
	}
	subs := s.bus.handlers[s.name]
	for i, cur := range subs {
		if cur == s.sub {
			s.bus.handlers[s.name] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	s.bus = nil
}
