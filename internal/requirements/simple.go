package requirements

import (
	"fmt"
	"sync"

	"github.com/nugget/simreq/internal/bridge"
	"github.com/nugget/simreq/internal/predicate"
)

// Simple is a leaf node: it subscribes to one topic, applies a compiled
// predicate to each inbound message, and emits StatusChange upstream on
// a satisfaction transition.
type Simple struct {
	parentLink

	topic       string
	messageType string
	predicate   predicate.Predicate

	mu        sync.Mutex
	satisfied bool
	listening bool
	finished  bool
	handler   bridge.Handler
	client    bridge.Client
	lastErr   error
}

// NewSimple constructs a leaf for (topic, messageType), evaluating pred
// against every inbound message.
func NewSimple(topic, messageType string, pred predicate.Predicate) *Simple {
	s := &Simple{topic: topic, messageType: messageType, predicate: pred}
	s.handler = s.handleMessage
	return s
}

func (s *Simple) Satisfied() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.satisfied
}

// Listening reports whether the leaf currently holds a live
// subscription, for asserting invariant P1/P4 in tests.
func (s *Simple) Listening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listening
}

// LastError returns the most recent bridge error the leaf hit while
// trying to subscribe, or nil if it has never failed to do so.
func (s *Simple) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// markFinished stops the leaf from reacting to further messages or
// commands: once finished, it never propagates another StatusChange.
func (s *Simple) markFinished() {
	s.mu.Lock()
	s.finished = true
	s.mu.Unlock()
}

func (s *Simple) HandleDownstream(cmd Command) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}

	switch cmd.Type {
	case RosbridgeConnect:
		if s.listening {
			s.mu.Unlock()
			return // idempotent
		}
		s.client = cmd.Client
		client, handler := s.client, &s.handler
		topic, messageType := s.topic, s.messageType
		s.mu.Unlock()

		err := client.RegisterMessageHandler(topic, messageType, handler)

		s.mu.Lock()
		if s.finished {
			s.mu.Unlock()
			return
		}
		if err != nil {
			s.lastErr = fmt.Errorf("%w: %s/%s: %v", ErrBridgeUnavailable, topic, messageType, err)
			s.mu.Unlock()
			s.reportUpstream(s, BuildStopSimulation())
			return
		}
		s.listening = true
		s.mu.Unlock()
	case RosbridgeDisconnect:
		if !s.listening {
			s.mu.Unlock()
			return // idempotent
		}
		client, handler := s.client, &s.handler
		topic, messageType := s.topic, s.messageType
		s.listening = false
		s.mu.Unlock()

		if client != nil {
			_ = client.RemoveMessageHandler(topic, messageType, handler)
		}
	default:
		s.mu.Unlock()
	}
}

// HandleUpstream is unreachable for a leaf — it has no children — but
// is implemented to satisfy Node.
func (s *Simple) HandleUpstream(Node, Command) {}

// handleMessage evaluates the predicate against an inbound message and
// flips satisfied on a transition, emitting StatusChange upstream. A
// predicate that panics is treated as evaluating to false for that
// message and does not mutate state or propagate, per the leaf's
// failure semantics.
func (s *Simple) handleMessage(msg bridge.Message) {
	result := evaluateSafely(s.predicate, predicate.Message(msg))

	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	changed := result != s.satisfied
	if changed {
		s.satisfied = result
	}
	s.mu.Unlock()

	if changed {
		s.reportUpstream(s, BuildStatusChange())
	}
}

// evaluateSafely calls pred(msg) and recovers a panicking predicate as
// a false result, so one malformed message can't tear down evaluation.
func evaluateSafely(pred predicate.Predicate, msg predicate.Message) (result bool) {
	defer func() {
		if recover() != nil {
			result = false
		}
	}()
	return pred(msg)
}
