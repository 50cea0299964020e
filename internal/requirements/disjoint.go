package requirements

import "sync"

// Disjoint is the OR combinator: satisfied iff any child is satisfied.
// It forwards connect/disconnect to every child and recomputes on any
// child's StatusChange, propagating upward only when its own value
// actually changes. Built by the parser for an event disjunction
// ("event(...) or event(...)").
type Disjoint struct {
	parentLink

	children []Node

	mu        sync.Mutex
	satisfied bool
	listening bool
	finished  bool
}

// NewDisjoint constructs a combinator over children, wiring each
// child's parent back-reference to this node.
func NewDisjoint(children ...Node) *Disjoint {
	d := &Disjoint{children: children}
	for _, c := range children {
		c.setParent(d)
	}
	return d
}

func (d *Disjoint) Satisfied() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.satisfied
}

func (d *Disjoint) HandleDownstream(cmd Command) {
	d.mu.Lock()
	finished := d.finished
	if !finished {
		switch cmd.Type {
		case RosbridgeConnect:
			d.listening = true
		case RosbridgeDisconnect:
			d.listening = false
		}
	}
	d.mu.Unlock()
	if finished {
		return
	}

	for _, c := range d.children {
		c.HandleDownstream(cmd)
	}
}

// Listening reports whether the combinator is currently forwarding a
// live subscription to its children, so an ancestor Response/Requirement
// can detect "not yet connected" regardless of whether its posterior is
// a Simple leaf or a Disjoint of events.
func (d *Disjoint) Listening() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listening
}

func (d *Disjoint) HandleUpstream(_ Node, cmd Command) {
	switch cmd.Type {
	case StatusChange:
		d.recompute()
	case StopSimulation:
		d.reportUpstream(d, cmd)
	}
}

func (d *Disjoint) recompute() {
	next := false
	for _, c := range d.children {
		if c.Satisfied() {
			next = true
			break
		}
	}

	d.mu.Lock()
	if d.finished {
		d.mu.Unlock()
		return
	}
	changed := next != d.satisfied
	if changed {
		d.satisfied = next
	}
	d.mu.Unlock()

	if changed {
		d.reportUpstream(d, BuildStatusChange())
	}
}

// markFinished stops further propagation once an ancestor Manager
// finishes.
func (d *Disjoint) markFinished() {
	d.mu.Lock()
	d.finished = true
	d.mu.Unlock()
	for _, c := range d.children {
		markChildFinished(c)
	}
}
