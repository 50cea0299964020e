package requirements

import (
	"sync"

	"github.com/nugget/simreq/internal/bridge"
)

// Manager is the root of a requirements tree: it orchestrates the start
// and stop deadlines, drives the bridge connect/disconnect broadcast,
// aggregates its top-level children by conjunction, and is the sole
// authority that toggles Finished. satisfied starts false and is
// recomputed as the AND of all children on every StatusChange; the
// min-timeout pass uses the stricter assessVacuousChildren instead.
type Manager struct {
	children []Node

	maxTimeout *deadlineTimer
	minTimeout *deadlineTimer

	mu        sync.Mutex
	satisfied bool
	finished  bool
}

// NewManager constructs a Manager with a hard stop deadline (maxTimeoutSeconds)
// and an optional earliest-assessment deadline (minTimeoutSeconds, 0 or
// negative meaning "assess immediately at Connect").
func NewManager(maxTimeoutSeconds, minTimeoutSeconds float64) *Manager {
	m := &Manager{}
	m.maxTimeout = newDeadlineTimer(secondsToDuration(maxTimeoutSeconds), m.handleMaxTimeout)
	m.minTimeout = newDeadlineTimer(secondsToDuration(minTimeoutSeconds), m.handleMinTimeout)
	return m
}

// AddChild attaches a top-level requirement tree to the manager. Must be
// called before Connect; the tree is frozen structurally thereafter.
func (m *Manager) AddChild(child Node) {
	child.setParent(m)
	m.children = append(m.children, child)
}

// Connect broadcasts RosbridgeConnect(client) downstream to every
// top-level child and starts both deadlines.
func (m *Manager) Connect(client bridge.Client) {
	cmd := BuildRosbridgeConnect(client)
	for _, c := range m.children {
		c.HandleDownstream(cmd)
	}

	// A non-finite (<=0) min-timeout means "assess immediately": there
	// is nothing to wait for, so emulate the StatusChange directly
	// instead of arming a timer for a duration that would never fire.
	if !isFinite(m.minTimeout.d) {
		m.handleMinTimeout()
	} else {
		m.minTimeout.Start()
	}
	m.maxTimeout.Start()
}

// Disconnect broadcasts RosbridgeDisconnect downstream to every
// top-level child.
func (m *Manager) Disconnect() {
	cmd := BuildRosbridgeDisconnect()
	for _, c := range m.children {
		c.HandleDownstream(cmd)
	}
}

// Satisfied reports the conjunction of all top-level children's
// satisfaction. A manager with no children remains unsatisfied until
// max_timeout, permitting timeout-bounded free-running simulations.
func (m *Manager) Satisfied() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.satisfied
}

// Finished reports whether the simulation has ended (by satisfaction,
// by StopSimulation from a descendant, or by max_timeout).
func (m *Manager) Finished() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finished
}

// HandleUpstream implements upstreamReceiver so children's setParent
// wiring can target the Manager directly.
func (m *Manager) HandleUpstream(_ Node, cmd Command) {
	switch cmd.Type {
	case StatusChange:
		m.handleChildrenStatusChange()
	case StopSimulation:
		m.stopTimers()
		m.stopSimulation()
	}
}

func (m *Manager) assessChildren() bool {
	if len(m.children) == 0 {
		return false
	}
	for _, c := range m.children {
		if !c.Satisfied() {
			return false
		}
	}
	return true
}

// vacuousPattern is implemented only by pattern kinds that are
// satisfied by construction before any child has ever reported a
// StatusChange (Absence, vacuously true until violated). Response,
// Requirement, and Prevention also seed Satisfied() with a starting
// value, but theirs is a placeholder pending their first real
// recompute, not a genuine assessment — assessVacuousChildren must not
// read it as one.
type vacuousPattern interface {
	vacuousPattern()
}

// assessVacuousChildren is used only for the one-shot check at Connect
// when min_timeout is non-finite. It holds only if every top-level
// child is both vacuously-satisfiable by kind and currently satisfied;
// any child of a non-vacuous kind forces false, since that child has
// not yet had the chance to observe anything.
func (m *Manager) assessVacuousChildren() bool {
	if len(m.children) == 0 {
		return false
	}
	for _, c := range m.children {
		if _, ok := c.(vacuousPattern); !ok {
			return false
		}
		if !c.Satisfied() {
			return false
		}
	}
	return true
}

func (m *Manager) handleChildrenStatusChange() {
	next := m.assessChildren()

	m.mu.Lock()
	if m.finished {
		m.mu.Unlock()
		return
	}
	changed := next != m.satisfied
	if changed {
		m.satisfied = next
	}
	m.mu.Unlock()

	if changed && next {
		m.stopTimers()
		m.stopSimulation()
	}
}

// handleMinTimeout runs the one-shot vacuous-satisfaction check at the
// earliest-assessment deadline, to detect requirements that are already
// satisfied by construction (e.g. an Absence whose child never fires).
// It must not read a pattern's pre-witness placeholder as genuine
// satisfaction, so it uses assessVacuousChildren rather than the
// ordinary assessChildren used for real StatusChange events.
func (m *Manager) handleMinTimeout() {
	next := m.assessVacuousChildren()

	m.mu.Lock()
	if m.finished {
		m.mu.Unlock()
		return
	}
	changed := next != m.satisfied
	if changed {
		m.satisfied = next
	}
	m.mu.Unlock()

	if changed && next {
		m.stopTimers()
		m.stopSimulation()
	}
}

func (m *Manager) handleMaxTimeout() {
	m.stopSimulation()
}

func (m *Manager) stopTimers() {
	m.minTimeout.Stop()
	m.maxTimeout.Stop()
}

// stopSimulation sets Finished and disconnects the tree. Idempotent.
func (m *Manager) stopSimulation() {
	m.mu.Lock()
	if m.finished {
		m.mu.Unlock()
		return
	}
	m.finished = true
	m.mu.Unlock()

	m.Disconnect()
	for _, c := range m.children {
		markChildFinished(c)
	}
}
