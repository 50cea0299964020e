package requirements

import "sync"

// Requirement is "posterior is a precondition of anterior": both
// children connect simultaneously (no staged connect, unlike Response),
// and satisfied = posterior.satisfied && anterior.satisfied. The
// constructor takes its two children with indices reversed relative to
// Response (posterior first, anterior second).
type Requirement struct {
	parentLink

	posterior Node
	anterior  Node
	timer     *deadlineTimer

	mu        sync.Mutex
	satisfied bool
	finished  bool
}

// NewRequirement constructs a Requirement over (posterior, anterior)
// with the given stop-deadline in seconds (math.Inf(1) for no
// deadline). Parameter order matches the role names, not the original
// source's child-index convention.
func NewRequirement(posterior, anterior Node, timeoutSeconds float64) *Requirement {
	rq := &Requirement{posterior: posterior, anterior: anterior, satisfied: true}
	posterior.setParent(rq)
	anterior.setParent(rq)
	rq.timer = newDeadlineTimer(secondsToDuration(timeoutSeconds), rq.handleTimeout)
	return rq
}

func (rq *Requirement) Satisfied() bool {
	rq.mu.Lock()
	defer rq.mu.Unlock()
	return rq.satisfied
}

func (rq *Requirement) HandleDownstream(cmd Command) {
	rq.mu.Lock()
	if rq.finished {
		rq.mu.Unlock()
		return
	}
	rq.mu.Unlock()

	switch cmd.Type {
	case RosbridgeConnect:
		rq.posterior.HandleDownstream(cmd)
		rq.anterior.HandleDownstream(cmd)
		rq.timer.Start()
	case RosbridgeDisconnect:
		rq.timer.Stop()
		rq.posterior.HandleDownstream(cmd)
		rq.anterior.HandleDownstream(cmd)
		rq.recompute()
	}
}

func (rq *Requirement) HandleUpstream(_ Node, cmd Command) {
	switch cmd.Type {
	case StatusChange:
		rq.recompute()
	case StopSimulation:
		rq.reportUpstream(rq, cmd)
	}
}

func (rq *Requirement) recompute() {
	next := rq.posterior.Satisfied() && rq.anterior.Satisfied()

	rq.mu.Lock()
	if rq.finished {
		rq.mu.Unlock()
		return
	}
	changed := next != rq.satisfied
	if changed {
		rq.satisfied = next
	}
	rq.mu.Unlock()

	if changed && next {
		rq.timer.Stop()
		rq.posterior.HandleDownstream(BuildRosbridgeDisconnect())
		rq.anterior.HandleDownstream(BuildRosbridgeDisconnect())
		rq.reportUpstream(rq, BuildStatusChange())
	} else if changed {
		rq.reportUpstream(rq, BuildStatusChange())
	}
}

func (rq *Requirement) handleTimeout() {
	rq.mu.Lock()
	if rq.finished {
		rq.mu.Unlock()
		return
	}
	rq.mu.Unlock()

	satisfied := rq.posterior.Satisfied() && rq.anterior.Satisfied()

	rq.mu.Lock()
	if rq.finished {
		rq.mu.Unlock()
		return
	}
	rq.satisfied = satisfied
	rq.mu.Unlock()

	if satisfied {
		rq.posterior.HandleDownstream(BuildRosbridgeDisconnect())
		rq.anterior.HandleDownstream(BuildRosbridgeDisconnect())
		rq.reportUpstream(rq, BuildStatusChange())
		return
	}
	rq.reportUpstream(rq, BuildStopSimulation())
}

func (rq *Requirement) markFinished() {
	rq.mu.Lock()
	rq.finished = true
	rq.mu.Unlock()
	rq.timer.Stop()
	markChildFinished(rq.posterior)
	markChildFinished(rq.anterior)
}
