package requirements

import "sync"

// Prevention is "anterior forbids subsequent posterior": satisfied
// becomes permanently false the instant both anterior and posterior are
// satisfied — a point of no return that ends the simulation immediately
// rather than waiting for any deadline. The check reads both children's
// current Satisfied values at each StatusChange.
type Prevention struct {
	parentLink

	anterior  Node
	posterior Node
	timer     *deadlineTimer

	mu        sync.Mutex
	satisfied bool
	violated  bool
	finished  bool
}

// NewPrevention constructs a Prevention over (anterior, posterior) with
// the given deadline in seconds (math.Inf(1) for no deadline).
func NewPrevention(anterior, posterior Node, timeoutSeconds float64) *Prevention {
	p := &Prevention{anterior: anterior, posterior: posterior, satisfied: true}
	anterior.setParent(p)
	posterior.setParent(p)
	p.timer = newDeadlineTimer(secondsToDuration(timeoutSeconds), p.handleTimeout)
	return p
}

func (p *Prevention) Satisfied() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.satisfied
}

func (p *Prevention) HandleDownstream(cmd Command) {
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	switch cmd.Type {
	case RosbridgeConnect:
		p.anterior.HandleDownstream(cmd)
		p.posterior.HandleDownstream(cmd)
		p.timer.Start()
	case RosbridgeDisconnect:
		p.timer.Stop()
		p.anterior.HandleDownstream(cmd)
		p.posterior.HandleDownstream(cmd)
	}
}

func (p *Prevention) HandleUpstream(_ Node, cmd Command) {
	switch cmd.Type {
	case StatusChange:
		p.recompute()
	case StopSimulation:
		p.reportUpstream(p, cmd)
	}
}

// recompute checks for the point-of-no-return condition: both children
// satisfied at once. It does not otherwise change satisfied — that is
// only ever decided definitively, either here (to false, permanently)
// or at timer fire.
func (p *Prevention) recompute() {
	p.mu.Lock()
	if p.finished || p.violated {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	if !(p.anterior.Satisfied() && p.posterior.Satisfied()) {
		return
	}

	p.mu.Lock()
	if p.finished || p.violated {
		p.mu.Unlock()
		return
	}
	p.violated = true
	p.satisfied = false
	p.mu.Unlock()

	p.timer.Stop()
	p.anterior.HandleDownstream(BuildRosbridgeDisconnect())
	p.posterior.HandleDownstream(BuildRosbridgeDisconnect())
	p.reportUpstream(p, BuildStopSimulation())
}

// handleTimeout fires on deadline, for the case where the point of no
// return was never reached: satisfied iff the anterior fired without
// the posterior ever following it.
func (p *Prevention) handleTimeout() {
	p.mu.Lock()
	if p.finished || p.violated {
		p.mu.Unlock()
		return
	}
	satisfied := p.anterior.Satisfied() && !p.posterior.Satisfied()
	p.satisfied = satisfied
	p.mu.Unlock()

	if !satisfied {
		p.reportUpstream(p, BuildStopSimulation())
	}
}

func (p *Prevention) markFinished() {
	p.mu.Lock()
	p.finished = true
	p.mu.Unlock()
	p.timer.Stop()
	markChildFinished(p.anterior)
	markChildFinished(p.posterior)
}
