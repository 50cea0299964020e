package requirements

import "sync"

// Response is the "anterior then posterior" ordered pattern:
// satisfied = anterior.satisfied && posterior.satisfied, with the
// ordering constraint enforced structurally rather than checked after
// the fact — the posterior is never even subscribed until the anterior
// first satisfies, so a posterior witness before that point is simply
// never observed.
type Response struct {
	parentLink

	anterior  Node
	posterior Node
	timer     *deadlineTimer

	mu        sync.Mutex
	satisfied bool
	finished  bool
	saved     Command // the RosbridgeConnect to forward to posterior once anterior satisfies
	haveSaved bool
}

// NewResponse constructs a Response over (anterior, posterior) with the
// given stop-deadline in seconds (math.Inf(1) for no deadline).
func NewResponse(anterior, posterior Node, timeoutSeconds float64) *Response {
	r := &Response{anterior: anterior, posterior: posterior, satisfied: true}
	anterior.setParent(r)
	posterior.setParent(r)
	r.timer = newDeadlineTimer(secondsToDuration(timeoutSeconds), r.handleTimeout)
	return r
}

func (r *Response) Satisfied() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.satisfied
}

func (r *Response) HandleDownstream(cmd Command) {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	switch cmd.Type {
	case RosbridgeConnect:
		r.saved = cmd
		r.haveSaved = true
		r.mu.Unlock()
		r.anterior.HandleDownstream(cmd)
		r.timer.Start()
		return
	case RosbridgeDisconnect:
		r.mu.Unlock()
		r.timer.Stop()
		r.anterior.HandleDownstream(cmd)
		r.posterior.HandleDownstream(cmd)
		r.recompute()
		return
	}
	r.mu.Unlock()
}

func (r *Response) HandleUpstream(child Node, cmd Command) {
	switch cmd.Type {
	case StatusChange:
		r.maybeConnectPosterior()
		r.recompute()
	case StopSimulation:
		r.reportUpstream(r, cmd)
	}
}

// maybeConnectPosterior forwards the saved RosbridgeConnect to the
// posterior the first time it is not yet listening — which holds
// exactly after the anterior has first satisfied.
func (r *Response) maybeConnectPosterior() {
	listenable, ok := r.posterior.(listeningNode)
	if !ok || listenable.Listening() {
		return
	}

	r.mu.Lock()
	saved, haveSaved := r.saved, r.haveSaved
	finished := r.finished
	r.mu.Unlock()

	if haveSaved && !finished {
		r.posterior.HandleDownstream(saved)
	}
}

func (r *Response) recompute() {
	next := r.anterior.Satisfied() && r.posterior.Satisfied()

	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	changed := next != r.satisfied
	if changed {
		r.satisfied = next
	}
	r.mu.Unlock()

	if changed && next {
		r.timer.Stop()
		r.anterior.HandleDownstream(BuildRosbridgeDisconnect())
		r.posterior.HandleDownstream(BuildRosbridgeDisconnect())
		r.reportUpstream(r, BuildStatusChange())
	} else if changed {
		r.reportUpstream(r, BuildStatusChange())
	}
}

// handleTimeout fires on the stop deadline: a satisfied Response
// reports success and disconnects; an unsatisfied one is a terminal
// violation (posterior satisfied before anterior, or neither witness
// ever arrived).
func (r *Response) handleTimeout() {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	satisfied := r.anterior.Satisfied() && r.posterior.Satisfied()

	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	r.satisfied = satisfied
	r.mu.Unlock()

	if satisfied {
		r.anterior.HandleDownstream(BuildRosbridgeDisconnect())
		r.posterior.HandleDownstream(BuildRosbridgeDisconnect())
		r.reportUpstream(r, BuildStatusChange())
		return
	}
	r.reportUpstream(r, BuildStopSimulation())
}

func (r *Response) markFinished() {
	r.mu.Lock()
	r.finished = true
	r.mu.Unlock()
	r.timer.Stop()
	markChildFinished(r.anterior)
	markChildFinished(r.posterior)
}

// listeningNode is implemented by Simple leaves and Disjoint combinators,
// which track whether they currently hold a live subscription. Response uses it to
// detect "posterior not yet connected" without caring which concrete
// node kind the posterior is.
type listeningNode interface {
	Listening() bool
}
