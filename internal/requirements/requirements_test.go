package requirements

import (
	"testing"
	"time"

	"github.com/nugget/simreq/internal/bridge"
	"github.com/nugget/simreq/internal/bridge/mockbridge"
	"github.com/nugget/simreq/internal/predicate"
)

// flagPredicate returns a predicate that is true when the named bool
// field is true, so tests can drive Simple leaves without pulling in
// the ast/hplparse packages for every test.
func flagPredicate(field string) predicate.Predicate {
	return func(m predicate.Message) bool {
		v, _ := m[field].(bool)
		return v
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	if !cond() {
		t.Fatalf("condition not met within %s", timeout)
	}
}

func TestExistenceSatisfiedByWitness(t *testing.T) {
	client := mockbridge.New()
	leaf := NewSimple("/topic", "T", flagPredicate("ok"))
	ex := NewExistence(leaf, NoTimeout)
	mgr := NewManager(NoTimeout, 0)
	mgr.AddChild(ex)

	mgr.Connect(client)
	if mgr.Satisfied() {
		t.Fatalf("manager satisfied before witness")
	}

	client.Deliver("/topic", "T", bridge.Message{"ok": true})

	waitFor(t, time.Second, mgr.Satisfied)
	waitFor(t, time.Second, mgr.Finished)

	if !leaf.Satisfied() {
		t.Errorf("leaf not satisfied after witness")
	}
}

func TestExistenceTimesOutUnsatisfied(t *testing.T) {
	client := mockbridge.New()
	leaf := NewSimple("/topic", "T", flagPredicate("ok"))
	ex := NewExistence(leaf, 0.01)
	mgr := NewManager(NoTimeout, 0)
	mgr.AddChild(ex)

	mgr.Connect(client)

	waitFor(t, time.Second, mgr.Finished)
	if mgr.Satisfied() {
		t.Errorf("manager should remain unsatisfied after existence timeout with no witness")
	}
	if _, removed := client.Calls(); removed == 0 {
		t.Errorf("expected existence timeout to disconnect its subtree")
	}
}

func TestAbsenceViolationStopsSimulation(t *testing.T) {
	client := mockbridge.New()
	leaf := NewSimple("/topic", "T", flagPredicate("bad"))
	ab := NewAbsence(leaf, NoTimeout)
	// A positive min timeout keeps the vacuous-satisfaction assessment
	// from ending the run at Connect, before the violation can arrive.
	mgr := NewManager(NoTimeout, 10)
	mgr.AddChild(ab)

	mgr.Connect(client)
	if !ab.Satisfied() {
		t.Fatalf("absence should start vacuously satisfied")
	}

	client.Deliver("/topic", "T", bridge.Message{"bad": true})

	waitFor(t, time.Second, mgr.Finished)
	if mgr.Satisfied() {
		t.Errorf("manager should be unsatisfied after absence violation")
	}
	if !ab.violated {
		t.Errorf("absence node should record the violation")
	}
}

func TestResponseOrdering(t *testing.T) {
	client := mockbridge.New()
	anterior := NewSimple("/a", "T", flagPredicate("a"))
	posterior := NewSimple("/b", "T", flagPredicate("b"))
	resp := NewResponse(anterior, posterior, NoTimeout)
	mgr := NewManager(NoTimeout, 0)
	mgr.AddChild(resp)

	mgr.Connect(client)

	if client.SubscriptionCount("/b", "T") != 0 {
		t.Fatalf("posterior must not be subscribed before anterior fires")
	}

	client.Deliver("/a", "T", bridge.Message{"a": true})
	waitFor(t, time.Second, func() bool { return client.SubscriptionCount("/b", "T") == 1 })

	client.Deliver("/b", "T", bridge.Message{"b": true})
	waitFor(t, time.Second, mgr.Satisfied)
	waitFor(t, time.Second, mgr.Finished)
}

func TestResponseInversionNeverObserved(t *testing.T) {
	client := mockbridge.New()
	anterior := NewSimple("/a", "T", flagPredicate("a"))
	posterior := NewSimple("/b", "T", flagPredicate("b"))
	resp := NewResponse(anterior, posterior, 0.02)
	mgr := NewManager(NoTimeout, 0)
	mgr.AddChild(resp)

	mgr.Connect(client)

	// The posterior fires before the anterior; it cannot even be
	// delivered because the posterior is never subscribed yet.
	client.Deliver("/b", "T", bridge.Message{"b": true})
	if posterior.Satisfied() {
		t.Fatalf("posterior observed a message before being connected")
	}

	waitFor(t, time.Second, mgr.Finished)
	if mgr.Satisfied() {
		t.Errorf("response should remain unsatisfied: anterior never fired")
	}
}

func TestPreventionViolatedByBothWitnesses(t *testing.T) {
	client := mockbridge.New()
	anterior := NewSimple("/a", "T", flagPredicate("a"))
	posterior := NewSimple("/b", "T", flagPredicate("b"))
	prev := NewPrevention(anterior, posterior, NoTimeout)
	mgr := NewManager(NoTimeout, 0)
	mgr.AddChild(prev)

	mgr.Connect(client)
	client.Deliver("/a", "T", bridge.Message{"a": true})
	waitFor(t, time.Second, anterior.Satisfied)

	client.Deliver("/b", "T", bridge.Message{"b": true})

	waitFor(t, time.Second, mgr.Finished)
	if mgr.Satisfied() {
		t.Errorf("prevention should be permanently violated once both witnesses fire")
	}
	if !prev.violated {
		t.Errorf("prevention node should record the violation")
	}
}

func TestDisjointSatisfiedByEitherChild(t *testing.T) {
	client := mockbridge.New()
	left := NewSimple("/a", "T", flagPredicate("a"))
	right := NewSimple("/b", "T", flagPredicate("b"))
	dis := NewDisjoint(left, right)
	ex := NewExistence(dis, NoTimeout)
	mgr := NewManager(NoTimeout, 0)
	mgr.AddChild(ex)

	mgr.Connect(client)
	client.Deliver("/b", "T", bridge.Message{"b": true})

	waitFor(t, time.Second, mgr.Satisfied)
	if left.Satisfied() {
		t.Errorf("left disjunct should not be satisfied")
	}
}

func TestManagerWithNoChildrenNeverSatisfiesUntilMaxTimeout(t *testing.T) {
	client := mockbridge.New()
	mgr := NewManager(0.01, 0)
	mgr.Connect(client)

	waitFor(t, time.Second, mgr.Finished)
	if mgr.Satisfied() {
		t.Errorf("a childless manager must never become satisfied")
	}
}

func TestFinishedSubtreeIgnoresFurtherMessages(t *testing.T) {
	client := mockbridge.New()
	leaf := NewSimple("/topic", "T", flagPredicate("ok"))
	ex := NewExistence(leaf, NoTimeout)
	mgr := NewManager(NoTimeout, 0)
	mgr.AddChild(ex)

	mgr.Connect(client)
	client.Deliver("/topic", "T", bridge.Message{"ok": true})
	waitFor(t, time.Second, mgr.Finished)

	registeredBefore, removedBefore := client.Calls()
	client.Deliver("/topic", "T", bridge.Message{"ok": false})
	registeredAfter, removedAfter := client.Calls()

	if registeredAfter != registeredBefore || removedAfter != removedBefore {
		t.Errorf("finished tree should not re-register or remove handlers on further messages")
	}
}
