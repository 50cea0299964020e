package requirements

import "github.com/nugget/simreq/internal/bridge"

// CommandType discriminates the four kinds of command that flow through
// the requirements tree, grounded on the original command taxonomy
// (RosbridgeConnect, RosbridgeDisconnect, StatusChange) plus the
// StopSimulation kind spec'd for this implementation.
type CommandType int

const (
	// RosbridgeConnect flows downstream: a leaf registers its
	// subscription with the carried bridge client.
	RosbridgeConnect CommandType = iota
	// RosbridgeDisconnect flows downstream: a leaf removes its
	// subscription.
	RosbridgeDisconnect
	// StatusChange flows upstream: a node's satisfied value changed.
	StatusChange
	// StopSimulation flows upstream: a descendant has decided the
	// simulation must end now, regardless of timers.
	StopSimulation
)

func (t CommandType) String() string {
	switch t {
	case RosbridgeConnect:
		return "RosbridgeConnect"
	case RosbridgeDisconnect:
		return "RosbridgeDisconnect"
	case StatusChange:
		return "StatusChange"
	case StopSimulation:
		return "StopSimulation"
	default:
		return "Unknown"
	}
}

// Command is the tagged record propagated through the tree. Only
// RosbridgeConnect carries a payload (the bridge client handle); the
// other kinds carry none.
type Command struct {
	Type   CommandType
	Client bridge.Client
}

// BuildRosbridgeConnect constructs a RosbridgeConnect command carrying
// client.
func BuildRosbridgeConnect(client bridge.Client) Command {
	return Command{Type: RosbridgeConnect, Client: client}
}

// BuildRosbridgeDisconnect constructs a RosbridgeDisconnect command.
func BuildRosbridgeDisconnect() Command {
	return Command{Type: RosbridgeDisconnect}
}

// BuildStatusChange constructs a StatusChange command.
func BuildStatusChange() Command {
	return Command{Type: StatusChange}
}

// BuildStopSimulation constructs a StopSimulation command.
func BuildStopSimulation() Command {
	return Command{Type: StopSimulation}
}
