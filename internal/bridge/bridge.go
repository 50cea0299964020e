// Package bridge defines the small transport interface the requirements
// tree consumes to talk to a live message bus (rosbridge, MQTT, or a
// test double). The tree only ever sees this interface; concrete
// transports live in the rosbridge, mqttbridge, and mockbridge
// subpackages.
package bridge

// Message is the decoded field-mapping shape delivered to a Handler,
// shared with internal/predicate.Message so a leaf's predicate can be
// evaluated directly against it.
type Message map[string]any

// Handler receives one decoded message for a subscribed topic.
// Registration/removal identity is the pointer to the Handler value
// itself, matching the "identity is the handler reference" invariant —
// Go function values are not comparable, so callers must keep the same
// *Handler across RegisterMessageHandler/RemoveMessageHandler calls for
// one subscription.
type Handler func(msg Message)

// Client is the bridge-client interface consumed by the requirements
// tree (spec'd external interface): register and remove message
// handlers for a topic/message-type pair. The client owns decoding wire
// messages into the Message shape.
type Client interface {
	RegisterMessageHandler(topic, messageType string, handler *Handler) error
	RemoveMessageHandler(topic, messageType string, handler *Handler) error
}
