package events

// Bus is the producer side of the event fan-out. Publish never blocks and
// never returns an error; delivery is best effort.
type Bus interface {
	Publish(eventType string, data map[string]interface{})
}
