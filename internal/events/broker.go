package events

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"hotel-security-backend/internal/models"
)

// BrokerBus publishes events through the MQTT broker so every server
// instance sees every event, and mirrors them into the local hub via the
// relay subscription. When the broker publish fails the event is forwarded
// straight to the local hub, so local subscribers never miss events that
// originated in this process.
type BrokerBus struct {
	client mqtt.Client
	hub    *Hub
	topic  string
}

// NewBrokerBus wires the relay subscription and returns the bus. The hub
// remains the single fan-out point; the broker is the transport between
// processes.
func NewBrokerBus(client mqtt.Client, hub *Hub, topic string) (*BrokerBus, error) {
	b := &BrokerBus{
		client: client,
		hub:    hub,
		topic:  topic,
	}

	token := client.Subscribe(topic, 1, b.handleRelay)
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to subscribe to event topic %s: %w", topic, token.Error())
	}
	log.Printf("BrokerBus: Subscribed to event topic: %s", topic)

	return b, nil
}

// Publish sends the envelope to the broker. Delivery back to local
// subscribers happens through the relay; on publish failure the event is
// forwarded locally instead so this process degrades, not drops.
func (b *BrokerBus) Publish(eventType string, data map[string]interface{}) {
	ev := models.Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("BrokerBus: error marshaling %s event: %v", eventType, err)
		b.hub.Forward(ev)
		return
	}

	token := b.client.Publish(b.topic, 1, false, payload)
	if token.Wait() && token.Error() != nil {
		log.Printf("BrokerBus: error publishing %s event, falling back to local delivery: %v", eventType, token.Error())
		b.hub.Forward(ev)
	}
}

// handleRelay fans broker events into the local hub, preserving the origin
// timestamp.
func (b *BrokerBus) handleRelay(client mqtt.Client, msg mqtt.Message) {
	var ev models.Event
	if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
		log.Printf("BrokerBus: error unmarshaling relayed event: %v", err)
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	b.hub.Forward(ev)
}
