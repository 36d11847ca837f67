package mqttbus

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher publishes JSON payloads to a fixed topic with the topic's QoS.
type Publisher struct {
	client mqtt.Client
	topic  string
}

func NewPublisher(client mqtt.Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic}
}

// Publish marshals v to JSON and publishes it.
func (p *Publisher) Publish(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal payload for %s: %w", p.topic, err)
	}
	return p.PublishRaw(payload)
}

// PublishRaw publishes a pre-encoded payload.
func (p *Publisher) PublishRaw(payload []byte) error {
	token := p.client.Publish(p.topic, qosFor(p.topic), false, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.topic, token.Error())
	}
	return nil
}

// PublishTo publishes to an explicit topic, for per-zone command topics.
func PublishTo(client mqtt.Client, topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal payload for %s: %w", topic, err)
	}
	token := client.Publish(topic, qosFor(topic), false, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, token.Error())
	}
	return nil
}
