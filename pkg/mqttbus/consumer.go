package mqttbus

import (
	"context"
	"log"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Handler processes one inbound message; the topic is the concrete topic the
// message arrived on, not the subscription filter.
type Handler func(topic string, message mqtt.Message) error

// qosFor assigns QoS 1 to the command and event topics where a lost message
// means a missed zone run, and QoS 0 to high-rate sensor telemetry.
func qosFor(topic string) byte {
	t := strings.TrimSpace(topic)
	if strings.HasPrefix(t, "command/zone") ||
		strings.HasPrefix(t, "event/zoneResult") ||
		strings.HasPrefix(t, "event/decision") {
		return 1
	}
	return 0
}

// Consumer subscribes to one topic filter and dispatches to its handler.
type Consumer struct {
	client  mqtt.Client
	topic   string
	handler Handler
}

func NewConsumer(client mqtt.Client, topic string, handler Handler) *Consumer {
	return &Consumer{client: client, topic: topic, handler: handler}
}

// Consume subscribes and blocks until ctx is canceled, then unsubscribes.
func (c *Consumer) Consume(ctx context.Context) {
	token := c.client.Subscribe(c.topic, qosFor(c.topic), func(_ mqtt.Client, msg mqtt.Message) {
		if c.handler == nil {
			log.Printf("No handler set for topic %s", c.topic)
			return
		}
		if err := c.handler(msg.Topic(), msg); err != nil {
			log.Printf("Error handling message on %s: %v", msg.Topic(), err)
		}
	})
	if token.Wait() && token.Error() != nil {
		log.Printf("Error subscribing to topic %s: %v", c.topic, token.Error())
		return
	}
	log.Printf("Subscribed to topic %s", c.topic)

	<-ctx.Done()
	c.client.Unsubscribe(c.topic).Wait()
}

// MultiConsumer subscribes to several topic filters with a shared handler.
type MultiConsumer struct {
	client  mqtt.Client
	topics  []string
	handler Handler
}

func NewMultiConsumer(client mqtt.Client, topics []string, handler Handler) *MultiConsumer {
	return &MultiConsumer{client: client, topics: topics, handler: handler}
}

func (m *MultiConsumer) Consume(ctx context.Context) {
	for _, topic := range m.topics {
		topic := topic
		token := m.client.Subscribe(topic, qosFor(topic), func(_ mqtt.Client, msg mqtt.Message) {
			if m.handler == nil {
				log.Printf("No handler set for topic %s", topic)
				return
			}
			if err := m.handler(msg.Topic(), msg); err != nil {
				log.Printf("Error handling message on %s: %v", msg.Topic(), err)
			}
		})
		token.Wait()
		if token.Error() != nil {
			log.Printf("Error subscribing to topic %s: %v", topic, token.Error())
		} else {
			log.Printf("Subscribed to topic %s", topic)
		}
	}

	<-ctx.Done()
	for _, topic := range m.topics {
		m.client.Unsubscribe(topic)
	}
}
