package events

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// RealPublisher publishes to an actual MQTT broker. Publishes are
// asynchronous so the control loop never stalls on the network: delivery
// failures are logged, and messages published while disconnected land in a
// replay buffer that drains on the next connect.
type RealPublisher struct {
	client paho.Client

	mu  sync.Mutex
	buf *ringBuffer
}

// NewRealPublisher creates a publisher connected to the given broker.
func NewRealPublisher(broker, clientID string) (*RealPublisher, error) {
	p := &RealPublisher{buf: newRingBuffer(64)}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(paho.Client) { p.replay() })

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// PublishCoin sends a coin event to the MQTT broker.
func (p *RealPublisher) PublishCoin(event CoinEvent) error {
	payload, err := FormatCoinPayload(event)
	if err != nil {
		return fmt.Errorf("format coin payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	p.publish(TopicCoin, 0, false, payload)
	return nil
}

// PublishMode sends a mode transition to the MQTT broker.
func (p *RealPublisher) PublishMode(event ModeEvent) error {
	payload, err := FormatModePayload(event)
	if err != nil {
		return fmt.Errorf("format mode payload: %w", err)
	}
	p.publish(TopicMode, 0, false, payload)
	return nil
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events - we want delivery
	p.publish(TopicSystem, 1, event.Retained, payload)
	return nil
}

// publish hands a message to paho without waiting for the broker. While
// disconnected the message goes to the replay buffer instead.
func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) {
	if !p.client.IsConnected() {
		p.mu.Lock()
		p.buf.push(queuedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		return
	}

	token := p.client.Publish(topic, qos, retained, payload)
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			log.Printf("events: publish to %s timed out", topic)
			return
		}
		if err := token.Error(); err != nil {
			log.Printf("events: publish to %s failed: %v", topic, err)
		}
	}()
}

// replay drains the buffer onto the freshly connected broker. Runs on
// paho's connect callback goroutine, off the control loop.
func (p *RealPublisher) replay() {
	p.mu.Lock()
	msgs := p.buf.drainAll()
	p.mu.Unlock()

	for _, m := range msgs {
		token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
		if !token.WaitTimeout(5 * time.Second) {
			log.Printf("events: replay to %s timed out", m.topic)
			continue
		}
		if err := token.Error(); err != nil {
			log.Printf("events: replay to %s failed: %v", m.topic, err)
		}
	}
	if len(msgs) > 0 {
		log.Printf("events: replayed %d buffered messages", len(msgs))
	}
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Disconnect drops the broker connection as part of a network surface
// teardown. Later publishes buffer until Connect.
func (p *RealPublisher) Disconnect() {
	p.client.Disconnect(250)
}

// Connect re-establishes the broker connection; buffered messages replay
// through the connect handler.
func (p *RealPublisher) Connect() error {
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
