package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sweeney/range-controller/internal/midi"
	"go.uber.org/zap"
)

// DefaultBufferSize is how many messages are held while the broker is unreachable.
const DefaultBufferSize = 256

// Options configures a RealPublisher.
type Options struct {
	// ClientID defaults to "range-controller-" plus a random suffix.
	ClientID string

	// Channel is stamped onto every control change.
	Channel int

	// BufferSize caps messages buffered while disconnected.
	BufferSize int

	// Now supplies timestamps; defaults to time.Now.
	Now func() time.Time

	// OnReconnect, if set, is called after a reconnect once the buffer is replayed.
	// It runs on the MQTT client goroutine and must not block.
	OnReconnect func()
}

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	mu          sync.Mutex
	client      paho.Client
	buf         *ringBuffer
	channel     int
	now         func() time.Time
	onReconnect func()
	connected   bool // true once the first connection succeeded
}

// NewRealPublisher creates a publisher connected to the given broker.
// A retained OFFLINE will is registered on TopicSystem.
func NewRealPublisher(broker string, o Options) (*RealPublisher, error) {
	if o.ClientID == "" {
		o.ClientID = "range-controller-" + uuid.NewString()[:8]
	}
	p := newPublisher(nil, o)

	will, err := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: "OFFLINE"})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(func(paho.Client) { p.handleConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			zap.S().Warnw("mqtt: connection lost", "error", err)
		})

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

func newPublisher(client paho.Client, o Options) *RealPublisher {
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return &RealPublisher{
		client:      client,
		buf:         newRingBuffer(o.BufferSize),
		channel:     o.Channel,
		now:         o.Now,
		onReconnect: o.OnReconnect,
	}
}

// Send publishes a control change on Topic.
func (p *RealPublisher) Send(controller, value int) error {
	cc := midi.ControlChange{Channel: p.channel, Controller: controller, Value: value}
	if err := cc.Validate(); err != nil {
		return err
	}
	payload, err := FormatPayload(cc, p.now())
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.publish(bufferedMsg{topic: Topic, payload: payload, key: fmt.Sprintf("cc/%d", controller)})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	return p.publish(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// publish sends msg, or buffers it while the connection is down.
func (p *RealPublisher) publish(msg bufferedMsg) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.client.IsConnectionOpen() {
		p.buf.push(msg)
		return nil
	}
	return p.send(msg)
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// handleConnect replays buffered messages in order, then notifies OnReconnect
// for every connection after the first.
func (p *RealPublisher) handleConnect() {
	p.mu.Lock()
	pending := p.buf.drainAll()
	var failed int
	for _, msg := range pending {
		if err := p.send(msg); err != nil {
			failed++
		}
	}
	reconnect := p.connected
	p.connected = true
	p.mu.Unlock()

	if len(pending) > 0 {
		zap.S().Infow("mqtt: replayed buffered messages", "count", len(pending), "failed", failed)
	}
	if reconnect && p.onReconnect != nil {
		p.onReconnect()
	}
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// IsConnected reports whether the client is connected to the broker.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
