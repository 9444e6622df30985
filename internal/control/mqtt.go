package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	DefaultTopic          = "vjdeck/control"
	DefaultStatusTopic    = "vjdeck/status"
	DefaultStatusInterval = 2 * time.Second

	connectTimeout = 5 * time.Second
)

// MQTTConfig configures the MQTT control surface.
type MQTTConfig struct {
	Broker         string // host:port or a full URL
	ClientID       string
	Topic          string
	StatusTopic    string // acks go to StatusTopic + "/ack"
	StatusInterval time.Duration
}

// Message is a control command received over MQTT. A missing value counts
// as a full button press.
type Message struct {
	ID     string   `json:"id,omitempty"`
	Action string   `json:"action"`
	Deck   int      `json:"deck"`
	Value  *float32 `json:"value,omitempty"`
}

// Ack answers one Message.
type Ack struct {
	ID        string `json:"id"`
	Action    string `json:"action,omitempty"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// MQTTSurface subscribes to a control topic, applies each command and
// publishes an ack, plus a periodic status snapshot.
type MQTTSurface struct {
	cfg        MQTTConfig
	dispatcher *Dispatcher
	status     func() any

	client mqtt.Client
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMQTTSurface builds a surface; status, if non-nil, supplies the
// snapshot published on the status topic.
func NewMQTTSurface(cfg MQTTConfig, d *Dispatcher, status func() any) *MQTTSurface {
	if cfg.ClientID == "" {
		cfg.ClientID = "vjdeck"
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.StatusTopic == "" {
		cfg.StatusTopic = DefaultStatusTopic
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = DefaultStatusInterval
	}
	return &MQTTSurface{cfg: cfg, dispatcher: d, status: status}
}

func brokerURL(b string) string {
	if strings.Contains(b, "://") {
		return b
	}
	return "tcp://" + b
}

// Start connects, subscribes and begins publishing status until ctx is
// cancelled or Close is called.
func (m *MQTTSurface) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(m.cfg.Broker))
	opts.SetClientID(m.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(c mqtt.Client) {
		slog.Info("mqtt connected", "broker", m.cfg.Broker, "client_id", m.cfg.ClientID)
		// Subscriptions do not survive a reconnect with a clean session.
		if tok := c.Subscribe(m.cfg.Topic, 1, m.onMessage); tok.WaitTimeout(connectTimeout) && tok.Error() != nil {
			slog.Error("mqtt subscribe failed", "topic", m.cfg.Topic, "error", tok.Error())
		}
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		slog.Warn("mqtt connection lost, will auto-reconnect", "broker", m.cfg.Broker, "error", err)
	}

	m.client = mqtt.NewClient(opts)
	slog.Info("connecting to mqtt broker", "broker", m.cfg.Broker)
	tok := m.client.Connect()
	if !tok.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt connect to %s: timeout", m.cfg.Broker)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt connect to %s: %w", m.cfg.Broker, err)
	}

	ctx, m.cancel = context.WithCancel(ctx)
	if m.status != nil {
		m.wg.Add(1)
		go m.publishStatus(ctx)
	}
	slog.Info("mqtt control surface started", "topic", m.cfg.Topic, "status_topic", m.cfg.StatusTopic)
	return nil
}

func (m *MQTTSurface) onMessage(_ mqtt.Client, msg mqtt.Message) {
	ack := m.handle(msg.Payload())
	m.publish(m.cfg.StatusTopic+"/ack", ack)
}

// handle decodes and applies one payload.
func (m *MQTTSurface) handle(payload []byte) Ack {
	ack := Ack{Status: "ok", Timestamp: time.Now().UTC().Format(time.RFC3339)}

	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		ack.ID = uuid.NewString()
		ack.Status = "error"
		ack.Error = "invalid JSON"
		slog.Warn("mqtt command rejected", "error", err)
		return ack
	}
	ack.ID = msg.ID
	if ack.ID == "" {
		ack.ID = uuid.NewString()
	}
	ack.Action = msg.Action

	ev, err := msg.Event()
	if err == nil {
		err = m.dispatcher.Apply(ev)
	}
	if err != nil {
		ack.Status = "error"
		ack.Error = err.Error()
		slog.Warn("mqtt command failed", "id", ack.ID, "action", msg.Action, "deck", msg.Deck, "error", err)
		return ack
	}
	slog.Info("mqtt command applied", "id", ack.ID, "action", msg.Action, "deck", msg.Deck)
	return ack
}

// Event converts the message into a dispatchable event.
func (msg Message) Event() (Event, error) {
	a, err := ParseAction(msg.Action)
	if err != nil {
		return Event{}, err
	}
	v := float32(1)
	if msg.Value != nil {
		v = clamp01(*msg.Value)
	}
	return Event{Action: a, Deck: msg.Deck, Value: v}, nil
}

func (m *MQTTSurface) publishStatus(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.StatusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.publish(m.cfg.StatusTopic, m.status())
		}
	}
}

func (m *MQTTSurface) publish(topic string, v any) {
	if m.client == nil || !m.client.IsConnected() {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		slog.Error("mqtt marshal failed", "topic", topic, "error", err)
		return
	}
	// Not awaited.
	m.client.Publish(topic, 0, false, b)
}

// Close unsubscribes, stops status publishing and disconnects.
func (m *MQTTSurface) Close() error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	if m.client != nil && m.client.IsConnected() {
		m.client.Unsubscribe(m.cfg.Topic).WaitTimeout(connectTimeout)
		m.client.Disconnect(250)
	}
	slog.Info("mqtt control surface stopped")
	return nil
}
