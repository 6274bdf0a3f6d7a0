package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/joshvictor1024/mandelfarm/pkg/config"
	"github.com/joshvictor1024/mandelfarm/pkg/fractal"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// RenderEvent summarises one finished render
type RenderEvent struct {
	ID            string    `json:"id"`
	Mode          string    `json:"mode"` // sequential, parallel, distributed
	Width         int       `json:"width"`
	Height        int       `json:"height"`
	MaxIterations int       `json:"max_iterations"`
	MinX          float64   `json:"min_x"`
	MaxX          float64   `json:"max_x"`
	MinY          float64   `json:"min_y"`
	MaxY          float64   `json:"max_y"`
	Zoom          float64   `json:"zoom"`
	Units         int       `json:"units,omitempty"`
	Workers       []string  `json:"workers,omitempty"`
	DurationMS    float64   `json:"duration_ms"`
	FinishedAt    time.Time `json:"finished_at"`
}

// NewRenderEvent stamps a render of v that took elapsed.
func NewRenderEvent(mode string, v fractal.Viewport, elapsed time.Duration) RenderEvent {
	return RenderEvent{
		ID:            uuid.NewString(),
		Mode:          mode,
		Width:         v.Width,
		Height:        v.Height,
		MaxIterations: v.MaxIterations,
		MinX:          v.MinX,
		MaxX:          v.MaxX,
		MinY:          v.MinY,
		MaxY:          v.MaxY,
		Zoom:          v.Zoom,
		DurationMS:    float64(elapsed.Microseconds()) / 1000,
		FinishedAt:    time.Now().UTC(),
	}
}

// publisher is the part of mqtt.Client the emitter needs
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Emitter publishes render events to an MQTT broker
type Emitter struct {
	cfg       config.MQTTConfig
	client    mqtt.Client
	pub       publisher
	newClient func(*mqtt.ClientOptions) mqtt.Client

	mu        sync.Mutex
	published uint64
	errors    uint64
}

// New creates an emitter; it does nothing until Connect succeeds.
func New(cfg config.MQTTConfig) *Emitter {
	return &Emitter{cfg: cfg, newClient: mqtt.NewClient}
}

// Enabled reports whether a broker is configured
func (e *Emitter) Enabled() bool {
	return e.cfg.Broker != ""
}

// Connect establishes the broker connection
func (e *Emitter) Connect(ctx context.Context) error {
	if !e.Enabled() {
		return fmt.Errorf("mqtt broker not configured")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.cfg.Broker))
	opts.SetClientID(e.cfg.ClientID)
	opts.SetConnectTimeout(connectTimeout)
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		slog.Warn("mqtt connection lost", "broker", e.cfg.Broker, "error", err)
	}

	client := e.newClient(opts)
	slog.Info("connecting to mqtt broker", "broker", e.cfg.Broker, "client_id", e.cfg.ClientID)

	token := client.Connect()
	if err := wait(ctx, token, connectTimeout); err != nil {
		// stop the client's connect and reconnect goroutines
		client.Disconnect(0)
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	e.mu.Lock()
	e.client = client
	e.pub = client
	e.mu.Unlock()
	return nil
}

// Publish sends ev to <topic>/<mode>
func (e *Emitter) Publish(ev RenderEvent) error {
	e.mu.Lock()
	pub := e.pub
	e.mu.Unlock()
	if pub == nil {
		e.countError()
		return fmt.Errorf("mqtt not connected")
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		e.countError()
		return fmt.Errorf("failed to marshal render event: %w", err)
	}

	topic := fmt.Sprintf("%s/%s", e.cfg.Topic, ev.Mode)
	token := pub.Publish(topic, e.cfg.QoS, false, payload)
	if err := wait(context.Background(), token, publishTimeout); err != nil {
		e.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	e.mu.Lock()
	e.published++
	e.mu.Unlock()

	slog.Debug("render event published", "topic", topic, "id", ev.ID, "size", len(payload))
	return nil
}

// Close disconnects, letting in-flight messages finish
func (e *Emitter) Close() {
	e.mu.Lock()
	client := e.client
	e.client, e.pub = nil, nil
	e.mu.Unlock()
	if client != nil {
		client.Disconnect(250)
	}
}

// Stats returns published and failed event counts
func (e *Emitter) Stats() (published, errors uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.published, e.errors
}

func (e *Emitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}

func wait(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return fmt.Errorf("timeout after %v", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
