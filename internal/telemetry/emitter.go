// Package telemetry publishes periodic status snapshots over MQTT.
// The broker is optional: when no broker is configured the daemon runs
// headless and this package is never constructed.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/dannen/lepton-viewer-rpi/internal/config"
	"github.com/dannen/lepton-viewer-rpi/internal/viewer"
)

// StatusFunc returns the current viewer snapshot to publish.
type StatusFunc func() viewer.Status

// Emitter maintains the broker connection and pushes status messages on a
// fixed interval.
type Emitter struct {
	cfg    *config.Config
	client mqtt.Client

	mu        sync.RWMutex
	connected bool
	published uint64
	errors    uint64
}

// Stats contains emitter counters.
type Stats struct {
	Connected bool
	Published uint64
	Errors    uint64
}

// statusMessage is the wire envelope around a viewer snapshot.
type statusMessage struct {
	InstanceID string `json:"instance_id"`
	Timestamp  string `json:"timestamp"`
	viewer.Status
}

// New creates an emitter. Call Connect before publishing.
func New(cfg *config.Config) *Emitter {
	return &Emitter{cfg: cfg}
}

// Connect establishes the broker connection with auto-reconnect enabled.
func (e *Emitter) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.cfg.MQTT.Broker))
	opts.SetClientID(e.cfg.InstanceID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.mu.Lock()
		e.connected = true
		e.mu.Unlock()
		slog.Info("mqtt connection established",
			"broker", e.cfg.MQTT.Broker,
			"client_id", e.cfg.InstanceID)
	}

	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.mu.Lock()
		e.connected = false
		e.mu.Unlock()
		slog.Warn("mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", e.cfg.MQTT.Broker)
	}

	e.client = mqtt.NewClient(opts)

	slog.Info("connecting to mqtt broker", "broker", e.cfg.MQTT.Broker)

	token := e.client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	e.mu.Lock()
	e.connected = true
	e.mu.Unlock()

	return nil
}

// Run publishes a status snapshot every configured interval until the
// context is cancelled. Publish failures are logged and do not stop the
// loop; the broker connection recovers on its own.
func (e *Emitter) Run(ctx context.Context, fn StatusFunc) {
	interval := time.Duration(e.cfg.MQTT.IntervalS) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("telemetry loop starting",
		"topic", e.cfg.MQTT.Topic,
		"interval", interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("telemetry loop stopped")
			return
		case <-ticker.C:
			if err := e.PublishStatus(fn()); err != nil {
				slog.Warn("status publish failed", "error", err)
			}
		}
	}
}

// PublishStatus pushes one snapshot to the status topic at QoS 0.
func (e *Emitter) PublishStatus(st viewer.Status) error {
	if !e.isConnected() {
		e.countError()
		return fmt.Errorf("mqtt not connected")
	}

	payload, err := json.Marshal(statusMessage{
		InstanceID: e.cfg.InstanceID,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Status:     st,
	})
	if err != nil {
		e.countError()
		return fmt.Errorf("marshal status: %w", err)
	}

	token := e.client.Publish(e.cfg.MQTT.Topic, 0, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		e.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	e.mu.Lock()
	e.published++
	e.mu.Unlock()

	slog.Debug("status published",
		"topic", e.cfg.MQTT.Topic,
		"mode", st.Mode,
		"size", len(payload))

	return nil
}

// Disconnect closes the broker connection.
func (e *Emitter) Disconnect() {
	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250)
		slog.Info("mqtt disconnected")
	}

	e.mu.Lock()
	e.connected = false
	e.mu.Unlock()
}

// Stats returns emitter counters.
func (e *Emitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Stats{
		Connected: e.connected,
		Published: e.published,
		Errors:    e.errors,
	}
}

func (e *Emitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func (e *Emitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
