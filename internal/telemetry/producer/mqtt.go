package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"ewaste-tracker/backend/internal/telemetry/domain"
)

const (
	// DefaultTopicPrefix is used when no MQTT topic prefix is configured.
	DefaultTopicPrefix = "ewaste/devices"

	mqttConnectTimeout = 10 * time.Second
	mqttQoS            = 1
)

// Publisher is the MQTT surface the producer needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close()
}

// MQTTProducer publishes each device event to <prefix>/<device id>/<event type>.
// Events without a device id go to <prefix>/events/<event type>.
type MQTTProducer struct {
	pub    Publisher
	prefix string
}

// NewMQTTProducer returns a producer publishing through pub under prefix.
func NewMQTTProducer(pub Publisher, prefix string) *MQTTProducer {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &MQTTProducer{pub: pub, prefix: prefix}
}

// Topic returns the topic an event is published to.
func (p *MQTTProducer) Topic(event *domain.LifecycleEvent) string {
	scope := "events"
	if event.DeviceID != 0 {
		scope = strconv.FormatUint(event.DeviceID, 10)
	}
	return p.prefix + "/" + scope + "/" + string(event.Type)
}

// Emit publishes the event JSON.
func (p *MQTTProducer) Emit(ctx context.Context, event *domain.LifecycleEvent) error {
	if p == nil || p.pub == nil || event == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	topic := p.Topic(event)
	if err := p.pub.Publish(ctx, topic, payload); err != nil {
		slog.Warn("telemetry: mqtt emit failed", "topic", topic, "error", err)
		return err
	}
	return nil
}

// Close disconnects the publisher. Safe to call multiple times.
func (p *MQTTProducer) Close() error {
	if p == nil || p.pub == nil {
		return nil
	}
	p.pub.Close()
	p.pub = nil
	return nil
}

// PahoPublisher is a Publisher backed by an Eclipse Paho client.
type PahoPublisher struct {
	cli mqtt.Client
}

// DialMQTT connects to brokerURL (mqtt://, tcp://, ssl://, tls://, ws://, wss://).
// Credentials in the URL user info are used for authentication.
func DialMQTT(brokerURL, clientID string) (*PahoPublisher, error) {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return nil, fmt.Errorf("mqtt: parse broker url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("mqtt: broker url %q has no host", brokerURL)
	}
	server := u.Host
	switch u.Scheme {
	case "mqtt", "tcp", "":
		server = "tcp://" + server
	case "ssl", "tls":
		server = "ssl://" + server
	case "ws", "wss":
		server = u.Scheme + "://" + server + u.Path
	default:
		return nil, fmt.Errorf("mqtt: unsupported scheme %q", u.Scheme)
	}
	if clientID == "" {
		clientID = "ewaste-tracker-" + time.Now().Format("150405.000")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(server)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(mqttConnectTimeout)
	opts.OnConnect = func(mqtt.Client) { slog.Info("mqtt: connected", "broker", server) }
	opts.OnConnectionLost = func(_ mqtt.Client, err error) { slog.Error("mqtt: connection lost", "error", err) }
	if u.User != nil {
		pw, _ := u.User.Password()
		opts.SetUsername(u.User.Username())
		opts.SetPassword(pw)
	}

	cli := mqtt.NewClient(opts)
	t := cli.Connect()
	if !t.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("mqtt: connect to %s timed out", server)
	}
	if err := t.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", server, err)
	}
	return &PahoPublisher{cli: cli}, nil
}

// Publish sends payload at QoS 1 and waits for the broker acknowledgement or ctx.
func (p *PahoPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	t := p.cli.Publish(topic, mqttQoS, false, payload)
	select {
	case <-t.Done():
		return t.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects, allowing 250ms for in-flight work.
func (p *PahoPublisher) Close() {
	p.cli.Disconnect(250)
}
