package events

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/BrandonDHaskell/doorgate/internal/config"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/service"
)

const (
	connectTimeout    = 10 * time.Second
	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 1000 // milliseconds
	keepAlive         = 60 * time.Second
)

var (
	ErrConnectionFailed = errors.New("mqtt connection failed")
	ErrPublishFailed    = errors.New("mqtt publish failed")
)

// transport is the slice of the paho client the publisher needs.
type transport interface {
	publish(topic string, qos byte, retained bool, payload []byte) error
	close()
}

type pahoTransport struct {
	client pahomqtt.Client
}

func (p pahoTransport) publish(topic string, qos byte, retained bool, payload []byte) error {
	if !p.client.IsConnectionOpen() {
		return fmt.Errorf("%w: not connected", ErrPublishFailed)
	}
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

func (p pahoTransport) close() { p.client.Disconnect(disconnectQuiesce) }

// Publisher implements service.EventSink and service.HealthListener.
type Publisher struct {
	tr       transport
	topics   Topics
	qos      byte
	clientID string
	logger   *slog.Logger
}

var (
	_ service.EventSink      = (*Publisher)(nil)
	_ service.HealthListener = (*Publisher)(nil)
)

// Connect dials the broker and announces the gateway as online. The broker
// publishes an offline status if the connection drops unexpectedly.
func Connect(cfg config.MQTTConfig, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	topics := NewTopics(cfg.TopicPrefix)

	opts := pahomqtt.NewClientOptions()
	scheme := "tcp"
	if cfg.TLS {
		scheme = "ssl"
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(keepAlive)
	opts.SetWill(topics.SystemStatus(), string(statusPayload(cfg.ClientID, "offline", "unexpected_disconnect")), 1, true)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	p := newPublisher(pahoTransport{client: client}, topics, byte(cfg.QoS), cfg.ClientID, logger)
	if err := p.tr.publish(topics.SystemStatus(), p.qos, true, statusPayload(cfg.ClientID, "online", "")); err != nil {
		logger.Warn("publish online status failed", "error", err)
	}
	return p, nil
}

func newPublisher(tr transport, topics Topics, qos byte, clientID string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{tr: tr, topics: topics, qos: qos, clientID: clientID, logger: logger}
}

// Publish sends ev to the topic for its kind. Failures are logged only.
func (p *Publisher) Publish(_ context.Context, ev service.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("marshal event failed", "error", err)
		return
	}
	if err := p.tr.publish(p.topics.Event(ev.Kind), p.qos, false, payload); err != nil {
		p.logger.Warn("publish event failed", "kind", ev.Kind, "error", err)
	}
}

type openerStatus struct {
	Status        string    `json:"status"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	SilenceSec    int64     `json:"silence_seconds"`
	Reminder      bool      `json:"reminder,omitempty"`
	At            time.Time `json:"at"`
}

func (p *Publisher) OpenerDegraded(_ context.Context, a service.HealthAlert) {
	p.publishStatus(openerStatus{
		Status:        "degraded",
		LastHeartbeat: a.LastHeartbeat.UTC(),
		SilenceSec:    int64(a.Silence / time.Second),
		Reminder:      a.Reminder,
		At:            a.At.UTC(),
	})
}

func (p *Publisher) OpenerRecovered(_ context.Context, a service.HealthAlert) {
	p.publishStatus(openerStatus{
		Status:        "healthy",
		LastHeartbeat: a.At.UTC(),
		At:            a.At.UTC(),
	})
}

func (p *Publisher) publishStatus(s openerStatus) {
	payload, err := json.Marshal(s)
	if err != nil {
		p.logger.Error("marshal opener status failed", "error", err)
		return
	}
	if err := p.tr.publish(p.topics.OpenerStatus(), p.qos, true, payload); err != nil {
		p.logger.Warn("publish opener status failed", "error", err)
	}
}

// Close publishes a graceful offline status and disconnects.
func (p *Publisher) Close() {
	if err := p.tr.publish(p.topics.SystemStatus(), p.qos, true, statusPayload(p.clientID, "offline", "graceful_shutdown")); err != nil {
		p.logger.Debug("publish offline status failed", "error", err)
	}
	p.tr.close()
}

func statusPayload(clientID, status, reason string) []byte {
	b, _ := json.Marshal(struct {
		Status    string `json:"status"`
		ClientID  string `json:"client_id"`
		Reason    string `json:"reason,omitempty"`
		Timestamp string `json:"timestamp"`
	}{status, clientID, reason, time.Now().UTC().Format(time.RFC3339)})
	return b
}
