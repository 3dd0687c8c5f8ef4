// Package events publishes risk alerts (analysis suggestions, rising trend
// warnings, risk-raising simulations) on NATS subjects of the form
// <prefix>.<alert type>.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// DefaultSubjectPrefix is used when no prefix is configured
const DefaultSubjectPrefix = "risk.alerts"

// ErrNotConnected is returned when publishing without a live connection
var ErrNotConnected = errors.New("alert publisher not connected")

// PublisherConfig configures the publisher
type PublisherConfig struct {
	NATSURL string
	Prefix  string
	Name    string // connection name reported to the server
}

// AlertHandler is a callback for received alerts
type AlertHandler func(alert *Alert) error

// Publisher sends alerts over NATS. A nil *Publisher drops every alert, so
// callers need not check whether alerting is enabled.
type Publisher struct {
	nc     *nats.Conn
	prefix string
}

// NewPublisher connects to NATS and returns a publisher
func NewPublisher(config PublisherConfig) (*Publisher, error) {
	if config.Name == "" {
		config.Name = "riskengine"
	}

	nc, err := nats.Connect(
		config.NATSURL,
		nats.Name(config.Name),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	if config.Prefix == "" {
		config.Prefix = DefaultSubjectPrefix
	}

	log.Info().
		Str("nats_url", config.NATSURL).
		Str("prefix", config.Prefix).
		Msg("Alert publisher initialized")

	return &Publisher{nc: nc, prefix: config.Prefix}, nil
}

// Subject returns the subject alerts of the given type are published on
func (p *Publisher) Subject(alertType AlertType) string {
	return fmt.Sprintf("%s.%s", p.prefix, alertType)
}

// Publish sends one alert. Missing IDs and timestamps are filled in.
func (p *Publisher) Publish(ctx context.Context, alert *Alert) error {
	if p == nil || alert == nil {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !p.nc.IsConnected() {
		return ErrNotConnected
	}

	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	subject := p.Subject(alert.Type)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}

	log.Debug().
		Str("alert_id", alert.ID.String()).
		Str("type", string(alert.Type)).
		Str("source", alert.Source).
		Str("subject", subject).
		Msg("Published alert")

	return nil
}

// Subscribe delivers alerts of the given type to handler. An empty type subscribes to all alerts.
func (p *Publisher) Subscribe(alertType AlertType, handler AlertHandler) (*nats.Subscription, error) {
	if p == nil {
		return nil, ErrNotConnected
	}

	subject := p.prefix + ".>"
	if alertType != "" {
		subject = p.Subject(alertType)
	}

	sub, err := p.nc.Subscribe(subject, func(msg *nats.Msg) {
		var alert Alert
		if err := json.Unmarshal(msg.Data, &alert); err != nil {
			log.Warn().Err(err).Str("subject", msg.Subject).Msg("Failed to unmarshal alert")
			return
		}
		if err := handler(&alert); err != nil {
			log.Error().
				Err(err).
				Str("alert_id", alert.ID.String()).
				Msg("Alert handler error")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	log.Info().Str("subject", subject).Msg("Subscribed to alerts")
	return sub, nil
}

// Flush waits until the server has processed every published alert
func (p *Publisher) Flush(timeout time.Duration) error {
	if p == nil {
		return nil
	}
	return p.nc.FlushTimeout(timeout)
}

// IsConnected reports whether the NATS connection is up
func (p *Publisher) IsConnected() bool {
	return p != nil && p.nc != nil && p.nc.IsConnected()
}

// Close drains and closes the connection
func (p *Publisher) Close() error {
	if p == nil || p.nc == nil {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	log.Info().Msg("Alert publisher closed")
	return nil
}
