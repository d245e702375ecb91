// Package notify publishes review decisions so field devices can learn
// that one of their records was validated or rejected.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/cnsr/cta-inspection/internal/models"
)

var ErrPublishTimeout = errors.New("mqtt publish timed out")

// StatusEvent is the payload sent when a record changes status.
type StatusEvent struct {
	ID           string                  `json:"id"`
	CTAID        string                  `json:"cta_id"`
	LicensePlate string                  `json:"immatriculation"`
	Status       models.ValidationStatus `json:"statut_validation"`
	Comment      string                  `json:"commentaires,omitempty"`
	ReviewedBy   string                  `json:"valide_par,omitempty"`
	ReviewedAt   time.Time               `json:"date_validation"`
}

// EventFromRecord builds the event for a reviewed record.
func EventFromRecord(r models.InspectionRecord) StatusEvent {
	e := StatusEvent{
		ID:           r.ID,
		CTAID:        r.CTAID,
		LicensePlate: r.LicensePlate,
		Status:       r.Status,
		Comment:      r.ReviewComment,
		ReviewedBy:   r.ReviewedBy,
	}
	if r.ReviewedAt != nil {
		e.ReviewedAt = *r.ReviewedAt
	}
	return e
}

// Publisher sends status events.
type Publisher interface {
	PublishStatus(ctx context.Context, e StatusEvent) error
	Close()
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishStatus(ctx context.Context, e StatusEvent) error { return nil }
func (NopPublisher) Close()                                                 {}

// MQTTPublisher publishes events on <prefix>/<id>/statut.
type MQTTPublisher struct {
	client  mqtt.Client
	prefix  string
	qos     byte
	timeout time.Duration
}

// Dial connects to broker and returns a publisher.
func Dial(broker, clientID, prefix string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("MQTT connection lost")
		})
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("connect to %s: timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", broker, err)
	}
	log.WithField("broker", broker).Info("Connected to MQTT broker")
	return NewMQTTPublisher(client, prefix), nil
}

// NewMQTTPublisher wraps a connected client.
func NewMQTTPublisher(client mqtt.Client, prefix string) *MQTTPublisher {
	if prefix == "" {
		prefix = "cta/fiches"
	}
	return &MQTTPublisher{
		client:  client,
		prefix:  strings.TrimRight(prefix, "/"),
		qos:     1,
		timeout: 5 * time.Second,
	}
}

// Topic returns the topic used for record id.
func (p *MQTTPublisher) Topic(id string) string {
	return p.prefix + "/" + id + "/statut"
}

// PublishStatus implements Publisher.
func (p *MQTTPublisher) PublishStatus(ctx context.Context, e StatusEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}
	token := p.client.Publish(p.Topic(e.ID), p.qos, false, payload)

	timeout := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	if !token.WaitTimeout(timeout) {
		return ErrPublishTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish status event: %w", err)
	}
	log.WithFields(log.Fields{
		"topic":  p.Topic(e.ID),
		"status": e.Status,
	}).Debug("Status event published")
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
