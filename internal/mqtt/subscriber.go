// Package mqtt feeds device payloads published on a broker into the
// ingestion path used by the HTTP receivers.
package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"groundstation/internal/parser"
	"groundstation/internal/service"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

type Config struct {
	Broker          string
	ClientID        string
	Username        string
	Password        string
	TopicDelimited  string
	TopicStructured string
	QoS             byte
}

// MessageHandler processes one message. Errors are logged by the caller and
// never stop the subscription.
type MessageHandler func(topic string, payload []byte) error

// Subscriber routes broker topics to device sources.
type Subscriber struct {
	client  paho.Client
	cfg     Config
	ingest  service.IngestService
	logger  *zap.Logger
	timeout time.Duration
	topics  map[string]parser.Source
}

func NewSubscriber(cfg Config, ingest service.IngestService, logger *zap.Logger) *Subscriber {
	s := &Subscriber{
		cfg:     cfg,
		ingest:  ingest,
		logger:  logger.Named("mqtt"),
		timeout: 10 * time.Second,
		topics:  make(map[string]parser.Source),
	}
	if cfg.TopicDelimited != "" {
		s.topics[cfg.TopicDelimited] = parser.SourceLoRa
	}
	if cfg.TopicStructured != "" {
		s.topics[cfg.TopicStructured] = parser.SourceGPS
	}
	return s
}

// Connect dials the broker and subscribes to every configured topic. The
// subscriptions are restored after a reconnect.
func (s *Subscriber) Connect() error {
	opts := paho.NewClientOptions()
	opts.AddBroker(s.cfg.Broker)
	opts.SetClientID(s.cfg.ClientID)
	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
	}
	if s.cfg.Password != "" {
		opts.SetPassword(s.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(s.timeout)
	opts.SetOnConnectHandler(func(c paho.Client) {
		if err := s.subscribe(c); err != nil {
			s.logger.Error("failed to subscribe", zap.Error(err))
		}
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		s.logger.Warn("broker connection lost", zap.Error(err))
	})

	s.client = paho.NewClient(opts)
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	s.logger.Info("connected to broker",
		zap.String("broker", s.cfg.Broker),
		zap.Int("topics", len(s.topics)))
	return nil
}

func (s *Subscriber) subscribe(c paho.Client) error {
	for topic := range s.topics {
		handler := s.HandleMessage
		token := c.Subscribe(topic, s.cfg.QoS, func(_ paho.Client, msg paho.Message) {
			if err := handler(msg.Topic(), msg.Payload()); err != nil {
				s.logger.Warn("message dropped",
					zap.String("topic", msg.Topic()),
					zap.Error(err))
			}
		})
		if token.Wait() && token.Error() != nil {
			return fmt.Errorf("failed to subscribe to topic %s: %w", topic, token.Error())
		}
	}
	return nil
}

// unwrapEnvelope accepts the {"data": "<line>"} body used by the HTTP
// receiver as well as the bare line.
func unwrapEnvelope(payload []byte) []byte {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return payload
	}
	var envelope struct {
		Data *string `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil || envelope.Data == nil {
		return payload
	}
	return []byte(*envelope.Data)
}

// HandleMessage ingests one message received on topic.
func (s *Subscriber) HandleMessage(topic string, payload []byte) error {
	source, ok := s.topics[topic]
	if !ok {
		return fmt.Errorf("%w: topic %s", parser.ErrUnknownSource, topic)
	}
	if source == parser.SourceLoRa {
		payload = unwrapEnvelope(payload)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	id, err := s.ingest.Ingest(ctx, source, payload)
	if err != nil {
		return err
	}
	s.logger.Debug("message ingested", zap.String("topic", topic), zap.Uint("id", id))
	return nil
}

func (s *Subscriber) IsConnected() bool {
	return s.client != nil && s.client.IsConnected()
}

// Close unsubscribes and disconnects, waiting up to 250ms for in-flight work.
func (s *Subscriber) Close() {
	if s.client == nil {
		return
	}
	topics := make([]string, 0, len(s.topics))
	for topic := range s.topics {
		topics = append(topics, topic)
	}
	if token := s.client.Unsubscribe(topics...); token.WaitTimeout(time.Second) && token.Error() != nil {
		s.logger.Warn("failed to unsubscribe", zap.Error(token.Error()))
	}
	s.client.Disconnect(250)
	s.logger.Info("disconnected from broker")
}
