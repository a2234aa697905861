package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/sweeney/power-monitor/internal/logic"
)

// DefaultTopic is the MQTT topic for power transition events.
const DefaultTopic = "energy/power/monitor/events"

// MQTTConfig configures an MQTTNotifier.
type MQTTConfig struct {
	Broker         string
	ClientID       string
	Topic          string
	Username       string
	Password       string
	ConnectRetries int
	Texts          logic.Texts
}

// MQTTNotifier publishes transitions to an MQTT broker with QoS 1 and treats
// the broker's PUBACK as delivery.
type MQTTNotifier struct {
	client paho.Client
	topic  string
	texts  logic.Texts
	log    zerolog.Logger
}

// NewMQTTNotifier connects to the broker, retrying with exponential backoff.
func NewMQTTNotifier(ctx context.Context, cfg MQTTConfig, logger zerolog.Logger) (*MQTTNotifier, error) {
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	logger = logger.With().Str("component", "mqtt").Str("broker", cfg.Broker).Logger()

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warn().Err(err).Msg("connection lost")
		}).
		SetOnConnectHandler(func(paho.Client) {
			logger.Info().Msg("connected")
		})

	client := paho.NewClient(opts)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = time.Minute
	retries := cfg.ConnectRetries
	if retries < 1 {
		retries = 1
	}

	err := backoff.Retry(func() error {
		token := client.Connect()
		if !token.WaitTimeout(10 * time.Second) {
			logger.Warn().Msg("connect timeout, retrying")
			return fmt.Errorf("connection timeout")
		}
		if err := token.Error(); err != nil {
			logger.Warn().Err(err).Msg("connect failed, retrying")
			return err
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(retries-1)), ctx))
	if err != nil {
		return nil, fmt.Errorf("connect to broker %s: %w", cfg.Broker, err)
	}

	return &MQTTNotifier{
		client: client,
		topic:  topic,
		texts:  cfg.Texts,
		log:    logger,
	}, nil
}

// Send publishes msg and waits for the broker acknowledgement.
func (n *MQTTNotifier) Send(ctx context.Context, msg logic.Message) error {
	payload, err := FormatPayload(msg, n.texts)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 1 (at-least-once), not retained
	token := n.client.Publish(n.topic, 1, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish: %w", ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// IsConnected reports whether the client is connected to the broker.
func (n *MQTTNotifier) IsConnected() bool {
	return n.client.IsConnected()
}

// Close disconnects from the broker.
func (n *MQTTNotifier) Close() error {
	n.client.Disconnect(1000) // 1 second timeout
	return nil
}
