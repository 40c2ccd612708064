// Package feed subscribes to the per-device telemetry feeds over MQTT and
// routes incoming payloads to the device analyzers.
//
// Three topics exist per device, mirroring the upstream collector's
// layout:
//
//	telemetry/<device>/latest       — single most-recent sample
//	telemetry/<device>/raw          — batch of historical samples
//	telemetry/<device>/predictions  — model prediction record
//
// The subscriber can watch an explicit device list or discover devices via
// wildcard subscription. Payload validation happens downstream in the
// analyzer; the feed layer only routes bytes.
package feed

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	topicPrefix = "telemetry"

	kindLatest      = "latest"
	kindRaw         = "raw"
	kindPredictions = "predictions"
)

// Ingestor receives routed feed payloads. Implemented by the analyzer
// manager wiring in cmd/analyzer.
type Ingestor interface {
	Latest(device string, payload []byte)
	Raw(device string, payload []byte)
	Predictions(device string, payload []byte)
}

// Config holds MQTT connection settings.
type Config struct {
	Broker   string // e.g. "tcp://localhost:1883"
	ClientID string
	Username string
	Password string
	// Devices lists device IDs to watch. Empty enables wildcard
	// discovery of every device publishing under the telemetry prefix.
	Devices []string
}

// Subscriber owns the MQTT session and the topic subscriptions.
type Subscriber struct {
	client   mqtt.Client
	ingestor Ingestor
	logger   *slog.Logger

	mu      sync.Mutex
	stopped map[string]struct{}
}

// NewSubscriber connects to the broker. Subscriptions start with Run.
func NewSubscriber(cfg Config, ingestor Ingestor, logger *slog.Logger) (*Subscriber, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt broker address required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("connected to MQTT broker", "broker", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", "error", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to MQTT broker: %w", token.Error())
	}

	s := &Subscriber{
		client:   client,
		ingestor: ingestor,
		logger:   logger,
		stopped:  make(map[string]struct{}),
	}

	if len(cfg.Devices) == 0 {
		if err := s.subscribeDevice("+"); err != nil {
			client.Disconnect(250)
			return nil, err
		}
		logger.Info("watching all devices", "prefix", topicPrefix)
		return s, nil
	}

	for _, device := range cfg.Devices {
		if err := s.subscribeDevice(device); err != nil {
			client.Disconnect(250)
			return nil, err
		}
		logger.Info("watching device", "device", device)
	}
	return s, nil
}

func (s *Subscriber) subscribeDevice(device string) error {
	for _, kind := range []string{kindLatest, kindRaw, kindPredictions} {
		topic := fmt.Sprintf("%s/%s/%s", topicPrefix, device, kind)
		if token := s.client.Subscribe(topic, 1, s.handleMessage); token.Wait() && token.Error() != nil {
			return fmt.Errorf("subscribe to %s: %w", topic, token.Error())
		}
	}
	return nil
}

// handleMessage routes one MQTT message by topic. Unroutable topics and
// messages for unwatched devices are dropped.
func (s *Subscriber) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	device, kind, ok := SplitTopic(msg.Topic())
	if !ok {
		s.logger.Debug("ignoring message on unexpected topic", "topic", msg.Topic())
		return
	}

	s.mu.Lock()
	_, unwatched := s.stopped[device]
	s.mu.Unlock()
	if unwatched {
		return
	}

	switch kind {
	case kindLatest:
		s.ingestor.Latest(device, msg.Payload())
	case kindRaw:
		s.ingestor.Raw(device, msg.Payload())
	case kindPredictions:
		s.ingestor.Predictions(device, msg.Payload())
	}
}

// Unwatch stops delivery for one device immediately. Any message already
// in flight for the device is dropped before reaching the ingestor.
func (s *Subscriber) Unwatch(device string) {
	s.mu.Lock()
	s.stopped[device] = struct{}{}
	s.mu.Unlock()

	for _, kind := range []string{kindLatest, kindRaw, kindPredictions} {
		topic := fmt.Sprintf("%s/%s/%s", topicPrefix, device, kind)
		if token := s.client.Unsubscribe(topic); token.Wait() && token.Error() != nil {
			s.logger.Warn("failed to unsubscribe", "topic", topic, "error", token.Error())
		}
	}
	s.logger.Info("stopped watching device", "device", device)
}

// Close disconnects from the broker, stopping all delivery.
func (s *Subscriber) Close() {
	s.client.Disconnect(250)
	s.logger.Info("disconnected from MQTT broker")
}

// SplitTopic parses "telemetry/<device>/<kind>" into its parts.
func SplitTopic(topic string) (device, kind string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != topicPrefix || parts[1] == "" {
		return "", "", false
	}
	switch parts[2] {
	case kindLatest, kindRaw, kindPredictions:
		return parts[1], parts[2], true
	default:
		return "", "", false
	}
}
