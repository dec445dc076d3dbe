// Package ingest feeds device readings published over MQTT into the monitor.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"healthguard/internal/config"
	"healthguard/internal/monitor"
)

// SourcePrefix tags patches that arrived over MQTT; the device id follows it.
const SourcePrefix = "mqtt:"

// ErrMalformedPayload marks messages that are not a metric patch.
var ErrMalformedPayload = errors.New("malformed metrics payload")

// Applier is the part of the monitor the subscriber writes to.
type Applier interface {
	Apply(source string, patch monitor.Patch) (monitor.Change, error)
}

// Subscriber holds the broker connection and routes each message to the monitor.
type Subscriber struct {
	cfg    config.MQTTConfig
	target Applier
	logger zerolog.Logger
	client mqtt.Client
}

// NewSubscriber prepares a subscriber; Run connects it.
func NewSubscriber(cfg config.MQTTConfig, target Applier, logger zerolog.Logger) *Subscriber {
	return &Subscriber{
		cfg:    cfg,
		target: target,
		logger: logger.With().Str("component", "mqtt").Logger(),
	}
}

func (s *Subscriber) options() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.cfg.Broker)
	opts.SetClientID(s.cfg.ClientID)
	opts.SetUsername(s.cfg.Username)
	opts.SetPassword(s.cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(s.cfg.ConnectTimeout)
	// Subscriptions are not kept by the broker across clean sessions.
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		token := c.Subscribe(s.cfg.Topic, s.cfg.QoS, s.onMessage)
		if token.Wait() && token.Error() != nil {
			s.logger.Error().Err(token.Error()).Str("topic", s.cfg.Topic).Msg("subscribe failed")
			return
		}
		s.logger.Info().Str("topic", s.cfg.Topic).Msg("subscribed")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.logger.Warn().Err(err).Msg("connection lost")
	})
	return opts
}

// Run connects to the broker and blocks until ctx is done.
func (s *Subscriber) Run(ctx context.Context) error {
	s.client = mqtt.NewClient(s.options())

	token := s.client.Connect()
	timeout := s.cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("connect to mqtt broker %s: timed out after %s", s.cfg.Broker, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to mqtt broker %s: %w", s.cfg.Broker, err)
	}
	s.logger.Info().Str("broker", s.cfg.Broker).Msg("connected")

	<-ctx.Done()
	s.client.Disconnect(250)
	s.logger.Info().Msg("disconnected")
	return nil
}

func (s *Subscriber) onMessage(_ mqtt.Client, msg mqtt.Message) {
	if err := s.handleMessage(msg.Topic(), msg.Payload()); err != nil {
		s.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("message dropped")
	}
}

// handleMessage decodes one payload and applies it under the device's source.
func (s *Subscriber) handleMessage(topic string, payload []byte) error {
	patch, err := DecodePatch(payload)
	if err != nil {
		return err
	}
	change, err := s.target.Apply(SourcePrefix+DeviceID(topic), patch)
	if err != nil {
		return err
	}
	s.logger.Debug().
		Str("source", change.Source).
		Int("score", change.Current.Score).
		Str("risk", string(change.Current.RiskStatus)).
		Msg("device update applied")
	return nil
}

// DecodePatch parses a single JSON metric patch, rejecting unknown fields,
// trailing data and payloads that change nothing.
func DecodePatch(payload []byte) (monitor.Patch, error) {
	var patch monitor.Patch
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		return monitor.Patch{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return monitor.Patch{}, fmt.Errorf("%w: trailing data after patch", ErrMalformedPayload)
	}
	if patch.Empty() {
		return monitor.Patch{}, fmt.Errorf("%w: no fields", ErrMalformedPayload)
	}
	return patch, nil
}

// DeviceID extracts the device segment of "<prefix>/<device>/metrics".
func DeviceID(topic string) string {
	parts := strings.Split(strings.Trim(topic, "/"), "/")
	if len(parts) < 2 {
		return "unknown"
	}
	if id := parts[len(parts)-2]; id != "" {
		return id
	}
	return "unknown"
}
