package report

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig selects the broker and topic layout for published results.
type MQTTConfig struct {
	Broker      string // tcp://host:1883
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
	Retain      bool
	Timeout     time.Duration
}

// publisher is the part of mqtt.Client the publisher uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher publishes a JSON summary of every run.
type MQTTPublisher struct {
	client  publisher
	cfg     MQTTConfig
	timeout time.Duration
}

// summary is the published payload; steps are reduced to failures.
type summary struct {
	ID       string  `json:"id"`
	Script   string  `json:"script"`
	Driver   string  `json:"driver"`
	Started  string  `json:"started"`
	Duration float64 `json:"duration_s"`
	Passed   bool    `json:"passed"`
	Error    string  `json:"error,omitempty"`
	Steps    int     `json:"steps"`
	Failed   []Step  `json:"failed,omitempty"`
}

// ConnectMQTT connects to the broker.
func ConnectMQTT(cfg MQTTConfig) (*MQTTPublisher, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt: no broker configured")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetConnectTimeout(timeout)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("mqtt: connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", cfg.Broker, err)
	}
	return newMQTTPublisher(client, cfg), nil
}

func newMQTTPublisher(client publisher, cfg MQTTConfig) *MQTTPublisher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "commscript"
	}
	return &MQTTPublisher{client: client, cfg: cfg, timeout: timeout}
}

// Topic returns the topic results for script are published on.
func (p *MQTTPublisher) Topic(script string) string {
	name := strings.TrimSuffix(filepath.Base(script), filepath.Ext(script))
	if name == "" || name == "." {
		name = "unnamed"
	}
	return strings.TrimSuffix(p.cfg.TopicPrefix, "/") + "/" + name + "/result"
}

// Record publishes run and waits for the broker to accept it.
func (p *MQTTPublisher) Record(ctx context.Context, run *Run) error {
	s := summary{
		ID:       run.ID,
		Script:   run.Script,
		Driver:   run.Driver,
		Started:  run.Started.UTC().Format(time.RFC3339),
		Duration: run.Duration.Seconds(),
		Passed:   run.Passed,
		Error:    run.Error,
		Steps:    len(run.Steps),
	}
	for _, st := range run.Steps {
		if !st.Passed {
			s.Failed = append(s.Failed, st)
		}
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("mqtt: encode run %s: %w", run.ID, err)
	}

	token := p.client.Publish(p.Topic(run.Script), p.cfg.QoS, p.cfg.Retain, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.timeout):
		return fmt.Errorf("mqtt: publish run %s timed out", run.ID)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish run %s: %w", run.ID, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
