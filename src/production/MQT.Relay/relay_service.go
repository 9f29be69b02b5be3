package mqtrelay

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	config "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Config"
	logger "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Logger"
	metrics "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Metrics"
	mqtmodels "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Models"
)

const queueSize = 1024

var (
	ErrQueueFull    = errors.New("relay queue is full")
	ErrRelayStopped = errors.New("relay is stopped")
	ErrNotConnected = errors.New("relay is not connected to the broker")
)

// brokerClient is the part of mqtt.Client the relay uses
type brokerClient interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Publisher fans accepted readings out to an MQTT broker. Publish only
// enqueues; a single worker owns the broker round trips.
type Publisher struct {
	cfg    config.MQTTConfig
	log    *logger.Logger
	client brokerClient
	dial   func(ctx context.Context) (brokerClient, error)
	queue  chan mqtmodels.Reading
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func New(cfg config.MQTTConfig, log *logger.Logger) *Publisher {
	p := &Publisher{
		cfg:   cfg,
		log:   log.WithComponent("relay"),
		queue: make(chan mqtmodels.Reading, queueSize),
	}
	p.dial = p.connect
	return p
}

// Start connects to the broker and starts the publish worker. ctx bounds the
// initial connect only; the worker runs until Stop.
func (p *Publisher) Start(ctx context.Context) error {
	client, err := p.dial(ctx)
	if err != nil {
		return err
	}
	p.client = client

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.worker()
	}()

	return nil
}

func (p *Publisher) connect(ctx context.Context) (brokerClient, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(p.cfg.BrokerURL()).
		SetClientID(p.cfg.ClientID).
		SetOrderMatters(false).
		SetKeepAlive(p.cfg.KeepAlive).
		SetPingTimeout(p.cfg.PingTimeout).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetCleanSession(true)

	if p.cfg.BrokerUser != "" {
		opts.SetUsername(p.cfg.BrokerUser)
		opts.SetPassword(p.cfg.BrokerPass)
	}

	if p.cfg.UseTLS {
		tlsCfg, err := tlsConfig(p.cfg.CACertPath)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		p.log.WarnWithError(err, "mqtt connection lost")
	}
	opts.OnConnect = func(mqtt.Client) {
		p.log.WithField("broker", p.cfg.BrokerURL()).Info("mqtt connected")
	}

	if p.cfg.PingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.PingTimeout)
		defer cancel()
	}

	client := mqtt.NewClient(opts)
	tk := client.Connect()
	select {
	case <-tk.Done():
		if err := tk.Error(); err != nil {
			return nil, fmt.Errorf("connect to %s: %w", p.cfg.BrokerURL(), err)
		}
	case <-ctx.Done():
		// SetConnectRetry keeps trying in the background
		p.log.Warn("mqtt broker not reachable yet, retrying in background")
	}
	return client, nil
}

// Stop drains the queue and disconnects
func (p *Publisher) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(500)
	}
}

// Publish enqueues a reading without waiting for the broker
func (p *Publisher) Publish(_ context.Context, reading mqtmodels.Reading) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrRelayStopped
	}

	select {
	case p.queue <- reading:
		return nil
	default:
		metrics.RelayPublishFailuresTotal.Inc()
		return ErrQueueFull
	}
}

func (p *Publisher) IsConnected() bool {
	return p.client != nil && p.client.IsConnected()
}

// Ping reports broker connectivity for readiness checks
func (p *Publisher) Ping(_ context.Context) error {
	if !p.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// worker drains the queue until Stop closes it
func (p *Publisher) worker() {
	for reading := range p.queue {
		if err := p.send(reading); err != nil {
			metrics.RelayPublishFailuresTotal.Inc()
			p.log.WithChip(reading.ChipID).WarnWithError(err, "failed to relay reading")
		}
	}
}

func (p *Publisher) send(reading mqtmodels.Reading) error {
	payload, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("marshal reading: %w", err)
	}

	topic := Topic(p.cfg.TopicPrefix, reading.ChipID)
	token := p.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(p.cfg.PublishWait) {
		return fmt.Errorf("publish to %s: timed out after %s", topic, p.cfg.PublishWait)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Topic returns the topic a chip's readings are relayed on
func Topic(prefix, chipID string) string {
	return fmt.Sprintf("%s/%s/reading", prefix, chipID)
}

func tlsConfig(caFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if caFile == "" {
		return cfg, nil
	}
	ca, err := os.ReadFile(caFile)
	if err != nil {
		return nil, err
	}
	cp := x509.NewCertPool()
	if !cp.AppendCertsFromPEM(ca) {
		return nil, fmt.Errorf("bad CA file")
	}
	cfg.RootCAs = cp
	return cfg, nil
}
