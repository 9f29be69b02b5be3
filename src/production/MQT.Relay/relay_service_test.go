package mqtrelay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	config "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Config"
	logger "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Logger"
	mqtmodels "gitlab.com/maplesense1/mpt.meteo_gateway/src/production/MQT.Models"
)

func TestTopic(t *testing.T) {
	if got := Topic("sensors", "123456789012345"); got != "sensors/123456789012345/reading" {
		t.Fatalf("Topic = %q", got)
	}
}


func TestReadingPayload(t *testing.T) {
	ssid := "home"
	payload, err := json.Marshal(mqtmodels.Reading{
		ChipID:      "123456789012345",
		TimestampMs: 1700000000000,
		Values:      map[mqtmodels.Metric]float64{mqtmodels.MetricTemperature: 21.5},
		SSID:        &ssid,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["chip_id"] != "123456789012345" || decoded["ssid"] != "home" {
		t.Fatalf("unexpected payload %s", payload)
	}
	values := decoded["values"].(map[string]interface{})
	if values["temperature"] != 21.5 {
		t.Fatalf("temperature = %v", values["temperature"])
	}
}

func TestPublish_QueueBoundsAndStop(t *testing.T) {
	p := New(config.MQTTConfig{}, logger.NewNopLogger())
	ctx := context.Background()

	for i := 0; i < queueSize; i++ {
		if err := p.Publish(ctx, mqtmodels.Reading{ChipID: "1"}); err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
	}
	if err := p.Publish(ctx, mqtmodels.Reading{ChipID: "1"}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}

	p.Stop()
	p.Stop()
	if err := p.Publish(ctx, mqtmodels.Reading{ChipID: "1"}); !errors.Is(err, ErrRelayStopped) {
		t.Fatalf("expected ErrRelayStopped, got %v", err)
	}
	if err := p.Ping(ctx); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

type doneToken struct {
	err  error
	done chan struct{}
}

func newDoneToken(err error) *doneToken {
	t := &doneToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{}          { return t.done }
func (t *doneToken) Error() error                   { return t.err }

type fakeBroker struct {
	mu           sync.Mutex
	topics       []string
	payloads     [][]byte
	failWith     error
	disconnected bool
}

func (b *fakeBroker) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.disconnected
}

func (b *fakeBroker) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics = append(b.topics, topic)
	b.payloads = append(b.payloads, payload.([]byte))
	return newDoneToken(b.failWith)
}

func (b *fakeBroker) Disconnect(uint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disconnected = true
}

func (b *fakeBroker) published() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics)
}

func newTestPublisher(broker *fakeBroker) *Publisher {
	p := New(config.MQTTConfig{TopicPrefix: "sensors", PublishWait: time.Second}, logger.NewNopLogger())
	p.dial = func(context.Context) (brokerClient, error) { return broker, nil }
	return p
}

func waitForPublished(t *testing.T, broker *fakeBroker, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for broker.published() < want {
		if time.Now().After(deadline) {
			t.Fatalf("published %d readings, want %d", broker.published(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWorker_KeepsDrainingAfterStartContextEnds(t *testing.T) {
	broker := &fakeBroker{}
	p := newTestPublisher(broker)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()
	<-ctx.Done()

	for i := 0; i < 5; i++ {
		if err := p.Publish(context.Background(), mqtmodels.Reading{ChipID: "123456789012345"}); err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
	}
	waitForPublished(t, broker, 5)
}

func TestWorker_PublishesToChipTopic(t *testing.T) {
	broker := &fakeBroker{}
	p := newTestPublisher(broker)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	reading := mqtmodels.Reading{
		ChipID:      "123456789012345",
		TimestampMs: 42,
		Values:      map[mqtmodels.Metric]float64{mqtmodels.MetricDust: 3},
	}
	if err := p.Publish(context.Background(), reading); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	// Stop drains whatever is queued before returning
	p.Stop()

	if broker.published() != 1 || broker.topics[0] != "sensors/123456789012345/reading" {
		t.Fatalf("topics = %v", broker.topics)
	}
	var decoded mqtmodels.Reading
	if err := json.Unmarshal(broker.payloads[0], &decoded); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if decoded.TimestampMs != 42 || decoded.Values[mqtmodels.MetricDust] != 3 {
		t.Fatalf("payload = %+v", decoded)
	}
	if !broker.disconnected {
		t.Error("Stop should disconnect from the broker")
	}
}

func TestWorker_SendFailureDoesNotStopWorker(t *testing.T) {
	broker := &fakeBroker{failWith: errors.New("not authorized")}
	p := newTestPublisher(broker)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	for i := 0; i < 3; i++ {
		if err := p.Publish(context.Background(), mqtmodels.Reading{ChipID: "1"}); err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
	}
	waitForPublished(t, broker, 3)
}

func TestStart_DialError(t *testing.T) {
	p := New(config.MQTTConfig{}, logger.NewNopLogger())
	p.dial = func(context.Context) (brokerClient, error) { return nil, errors.New("bad CA file") }
	if err := p.Start(context.Background()); err == nil {
		t.Fatal("expected the dial error")
	}
}
