package mqtt

import (
	"context"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/daemonp/econnect2mqtt/internal/panel"
	"github.com/daemonp/econnect2mqtt/internal/types"
)

type doneToken struct {
	err error
}

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Error() error                   { return t.err }

func (t *doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic   string
	retain  bool
	payload []byte
}

// fakeBroker records publishes and subscriptions.
type fakeBroker struct {
	mu           sync.Mutex
	connected    bool
	publishes    []published
	subscribed   []string
	disconnected bool
	publishErr   error
}

var _ paho.Client = (*fakeBroker)(nil)

func (b *fakeBroker) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *fakeBroker) IsConnectionOpen() bool { return b.IsConnected() }

func (b *fakeBroker) Connect() paho.Token {
	b.mu.Lock()
	b.connected = true
	b.mu.Unlock()
	return &doneToken{}
}

func (b *fakeBroker) Disconnect(uint) {
	b.mu.Lock()
	b.connected = false
	b.disconnected = true
	b.mu.Unlock()
}

func (b *fakeBroker) Publish(topic string, _ byte, retained bool, payload interface{}) paho.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, _ := payload.([]byte)
	b.publishes = append(b.publishes, published{topic: topic, retain: retained, payload: data})
	return &doneToken{err: b.publishErr}
}

func (b *fakeBroker) Subscribe(topic string, _ byte, _ paho.MessageHandler) paho.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribed = append(b.subscribed, topic)
	return &doneToken{}
}

func (b *fakeBroker) SubscribeMultiple(filters map[string]byte, _ paho.MessageHandler) paho.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic := range filters {
		b.subscribed = append(b.subscribed, topic)
	}
	return &doneToken{}
}

func (b *fakeBroker) Unsubscribe(...string) paho.Token        { return &doneToken{} }
func (b *fakeBroker) AddRoute(string, paho.MessageHandler)    {}
func (b *fakeBroker) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }

// last returns the payload most recently published on topic.
func (b *fakeBroker) last(topic string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.publishes) - 1; i >= 0; i-- {
		if b.publishes[i].topic == topic {
			return b.publishes[i].payload, true
		}
	}
	return nil, false
}

func (b *fakeBroker) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.publishes)
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

type call struct {
	name string
	code string
	ids  []int
}

type fakePanel struct {
	mu     sync.Mutex
	events chan panel.Event
	calls  []call
	err    error

	state   types.AlarmState
	sectors map[int]types.Entity
	inputs  map[int]types.Entity
	outputs map[int]types.Entity
	alerts  map[int]types.Alert
	device  *types.PanelInfo
}

func newFakePanel() *fakePanel {
	return &fakePanel{
		events: make(chan panel.Event, 8),
		state:  types.AlarmStateArmedAway,
		sectors: map[int]types.Entity{
			0: {ID: 1, Index: 0, Name: "Living Room", Status: true, Activable: true},
		},
		inputs: map[int]types.Entity{
			2: {ID: 3, Index: 2, Name: "Front Door", Excluded: true},
		},
		outputs: map[int]types.Entity{
			1: {ID: 400259, Index: 1, Name: "Gate", Status: true},
		},
		alerts: map[int]types.Alert{
			0: {Name: "alarm_led", Status: 1},
			1: {Name: "tamper_led", Status: 0},
		},
		device: &types.PanelInfo{Model: "T-800", Description: "T-800 1.0.1", Major: 1, Minor: 0, Build: 1},
	}
}

func (p *fakePanel) record(name, code string, ids []int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call{name: name, code: code, ids: ids})
	return p.err
}

func (p *fakePanel) recorded() []call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]call(nil), p.calls...)
}

func (p *fakePanel) Events() <-chan panel.Event       { return p.events }
func (p *fakePanel) State() types.AlarmState          { return p.state }
func (p *fakePanel) GetSectors() map[int]types.Entity { return p.sectors }
func (p *fakePanel) GetInputs() map[int]types.Entity  { return p.inputs }
func (p *fakePanel) GetOutputs() map[int]types.Entity { return p.outputs }
func (p *fakePanel) GetAlerts() map[int]types.Alert   { return p.alerts }
func (p *fakePanel) GetDevice() *types.PanelInfo      { return p.device }

func (p *fakePanel) Arm(_ context.Context, code string, sectors []int) error {
	return p.record("arm", code, sectors)
}

func (p *fakePanel) Disarm(_ context.Context, code string, sectors []int) error {
	return p.record("disarm", code, sectors)
}

func (p *fakePanel) Include(_ context.Context, code string, inputs []int) error {
	return p.record("include", code, inputs)
}

func (p *fakePanel) Exclude(_ context.Context, code string, inputs []int) error {
	return p.record("exclude", code, inputs)
}

func (p *fakePanel) TurnOn(_ context.Context, outputs []int) error {
	return p.record("turn_on", "", outputs)
}

func (p *fakePanel) TurnOff(_ context.Context, outputs []int) error {
	return p.record("turn_off", "", outputs)
}
