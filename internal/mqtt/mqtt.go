package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/daemonp/econnect2mqtt/internal/config"
	"github.com/daemonp/econnect2mqtt/internal/log"
	"github.com/daemonp/econnect2mqtt/internal/metrics"
	"github.com/daemonp/econnect2mqtt/internal/panel"
	"github.com/daemonp/econnect2mqtt/internal/types"
)

const (
	offlinePayload = "offline"
	onlinePayload  = "online"

	commandTimeout = 60 * time.Second
)

// Panel is the panel surface the bridge publishes and controls.
type Panel interface {
	Events() <-chan panel.Event
	State() types.AlarmState
	GetSectors() map[int]types.Entity
	GetInputs() map[int]types.Entity
	GetOutputs() map[int]types.Entity
	GetAlerts() map[int]types.Alert
	GetDevice() *types.PanelInfo
	Arm(ctx context.Context, code string, sectors []int) error
	Disarm(ctx context.Context, code string, sectors []int) error
	Include(ctx context.Context, code string, inputs []int) error
	Exclude(ctx context.Context, code string, inputs []int) error
	TurnOn(ctx context.Context, outputs []int) error
	TurnOff(ctx context.Context, outputs []int) error
}

var _ Panel = (*panel.Panel)(nil)

// Command is the JSON form of a command payload. A bare string payload is
// read as the action alone. The code "None", sent by Home Assistant
// templates when no code was typed, is treated as empty.
type Command struct {
	Action string `json:"action"`
	Code   string `json:"code,omitempty"`
}

func parseCommand(payload []byte) (Command, error) {
	trimmed := strings.TrimSpace(string(payload))
	if strings.HasPrefix(trimmed, "{") {
		var cmd Command
		if err := json.Unmarshal([]byte(trimmed), &cmd); err != nil {
			return Command{}, fmt.Errorf("invalid command payload: %w", err)
		}
		cmd.Action = strings.ToLower(cmd.Action)
		if cmd.Code == "None" {
			cmd.Code = ""
		}
		return cmd, nil
	}
	return Command{Action: strings.ToLower(trimmed)}, nil
}

type MQTT struct {
	config *config.MQTTConfig
	panel  Panel
	log    *log.Logger
	client mqtt.Client
	topics *Topics

	mu  sync.Mutex
	ctx context.Context
}

func NewMQTT(cfg *config.MQTTConfig, p Panel, logger *log.Logger) *MQTT {
	return &MQTT{
		config: cfg,
		panel:  p,
		log:    logger,
		topics: NewTopics(cfg.Prefix),
		ctx:    context.Background(),
	}
}

func (m *MQTT) GetPrefix() string {
	return m.config.Prefix
}

func (m *MQTT) Topics() *Topics {
	return m.topics
}

// Publish sends payload as is when it is a string or byte slice, and as
// JSON otherwise.
func (m *MQTT) Publish(topic string, payload interface{}, retain bool) {
	m.publish(topic, payload, retain)
}

// Connect dials the broker. Commands received later run under ctx.
func (m *MQTT) Connect(ctx context.Context) error {
	m.mu.Lock()
	m.ctx = ctx
	m.mu.Unlock()

	broker := BrokerURL(m.config)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(m.config.ClientID)
	opts.SetUsername(m.config.Username)
	opts.SetPassword(m.config.Password)
	opts.SetCleanSession(m.config.Clean)
	opts.SetKeepAlive(time.Duration(m.config.Keepalive) * time.Second)
	opts.SetAutoReconnect(true)
	// Command handlers call the cloud and must not block the paho router.
	opts.SetOrderMatters(false)
	opts.SetOnConnectHandler(m.onConnect)
	opts.SetConnectionLostHandler(m.onDisconnect)

	if strings.HasPrefix(broker, "ssl://") {
		tlsCfg, err := tlsConfig(m.config)
		if err != nil {
			return err
		}
		opts.SetTLSConfig(tlsCfg)
	}

	opts.SetWill(m.topics.Status(), offlinePayload, byte(m.config.QOS), true)

	m.client = mqtt.NewClient(opts)

	if token := m.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	m.log.Info("Connected to MQTT broker: %s", broker)
	return nil
}

// Start publishes panel changes until ctx is cancelled.
func (m *MQTT) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-m.panel.Events():
				m.PublishCategory(event.Category)
			}
		}
	}()
}

func (m *MQTT) onConnect(client mqtt.Client) {
	m.log.Info("MQTT connection established")
	m.publishOnlineStatus()
	m.subscribeTopics()
	m.PublishAll()
}

func (m *MQTT) onDisconnect(client mqtt.Client, err error) {
	m.log.Error("MQTT connection lost: %v", err)
}

func (m *MQTT) subscribeTopics() {
	for _, topic := range m.topics.CommandFilters() {
		token := m.client.Subscribe(topic, byte(m.config.QOS), m.handleMessage)
		if token.Wait() && token.Error() != nil {
			m.log.Error("Failed to subscribe to topic %s: %v", topic, token.Error())
		} else {
			m.log.Debug("Subscribed to topic: %s", topic)
		}
	}
}

func (m *MQTT) handleMessage(client mqtt.Client, msg mqtt.Message) {
	topic := msg.Topic()
	m.log.Debug("Received message on topic %s: %s", topic, msg.Payload())

	cmd, err := parseCommand(msg.Payload())
	if err != nil {
		m.log.Warning("Ignoring message on %s: %v", topic, err)
		return
	}

	m.mu.Lock()
	base := m.ctx
	m.mu.Unlock()
	ctx, cancel := context.WithTimeout(base, commandTimeout)
	defer cancel()

	if topic == m.topics.AlarmCommand() {
		m.handleAlarmCommand(ctx, cmd)
		return
	}

	category, index, ok := m.topics.ParseCommand(topic)
	if !ok {
		m.log.Warning("Received message on unknown topic: %s", topic)
		return
	}

	switch category {
	case types.CategorySectors:
		m.handleSectorCommand(ctx, index, cmd)
	case types.CategoryInputs:
		m.handleInputCommand(ctx, index, cmd)
	case types.CategoryOutputs:
		m.handleOutputCommand(ctx, index, cmd)
	}
}

func (m *MQTT) handleAlarmCommand(ctx context.Context, cmd Command) {
	var err error
	switch cmd.Action {
	case "arm", "arm_away":
		err = m.panel.Arm(ctx, cmd.Code, nil)
	case "disarm":
		err = m.panel.Disarm(ctx, cmd.Code, nil)
	default:
		m.log.Warning("Unknown alarm command: %s", cmd.Action)
		return
	}
	m.commandDone("alarm_"+cmd.Action, err)
}

func (m *MQTT) handleSectorCommand(ctx context.Context, index int, cmd Command) {
	var err error
	switch cmd.Action {
	case "arm", "arm_away":
		err = m.panel.Arm(ctx, cmd.Code, []int{index})
	case "disarm":
		err = m.panel.Disarm(ctx, cmd.Code, []int{index})
	default:
		m.log.Warning("Unknown sector command: %s", cmd.Action)
		return
	}
	m.commandDone("sector_"+cmd.Action, err)
}

func (m *MQTT) handleInputCommand(ctx context.Context, index int, cmd Command) {
	var err error
	switch cmd.Action {
	case "include":
		err = m.panel.Include(ctx, cmd.Code, []int{index})
	case "exclude":
		err = m.panel.Exclude(ctx, cmd.Code, []int{index})
	default:
		m.log.Warning("Unknown input command: %s", cmd.Action)
		return
	}
	m.commandDone("input_"+cmd.Action, err)
}

func (m *MQTT) handleOutputCommand(ctx context.Context, index int, cmd Command) {
	var err error
	switch cmd.Action {
	case "on", "turn_on":
		err = m.panel.TurnOn(ctx, []int{index})
	case "off", "turn_off":
		err = m.panel.TurnOff(ctx, []int{index})
	default:
		m.log.Warning("Unknown output command: %s", cmd.Action)
		return
	}
	m.commandDone("output_"+cmd.Action, err)
}

func (m *MQTT) commandDone(command string, err error) {
	metrics.RecordMQTTCommand(command, err)
	if err != nil {
		m.log.Error("Command %s failed: %v", command, err)
		return
	}
	m.log.Info("Command %s completed", command)
}

func (m *MQTT) publishOnlineStatus() {
	m.publish(m.topics.Status(), onlinePayload, true)
}

// PublishAll publishes the full known state.
func (m *MQTT) PublishAll() {
	for _, c := range types.Categories {
		m.PublishCategory(c)
	}
}

// PublishCategory publishes the current state of one category.
func (m *MQTT) PublishCategory(category types.Category) {
	switch category {
	case types.CategorySectors:
		for _, s := range m.panel.GetSectors() {
			m.PublishSector(s)
		}
	case types.CategoryInputs:
		for _, in := range m.panel.GetInputs() {
			m.PublishInput(in)
		}
	case types.CategoryOutputs:
		for _, out := range m.panel.GetOutputs() {
			m.PublishOutput(out)
		}
	case types.CategoryAlerts:
		m.PublishAlerts(m.panel.GetAlerts())
	case types.CategoryPanel:
		m.publishPanelStatus()
	}
}

func (m *MQTT) publishPanelStatus() {
	state := m.panel.State().String()
	m.publish(m.topics.Alarm(), map[string]interface{}{"state": state}, true)

	status := map[string]interface{}{"state": state}
	if device := m.panel.GetDevice(); device != nil {
		status["description"] = device.Description
		status["model"] = device.Model
		status["version"] = fmt.Sprintf("%d.%d.%d", device.Major, device.Minor, device.Build)
		status["source_ip"] = device.SourceIP
		status["connection_type"] = device.ConnectionType
		status["last_connection"] = device.LastConnection
		status["is_fire_panel"] = device.IsFirePanel
	}
	m.publish(m.topics.Panel(), status, true)
}

func (m *MQTT) PublishSector(sector types.Entity) {
	status := "disarmed"
	if sector.Status {
		status = "armed"
	}
	m.publish(m.topics.Entity(types.CategorySectors, sector), map[string]interface{}{
		"id":        sector.ID,
		"index":     sector.Index,
		"element":   sector.Element,
		"name":      sector.Name,
		"status":    status,
		"activable": sector.Activable,
	}, m.config.Retain)
}

func (m *MQTT) PublishInput(input types.Entity) {
	status := "idle"
	if input.Status {
		status = "alarm"
	}
	m.publish(m.topics.Entity(types.CategoryInputs, input), map[string]interface{}{
		"id":       input.ID,
		"index":    input.Index,
		"element":  input.Element,
		"name":     input.Name,
		"status":   status,
		"excluded": input.Excluded,
	}, m.config.Retain)
}

func (m *MQTT) PublishOutput(output types.Entity) {
	status := "off"
	if output.Status {
		status = "on"
	}
	m.publish(m.topics.Entity(types.CategoryOutputs, output), map[string]interface{}{
		"id":                            output.ID,
		"index":                         output.Index,
		"element":                       output.Element,
		"name":                          output.Name,
		"status":                        status,
		"do_not_require_authentication": output.DoNotRequireAuthentication,
		"control_denied_to_users":       output.ControlDeniedToUsers,
	}, m.config.Retain)
}

// PublishAlerts publishes every alert on its own topic and the whole set
// as one object.
func (m *MQTT) PublishAlerts(alerts map[int]types.Alert) {
	all := make(map[string]int, len(alerts))
	for _, a := range alerts {
		all[a.Name] = a.Status
		m.publish(m.topics.Alert(a), fmt.Sprintf("%d", a.Status), m.config.Retain)
	}
	m.publish(m.topics.Alerts(), all, m.config.Retain)
}

func (m *MQTT) publish(topic string, message interface{}, retain bool) {
	var payload []byte
	switch v := message.(type) {
	case string:
		payload = []byte(v)
	case []byte:
		payload = v
	default:
		var err error
		payload, err = json.Marshal(message)
		if err != nil {
			m.log.Error("Failed to marshal message for topic %s: %v", topic, err)
			return
		}
	}

	token := m.client.Publish(topic, byte(m.config.QOS), retain, payload)
	if token.Wait() && token.Error() != nil {
		m.log.Error("Failed to publish message to topic %s: %v", topic, token.Error())
	} else {
		m.log.Debug("Published message to topic: %s", topic)
	}
}

func (m *MQTT) Close() {
	if m.client != nil && m.client.IsConnected() {
		m.publish(m.topics.Status(), offlinePayload, true)
		m.client.Disconnect(250)
	}
}
