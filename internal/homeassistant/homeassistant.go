package homeassistant

import (
	"fmt"

	"github.com/daemonp/econnect2mqtt/internal/config"
	"github.com/daemonp/econnect2mqtt/internal/log"
	"github.com/daemonp/econnect2mqtt/internal/mqtt"
	"github.com/daemonp/econnect2mqtt/internal/types"
	"github.com/daemonp/econnect2mqtt/internal/util"
)

const manufacturer = "Elmo"

// Panel is the read side of the panel used to build discovery payloads.
type Panel interface {
	GetSectors() map[int]types.Entity
	GetInputs() map[int]types.Entity
	GetOutputs() map[int]types.Entity
	GetAlerts() map[int]types.Alert
	GetDevice() *types.PanelInfo
}

type HomeAssistant struct {
	config *config.Config
	mqtt   mqtt.MQTTClient
	panel  Panel
	log    *log.Logger
}

func New(cfg *config.Config, mqttClient mqtt.MQTTClient, p Panel, logger *log.Logger) *HomeAssistant {
	return &HomeAssistant{
		config: cfg,
		mqtt:   mqttClient,
		panel:  p,
		log:    logger,
	}
}

func (ha *HomeAssistant) Start() {
	ha.log.Info("Starting Home Assistant integration")
	ha.publishDiscoveryConfig()
}

func (ha *HomeAssistant) publishDiscoveryConfig() {
	ha.publishPanelConfig()

	for _, sector := range ha.panel.GetSectors() {
		ha.publishSectorConfig(sector)
	}

	for _, input := range ha.panel.GetInputs() {
		ha.publishInputConfig(input)
	}

	for _, output := range ha.panel.GetOutputs() {
		ha.publishOutputConfig(output)
	}

	for _, alert := range ha.panel.GetAlerts() {
		ha.publishAlertConfig(alert)
	}
}

func (ha *HomeAssistant) device() map[string]interface{} {
	device := map[string]interface{}{
		"identifiers":  []string{ha.mqtt.GetPrefix()},
		"name":         "e-Connect Alarm",
		"manufacturer": manufacturer,
	}
	if info := ha.panel.GetDevice(); info != nil {
		if info.Description != "" {
			device["name"] = info.Description
		}
		if info.Model != "" {
			device["model"] = info.Model
		}
		device["sw_version"] = fmt.Sprintf("%d.%d.%d", info.Major, info.Minor, info.Build)
	}
	return device
}

func (ha *HomeAssistant) base(name, uniqueID string) map[string]interface{} {
	return map[string]interface{}{
		"name":               name,
		"unique_id":          uniqueID,
		"availability_topic": ha.mqtt.Topics().Status(),
		"device":             ha.device(),
	}
}

func (ha *HomeAssistant) uniqueID(kind string, index int) string {
	return fmt.Sprintf("%s_%s_%d", util.Slugify(ha.mqtt.GetPrefix()), kind, index)
}

func (ha *HomeAssistant) publishPanelConfig() {
	topics := ha.mqtt.Topics()
	config := ha.base("Alarm", util.Slugify(ha.mqtt.GetPrefix())+"_alarm")
	config["state_topic"] = topics.Alarm()
	config["value_template"] = "{{ value_json.state }}"
	config["command_topic"] = topics.AlarmCommand()
	config["command_template"] = commandTemplate
	config["payload_arm_away"] = "arm"
	config["payload_disarm"] = "disarm"
	config["supported_features"] = []string{"arm_away"}
	config["code_arm_required"] = false
	config["code_disarm_required"] = false

	ha.publishConfig("alarm_control_panel", "alarm", config)

	panel := ha.base("Panel", util.Slugify(ha.mqtt.GetPrefix())+"_panel")
	panel["state_topic"] = topics.Status()
	panel["payload_on"] = "online"
	panel["payload_off"] = "offline"
	panel["device_class"] = "connectivity"
	delete(panel, "availability_topic")

	ha.publishConfig("binary_sensor", "panel", panel)
}

// commandTemplate forwards the action and the optional code typed in the
// alarm panel card. A missing code renders as "" rather than "None".
const commandTemplate = `{"action": "{{ action }}", "code": "{{ code if code else '' }}"}`

func (ha *HomeAssistant) publishSectorConfig(sector types.Entity) {
	topics := ha.mqtt.Topics()
	config := ha.base(sector.Name, ha.uniqueID("sector", sector.Index))
	config["state_topic"] = topics.Entity(types.CategorySectors, sector)
	config["value_template"] = "{{ 'armed_away' if value_json.status == 'armed' else 'disarmed' }}"
	config["command_topic"] = topics.EntityCommand(types.CategorySectors, sector)
	config["command_template"] = commandTemplate
	config["payload_arm_away"] = "arm"
	config["payload_disarm"] = "disarm"
	config["supported_features"] = []string{"arm_away"}
	config["code_arm_required"] = false
	config["code_disarm_required"] = false

	ha.publishConfig("alarm_control_panel", fmt.Sprintf("sector_%d", sector.Index), config)
}

func (ha *HomeAssistant) publishInputConfig(input types.Entity) {
	config := ha.base(input.Name, ha.uniqueID("input", input.Index))
	config["state_topic"] = ha.mqtt.Topics().Entity(types.CategoryInputs, input)
	config["value_template"] = "{{ value_json.status }}"
	config["payload_on"] = "alarm"
	config["payload_off"] = "idle"
	config["device_class"] = ha.deviceClass(input)
	config["json_attributes_topic"] = ha.mqtt.Topics().Entity(types.CategoryInputs, input)

	ha.publishConfig("binary_sensor", fmt.Sprintf("input_%d", input.Index), config)
}

func (ha *HomeAssistant) publishOutputConfig(output types.Entity) {
	topics := ha.mqtt.Topics()
	config := ha.base(output.Name, ha.uniqueID("output", output.Index))
	config["state_topic"] = topics.Entity(types.CategoryOutputs, output)
	config["value_template"] = "{{ value_json.status }}"
	config["command_topic"] = topics.EntityCommand(types.CategoryOutputs, output)
	config["payload_on"] = "on"
	config["payload_off"] = "off"
	config["state_on"] = "on"
	config["state_off"] = "off"

	ha.publishConfig("switch", fmt.Sprintf("output_%d", output.Index), config)
}

func (ha *HomeAssistant) publishAlertConfig(alert types.Alert) {
	slug := util.Slugify(alert.Name)
	config := ha.base(alert.Name, fmt.Sprintf("%s_alert_%s", util.Slugify(ha.mqtt.GetPrefix()), slug))
	config["state_topic"] = ha.mqtt.Topics().Alert(alert)
	config["payload_on"] = "1"
	config["payload_off"] = "0"
	config["device_class"] = "problem"
	config["entity_category"] = "diagnostic"

	ha.publishConfig("binary_sensor", "alert_"+slug, config)
}

func (ha *HomeAssistant) deviceClass(input types.Entity) string {
	if override, ok := ha.config.Input(input.Index); ok && override.DeviceClass != "" {
		return override.DeviceClass
	}
	return guessDeviceClass(input.Name)
}

func (ha *HomeAssistant) publishConfig(component, objectID string, config map[string]interface{}) {
	topic := fmt.Sprintf("%s/%s/%s/%s/config", ha.config.HomeAssistant.Prefix, component, util.Slugify(ha.mqtt.GetPrefix()), objectID)
	ha.log.Debug("Publishing Home Assistant discovery to %s", topic)
	ha.mqtt.Publish(topic, config, true)
}
