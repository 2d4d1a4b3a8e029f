package mqtt

// MQTTClient is the publishing surface used by integrations.
type MQTTClient interface {
	GetPrefix() string
	Topics() *Topics
	Publish(topic string, payload interface{}, retain bool)
}

var _ MQTTClient = (*MQTT)(nil)
