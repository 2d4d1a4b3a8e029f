package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v2"

	"github.com/daemonp/econnect2mqtt/internal/econnect"
)

const (
	LoginModeAPI = "api"
	LoginModeWeb = "web"
)

type Config struct {
	EConnect      EConnectConfig      `yaml:"econnect"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	HomeAssistant HomeAssistantConfig `yaml:"homeassistant"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Sectors       []SectorConfig      `yaml:"sectors" validate:"dive"`
	Inputs        []InputConfig       `yaml:"inputs" validate:"dive"`
	Log           string              `yaml:"log" env:"LOG_LEVEL" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
	Cache         bool                `yaml:"cache" env:"CACHE"`
}

type EConnectConfig struct {
	// System selects a known deployment (econnect or metronet). BaseURL and
	// WebLoginURL override its endpoints.
	System      string        `yaml:"system" env:"ECONNECT_SYSTEM" validate:"omitempty,oneof=econnect metronet"`
	BaseURL     string        `yaml:"base_url" env:"ECONNECT_BASE_URL" validate:"omitempty,url,startswith=https://"`
	WebLoginURL string        `yaml:"web_login_url" env:"ECONNECT_WEB_LOGIN_URL" validate:"omitempty,url"`
	LoginMode   string        `yaml:"login_mode" env:"ECONNECT_LOGIN_MODE" validate:"oneof=api web"`
	Domain      string        `yaml:"domain" env:"ECONNECT_DOMAIN"`
	Username    string        `yaml:"username" env:"ECONNECT_USERNAME" validate:"required"`
	Password    string        `yaml:"password" env:"ECONNECT_PASSWORD" validate:"required"`
	Code        string        `yaml:"code" env:"ECONNECT_CODE" validate:"omitempty,numeric"`
	UserID      string        `yaml:"user_id" env:"ECONNECT_USER_ID" validate:"omitempty,numeric"`
	Timeout     time.Duration `yaml:"timeout" env:"ECONNECT_TIMEOUT" validate:"gt=0"`
	PollTimeout time.Duration `yaml:"poll_timeout" env:"ECONNECT_POLL_TIMEOUT" validate:"gt=0"`
	RetryDelay  time.Duration `yaml:"retry_delay" env:"ECONNECT_RETRY_DELAY" validate:"gt=0"`
}

type MQTTConfig struct {
	ClientID           string `yaml:"client_id" env:"MQTT_CLIENT_ID"`
	Host               string `yaml:"host" env:"MQTT_HOST" validate:"required"`
	Port               int    `yaml:"port" env:"MQTT_PORT" validate:"min=1,max=65535"`
	Keepalive          int    `yaml:"keepalive" env:"MQTT_KEEPALIVE"`
	Password           string `yaml:"password" env:"MQTT_PASSWORD"`
	QOS                int    `yaml:"qos" env:"MQTT_QOS" validate:"min=0,max=2"`
	Retain             bool   `yaml:"retain" env:"MQTT_RETAIN"`
	Username           string `yaml:"username" env:"MQTT_USERNAME"`
	CA                 string `yaml:"ca" env:"MQTT_CA"`
	Cert               string `yaml:"cert" env:"MQTT_CERT"`
	Key                string `yaml:"key" env:"MQTT_KEY"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" env:"MQTT_INSECURE_SKIP_VERIFY"`
	Prefix             string `yaml:"prefix" env:"MQTT_PREFIX"`
	Clean              bool   `yaml:"clean" env:"MQTT_CLEAN"`
}

// Secure reports whether the broker connection uses TLS: an mqtts:// or
// ssl:// host, or a configured CA or client certificate.
func (m MQTTConfig) Secure() bool {
	return strings.HasPrefix(m.Host, "mqtts://") ||
		strings.HasPrefix(m.Host, "ssl://") ||
		m.CA != "" || m.Cert != ""
}

type HomeAssistantConfig struct {
	Discovery bool   `yaml:"discovery" env:"HOMEASSISTANT_DISCOVERY"`
	Prefix    string `yaml:"prefix" env:"HOMEASSISTANT_PREFIX"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED"`
	Listen  string `yaml:"listen" env:"METRICS_LISTEN" validate:"omitempty,hostname_port"`
}

// SectorConfig overrides the name of a sector, addressed by its index.
type SectorConfig struct {
	Index int    `yaml:"index" validate:"min=0"`
	Name  string `yaml:"name"`
}

// InputConfig overrides the name and Home Assistant device class of an
// input, addressed by its index.
type InputConfig struct {
	Index       int    `yaml:"index" validate:"min=0"`
	Name        string `yaml:"name"`
	DeviceClass string `yaml:"device_class"`
}

// LoadConfig reads the YAML file, applies defaults, then environment
// overrides, and validates the result.
func LoadConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cleanenv.ReadEnv(&config); err != nil {
		return nil, fmt.Errorf("error reading environment: %w", err)
	}

	config.setDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) setDefaults() {
	if c.EConnect.System == "" && c.EConnect.BaseURL == "" {
		c.EConnect.System = econnect.SystemEConnect.Name
	}
	if c.EConnect.LoginMode == "" {
		if c.EConnect.System != "" {
			c.EConnect.LoginMode = LoginModeWeb
		} else {
			c.EConnect.LoginMode = LoginModeAPI
		}
	}
	if c.EConnect.Timeout == 0 {
		c.EConnect.Timeout = 30 * time.Second
	}
	if c.EConnect.PollTimeout == 0 {
		c.EConnect.PollTimeout = 60 * time.Second
	}
	if c.EConnect.RetryDelay == 0 {
		c.EConnect.RetryDelay = 5 * time.Second
	}

	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "econnect2mqtt"
	}
	if c.MQTT.Host == "" {
		c.MQTT.Host = "localhost"
	}
	if c.MQTT.Port == 0 {
		c.MQTT.Port = 1883
		if c.MQTT.Secure() {
			c.MQTT.Port = 8883
		}
	}
	if c.MQTT.Keepalive == 0 {
		c.MQTT.Keepalive = 60
	}
	if c.MQTT.Prefix == "" {
		c.MQTT.Prefix = "econnect2mqtt"
	}
	if c.HomeAssistant.Prefix == "" {
		c.HomeAssistant.Prefix = "homeassistant"
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = ":9765"
	}
	if c.Log == "" {
		c.Log = "info"
	}
}

var validate = validator.New()

// Validate checks field constraints and the endpoint combination.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.EConnect.LoginMode == LoginModeWeb {
		if _, web := c.EConnect.Endpoints(); web == "" {
			return errors.New("invalid configuration: login_mode web needs a system or web_login_url")
		}
	}
	if c.EConnect.System == "" && c.EConnect.BaseURL == "" {
		return errors.New("invalid configuration: econnect needs a system or base_url")
	}
	return nil
}

// Endpoints resolves the API base URL and, for web login, the web login
// URL. The web login URL is empty in API mode.
func (e EConnectConfig) Endpoints() (baseURL, webLoginURL string) {
	if system, ok := econnect.LookupSystem(e.System); ok {
		baseURL, webLoginURL = system.BaseURL, system.WebLoginURL
	}
	if e.BaseURL != "" {
		baseURL = e.BaseURL
	}
	if e.WebLoginURL != "" {
		webLoginURL = e.WebLoginURL
	}
	if e.LoginMode != LoginModeWeb {
		webLoginURL = ""
	}
	return baseURL, webLoginURL
}

// SectorName returns the configured name for a sector index.
func (c *Config) SectorName(index int) (string, bool) {
	for _, s := range c.Sectors {
		if s.Index == index && s.Name != "" {
			return s.Name, true
		}
	}
	return "", false
}

// Input returns the override for an input index.
func (c *Config) Input(index int) (InputConfig, bool) {
	for _, in := range c.Inputs {
		if in.Index == index {
			return in, true
		}
	}
	return InputConfig{}, false
}
