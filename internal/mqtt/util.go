package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/daemonp/econnect2mqtt/internal/config"
)

// BrokerURL builds the paho broker address. Host may carry an mqtt://,
// mqtts://, tcp:// or ssl:// scheme and a port, which override the
// configured port. TLS is used for mqtts/ssl or when a CA or client
// certificate is configured.
func BrokerURL(cfg *config.MQTTConfig) string {
	host := cfg.Host
	secure := cfg.Secure()

	for _, scheme := range []string{"mqtts://", "ssl://", "mqtt://", "tcp://"} {
		host = strings.TrimPrefix(host, scheme)
	}

	port := cfg.Port
	if i := strings.LastIndex(host, ":"); i >= 0 {
		if p, err := strconv.Atoi(host[i+1:]); err == nil {
			host, port = host[:i], p
		}
	}
	if port == 0 {
		port = 1883
		if secure {
			port = 8883
		}
	}

	scheme := "tcp"
	if secure {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

// tlsConfig loads the CA and client certificate from the configuration.
// Broker certificates are verified unless InsecureSkipVerify is set.
func tlsConfig(cfg *config.MQTTConfig) (*tls.Config, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec
	}

	if cfg.CA != "" {
		ca, err := os.ReadFile(cfg.CA)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(ca) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.CA)
		}
		tlsCfg.RootCAs = pool
	}

	if cfg.Cert != "" || cfg.Key != "" {
		cert, err := tls.LoadX509KeyPair(cfg.Cert, cfg.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	return tlsCfg, nil
}
