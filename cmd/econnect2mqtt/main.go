package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/signal"
	"syscall"

	"github.com/daemonp/econnect2mqtt/internal/cache"
	"github.com/daemonp/econnect2mqtt/internal/config"
	"github.com/daemonp/econnect2mqtt/internal/econnect"
	"github.com/daemonp/econnect2mqtt/internal/homeassistant"
	"github.com/daemonp/econnect2mqtt/internal/log"
	"github.com/daemonp/econnect2mqtt/internal/metrics"
	"github.com/daemonp/econnect2mqtt/internal/mqtt"
	"github.com/daemonp/econnect2mqtt/internal/panel"
)

func main() {
	configFile := flag.String("config", "config.yml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	logger := log.NewLogger(cfg.Log)

	if err := run(cfg, logger); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *log.Logger) error {
	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := newClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create e-Connect client: %w", err)
	}

	// Create panel
	p := panel.NewPanel(cfg, client, logger.With("panel"))

	// Connect to the cloud
	if err := p.Connect(ctx); err != nil {
		return err
	}

	// Load cache if enabled
	if cfg.Cache {
		cacheData, err := cache.LoadCache()
		if err != nil {
			logger.Warning("Failed to load cache: %v", err)
		} else if cacheData != nil {
			p.SetCachedData(cacheData)
			logger.Info("Loaded data from cache")
		}
	}

	if err := p.Update(ctx); err != nil {
		return fmt.Errorf("failed to read panel state: %w", err)
	}

	// Save cache if enabled
	if cfg.Cache {
		if err := cache.SaveCache(p.GetCacheableData()); err != nil {
			logger.Warning("Failed to save cache: %v", err)
		} else {
			logger.Info("Saved data to cache")
		}
	}

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Listen, logger.With("metrics")); err != nil {
				logger.Error("Metrics server stopped: %v", err)
			}
		}()
	}

	// Connect to MQTT broker
	mqttClient := mqtt.NewMQTT(&cfg.MQTT, p, logger.With("mqtt"))
	if err := mqttClient.Connect(ctx); err != nil {
		return err
	}
	defer mqttClient.Close()
	mqttClient.Start(ctx)

	// Initialize and start Home Assistant integration if enabled
	if cfg.HomeAssistant.Discovery {
		ha := homeassistant.New(cfg, mqttClient, p, logger.With("homeassistant"))
		ha.Start()
	}

	// Poll until a termination signal arrives
	if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("Shutting down...")

	// Save cache if enabled
	if cfg.Cache {
		if err := cache.SaveCache(p.GetCacheableData()); err != nil {
			logger.Warning("Failed to save cache: %v", err)
		}
	}

	return nil
}

func newClient(cfg *config.Config, logger *log.Logger) (*econnect.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	baseURL, webLoginURL := cfg.EConnect.Endpoints()
	opts := []econnect.Option{
		econnect.WithDomain(cfg.EConnect.Domain),
		econnect.WithLogger(logger.With("econnect")),
		econnect.WithHTTPClient(&http.Client{
			Timeout: cfg.EConnect.Timeout + cfg.EConnect.PollTimeout,
			Jar:     jar,
		}),
	}
	if webLoginURL != "" {
		opts = append(opts, econnect.WithWebLogin(webLoginURL))
	}

	return econnect.New(baseURL, opts...)
}
