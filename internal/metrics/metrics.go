package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/daemonp/econnect2mqtt/internal/log"
	"github.com/daemonp/econnect2mqtt/internal/types"
)

const (
	resultOK    = "ok"
	resultError = "error"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "econnect_operations_total",
			Help: "e-Connect operations by name and result",
		},
		[]string{"operation", "result"},
	)

	operationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "econnect_operation_seconds",
			Help:    "Duration of e-Connect operations",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"operation"},
	)

	pollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "econnect_polls_total",
			Help: "Long-poll rounds by outcome (changes, idle, error)",
		},
		[]string{"outcome"},
	)

	changesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "econnect_changes_total",
			Help: "Changes reported by the cloud per category",
		},
		[]string{"category"},
	)

	reauthTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "econnect_reauthentications_total",
			Help: "Sessions renewed after the token expired",
		},
	)

	alarmArmed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "econnect_alarm_armed",
			Help: "1 when any sector is armed, 0 when disarmed, -1 when unknown",
		},
	)

	lastUpdate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "econnect_last_update_timestamp_seconds",
			Help: "Unix time of the last successful state refresh",
		},
	)

	mqttCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "econnect_mqtt_commands_total",
			Help: "Commands received over MQTT by kind and result",
		},
		[]string{"command", "result"},
	)
)

func result(err error) string {
	if err != nil {
		return resultError
	}
	return resultOK
}

// RecordOperation records the outcome and duration of a cloud operation.
func RecordOperation(operation string, duration time.Duration, err error) {
	operationsTotal.WithLabelValues(operation, result(err)).Inc()
	operationSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordPoll records one long-poll round.
func RecordPoll(res *types.PollResult, err error) {
	switch {
	case err != nil:
		pollsTotal.WithLabelValues(resultError).Inc()
	case res.HasChanges:
		pollsTotal.WithLabelValues("changes").Inc()
		for _, c := range res.Changed() {
			changesTotal.WithLabelValues(c.String()).Inc()
		}
	default:
		pollsTotal.WithLabelValues("idle").Inc()
	}
}

// RecordReauth counts a session renewal.
func RecordReauth() {
	reauthTotal.Inc()
}

// SetAlarmState exports the overall alarm state.
func SetAlarmState(state types.AlarmState) {
	switch state {
	case types.AlarmStateArmedAway:
		alarmArmed.Set(1)
	case types.AlarmStateDisarmed:
		alarmArmed.Set(0)
	default:
		alarmArmed.Set(-1)
	}
}

// RecordUpdate marks a successful state refresh.
func RecordUpdate(t time.Time) {
	lastUpdate.Set(float64(t.Unix()))
}

// RecordMQTTCommand counts a command received over MQTT.
func RecordMQTTCommand(command string, err error) {
	mqttCommandsTotal.WithLabelValues(command, result(err)).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger *log.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Serving metrics on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
