package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvr-ai/go-wayfinder/controller"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wayfinder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.False(t, cfg.Kafka.Enabled())
	assert.Equal(t, controller.DefaultThresholdConfig(), cfg.Pipeline().Thresholds)
}

func TestLoad_FileMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
  read_timeout: 2s
navigation:
  stop_distance: 0.5
  caution_distance: 1.0
fusion:
  priority_threshold: 0.4
kafka:
  bootstrap_servers: "broker:9092"
profiler:
  report_interval: 0s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 2*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 5*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, float32(0.5), cfg.Navigation.StopDistance)
	assert.Equal(t, float32(0.35), cfg.Navigation.MinConfidence)
	assert.Equal(t, float32(0.4), cfg.Fusion.PriorityThreshold)
	assert.Equal(t, float32(0.5), cfg.Fusion.NMSThreshold)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, "wayfinder.commands", cfg.Kafka.Topic)
	assert.Zero(t, cfg.Profiler.ReportInterval)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":9090\"\n")
	t.Setenv("WAYFINDER_ADDR", ":7070")
	t.Setenv("WAYFINDER_LOG_LEVEL", "debug")
	t.Setenv("WAYFINDER_STOP_DISTANCE", "0.8")
	t.Setenv("WAYFINDER_CAUTION_DISTANCE", "not-a-number")
	t.Setenv("KAFKA_BOOTSTRAP_SERVERS", "localhost:9092")
	t.Setenv("KAFKA_TOPIC", "nav")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, float32(0.8), cfg.Navigation.StopDistance)
	assert.Equal(t, float32(2.0), cfg.Navigation.CautionDistance, "unparsable values are ignored")
	assert.Equal(t, "localhost:9092", cfg.Kafka.BootstrapServers)
	assert.Equal(t, "nav", cfg.Kafka.Topic)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed yaml", "server: [unclosed"},
		{"stop beyond caution", "navigation:\n  stop_distance: 3\n  caution_distance: 2\n"},
		{"empty address", "server:\n  addr: \"\"\n"},
		{"kafka without topic", "kafka:\n  bootstrap_servers: b:9092\n  topic: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "navigation:\n  stop_distance: 3\n"))
	assert.True(t, errors.Is(err, controller.ErrInvalidThresholds))
}
