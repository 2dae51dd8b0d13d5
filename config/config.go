// Package config - Service configuration from YAML and environment variables.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/nvr-ai/go-wayfinder/controller"
	"github.com/nvr-ai/go-wayfinder/distance"
	"github.com/nvr-ai/go-wayfinder/images"
	"github.com/nvr-ai/go-wayfinder/models/postprocess"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP and websocket endpoints.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr"`
	// BodyLimit caps request bodies in bytes.
	BodyLimit int `yaml:"body_limit"`
	// ReadTimeout bounds reading a request.
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// WriteTimeout bounds writing a response.
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// KafkaConfig configures the command publisher. Publishing is disabled
// when BootstrapServers is empty.
type KafkaConfig struct {
	BootstrapServers string `yaml:"bootstrap_servers"`
	Topic            string `yaml:"topic"`
	ClientID         string `yaml:"client_id"`
}

// Enabled reports whether a broker is configured.
func (k KafkaConfig) Enabled() bool {
	return k.BootstrapServers != ""
}

// ProfilerConfig configures stage timing reports.
type ProfilerConfig struct {
	// ReportInterval is how often a summary is logged. Zero disables reports.
	ReportInterval time.Duration `yaml:"report_interval"`
}

// Config is the complete service configuration.
type Config struct {
	Server     ServerConfig               `yaml:"server"`
	Navigation controller.ThresholdConfig `yaml:"navigation"`
	Fusion     postprocess.FusionConfig   `yaml:"fusion"`
	Blend      distance.BlendPolicy       `yaml:"blend"`
	// Depth converts replayed depth maps into metres.
	Depth images.DepthParams `yaml:"depth"`
	// TablesPath is an optional reference table YAML merged over the defaults.
	TablesPath string         `yaml:"tables_path"`
	LogLevel   string         `yaml:"log_level"`
	Kafka      KafkaConfig    `yaml:"kafka"`
	Profiler   ProfilerConfig `yaml:"profiler"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":8080",
			BodyLimit:    1 << 20,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
		Navigation: controller.DefaultThresholdConfig(),
		Fusion:     postprocess.DefaultFusionConfig(),
		Blend:      distance.DefaultBlendPolicy(),
		Depth:      images.DefaultDepthParams(),
		LogLevel:   "info",
		Kafka: KafkaConfig{
			Topic:    "wayfinder.commands",
			ClientID: "go-wayfinder",
		},
		Profiler: ProfilerConfig{ReportInterval: 30 * time.Second},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// environment overrides, in that order.
//
// Arguments:
//   - path: YAML file path, empty to skip the file.
//
// Returns:
//   - Config: The merged configuration.
//   - error: If the file cannot be read or parsed, or the result is invalid.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "failed to read config %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "failed to parse config %s", path)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = getEnv("WAYFINDER_ADDR", c.Server.Addr)
	c.LogLevel = getEnv("WAYFINDER_LOG_LEVEL", c.LogLevel)
	c.TablesPath = getEnv("WAYFINDER_TABLES", c.TablesPath)
	c.Navigation.StopDistance = getEnvAsFloat32("WAYFINDER_STOP_DISTANCE", c.Navigation.StopDistance)
	c.Navigation.CautionDistance = getEnvAsFloat32("WAYFINDER_CAUTION_DISTANCE", c.Navigation.CautionDistance)
	c.Kafka.BootstrapServers = getEnv("KAFKA_BOOTSTRAP_SERVERS", c.Kafka.BootstrapServers)
	c.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Kafka.Topic)
}

// Validate checks the parts of the configuration that would otherwise fail
// late at startup.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server address is empty")
	}
	if err := c.Navigation.Validate(); err != nil {
		return err
	}
	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		return errors.New("kafka topic is empty")
	}
	return nil
}

// Pipeline returns the stage policies for controller.NewPipeline.
func (c Config) Pipeline() controller.PipelineConfig {
	return controller.PipelineConfig{
		Fusion:     c.Fusion,
		Blend:      c.Blend,
		Thresholds: c.Navigation,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(f)
		}
	}
	return defaultValue
}
