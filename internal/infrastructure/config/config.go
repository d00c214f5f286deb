package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Gray Logic device client.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device      DeviceConfig      `yaml:"device"`
	Database    DatabaseConfig    `yaml:"database"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	API         APIConfig         `yaml:"api"`
	Logging     LoggingConfig     `yaml:"logging"`
	Platform    PlatformConfig    `yaml:"platform"`
	Application ApplicationConfig `yaml:"application"`
}

// DeviceConfig contains device identity and registration settings.
type DeviceConfig struct {
	// EndpointName is injected into secure storage on first bootstrap.
	// If empty, a random endpoint name is generated.
	EndpointName string `yaml:"endpoint_name"`

	// ServerURI identifies the device-management service this device registers with.
	ServerURI string `yaml:"server_uri"`

	// Lifetime is the registration lifetime advertised to the server (seconds).
	Lifetime int `yaml:"lifetime"`

	// TopicRoot is the MQTT topic prefix for device-management traffic.
	TopicRoot string `yaml:"topic_root"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains the local diagnostics HTTP server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// PlatformConfig selects and configures the peripheral backends.
type PlatformConfig struct {
	// StartupDelay gives storage and sensors time to settle before init.
	StartupDelay time.Duration `yaml:"startup_delay"`

	Button ButtonConfig `yaml:"button"`
	LED    LEDConfig    `yaml:"led"`
	Sensor SensorConfig `yaml:"sensor"`
}

// ButtonConfig configures the user button.
type ButtonConfig struct {
	// Driver is "sim" (host simulation) or "none".
	Driver string `yaml:"driver"`
}

// LEDConfig configures the status LED.
type LEDConfig struct {
	// Driver is "sim" (host simulation, logs state changes) or "none".
	Driver string `yaml:"driver"`
}

// SensorConfig configures the temperature sensor backend.
type SensorConfig struct {
	// Driver is "aht20", "modbus" or "sim".
	// "sim" runs the AHT20 driver against an in-process simulated sensor.
	Driver string `yaml:"driver"`

	// I2CBus is the Linux I2C character device for the AHT20. Default: /dev/i2c-1
	I2CBus string `yaml:"i2c_bus"`

	// I2CAddress is the AHT20 bus address. Default: 0x38
	I2CAddress uint16 `yaml:"i2c_address"`

	Modbus ModbusSensorConfig `yaml:"modbus"`
}

// ModbusSensorConfig configures a Modbus-TCP temperature transmitter.
type ModbusSensorConfig struct {
	Endpoint string        `yaml:"endpoint"`
	UnitID   uint8         `yaml:"unit_id"`
	Register uint16        `yaml:"register"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ApplicationConfig contains control loop settings.
type ApplicationConfig struct {
	// ButtonInterval is the first wait of each loop iteration.
	ButtonInterval time.Duration `yaml:"button_interval"`

	// SensorInterval is the second wait of each loop iteration.
	SensorInterval time.Duration `yaml:"sensor_interval"`

	// DefaultPattern is the initial value of the blink pattern resource.
	DefaultPattern string `yaml:"default_pattern"`

	// RestartInFlight lets a blink request restart a running pattern
	// instead of being rejected.
	RestartInFlight bool `yaml:"restart_in_flight"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_DEVICE_SECTION_KEY
// For example: GRAYLOGIC_DEVICE_DATABASE_PATH, GRAYLOGIC_DEVICE_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the default configuration with environment overrides applied.
// Used when no configuration file is present (development on a bare host).
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			ServerURI: "mqtt://localhost:1883",
			Lifetime:  3600,
			TopicRoot: "graylogic/dm",
		},
		Database: DatabaseConfig{
			Path:        "./data/graylogic-device.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Platform: PlatformConfig{
			StartupDelay: 2 * time.Second,
			Button:       ButtonConfig{Driver: "sim"},
			LED:          LEDConfig{Driver: "sim"},
			Sensor: SensorConfig{
				Driver:     "sim",
				I2CBus:     "/dev/i2c-1",
				I2CAddress: 0x38,
				Modbus: ModbusSensorConfig{
					UnitID:  1,
					Timeout: 2 * time.Second,
				},
			},
		},
		Application: ApplicationConfig{
			ButtonInterval: 1000 * time.Millisecond,
			SensorInterval: 4000 * time.Millisecond,
			DefaultPattern: "500:500:500:500",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_DEVICE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Device
	if v := os.Getenv("GRAYLOGIC_DEVICE_ENDPOINT_NAME"); v != "" {
		cfg.Device.EndpointName = v
	}

	// Database
	if v := os.Getenv("GRAYLOGIC_DEVICE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_DEVICE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_DEVICE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_DEVICE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_DEVICE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Platform
	if v := os.Getenv("GRAYLOGIC_DEVICE_SENSOR_DRIVER"); v != "" {
		cfg.Platform.Sensor.Driver = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Device.TopicRoot == "" {
		errs = append(errs, "device.topic_root is required")
	}
	if c.Device.Lifetime < 0 {
		errs = append(errs, "device.lifetime must not be negative")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	switch c.Platform.Sensor.Driver {
	case "sim":
	case "aht20":
		if c.Platform.Sensor.I2CBus == "" {
			errs = append(errs, "platform.sensor.i2c_bus is required for the aht20 driver")
		}
	case "modbus":
		if c.Platform.Sensor.Modbus.Endpoint == "" {
			errs = append(errs, "platform.sensor.modbus.endpoint is required for the modbus driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("platform.sensor.driver %q is not supported (sim, aht20, modbus)", c.Platform.Sensor.Driver))
	}

	for name, driver := range map[string]string{"button": c.Platform.Button.Driver, "led": c.Platform.LED.Driver} {
		if driver != "sim" && driver != "none" {
			errs = append(errs, fmt.Sprintf("platform.%s.driver %q is not supported (sim, none)", name, driver))
		}
	}

	if c.Application.ButtonInterval <= 0 || c.Application.SensorInterval <= 0 {
		errs = append(errs, "application intervals must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
