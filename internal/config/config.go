package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Backend   BackendConfig   `yaml:"backend"`
	Realtime  RealtimeConfig  `yaml:"realtime"`
	ImageHost ImageHostConfig `yaml:"image_host"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Session   SessionConfig   `yaml:"session"`
	Log       LogConfig       `yaml:"log"`

	// ConfigPath is the path to the config file (not serialized)
	ConfigPath string `yaml:"-"`
}

// ServerConfig represents the local console server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}

// BackendConfig represents the remote booking API
type BackendConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
	PageSize int           `yaml:"page_size"`
}

// RealtimeConfig represents the realtime channel connection
type RealtimeConfig struct {
	// Transport is "websocket" or "mqtt"
	Transport string `yaml:"transport"`

	WSEndpoint       string        `yaml:"ws_endpoint"`
	WSReconnectDelay time.Duration `yaml:"ws_reconnect_delay"`
	WSMaxReconnect   time.Duration `yaml:"ws_max_reconnect_delay"`
	WSPingInterval   time.Duration `yaml:"ws_ping_interval"`

	MQTTBroker      string `yaml:"mqtt_broker,omitempty"`
	MQTTTopicPrefix string `yaml:"mqtt_topic_prefix,omitempty"`
	MQTTClientID    string `yaml:"mqtt_client_id,omitempty"`
}

// ImageHostConfig represents the third-party image hosting API
type ImageHostConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	MaxWidth uint   `yaml:"max_width"`
}

// DashboardConfig tunes the in-memory dashboard state
type DashboardConfig struct {
	PageSize         int           `yaml:"page_size"`
	HighlightTTL     time.Duration `yaml:"highlight_ttl"`
	NotificationsCap int           `yaml:"notifications_cap"`
}

// SessionConfig locates the persisted credential file
type SessionConfig struct {
	Path string `yaml:"path"`
}

// LogConfig controls logrus output
type LogConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"` // "text" or "json"
	BufferCap int    `yaml:"buffer_cap"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8090,
			Host: "127.0.0.1",
		},
		Backend: BackendConfig{
			Endpoint: "http://localhost:5000/api",
			Timeout:  15 * time.Second,
			PageSize: 50,
		},
		Realtime: RealtimeConfig{
			Transport:        "websocket",
			WSEndpoint:       "ws://localhost:5000/ws",
			WSReconnectDelay: 1 * time.Second,
			WSMaxReconnect:   30 * time.Second,
			WSPingInterval:   30 * time.Second,
			MQTTTopicPrefix:  "workshop",
			MQTTClientID:     "workshop-console",
		},
		ImageHost: ImageHostConfig{
			Endpoint: "https://api.imgbb.com/1/upload",
			MaxWidth: 800,
		},
		Dashboard: DashboardConfig{
			PageSize:         10,
			HighlightTTL:     15 * time.Second,
			NotificationsCap: 100,
		},
		Session: SessionConfig{
			Path: "session.yaml",
		},
		Log: LogConfig{
			Level:     "info",
			Format:    "text",
			BufferCap: 500,
		},
	}
}

// Load loads configuration from the config file, then applies .env and
// environment overrides. A missing config file is not an error.
func Load() (*Config, error) {
	// Try to find config file in common locations
	configPaths := []string{
		"config.yaml",
		"configs/config.yaml",
		"/etc/workshop-console/config.yaml",
	}

	cfg := Default()
	for _, path := range configPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
		cfg.ConfigPath = path
		break
	}

	// .env is optional
	_ = godotenv.Load()
	cfg.applyEnv()

	return cfg, nil
}

// LoadFile loads configuration from an explicit path
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.ConfigPath = path
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("WORKSHOP_API_URL"); v != "" {
		c.Backend.Endpoint = v
	}
	if v := os.Getenv("WORKSHOP_WS_URL"); v != "" {
		c.Realtime.WSEndpoint = v
	}
	if v := os.Getenv("WORKSHOP_REALTIME"); v != "" {
		c.Realtime.Transport = v
	}
	if v := os.Getenv("WORKSHOP_MQTT_BROKER"); v != "" {
		c.Realtime.MQTTBroker = v
	}
	if v := os.Getenv("WORKSHOP_IMAGE_HOST_KEY"); v != "" {
		c.ImageHost.APIKey = v
	}
	if v := os.Getenv("WORKSHOP_SESSION_PATH"); v != "" {
		c.Session.Path = v
	}
	if v := os.Getenv("WORKSHOP_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("WORKSHOP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.Port = n
		}
	}
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// WriteDefault writes the built-in defaults to path. Environment overrides
// are not applied, so secrets from the environment stay out of the file.
func WriteDefault(path string) error {
	return Default().Save(path)
}
