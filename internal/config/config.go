package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DeviceKeySize is the length of the shared opener key in bytes.
const DeviceKeySize = 32

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Database DatabaseConfig `yaml:"database"`
	Opener   OpenerConfig   `yaml:"opener"`
	Auth     AuthConfig     `yaml:"auth"`
	Slack    SlackConfig    `yaml:"slack"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`

	Doors []DoorConfig `yaml:"doors"`

	// ACL maps raw badge ids to chat user ids. Keys are normalized at startup.
	ACL map[string]string `yaml:"acl"`

	// ACLFile optionally points at a JSON or YAML document of the same shape
	// (the historical acl.json). Entries from the file win over inline ones.
	ACLFile string `yaml:"acl_file"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// GRPCConfig controls the optional gRPC health endpoint. Empty Addr disables it.
type GRPCConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	// Path to the SQLite file. Empty keeps everything in memory.
	Path string `yaml:"path"`
	Env  string `yaml:"env"` // "dev" | "prod"
}

type OpenerConfig struct {
	Addr string `yaml:"addr"`

	// DeviceKey is the hex-encoded HMAC key shared with the opener.
	DeviceKey string `yaml:"device_key"`

	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	ResponseTimeout time.Duration `yaml:"response_timeout"`

	HealthyTimeout   time.Duration `yaml:"healthy_timeout"`
	ReminderInterval time.Duration `yaml:"reminder_interval"`

	// Heartbeat retention
	HeartbeatRetentionDays int `yaml:"heartbeat_retention_days"` // 0 = keep forever
	PruneIntervalHours     int `yaml:"prune_interval_hours"`
}

type AuthConfig struct {
	SigningSecret      string        `yaml:"signing_secret"`
	ReauthWindow       time.Duration `yaml:"reauth_window"`
	ConfirmationWindow time.Duration `yaml:"confirmation_window"`
	ThrottleCooldown   time.Duration `yaml:"throttle_cooldown"`
	RequireDeviceToken bool          `yaml:"require_device_token"`
}

type SlackConfig struct {
	Token             string        `yaml:"token"`
	VerificationToken string        `yaml:"verification_token"`
	ReportChannel     string        `yaml:"report_channel"`
	APIBaseURL        string        `yaml:"api_base_url"`
	Timeout           time.Duration `yaml:"timeout"`
}

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	TLS         bool   `yaml:"tls"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	QoS         int    `yaml:"qos"`
	TopicPrefix string `yaml:"topic_prefix"`
}

type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"` // seconds
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DoorConfig describes one physical door behind the opener.
type DoorConfig struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Relay uint8  `yaml:"relay"`
	// Token is presented by the badge reader with every scan. Optional unless
	// auth.require_device_token is set.
	Token string `yaml:"token"`
}

// Load reads the YAML file at path, applies DOORGATE_* environment overrides
// and validates the result. Any error is fatal for startup.
func Load(path string) (*Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.ACLFile != "" {
		if err := cfg.mergeACLFile(cfg.ACLFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		HTTP:     HTTPConfig{Addr: ":8080"},
		Database: DatabaseConfig{Path: "./data/doorgate.db", Env: "dev"},
		Opener: OpenerConfig{
			ConnectTimeout:         3 * time.Second,
			ResponseTimeout:        5 * time.Second,
			HealthyTimeout:         120 * time.Second,
			ReminderInterval:       4 * time.Hour,
			HeartbeatRetentionDays: 30,
			PruneIntervalHours:     6,
		},
		Auth: AuthConfig{
			ReauthWindow:       60 * time.Second,
			ConfirmationWindow: 120 * time.Second,
			ThrottleCooldown:   10 * time.Second,
		},
		Slack: SlackConfig{
			APIBaseURL: "https://slack.com/api",
			Timeout:    10 * time.Second,
		},
		MQTT: MQTTConfig{
			Host:        "localhost",
			Port:        1883,
			ClientID:    "doorgate",
			QoS:         1,
			TopicPrefix: "doorgate",
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.HTTP.Addr = getenvDefault("DOORGATE_HTTP_ADDR", cfg.HTTP.Addr)
	cfg.GRPC.Addr = getenvDefault("DOORGATE_GRPC_ADDR", cfg.GRPC.Addr)
	cfg.Database.Path = getenvDefault("DOORGATE_DB_PATH", cfg.Database.Path)

	env := strings.ToLower(getenvDefault("DOORGATE_ENV", cfg.Database.Env))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}
	cfg.Database.Env = env

	cfg.Opener.Addr = getenvDefault("DOORGATE_OPENER_ADDR", cfg.Opener.Addr)
	cfg.Opener.DeviceKey = getenvDefault("DOORGATE_DEVICE_KEY", cfg.Opener.DeviceKey)
	cfg.Opener.HeartbeatRetentionDays = getenvInt("DOORGATE_HEARTBEAT_RETENTION_DAYS", cfg.Opener.HeartbeatRetentionDays)
	cfg.Opener.PruneIntervalHours = getenvInt("DOORGATE_PRUNE_INTERVAL_HOURS", cfg.Opener.PruneIntervalHours)

	cfg.Auth.SigningSecret = getenvDefault("DOORGATE_SIGNING_SECRET", cfg.Auth.SigningSecret)

	cfg.Slack.Token = getenvDefault("DOORGATE_SLACK_TOKEN", cfg.Slack.Token)
	cfg.Slack.VerificationToken = getenvDefault("DOORGATE_SLACK_VERIFICATION_TOKEN", cfg.Slack.VerificationToken)
	cfg.Slack.ReportChannel = getenvDefault("DOORGATE_SLACK_REPORT_CHANNEL", cfg.Slack.ReportChannel)

	cfg.MQTT.Password = getenvDefault("DOORGATE_MQTT_PASSWORD", cfg.MQTT.Password)
	cfg.InfluxDB.Token = getenvDefault("DOORGATE_INFLUXDB_TOKEN", cfg.InfluxDB.Token)

	cfg.ACLFile = getenvDefault("DOORGATE_ACL_FILE", cfg.ACLFile)
}

func (c *Config) mergeACLFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading acl file: %w", err)
	}
	// YAML is a superset of JSON, so acl.json loads as-is.
	var entries map[string]string
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parsing acl file: %w", err)
	}
	if c.ACL == nil {
		c.ACL = make(map[string]string, len(entries))
	}
	for badge, user := range entries {
		c.ACL[badge] = user
	}
	return nil
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.HTTP.Addr == "" {
		errs = append(errs, "http.addr is required")
	}
	if c.Opener.Addr == "" {
		errs = append(errs, "opener.addr is required")
	}
	if _, err := c.DeviceKeyBytes(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Auth.SigningSecret == "" {
		errs = append(errs, "auth.signing_secret is required (set DOORGATE_SIGNING_SECRET)")
	}
	if c.Slack.Token == "" {
		errs = append(errs, "slack.token is required (set DOORGATE_SLACK_TOKEN)")
	}
	if c.Slack.VerificationToken == "" {
		errs = append(errs, "slack.verification_token is required (set DOORGATE_SLACK_VERIFICATION_TOKEN)")
	}
	if c.Opener.HealthyTimeout <= 0 {
		errs = append(errs, "opener.healthy_timeout must be positive")
	}
	if c.Auth.ConfirmationWindow <= 0 {
		errs = append(errs, "auth.confirmation_window must be positive")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	seen := make(map[string]struct{}, len(c.Doors))
	for i, d := range c.Doors {
		id := strings.TrimSpace(d.ID)
		switch {
		case id == "":
			errs = append(errs, fmt.Sprintf("doors[%d].id is required", i))
		case strings.Contains(id, ":"):
			errs = append(errs, fmt.Sprintf("doors[%d].id must not contain ':'", i))
		}
		if _, dup := seen[id]; dup {
			errs = append(errs, fmt.Sprintf("doors[%d].id %q is duplicated", i, id))
		}
		seen[id] = struct{}{}
		if c.Auth.RequireDeviceToken && d.Token == "" {
			errs = append(errs, fmt.Sprintf("doors[%d].token is required when auth.require_device_token is set", i))
		}
	}

	badges := make([]string, 0, len(c.ACL))
	for badge := range c.ACL {
		badges = append(badges, badge)
	}
	sort.Strings(badges)
	for _, badge := range badges {
		if strings.Contains(c.ACL[badge], ":") {
			errs = append(errs, fmt.Sprintf("acl[%q] user id must not contain ':'", badge))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DeviceKeyBytes decodes the shared opener key.
func (c *Config) DeviceKeyBytes() ([]byte, error) {
	if c.Opener.DeviceKey == "" {
		return nil, fmt.Errorf("opener.device_key is required (set DOORGATE_DEVICE_KEY)")
	}
	key, err := hex.DecodeString(strings.TrimSpace(c.Opener.DeviceKey))
	if err != nil {
		return nil, fmt.Errorf("opener.device_key is not valid hex: %w", err)
	}
	if len(key) != DeviceKeySize {
		return nil, fmt.Errorf("opener.device_key must be %d bytes, got %d", DeviceKeySize, len(key))
	}
	return key, nil
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
