package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "collision_guard.cfg.json"

// EnvPrefix prefixes environment overrides, e.g. TRACKGUARD_REDIS_ADDRESS.
const EnvPrefix = "TRACKGUARD"

// StorageConfig holds audit store settings
type StorageConfig struct {
	Type          string        `json:"type" mapstructure:"type"`
	SQLitePath    string        `json:"sqlitePath" mapstructure:"sqlitePath"`
	FlushInterval time.Duration `json:"flushInterval" mapstructure:"flushInterval"`
	MaxPending    int           `json:"maxPending" mapstructure:"maxPending"`
}

// InfluxConfig holds the metrics sink connection
type InfluxConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	URL     string `json:"url" mapstructure:"url"`
	Token   string `json:"token" mapstructure:"token"`
	Org     string `json:"org" mapstructure:"org"`
	Bucket  string `json:"bucket" mapstructure:"bucket"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`

	MetricInterval time.Duration `json:"metricInterval" mapstructure:"metricInterval"`
}

// RedisConfig points at the external controller registry.
type RedisConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Address  string `json:"address" mapstructure:"address"`
	Password string `json:"password" mapstructure:"password"`
	DB       int    `json:"db" mapstructure:"db"`
	Key      string `json:"key" mapstructure:"key"`
}

// NotifyConfig holds operator notification settings
type NotifyConfig struct {
	Log       bool            `json:"log" mapstructure:"log"`
	Host      bool            `json:"host" mapstructure:"host"`
	Websocket WebsocketConfig `json:"websocket" mapstructure:"websocket"`
}

// WebsocketConfig holds the overlay stream settings
type WebsocketConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	URL     string `json:"url" mapstructure:"url"`
	Secret  string `json:"secret" mapstructure:"secret"`
	Server  string `json:"server" mapstructure:"server"`
}

// GeorefConfig anchors the game map on the globe for audit positions.
type GeorefConfig struct {
	Enabled   bool    `json:"enabled" mapstructure:"enabled"`
	Longitude float64 `json:"longitude" mapstructure:"longitude"`
	Latitude  float64 `json:"latitude" mapstructure:"latitude"`
}

// SetDefaults registers every default value.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./trackguardlogs")
	viper.SetDefault("serverName", "")

	viper.SetDefault("bridge.output", "stdout")
	viper.SetDefault("scheduler.period", "100ms")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "trackguard")

	viper.SetDefault("storage.type", "sqlite")
	viper.SetDefault("storage.sqlitePath", "./collision_guard.db")
	viper.SetDefault("storage.flushInterval", "2s")
	viper.SetDefault("storage.maxPending", 10000)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "trackguard")
	viper.SetDefault("influx.bucket", "collision_guard")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "collision-guard")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.metricInterval", "1m")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.key", "trackguard:controlled")

	viper.SetDefault("notify.log", true)
	viper.SetDefault("notify.host", false)
	viper.SetDefault("notify.websocket.enabled", false)
	viper.SetDefault("notify.websocket.url", "")
	viper.SetDefault("notify.websocket.secret", "")
	viper.SetDefault("notify.websocket.server", "")

	viper.SetDefault("georef.enabled", false)
	viper.SetDefault("georef.longitude", 0.0)
	viper.SetDefault("georef.latitude", 0.0)
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetInfluxConfig returns the InfluxDB settings with the server URL assembled
// from influx.protocol, influx.host and influx.port.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled: viper.GetBool("influx.enabled"),
		URL: fmt.Sprintf("%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port")),
		Token:  viper.GetString("influx.token"),
		Org:    viper.GetString("influx.org"),
		Bucket: viper.GetString("influx.bucket"),
	}
}

// GetStorageConfig returns the audit store configuration
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type:          viper.GetString("storage.type"),
		SQLitePath:    viper.GetString("storage.sqlitePath"),
		FlushInterval: viper.GetDuration("storage.flushInterval"),
		MaxPending:    viper.GetInt("storage.maxPending"),
	}
}

// GetOTelConfig returns the OpenTelemetry configuration
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),

		MetricInterval: viper.GetDuration("otel.metricInterval"),
	}
}

// GetRedisConfig returns the external controller registry configuration
func GetRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:  viper.GetBool("redis.enabled"),
		Address:  viper.GetString("redis.address"),
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
		Key:      viper.GetString("redis.key"),
	}
}

// GetNotifyConfig returns the operator notification configuration
func GetNotifyConfig() NotifyConfig {
	return NotifyConfig{
		Log:  viper.GetBool("notify.log"),
		Host: viper.GetBool("notify.host"),
		Websocket: WebsocketConfig{
			Enabled: viper.GetBool("notify.websocket.enabled"),
			URL:     viper.GetString("notify.websocket.url"),
			Secret:  viper.GetString("notify.websocket.secret"),
			Server:  viper.GetString("notify.websocket.server"),
		},
	}
}

// GetGeorefConfig returns the map georeference
func GetGeorefConfig() GeorefConfig {
	return GeorefConfig{
		Enabled:   viper.GetBool("georef.enabled"),
		Longitude: viper.GetFloat64("georef.longitude"),
		Latitude:  viper.GetFloat64("georef.latitude"),
	}
}
