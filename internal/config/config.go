package config

import (
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

type DatabaseConfig struct {
	Host               string `mapstructure:"host"`
	Port               uint64 `mapstructure:"port"`
	Username           string `mapstructure:"username"`
	Password           string `mapstructure:"password"`
	Database           string `mapstructure:"database"`
	UseTLS             bool   `mapstructure:"use_tls"`
	ConnectTimeout     string `mapstructure:"connect_timeout"`
	SocketTimeout      string `mapstructure:"socket_timeout"`
	ConnectIdleTimeout string `mapstructure:"connect_idle_timeout"`
	OperationTimeout   string `mapstructure:"operation_timeout"`
	Heartbeat          string `mapstructure:"heartbeat"`
	MinPoolSize        uint64 `mapstructure:"min_pool_size"`
	MaxPoolSize        uint64 `mapstructure:"max_pool_size"`
}

type CacheConfig struct {
	Size int    `mapstructure:"size"`
	TTL  string `mapstructure:"ttl"`
}

type SessionConfig struct {
	InactivityTimeout      string `mapstructure:"inactivity_timeout"`
	SweepInterval          string `mapstructure:"sweep_interval"`
	HeartbeatInterval      string `mapstructure:"heartbeat_interval"`
	DefaultMaxParticipants int    `mapstructure:"default_max_participants"`
}

type Config struct {
	Database  DatabaseConfig `mapstructure:"database"`
	Cache     CacheConfig    `mapstructure:"cache"`
	Session   SessionConfig  `mapstructure:"session"`
	DebugMode bool           `mapstructure:"debug_mode"`
	AppName   string         `mapstructure:"app_name"`
	AppPort   int            `mapstructure:"app_port"`
}

var config Config
var initialized = false

// Load reads configuration from config.yaml and COLLAB_* environment
// variables, falling back to defaults for every key.
func Load(fileName string) (Config, error) {
	v := viper.New()

	v.SetDefault("app_name", "peercode-collab-server")
	v.SetDefault("app_port", 8080)
	v.SetDefault("debug_mode", false)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 27017)
	v.SetDefault("database.username", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "peercode")
	v.SetDefault("database.use_tls", false)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.socket_timeout", "10s")
	v.SetDefault("database.connect_idle_timeout", "60s")
	v.SetDefault("database.operation_timeout", "5s")
	v.SetDefault("database.heartbeat", "10s")
	v.SetDefault("database.min_pool_size", 2)
	v.SetDefault("database.max_pool_size", 16)

	v.SetDefault("cache.size", 1024)
	v.SetDefault("cache.ttl", "1h")

	v.SetDefault("session.inactivity_timeout", "60m")
	v.SetDefault("session.sweep_interval", "5m")
	v.SetDefault("session.heartbeat_interval", "30s")
	v.SetDefault("session.default_max_participants", 10)

	v.SetConfigName(fileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("COLLAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return config, err
		}
		slog.Warn("Config file not found, relying on defaults and env vars")
	}

	if err := v.Unmarshal(&config); err != nil {
		return config, err
	}

	initialized = true
	return config, nil
}

func GetConfig() (Config, error) {
	if initialized {
		return config, nil
	}
	return Load("config")
}
