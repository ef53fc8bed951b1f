package config

import "time"

type Config struct {
	Server    ServerConfig
	Transport TransportConfig
	Heartbeat HeartbeatConfig
	Storage   StorageConfig
	Uploads   UploadsConfig
	Log       LogConfig
}

type ServerConfig struct {
	Address         string
	Auth            AuthConfig
	CORSOrigins     []string              `mapstructure:"corsOrigins"`
	ConnectionLimit ConnectionLimitConfig `mapstructure:"connectionLimit"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwtSecret"`
	TokenTTL  time.Duration `mapstructure:"tokenTTL"`
}

type ConnectionLimitConfig struct {
	MaxPerUser int    `mapstructure:"maxPerUser"`
	Mode       string `mapstructure:"mode"` // "reject" or "cycle"
}

type TransportConfig struct {
	SendQueueSize int `mapstructure:"sendQueueSize"`
}

// HeartbeatConfig drives the per-connection liveness cycle: a ping every
// ProbeInterval, a pong expected within PongTimeout.
type HeartbeatConfig struct {
	ProbeInterval time.Duration `mapstructure:"probeInterval"`
	PongTimeout   time.Duration `mapstructure:"pongTimeout"`
}

type StorageConfig struct {
	Dir      string `mapstructure:"dir"`
	InMemory bool   `mapstructure:"inMemory"`
}

type UploadsConfig struct {
	Dir string `mapstructure:"dir"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}
