package configuration

import (
	"encoding/json"
	"os"

	"github.com/go-playground/validator/v10"
)

type MongoConfig struct {
	Uri                string `json:"uri" validate:"required"`
	Database           string `json:"database" validate:"required"`
	ThreadsCollection  string `json:"threadsCollection" validate:"required"`
	MessagesCollection string `json:"messagesCollection" validate:"required"`
	UsersCollection    string `json:"usersCollection" validate:"required"`
}

type ServerConfig struct {
	AppPort     int    `json:"app_port" validate:"required,gt=0,lte=65535"`
	SocketPort  int    `json:"socket_port" validate:"required,gt=0,lte=65535"`
	SocketRoute string `json:"socket_route"`
}

type AuthConfig struct {
	JwtSecret string `json:"jwt_secret"`

	// AllowDeclaredIdentity keeps the legacy contract where a socket
	// may bind a client-supplied identity without a verified token.
	// Known security gap; leave false unless legacy clients need it.
	AllowDeclaredIdentity bool `json:"allow_declared_identity"`
}

type Config struct {
	Mongo          MongoConfig  `json:"mongo"`
	Server         ServerConfig `json:"server"`
	Auth           AuthConfig   `json:"auth"`
	AllowedOrigins []string     `json:"allowed_origins"`
}

const defaultConfigPath = "config/config.dev.json"

// ConfigPath resolves the config file location, honoring the
// THREADHUB_CONFIG override.
func ConfigPath() string {
	if path := os.Getenv("THREADHUB_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func LoadConfig(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(config); err != nil {
		return nil, err
	}
	return &config, nil
}
