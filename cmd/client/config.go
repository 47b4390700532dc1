package main

import "github.com/kelseyhightower/envconfig"

type Config struct {
	ServerAddr string `envconfig:"CHAT_SERVER_ADDR" default:"localhost:8080"`
	Email      string `envconfig:"CHAT_EMAIL" required:"true"`
	Password   string `envconfig:"CHAT_PASSWORD" required:"true"`
	// CHAT_USERNAME registers the account before logging in when set
	Username string `envconfig:"CHAT_USERNAME"`
	// CHAT_COLOURS enables colorized output for incoming events
	Colours  bool   `envconfig:"CHAT_COLOURS" default:"true"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
