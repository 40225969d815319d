package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Addr        string `envconfig:"ADDR" default:":8080"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	JWTSecret   string `envconfig:"JWT_SECRET" default:"dev-secret-change-me"`
	CORSOrigin  string `envconfig:"CORS_ORIGIN" default:"http://localhost:3001"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`

	LobbyCountdownSec int           `envconfig:"LOBBY_COUNTDOWN_SEC" default:"30"`
	TurnDeadline      time.Duration `envconfig:"TURN_DEADLINE" default:"10s"`
	PacingDelay       time.Duration `envconfig:"TURN_PACING_DELAY" default:"2s"`
}

// Load reads an optional .env file, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
