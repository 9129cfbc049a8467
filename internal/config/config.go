package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Server  Server
	Resolve Resolve
	Storage Storage
	Notify  Notify
}

type Server struct {
	Host        string        `env:"host" env-default:"localhost"`
	Port        string        `env:"port" env-default:"8080"`
	Timeout     time.Duration `env:"timeout" env-default:"60s"`
	IdleTimeout time.Duration `env:"idle_timeout" env-default:"30s"`
}

type Resolve struct {
	// PlatformCeiling is the hard wall-clock limit the host imposes on one
	// inbound request; CleanupMargin is reserved for flushing the stream
	// and final persistence. Their difference is the request budget.
	PlatformCeiling time.Duration `env:"platform_ceiling" env-default:"60s"`
	CleanupMargin   time.Duration `env:"cleanup_margin" env-default:"10s"`
	StageTimeout    time.Duration `env:"stage_timeout" env-default:"8s"`
	SolverURL       string        `env:"solver_url" env-default:"http://localhost:5001/solve"`
}

type Storage struct {
	DataDir string `env:"data_dir" env-default:"./data"`
}

type Notify struct {
	WebhookURL string        `env:"webhook_url"`
	Timeout    time.Duration `env:"notify_timeout" env-default:"3s"`
}

// Budget returns the per-request time budget.
func (r Resolve) Budget() time.Duration {
	return r.PlatformCeiling - r.CleanupMargin
}

const configPath = "config/local.env"

func MustLoad() *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatal("config file does not exist: " + configPath)
	}

	if err := godotenv.Load(configPath); err != nil {
		log.Fatalf("cannot load env file: %s", err)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatal("failed to read config: " + err.Error())
	}

	return &cfg
}
