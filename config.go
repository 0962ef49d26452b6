package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

const (
	storageDriverSQLite = "sqlite"
	storageDriverBadger = "badger"
)

type Config struct {
	Addr          string        `envconfig:"ADDR" default:":8080" validate:"required"`
	APIBaseURL    string        `envconfig:"API_BASE_URL" default:"https://hack-or-snooze-v3.herokuapp.com" validate:"required,url"`
	APITimeout    time.Duration `envconfig:"API_TIMEOUT" default:"10s" validate:"gt=0"`
	DBPath        string        `envconfig:"DB_PATH" default:"stories.db" validate:"required"`
	StorageDriver string        `envconfig:"STORAGE_DRIVER" default:"sqlite" validate:"oneof=sqlite badger"`
	BadgerPath    string        `envconfig:"BADGER_PATH" default:"local-storage" validate:"required_if=StorageDriver badger"`
	StorageSecret string        `envconfig:"STORAGE_SECRET"`
	SecureCookies bool          `envconfig:"SECURE_COOKIES" default:"false"`
	ClientTTL     time.Duration `envconfig:"CLIENT_TTL" default:"720h" validate:"gt=0"`
	PageIdleTTL   time.Duration `envconfig:"PAGE_IDLE_TTL" default:"30m" validate:"gt=0"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"INFO"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("password", validPassword)
	return v
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("reading environment: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("validating config: %w", err)
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	return cfg, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
