package main

import (
	"fmt"
	"os"

	"github.com/EternisAI/orca/internal/config"
	"github.com/EternisAI/orca/internal/db"
	"github.com/EternisAI/orca/internal/logger"
	"github.com/EternisAI/orca/internal/registry"
)

type Config struct {
	Log      logger.Config   `mapstructure:"log"`
	DB       db.Config       `mapstructure:"db"`
	Registry registry.Config `mapstructure:"registry"`
}

var cfg Config

var defaults = map[string]any{
	"log.level":                  logger.LOG_LEVEL_INFO,
	"log.file":                   "",
	"log.output":                 "stdout",
	"db.url":                     "",
	"db.schema":                  "",
	"db.migrate":                 true,
	"db.max_conns":               10,
	"registry.listen_address":    ":7001",
	"registry.read_timeout":      registry.DefaultReadTimeout,
	"registry.persist_timeout":   registry.DefaultPersistTimeout,
	"registry.max_payload_bytes": registry.DefaultMaxPayloadBytes,
	"registry.tls.enabled":       false,
	"registry.tls.cert_file":     "",
	"registry.tls.key_file":      "",
	"registry.tls.ca_file":       "",
	"registry.tls.client_auth":   "none",
}

func InitConfig() func() {
	if err := config.Load("orca-registry", os.Getenv("ORCA_CONFIG"), defaults, &cfg); err != nil {
		panic(err)
	}

	closer, err := logger.Init(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	if logger.IsDebug(cfg.Log.Level) {
		fmt.Println("Config loaded:")
		fmt.Println(config.Dump(cfg))
	}

	return func() { _ = closer.Close() }
}
