package main

import (
	"fmt"
	"os"

	"github.com/EternisAI/orca/internal/config"
	"github.com/EternisAI/orca/internal/db"
	"github.com/EternisAI/orca/internal/dispatch"
	"github.com/EternisAI/orca/internal/logger"
)

type Config struct {
	Log      logger.Config   `mapstructure:"log"`
	DB       db.Config       `mapstructure:"db"`
	Dispatch dispatch.Config `mapstructure:"dispatch"`
}

var defaults = map[string]any{
	"log.level":                         logger.LOG_LEVEL_WARNING,
	"log.file":                          "",
	"log.output":                        "stderr",
	"db.url":                            "",
	"db.schema":                         "",
	"db.migrate":                        true,
	"db.max_conns":                      2,
	"dispatch.agent_port":               dispatch.DefaultAgentPort,
	"dispatch.connect_timeout":          dispatch.DefaultConnectTimeout,
	"dispatch.read_timeout":             "0s",
	"dispatch.max_response_bytes":       dispatch.DefaultMaxResponseBytes,
	"dispatch.tls.enabled":              false,
	"dispatch.tls.cert_file":            "",
	"dispatch.tls.key_file":             "",
	"dispatch.tls.ca_file":              "",
	"dispatch.tls.server_name_override": "",
}

// loadConfig reads the config file named by --config or ORCA_CONFIG and
// installs the logger. The returned func closes the log file.
func loadConfig(path string) (*Config, func(), error) {
	if path == "" {
		path = os.Getenv("ORCA_CONFIG")
	}

	var cfg Config
	if err := config.Load("orca-dispatch", path, defaults, &cfg); err != nil {
		return nil, nil, err
	}

	closer, err := logger.Init(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	if logger.IsDebug(cfg.Log.Level) {
		fmt.Fprintln(os.Stderr, "Config loaded:")
		fmt.Fprintln(os.Stderr, config.Dump(cfg))
	}

	return &cfg, func() { _ = closer.Close() }, nil
}
