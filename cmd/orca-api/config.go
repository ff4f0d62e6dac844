package main

import (
	"fmt"
	"os"

	internalhttp "github.com/EternisAI/orca/internal/api/http"
	"github.com/EternisAI/orca/internal/config"
	"github.com/EternisAI/orca/internal/db"
	"github.com/EternisAI/orca/internal/dispatch"
	"github.com/EternisAI/orca/internal/logger"
)

type Config struct {
	Log      logger.Config       `mapstructure:"log"`
	DB       db.Config           `mapstructure:"db"`
	Http     internalhttp.Config `mapstructure:"http"`
	Dispatch dispatch.Config     `mapstructure:"dispatch"`
}

var cfg Config

var defaults = map[string]any{
	"log.level":                         logger.LOG_LEVEL_INFO,
	"log.file":                          "",
	"log.output":                        "stdout",
	"db.url":                            "",
	"db.schema":                         "",
	"db.migrate":                        true,
	"db.max_conns":                      10,
	"http.port":                         8080,
	"http.admin_api_key":                "",
	"http.cert_file":                    "",
	"http.key_file":                     "",
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

func InitConfig() func() {
	if err := config.Load("orca-api", os.Getenv("ORCA_CONFIG"), defaults, &cfg); err != nil {
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
