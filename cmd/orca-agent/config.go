package main

import (
	"fmt"
	"os"

	"github.com/EternisAI/orca/internal/agent"
	"github.com/EternisAI/orca/internal/config"
	"github.com/EternisAI/orca/internal/logger"
	"github.com/EternisAI/orca/internal/transport"
)

type Config struct {
	Log   logger.Config `mapstructure:"log"`
	Agent AgentConfig   `mapstructure:"agent"`
}

type AgentConfig struct {
	agent.RegistrarConfig `mapstructure:",squash"`
	agent.ListenerConfig  `mapstructure:",squash"`

	StateFile string `mapstructure:"state_file"`
	// RegistryTLS secures the check-in connection; TLS secures the dispatch listener.
	RegistryTLS transport.TLSConfig `mapstructure:"registry_tls"`
	TLS         transport.TLSConfig `mapstructure:"tls"`
}

var cfg Config

var defaults = map[string]any{
	"log.level":                               logger.LOG_LEVEL_INFO,
	"log.file":                                "",
	"log.output":                              "stdout",
	"agent.registry_address":                  "localhost:7001",
	"agent.max_attempts":                      agent.DefaultMaxAttempts,
	"agent.dial_attempts":                     agent.DefaultDialAttempts,
	"agent.listen_address":                    agent.DefaultListenAddress,
	"agent.workspace_dir":                     "",
	"agent.exec_timeout":                      "0s",
	"agent.read_timeout":                      "30s",
	"agent.write_timeout":                     "1m",
	"agent.max_message_bytes":                 agent.DefaultMaxMessageBytes,
	"agent.state_file":                        agent.DefaultStateFile,
	"agent.registry_tls.enabled":              false,
	"agent.registry_tls.ca_file":              "",
	"agent.registry_tls.server_name_override": "",
	"agent.tls.enabled":                       false,
	"agent.tls.cert_file":                     "",
	"agent.tls.key_file":                      "",
	"agent.tls.ca_file":                       "",
	"agent.tls.client_auth":                   "require",
}

func InitConfig() func() {
	if err := config.Load("orca-agent", os.Getenv("ORCA_CONFIG"), defaults, &cfg); err != nil {
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
