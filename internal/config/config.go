// Package config loads a binary's application.yaml, .env and environment
// overrides into a struct.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads <path> or application.yaml from "." and "./cmd/<binary>", then
// applies environment overrides: db.url is overridden by DB_URL. Keys only
// reachable through the environment need an entry in defaults. A missing
// config file is not an error when no explicit path was given.
func Load(binary, path string, defaults map[string]any, out any) error {
	_ = godotenv.Load()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("application")
		v.AddConfigPath(".")
		v.AddConfigPath("./cmd/" + binary)
		v.SetConfigType("yaml")
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	return nil
}

// Dump pretty prints cfg as JSON for DEBUG startup output.
func Dump(cfg any) string {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", cfg)
	}
	return string(data)
}
