package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// loadConfig reads the optional configuration file and environment. Every
// key has a default so a missing file is not an error unless a path was
// given explicitly. CLI flags override whatever is loaded here.
func loadConfig(path string) (*viper.Viper, error) {
	v := viper.New()

	v.SetDefault("discovery.timeout", "10s")
	v.SetDefault("discovery.limit", 10)
	v.SetDefault("discovery.exclude_networks", []string{})
	v.SetDefault("discovery.exclude_interfaces", []string{})
	v.SetDefault("snmp.community", "")
	v.SetDefault("store.path", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("log.development", false)

	v.SetEnvPrefix("TOPODISC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		return v, nil
	}

	v.SetConfigName("topodisc")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/topodisc")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}
