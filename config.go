package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"temperature-simulator-coap/lwm2m/temperature"
)

type Config struct {
	DeviceID      string            `mapstructure:"device_id"`
	Endpoint      string            `mapstructure:"endpoint"`
	KeyDir        string            `mapstructure:"key_dir"`
	Timeout       time.Duration     `mapstructure:"timeout"`
	TokenTTL      time.Duration     `mapstructure:"token_ttl"`
	Listen        string            `mapstructure:"listen"`
	MetricsListen string            `mapstructure:"metrics_listen"`
	Temperature   TemperatureConfig `mapstructure:"temperature"`
}

type TemperatureConfig struct {
	Current float64 `mapstructure:"current"`
	Max     float64 `mapstructure:"max"`
	Min     float64 `mapstructure:"min"`
}

// Object returns the temperature object configuration, stamped with now.
func (c TemperatureConfig) Object(now time.Time) temperature.Config {
	return temperature.Config{
		Current:   c.Current,
		Max:       c.Max,
		Min:       c.Min,
		Timestamp: now,
	}
}

// loadConfig reads flags, LWM2M_* environment variables and an optional YAML
// file. Flags win over the environment, which wins over the file.
func loadConfig(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("simulator", pflag.ContinueOnError)
	configFile := fs.String("config", "", "Optional YAML config file.")
	fs.String("deviceId", "", "The client ID.")
	fs.String("endpoint", "coap.nrfcloud.com:5684", "nRF Cloud CoAP endpoint.")
	fs.String("keyDir", "certificates", "Directory holding <deviceId>.key.")
	fs.String("listen", "", "Serve the objects over CoAP/UDP on this address instead of publishing.")
	fs.String("metricsListen", "", "Expose Prometheus metrics on this HTTP address.")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	defaults := temperature.DefaultConfig()
	v.SetDefault("timeout", "30s")
	v.SetDefault("token_ttl", "10m")
	v.SetDefault("temperature.current", defaults.Current)
	v.SetDefault("temperature.max", defaults.Max)
	v.SetDefault("temperature.min", defaults.Min)

	for key, flag := range map[string]string{
		"device_id":      "deviceId",
		"endpoint":       "endpoint",
		"key_dir":        "keyDir",
		"listen":         "listen",
		"metrics_listen": "metricsListen",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	v.SetEnvPrefix("LWM2M")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if *configFile != "" {
		v.SetConfigFile(*configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Listen == "" && cfg.DeviceID == "" {
		return nil, errors.New("must provide a deviceId")
	}
	return &cfg, nil
}
