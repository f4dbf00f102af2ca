package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eringen/clower"
)

// flagKeys maps persistent flags onto config keys.
var flagKeys = map[string]string{
	"addr":   "addr",
	"data":   "data_dir",
	"output": "output_dir",
	"driver": "driver",
}

// config is everything the CLI reads at startup.
type config struct {
	Site clower.SiteConfig
	// DeployPassword, when set, replaces the password stored through the
	// admin panel and makes it read-only.
	DeployPassword string
}

// loadConfig merges defaults, clower.yaml (or --config), CLOWER_* variables
// and flags, in increasing order of precedence.
func loadConfig(cmd *cobra.Command, cfgFile string) (config, error) {
	v := viper.New()

	v.SetDefault("addr", "")
	v.SetDefault("driver", "file")
	v.SetDefault("deploy_timeout", "5m")
	v.SetDefault("login_window", "1m")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("clower")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("CLOWER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// PORT and JWT_SECRET are what most hosting platforms set.
	_ = v.BindEnv("port", "CLOWER_PORT", "PORT")
	_ = v.BindEnv("token_secret", "CLOWER_TOKEN_SECRET", "JWT_SECRET")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return config{}, fmt.Errorf("read config: %w", err)
		}
	}

	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return config{}, err
			}
		}
	}

	deployTimeout, err := duration(v, "deploy_timeout")
	if err != nil {
		return config{}, err
	}
	loginWindow, err := duration(v, "login_window")
	if err != nil {
		return config{}, err
	}

	addr := v.GetString("addr")
	if addr == "" {
		if port := v.GetString("port"); port != "" {
			addr = ":" + port
		}
	}

	site := clower.SiteConfig{
		Name:             v.GetString("name"),
		URL:              v.GetString("url"),
		Addr:             addr,
		DataDir:          v.GetString("data_dir"),
		OutputDir:        v.GetString("output_dir"),
		Driver:           v.GetString("driver"),
		DatabasePath:     v.GetString("database_path"),
		AdminDir:         v.GetString("admin_dir"),
		TokenSecret:      v.GetString("token_secret"),
		SessionSecret:    v.GetString("session_secret"),
		CookieSecure:     v.GetBool("cookie_secure"),
		DeployTimeout:    deployTimeout,
		KnownHostsFile:   v.GetString("known_hosts_file"),
		LoginMaxAttempts: v.GetInt("login_max_attempts"),
		LoginWindow:      loginWindow,
	}
	return config{Site: site, DeployPassword: v.GetString("deploy_password")}, nil
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config %s: %w", key, err)
	}
	return d, nil
}
