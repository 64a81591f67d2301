// Copyright 2025 PolyCrypt GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the hubctl configuration from file, environment and
// flags.
package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	wtypes "perun.network/perun-hub-backend/wallet/types"
)

const (
	// EnvPrefix prefixes all environment variables, e.g. HUBCTL_HUB_URL.
	EnvPrefix = "HUBCTL"
	// DefaultFileName is looked up in the home directory if no config file
	// is given.
	DefaultFileName = ".hubctl"

	// Keys of the individual settings.
	KeyConfigFile      = "config"
	KeyHubURL          = "hub_url"
	KeyHubAddress      = "hub_address"
	KeyTimeout         = "timeout"
	KeyContractAddress = "contract_address"
	KeyKeyFile         = "key_file"
	KeySignerURL       = "signer_url"
	KeyDefaultUser     = "default_user"
	KeyStorePath       = "store_path"
	KeySyncRetries     = "sync_retries"
	KeySyncInterval    = "sync_interval"
	KeyLogLevel        = "log_level"
	KeyMetricsAddr     = "metrics_addr"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds the settings of hubctl.
type Config struct {
	HubURL     string        `mapstructure:"hub_url"`
	HubAddress string        `mapstructure:"hub_address"`
	Timeout    time.Duration `mapstructure:"timeout"`

	ContractAddress string `mapstructure:"contract_address"`

	// KeyFile holds a hex private key. SignerURL points to a JSON-RPC
	// endpoint offering personal_sign. At most one of them is set.
	KeyFile   string `mapstructure:"key_file"`
	SignerURL string `mapstructure:"signer_url"`

	DefaultUser string `mapstructure:"default_user"`
	// StorePath is the LevelDB state cache. If empty, states are cached in
	// memory for a single command.
	StorePath string `mapstructure:"store_path"`

	SyncRetries  uint64        `mapstructure:"sync_retries"`
	SyncInterval time.Duration `mapstructure:"sync_interval"`

	LogLevel    string `mapstructure:"log_level"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		HubURL:       "http://localhost:8080",
		Timeout:      30 * time.Second,
		KeyFile:      "~/.hubctl/key",
		StorePath:    "~/.hubctl/store",
		SyncRetries:  5,
		SyncInterval: 500 * time.Millisecond,
		LogLevel:     logrus.InfoLevel.String(),
		MetricsAddr:  "127.0.0.1:9090",
	}
}

// SetDefaults registers the defaults with v. Only keys with a default are
// picked up from the environment.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyHubURL, d.HubURL)
	v.SetDefault(KeyHubAddress, d.HubAddress)
	v.SetDefault(KeyTimeout, d.Timeout)
	v.SetDefault(KeyContractAddress, d.ContractAddress)
	v.SetDefault(KeyKeyFile, d.KeyFile)
	v.SetDefault(KeySignerURL, d.SignerURL)
	v.SetDefault(KeyDefaultUser, d.DefaultUser)
	v.SetDefault(KeyStorePath, d.StorePath)
	v.SetDefault(KeySyncRetries, d.SyncRetries)
	v.SetDefault(KeySyncInterval, d.SyncInterval)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyMetricsAddr, d.MetricsAddr)
}

// Load reads the configuration with the precedence flags, environment,
// config file, defaults. Flags must already be bound to v. The config file
// is taken from the "config" key, or ~/.hubctl.yaml if it exists.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := readFile(v); err != nil {
		return Config{}, err
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, errors.WithMessage(err, "decoding config")
	}
	var err error
	if c.KeyFile, err = homedir.Expand(c.KeyFile); err != nil {
		return Config{}, errors.WithMessage(err, KeyKeyFile)
	}
	if c.StorePath, err = homedir.Expand(c.StorePath); err != nil {
		return Config{}, errors.WithMessage(err, KeyStorePath)
	}
	return c, c.Validate()
}

func readFile(v *viper.Viper) error {
	if file := v.GetString(KeyConfigFile); file != "" {
		path, err := homedir.Expand(file)
		if err != nil {
			return errors.WithMessage(err, "config file")
		}
		v.SetConfigFile(path)
		return errors.WithMessagef(v.ReadInConfig(), "reading %s", path)
	}

	home, err := homedir.Dir()
	if err != nil {
		return nil
	}
	v.AddConfigPath(home)
	v.SetConfigName(DefaultFileName)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.WithMessage(err, "reading config")
	}
	return nil
}

// Validate checks URLs, addresses and the log level.
func (c Config) Validate() error {
	if err := checkURL(KeyHubURL, c.HubURL); err != nil {
		return err
	}
	if c.SignerURL != "" {
		if err := checkURL(KeySignerURL, c.SignerURL); err != nil {
			return err
		}
	}
	for key, addr := range map[string]string{
		KeyHubAddress:      c.HubAddress,
		KeyContractAddress: c.ContractAddress,
		KeyDefaultUser:     c.DefaultUser,
	} {
		if _, err := parseOptional(addr); err != nil {
			return errors.WithMessagef(ErrInvalidConfig, "%s: %v", key, err)
		}
	}
	if c.Timeout <= 0 {
		return errors.WithMessagef(ErrInvalidConfig, "%s must be positive", KeyTimeout)
	}
	if c.SyncRetries > 0 && c.SyncInterval <= 0 {
		return errors.WithMessagef(ErrInvalidConfig, "%s must be positive", KeySyncInterval)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.WithMessagef(ErrInvalidConfig, "%s: %v", KeyLogLevel, err)
	}
	return nil
}

// Hub returns the configured hub address, or the zero address.
func (c Config) Hub() common.Address {
	a, _ := parseOptional(c.HubAddress)
	return a
}

// Contract returns the configured channel manager address, or the zero
// address.
func (c Config) Contract() common.Address {
	a, _ := parseOptional(c.ContractAddress)
	return a
}

// User returns the configured default user, or the zero address.
func (c Config) User() common.Address {
	a, _ := parseOptional(c.DefaultUser)
	return a
}

// Level returns the parsed log level.
func (c Config) Level() logrus.Level {
	l, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return l
}

func parseOptional(addr string) (common.Address, error) {
	if addr == "" {
		return common.Address{}, nil
	}
	return wtypes.ParseAddress(addr)
}

func checkURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.WithMessagef(ErrInvalidConfig, "%s: %v", key, err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return errors.WithMessagef(ErrInvalidConfig, "%s: unsupported scheme in %q", key, raw)
	}
	if u.Host == "" {
		return errors.WithMessagef(ErrInvalidConfig, "%s: missing host in %q", key, raw)
	}
	return nil
}
