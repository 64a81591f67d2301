// Copyright 2024 - See NOTICE file for copyright holders.
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

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"perun.network/go-perun/log"
	plogrus "perun.network/go-perun/log/logrus"

	"perun.network/perun-hub-backend/client"
	"perun.network/perun-hub-backend/config"
	"perun.network/perun-hub-backend/payment"
	"perun.network/perun-hub-backend/store"
	"perun.network/perun-hub-backend/util"
)

// Version is set at build time.
var Version = "dev"

// ErrNoUser is returned if neither a default user is configured nor a
// single key is available to derive it from.
var ErrNoUser = errors.New("no user configured, set --user or HUBCTL_DEFAULT_USER")

// runtime is shared by all commands of one invocation.
type runtime struct {
	v        *viper.Viper
	cfg      config.Config
	registry *prometheus.Registry
}

// session holds the clients a channel command works with.
type session struct {
	hub      *client.Client
	payments *payment.Client
	store    store.Store
	user     common.Address

	closeKeys func()
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCmd builds the hubctl command tree.
func NewRootCmd() *cobra.Command {
	rt := &runtime{v: viper.New(), registry: prometheus.NewRegistry()}

	root := &cobra.Command{
		Use:   "hubctl",
		Short: "Operate a payment channel with a hub",
		Long: `hubctl signs and submits channel and thread updates to a payment hub.

Every update proposed by the hub is validated before it is signed.

Configuration (in order of priority):
  1. Command-line flags (--hub-url, --user, ...)
  2. Environment variables (HUBCTL_HUB_URL, HUBCTL_DEFAULT_USER, ...)
  3. Config file (~/.hubctl.yaml)

Get started:
  $ hubctl keygen
  $ hubctl channel show
  $ hubctl pay --wei 100`,
		SilenceUsage:      true,
		PersistentPreRunE: rt.load,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default is ~/.hubctl.yaml)")
	flags.String("hub-url", "", "hub API URL")
	flags.String("hub-address", "", "address the hub signs with")
	flags.Duration("timeout", 0, "hub request timeout")
	flags.String("contract", "", "channel manager contract address")
	flags.String("key-file", "", "file holding the user's hex private key")
	flags.String("signer-url", "", "JSON-RPC signer used instead of the key file")
	flags.String("user", "", "channel user address")
	flags.String("store", "", "local state cache directory (empty keeps states in memory)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	rt.bind(flags, map[string]string{
		config.KeyConfigFile:      "config",
		config.KeyHubURL:          "hub-url",
		config.KeyHubAddress:      "hub-address",
		config.KeyTimeout:         "timeout",
		config.KeyContractAddress: "contract",
		config.KeyKeyFile:         "key-file",
		config.KeySignerURL:       "signer-url",
		config.KeyDefaultUser:     "user",
		config.KeyStorePath:       "store",
		config.KeyLogLevel:        "log-level",
	})

	root.AddCommand(
		newVersionCmd(),
		newChannelCmd(rt),
		newDepositCmd(rt),
		newWithdrawCmd(rt),
		newExchangeCmd(rt),
		newCollateralCmd(rt),
		newPayCmd(rt),
		newThreadCmd(rt),
		newHashCmd(),
		newKeygenCmd(rt),
		newServeMetricsCmd(rt),
	)
	return root
}

// bind registers flags with viper. Only flags set on the command line take
// precedence over the environment.
func (rt *runtime) bind(flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := rt.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func (rt *runtime) load(*cobra.Command, []string) error {
	cfg, err := config.Load(rt.v)
	if err != nil {
		return err
	}
	plogrus.Set(cfg.Level(), &logrus.TextFormatter{FullTimestamp: true})
	rt.cfg = cfg
	return nil
}

// open connects to the hub and unlocks the user's key.
func (rt *runtime) open(ctx context.Context) (*session, error) {
	keys, closeKeys, err := util.OpenKeystore(ctx, rt.cfg.KeyFile, rt.cfg.SignerURL, rt.cfg.User())
	if err != nil {
		return nil, errors.WithMessage(err, "opening keystore")
	}

	user := rt.cfg.User()
	if user == (common.Address{}) {
		addrs := keys.Addresses()
		if len(addrs) != 1 {
			closeKeys()
			return nil, ErrNoUser
		}
		user = addrs[0]
	}

	db, err := rt.openStore()
	if err != nil {
		closeKeys()
		return nil, err
	}

	hub := client.NewClient(rt.cfg.HubURL, client.WithTimeout(rt.cfg.Timeout))
	opts := []payment.Option{
		payment.WithDefaultUser(user),
		payment.WithStore(db),
		payment.WithMetrics(payment.NewMetrics(rt.registry)),
		payment.WithSyncRetries(rt.cfg.SyncRetries, rt.cfg.SyncInterval),
	}
	if addr := rt.cfg.Hub(); addr != (common.Address{}) {
		opts = append(opts, payment.WithHubAddress(addr))
	} else {
		log.Warn("no hub address configured, hub signatures are only checked for presence")
	}

	return &session{
		hub:       hub,
		payments:  payment.NewClient(hub, keys, opts...),
		store:     db,
		user:      user,
		closeKeys: closeKeys,
	}, nil
}

// openStore opens the state cache. An empty path keeps it in memory for the
// duration of the command.
func (rt *runtime) openStore() (store.Store, error) {
	if rt.cfg.StorePath == "" {
		log.Debug("no store path configured, caching states in memory")
		return store.NewMemory(), nil
	}
	return store.OpenLevelDB(rt.cfg.StorePath)
}

func (s *session) Close() error {
	s.closeKeys()
	return s.store.Close()
}

// withSession runs fn with an open session and closes it afterwards.
func (rt *runtime) withSession(cmd *cobra.Command, fn func(context.Context, *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := rt.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.WithError(err).Warn("closing session")
		}
	}()
	return fn(ctx, s)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "version",
		Short:             "Print version information",
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hubctl version %s\n", Version)
		},
	}
}

// printJSON outputs data as formatted JSON.
func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
