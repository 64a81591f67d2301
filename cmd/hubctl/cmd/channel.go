package cmd

import (
	"context"
	"math/big"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"perun.network/go-perun/log"

	"perun.network/perun-hub-backend/channel/types"
	"perun.network/perun-hub-backend/store"
	wtypes "perun.network/perun-hub-backend/wallet/types"
	"perun.network/perun-hub-backend/wire"
)

func newChannelCmd(rt *runtime) *cobra.Command {
	channelCmd := &cobra.Command{
		Use:   "channel",
		Short: "Inspect the user's channel",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the latest channel state known to the hub",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.withSession(cmd, func(ctx context.Context, s *session) error {
				u, err := s.hub.GetChannel(ctx, s.user)
				if err != nil {
					return err
				}
				if c := rt.cfg.Contract(); c != u.State.ContractAddress && !wtypes.IsZero(c) {
					log.WithField("contract", u.State.ContractAddress.Hex()).
						Warn("channel belongs to a different contract than configured")
				}
				return printJSON(cmd, wire.MakeChannelUpdate(u))
			})
		},
	}

	sync := &cobra.Command{
		Use:   "sync [txCount]",
		Short: "Fetch the updates from txCount on",
		Long: `Fetch the channel updates with a global txCount of at least the given
one. Without an argument, sync starts after the last locally stored state.

With --cosign, the hub proposals following the latest co-signed state are
validated, signed and submitted. The resulting co-signed state is printed.`,
		Args: cobra.MaximumNArgs(1),
	}
	sync.Flags().Bool("cosign", false, "validate and co-sign pending hub proposals")
	sync.RunE = func(cmd *cobra.Command, args []string) error {
		if cosign, _ := cmd.Flags().GetBool("cosign"); cosign {
			if len(args) > 0 {
				return errors.New("--cosign starts at the cached state and takes no txCount")
			}
			return rt.withSession(cmd, func(ctx context.Context, s *session) error {
				return cosignPending(ctx, cmd, s)
			})
		}
		return rt.withSession(cmd, func(ctx context.Context, s *session) error {
			since, err := sinceTxCount(s, args)
			if err != nil {
				return err
			}
			updates, err := s.payments.Sync(ctx, since, s.user)
			if err != nil {
				return err
			}
			return printJSON(cmd, wire.MakeChannelUpdates(updates))
		})
	}

	at := &cobra.Command{
		Use:   "at <txCount>",
		Short: "Print the channel state with the given global txCount",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			txCount, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return errors.WithMessage(err, "txCount")
			}
			return rt.withSession(cmd, func(ctx context.Context, s *session) error {
				u, err := s.payments.ChannelStateAtNonce(ctx, txCount, s.user)
				if err != nil {
					return err
				}
				return printJSON(cmd, wire.MakeChannelUpdate(u))
			})
		},
	}

	channelCmd.AddCommand(show, sync, at)
	return channelCmd
}

// sinceTxCount returns the explicit argument or the txCount following the
// cached state.
func sinceTxCount(s *session, args []string) (uint64, error) {
	if len(args) == 1 {
		n, err := strconv.ParseUint(args[0], 10, 64)
		return n, errors.WithMessage(err, "txCount")
	}
	u, err := s.store.ChannelUpdate(s.user)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return 0, nil
	case err != nil:
		return 0, errors.WithMessage(err, "reading cached state")
	}
	return u.State.TxCountGlobal + 1, nil
}

// cosignPending signs the hub proposals following the latest co-signed state
// and prints the resulting state.
func cosignPending(ctx context.Context, cmd *cobra.Command, s *session) error {
	latest, items, err := s.payments.PendingUpdates(ctx, s.user)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return printJSON(cmd, wire.MakeChannelUpdate(latest))
	}
	resp, err := s.payments.VerifyAndCosign(ctx, latest, items, s.user)
	if err != nil {
		return err
	}
	return printJSON(cmd, wire.MakeChannelUpdate(resp))
}

func newDepositCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Ask the hub to add a pending user deposit",
		Args:  cobra.NoArgs,
	}
	addBalanceFlags(cmd.Flags())
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		amount, err := balancesFromFlags(cmd.Flags())
		if err != nil {
			return err
		}
		return rt.withSession(cmd, func(ctx context.Context, s *session) error {
			u, err := s.payments.ProposeDeposit(ctx, amount, s.user)
			if err != nil {
				return err
			}
			return printJSON(cmd, wire.MakeChannelUpdate(u))
		})
	}
	return cmd
}

func newWithdrawCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Ask the hub to add a pending user withdrawal",
		Args:  cobra.NoArgs,
	}
	addBalanceFlags(cmd.Flags())
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		amount, err := balancesFromFlags(cmd.Flags())
		if err != nil {
			return err
		}
		return rt.withSession(cmd, func(ctx context.Context, s *session) error {
			u, err := s.payments.ProposeWithdrawal(ctx, amount, s.user)
			if err != nil {
				return err
			}
			return printJSON(cmd, wire.MakeChannelUpdate(u))
		})
	}
	return cmd
}

func newExchangeCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exchange",
		Short: "Exchange wei and token with the hub",
		Long: `Request an exchange from the hub. Amounts are signed deltas of the
respective balance, e.g. --user-wei -10 --user-token 20.`,
		Args: cobra.NoArgs,
	}
	flags := cmd.Flags()
	flags.String("hub-wei", "0", "change of the hub's wei balance")
	flags.String("hub-token", "0", "change of the hub's token balance")
	flags.String("user-wei", "0", "change of the user's wei balance")
	flags.String("user-token", "0", "change of the user's token balance")
	flags.String("currency", "", "currency the user wants to receive")
	_ = cmd.MarkFlagRequired("currency")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		amount, err := exchangeFromFlags(cmd.Flags())
		if err != nil {
			return err
		}
		currency, _ := cmd.Flags().GetString("currency")
		return rt.withSession(cmd, func(ctx context.Context, s *session) error {
			u, err := s.payments.ProposeExchange(ctx, amount, currency, s.user)
			if err != nil {
				return err
			}
			return printJSON(cmd, wire.MakeChannelUpdate(u))
		})
	}
	return cmd
}

func newCollateralCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "collateral",
		Short: "Ask the hub to collateralize the channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.withSession(cmd, func(ctx context.Context, s *session) error {
				u, err := s.payments.RequestCollateral(ctx, s.user)
				if err != nil {
					return err
				}
				return printJSON(cmd, wire.MakeChannelUpdate(u))
			})
		},
	}
}

func newPayCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Pay the hub from the user's channel balance",
		Args:  cobra.NoArgs,
	}
	addBalanceFlags(cmd.Flags())
	cmd.Flags().String("memo", "", "note attached to the payment")
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		amount, err := balancesFromFlags(cmd.Flags())
		if err != nil {
			return err
		}
		var metadata map[string]interface{}
		if memo, _ := cmd.Flags().GetString("memo"); memo != "" {
			metadata = map[string]interface{}{"memo": memo}
		}
		return rt.withSession(cmd, func(ctx context.Context, s *session) error {
			u, err := s.payments.ChannelPayment(ctx, amount, metadata, s.user)
			if err != nil {
				return err
			}
			return printJSON(cmd, wire.MakeChannelUpdate(u))
		})
	}
	return cmd
}

func addBalanceFlags(flags *pflag.FlagSet) {
	flags.String("wei", "0", "amount of wei")
	flags.String("token", "0", "amount of token")
}

func balancesFromFlags(flags *pflag.FlagSet) (types.Balances, error) {
	var b types.Balances
	var err error
	if b.Wei, err = amountFlag(flags, "wei"); err != nil {
		return types.Balances{}, err
	}
	if b.Token, err = amountFlag(flags, "token"); err != nil {
		return types.Balances{}, err
	}
	return b, nil
}

func amountFlag(flags *pflag.FlagSet, name string) (*big.Int, error) {
	s, err := flags.GetString(name)
	if err != nil {
		return nil, err
	}
	v, err := types.ParseAmount(s)
	return v, errors.WithMessagef(err, "--%s", name)
}

func exchangeFromFlags(flags *pflag.FlagSet) (types.ExchangedBalances, error) {
	var e types.ExchangedBalances
	for name, dst := range map[string]**big.Int{
		"hub-wei":    &e.HubWei,
		"hub-token":  &e.HubToken,
		"user-wei":   &e.UserWei,
		"user-token": &e.UserToken,
	} {
		s, err := flags.GetString(name)
		if err != nil {
			return types.ExchangedBalances{}, err
		}
		if *dst, err = parseDelta(s); err != nil {
			return types.ExchangedBalances{}, errors.WithMessagef(err, "--%s", name)
		}
	}
	return e, nil
}

// parseDelta parses a signed decimal whose magnitude is a valid amount.
func parseDelta(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.Errorf("invalid number %q", s)
	}
	if err := types.CheckAmount(new(big.Int).Abs(v)); err != nil {
		return nil, err
	}
	return v, nil
}
