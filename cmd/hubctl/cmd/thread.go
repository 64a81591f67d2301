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

package cmd

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"perun.network/perun-hub-backend/channel"
	"perun.network/perun-hub-backend/channel/types"
	"perun.network/perun-hub-backend/payment"
	wtypes "perun.network/perun-hub-backend/wallet/types"
	"perun.network/perun-hub-backend/wire"
)

type (
	openedThread struct {
		Thread wire.ThreadState   `json:"thread"`
		Update wire.ChannelUpdate `json:"update"`
	}

	threadProof struct {
		Thread wire.ThreadState `json:"thread"`
		Root   common.Hash      `json:"root"`
		Proof  hexutil.Bytes    `json:"proof"`
	}
)

func newThreadCmd(rt *runtime) *cobra.Command {
	threadCmd := &cobra.Command{
		Use:   "thread",
		Short: "Manage payment threads to other users",
		Long: `A thread moves funds from the user to a receiver through the hub.

Examples:
  hubctl thread open 0xabc... --wei 50
  hubctl thread pay 0xabc... --wei 5
  hubctl thread close 0xabc...`,
	}

	open := &cobra.Command{
		Use:   "open <receiver>",
		Short: "Lock funds in a new thread",
		Args:  cobra.ExactArgs(1),
	}
	addBalanceFlags(open.Flags())
	open.RunE = func(cmd *cobra.Command, args []string) error {
		receiver, err := wtypes.ParseAddress(args[0])
		if err != nil {
			return err
		}
		amount, err := balancesFromFlags(cmd.Flags())
		if err != nil {
			return err
		}
		return rt.withSession(cmd, func(ctx context.Context, s *session) error {
			opened, err := s.payments.OpenThread(ctx, receiver, amount, s.user)
			if err != nil {
				return err
			}
			return printJSON(cmd, openedThread{
				Thread: wire.MakeThreadState(opened.Thread),
				Update: wire.MakeChannelUpdate(opened.Update),
			})
		})
	}

	pay := &cobra.Command{
		Use:   "pay <receiver>",
		Short: "Move funds to the receiver within an open thread",
		Args:  cobra.ExactArgs(1),
	}
	addBalanceFlags(pay.Flags())
	pay.RunE = func(cmd *cobra.Command, args []string) error {
		receiver, err := wtypes.ParseAddress(args[0])
		if err != nil {
			return err
		}
		amount, err := balancesFromFlags(cmd.Flags())
		if err != nil {
			return err
		}
		return rt.withSession(cmd, func(ctx context.Context, s *session) error {
			t, err := s.payments.ThreadPayment(ctx, amount, receiver, s.user)
			if err != nil {
				return err
			}
			return printJSON(cmd, wire.MakeThreadState(t))
		})
	}

	closeCmd := &cobra.Command{
		Use:   "close <receiver>",
		Short: "Fold a thread's final balances back into the channel",
		Args:  cobra.ExactArgs(1),
	}
	closeCmd.Flags().String("closer", "", "party closing the thread (default is the user)")
	closeCmd.RunE = func(cmd *cobra.Command, args []string) error {
		receiver, err := wtypes.ParseAddress(args[0])
		if err != nil {
			return err
		}
		return rt.withSession(cmd, func(ctx context.Context, s *session) error {
			closer := s.user
			if raw, _ := cmd.Flags().GetString("closer"); raw != "" {
				if closer, err = wtypes.ParseAddress(raw); err != nil {
					return err
				}
			}
			u, err := s.payments.CloseThread(ctx, receiver, s.user, closer)
			if err != nil {
				return err
			}
			return printJSON(cmd, wire.MakeChannelUpdate(u))
		})
	}

	proof := &cobra.Command{
		Use:   "proof <receiver>",
		Short: "Print the Merkle proof of a thread's initial state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			receiver, err := wtypes.ParseAddress(args[0])
			if err != nil {
				return err
			}
			return rt.withSession(cmd, func(ctx context.Context, s *session) error {
				initial, err := s.hub.GetInitialThreadStates(ctx, s.user)
				if err != nil {
					return err
				}
				for _, t := range initial {
					if t.Sender != s.user || t.Receiver != receiver {
						continue
					}
					p, err := channel.ThreadProof(t, initial)
					if err != nil {
						return err
					}
					root, err := channel.ThreadRoot(initial)
					if err != nil {
						return err
					}
					return printJSON(cmd, threadProof{
						Thread: wire.MakeThreadState(types.SignedThreadState{ThreadState: t}),
						Root:   root,
						Proof:  p,
					})
				}
				return payment.ErrThreadNotFound
			})
		},
	}

	show := &cobra.Command{
		Use:   "show <receiver>",
		Short: "Print the latest state of the thread to the receiver",
		Long: `Print the latest state of the thread to the receiver. If the hub is
unreachable, the locally cached thread states are used.`,
		Args: cobra.ExactArgs(1),
	}
	show.Flags().Uint64("tx-count", 0, "print the state with this thread txCount instead")
	show.RunE = func(cmd *cobra.Command, args []string) error {
		receiver, err := wtypes.ParseAddress(args[0])
		if err != nil {
			return err
		}
		return rt.withSession(cmd, func(ctx context.Context, s *session) error {
			var t types.SignedThreadState
			if cmd.Flags().Changed("tx-count") {
				n, _ := cmd.Flags().GetUint64("tx-count")
				t, err = s.payments.ThreadAtTxCount(ctx, n, receiver, s.user)
			} else {
				t, err = s.payments.ThreadByParties(ctx, receiver, s.user)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, wire.MakeThreadState(t))
		})
	}

	threadCmd.AddCommand(open, show, pay, closeCmd, proof)
	return threadCmd
}
