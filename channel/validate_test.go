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

package channel_test

import (
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	pkgtest "polycry.pt/poly-go/test"

	"perun.network/perun-hub-backend/channel"
	chtest "perun.network/perun-hub-backend/channel/test"
	"perun.network/perun-hub-backend/channel/types"
)

func requireRejected(t *testing.T, rej *channel.Rejection, rule string) {
	t.Helper()
	require.NotNil(t, rej)
	require.Equal(t, rule, rej.Rule, rej.Message)
	require.True(t, errors.Is(rej, channel.ErrValidationRejected))
}

func TestValidate_Nonces(t *testing.T) {
	prev := chtest.NewChannelState(chtest.WithTxCount(5, 2))
	tr := channel.ExchangeTransition{}

	require.Nil(t, channel.Validate(prev, chtest.Next(prev), tr))
	require.Nil(t, channel.Validate(prev, chtest.Next(prev, chtest.WithTxCount(6, 3)), tr))

	for _, global := range []uint64{5, 4, 7} {
		rej := channel.Validate(prev, chtest.Next(prev, chtest.WithTxCount(global, 2)), tr)
		requireRejected(t, rej, channel.RuleGlobalNonce)
		require.Equal(t, "Can only increase the global nonce by 1", rej.Message)
	}
	for _, chain := range []uint64{1, 4} {
		rej := channel.Validate(prev, chtest.Next(prev, chtest.WithTxCount(6, chain)), tr)
		requireRejected(t, rej, channel.RuleChainNonce)
	}

	// Counters at their maximum must not wrap around to zero.
	top := chtest.NewChannelState(chtest.WithTxCount(math.MaxUint64, math.MaxUint64))
	requireRejected(t, channel.Validate(top, chtest.Next(top, chtest.WithTxCount(0, 0)), tr), channel.RuleGlobalNonce)
	chainTop := chtest.NewChannelState(chtest.WithTxCount(5, math.MaxUint64))
	requireRejected(t, channel.Validate(chainTop, chtest.Next(chainTop, chtest.WithTxCount(6, 0)), tr), channel.RuleChainNonce)
	require.Nil(t, channel.Validate(chainTop, chtest.Next(chainTop, chtest.WithTxCount(6, math.MaxUint64)), tr))
}

func TestValidate_Payment(t *testing.T) {
	prev := chtest.NewChannelState(chtest.WithBalanceWei(10, 20), chtest.WithBalanceToken(30, 40))
	tr := channel.PaymentTransition{}

	t.Run("user pays", func(t *testing.T) {
		cur := chtest.Next(prev, chtest.WithBalanceWei(15, 15), chtest.WithBalanceToken(31, 39))
		require.Nil(t, channel.Validate(prev, cur, tr))
	})
	t.Run("wei not conserved", func(t *testing.T) {
		cur := chtest.Next(prev, chtest.WithBalanceWei(15, 16))
		requireRejected(t, channel.Validate(prev, cur, tr), channel.RuleWeiConserved)
	})
	t.Run("token not conserved", func(t *testing.T) {
		cur := chtest.Next(prev, chtest.WithBalanceToken(30, 39))
		requireRejected(t, channel.Validate(prev, cur, tr), channel.RuleTokenConserved)
	})
	t.Run("any pending change", func(t *testing.T) {
		// A single changed pending field is enough.
		cur := chtest.Next(prev, func(s *types.ChannelState) { s.PendingWithdrawalTokenUser = big.NewInt(12) })
		rej := channel.Validate(prev, cur, tr)
		requireRejected(t, rej, channel.RulePendingUnchanged)
		require.Contains(t, rej.Message, "pendingWithdrawalTokenUser")
	})
	t.Run("threads unchanged", func(t *testing.T) {
		cur := chtest.Next(prev, chtest.WithThreads(common.HexToHash("0x01"), 1))
		requireRejected(t, channel.Validate(prev, cur, tr), channel.RuleThreadsUnchanged)
	})
}

func TestValidate_PaymentConservationRandom(t *testing.T) {
	rng := pkgtest.Prng(t)
	for i := 0; i < 50; i++ {
		prev := chtest.NewRandomChannelState(rng)
		amt := big.NewInt(rng.Int63n(prev.BalanceWeiUser.Int64() + 1))
		cur := chtest.Next(prev, func(s *types.ChannelState) {
			s.BalanceWeiUser = new(big.Int).Sub(s.BalanceWeiUser, amt)
			s.BalanceWeiHub = new(big.Int).Add(s.BalanceWeiHub, amt)
		})
		require.Nil(t, channel.Validate(prev, cur, channel.PaymentTransition{}))

		cur.BalanceWeiHub = new(big.Int).Add(cur.BalanceWeiHub, big.NewInt(1))
		requireRejected(t, channel.Validate(prev, cur, channel.PaymentTransition{}), channel.RuleWeiConserved)
	}
}

func TestValidate_ProposePending(t *testing.T) {
	prev := chtest.NewChannelState(chtest.WithNoPending())
	tr := channel.ProposePendingTransition{}

	cur := chtest.Next(prev, chtest.WithPendingDepositWei(0, 100), chtest.WithPendingWithdrawalToken(5, 0))
	require.Nil(t, channel.Validate(prev, cur, tr))

	withPending := chtest.NewChannelState()
	requireRejected(t, channel.Validate(withPending, chtest.Next(withPending), tr), channel.RuleNoPending)

	moved := chtest.Next(prev, chtest.WithBalanceWei(0, 3))
	requireRejected(t, channel.Validate(prev, moved, tr), channel.RuleBalancesUnchanged)
}

// TestValidate_ConfirmPending moves pdH=5 and pdU=3 into bH=10 and bU=20.
func TestValidate_ConfirmPending(t *testing.T) {
	prev := chtest.NewChannelState(
		chtest.WithNoPending(),
		chtest.WithBalanceWei(10, 20),
		chtest.WithBalanceToken(0, 0),
		chtest.WithPendingDepositWei(5, 3),
	)
	tr := channel.ConfirmPendingTransition{}

	cur := chtest.Next(prev, chtest.WithNoPending(), chtest.WithBalanceWei(15, 23))
	require.Nil(t, channel.Validate(prev, cur, tr))

	for _, bad := range [][2]int64{{15, 20}, {10, 23}, {16, 23}, {15, 22}} {
		cur := chtest.Next(prev, chtest.WithNoPending(), chtest.WithBalanceWei(bad[0], bad[1]))
		requireRejected(t, channel.Validate(prev, cur, tr), channel.RulePendingApplied)
	}

	tokens := chtest.Next(prev, chtest.WithNoPending(), chtest.WithBalanceWei(15, 23), chtest.WithBalanceToken(0, 1))
	rej := channel.Validate(prev, tokens, tr)
	requireRejected(t, rej, channel.RulePendingApplied)
	require.Equal(t, "User token deposit added to balance incorrectly", rej.Message)
}

func TestValidate_ThreadRequired(t *testing.T) {
	prev := chtest.NewChannelState()
	cur := chtest.Next(prev)
	requireRejected(t, channel.Validate(prev, cur, channel.OpenThreadTransition{}), channel.RuleThreadMissing)
	requireRejected(t, channel.Validate(prev, cur, channel.CloseThreadTransition{}), channel.RuleThreadMissing)

	th := types.ThreadState{Sender: chtest.MkAddress("0xAAA"), Receiver: chtest.MkAddress("0xBBB")}
	require.Nil(t, channel.Validate(prev, cur, channel.OpenThreadTransition{Thread: th}))
	require.Nil(t, channel.Validate(prev, cur, channel.CloseThreadTransition{Thread: th}))
}

// TestValidate_OpenCloseThread opens a thread into an empty channel and closes
// it again.
func TestValidate_OpenCloseThread(t *testing.T) {
	rng := pkgtest.Prng(t)
	prev := chtest.NewChannelState(chtest.WithNoPending(), chtest.WithBalanceWei(100, 100), chtest.WithBalanceToken(100, 100))
	th := chtest.NewRandomThreadState(rng, prev.ContractAddress, prev.User, chtest.MkAddress("0xBBB"))
	th.BalanceWeiSender, th.BalanceTokenSender = big.NewInt(10), big.NewInt(20)
	initial := []types.ThreadState{th}

	root, err := channel.ThreadRoot(initial)
	require.NoError(t, err)
	opened := chtest.Next(prev, chtest.WithBalanceWei(100, 90), chtest.WithBalanceToken(100, 80), chtest.WithThreads(root, 1))
	require.Nil(t, channel.Validate(prev, opened, channel.OpenThreadTransition{Thread: th, InitialStates: initial}))

	wrongCount := chtest.Next(prev, chtest.WithThreads(root, 2))
	requireRejected(t, channel.Validate(prev, wrongCount, channel.OpenThreadTransition{Thread: th, InitialStates: initial}), channel.RuleThreadCount)

	wrongRoot := chtest.Next(prev, chtest.WithThreads(common.HexToHash("0x01"), 1))
	requireRejected(t, channel.Validate(prev, wrongRoot, channel.OpenThreadTransition{Thread: th, InitialStates: initial}), channel.RuleThreadRoot)

	requireRejected(t, channel.Validate(prev, opened, channel.OpenThreadTransition{Thread: th, InitialStates: []types.ThreadState{}}), channel.RuleThreadRoot)

	full := prev.Clone()
	full.ThreadCount = math.MaxUint64
	requireRejected(t, channel.Validate(full, chtest.Next(full, chtest.WithThreads(root, 0)), channel.OpenThreadTransition{Thread: th, InitialStates: initial}), channel.RuleThreadCount)

	closed := chtest.Next(opened, chtest.WithBalanceWei(110, 90), chtest.WithBalanceToken(120, 80), chtest.WithThreads(channel.EmptyRoot, 0))
	require.Nil(t, channel.Validate(opened, closed, channel.CloseThreadTransition{Thread: th, InitialStates: []types.ThreadState{}}))
	requireRejected(t, channel.Validate(opened, closed, channel.CloseThreadTransition{Thread: th, InitialStates: initial}), channel.RuleThreadRoot)
}

func TestValidate_RejectionCopiesStates(t *testing.T) {
	prev := chtest.NewChannelState()
	cur := chtest.NewChannelState()
	rej := channel.Validate(prev, cur, channel.PaymentTransition{})
	requireRejected(t, rej, channel.RuleGlobalNonce)
	require.Equal(t, types.ReasonPayment, rej.Reason)

	rej.Previous.BalanceWeiHub.SetInt64(1000)
	require.Equal(t, int64(1), prev.BalanceWeiHub.Int64())
	require.Contains(t, rej.Error(), "global-nonce")
}

func TestTransitionFor(t *testing.T) {
	for _, r := range []types.Reason{
		types.ReasonPayment, types.ReasonExchange, types.ReasonProposePending,
		types.ReasonConfirmPending, types.ReasonOpenThread, types.ReasonCloseThread,
	} {
		tr, err := channel.TransitionFor(r)
		require.NoError(t, err)
		require.Equal(t, r, tr.Reason())
	}
	_, err := channel.TransitionFor(types.Reason(42))
	require.ErrorIs(t, err, types.ErrUnknownReason)
}
