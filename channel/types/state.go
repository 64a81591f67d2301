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

package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type (
	// ChannelState is the signable fingerprint of a channel between a user and
	// the hub.
	ChannelState struct {
		ContractAddress common.Address
		User            common.Address
		Recipient       common.Address

		BalanceWeiHub    *big.Int
		BalanceWeiUser   *big.Int
		BalanceTokenHub  *big.Int
		BalanceTokenUser *big.Int

		PendingDepositWeiHub       *big.Int
		PendingDepositWeiUser      *big.Int
		PendingDepositTokenHub     *big.Int
		PendingDepositTokenUser    *big.Int
		PendingWithdrawalWeiHub    *big.Int
		PendingWithdrawalWeiUser   *big.Int
		PendingWithdrawalTokenHub  *big.Int
		PendingWithdrawalTokenUser *big.Int

		TxCountGlobal uint64
		TxCountChain  uint64
		ThreadRoot    common.Hash
		ThreadCount   uint64
		Timeout       uint64
	}

	// SignedChannelState is a channel state with zero, one or both party
	// signatures.
	SignedChannelState struct {
		ChannelState
		SigUser []byte
		SigHub  []byte
	}
)

// Clone returns a deep copy of s. The copy shares no amounts with s.
func (s ChannelState) Clone() ChannelState {
	c := s
	c.BalanceWeiHub = cloneAmount(s.BalanceWeiHub)
	c.BalanceWeiUser = cloneAmount(s.BalanceWeiUser)
	c.BalanceTokenHub = cloneAmount(s.BalanceTokenHub)
	c.BalanceTokenUser = cloneAmount(s.BalanceTokenUser)
	c.PendingDepositWeiHub = cloneAmount(s.PendingDepositWeiHub)
	c.PendingDepositWeiUser = cloneAmount(s.PendingDepositWeiUser)
	c.PendingDepositTokenHub = cloneAmount(s.PendingDepositTokenHub)
	c.PendingDepositTokenUser = cloneAmount(s.PendingDepositTokenUser)
	c.PendingWithdrawalWeiHub = cloneAmount(s.PendingWithdrawalWeiHub)
	c.PendingWithdrawalWeiUser = cloneAmount(s.PendingWithdrawalWeiUser)
	c.PendingWithdrawalTokenHub = cloneAmount(s.PendingWithdrawalTokenHub)
	c.PendingWithdrawalTokenUser = cloneAmount(s.PendingWithdrawalTokenUser)
	return c
}

// HubBalances returns the hub's operating balances.
func (s ChannelState) HubBalances() Balances {
	return MakeBalances(s.BalanceWeiHub, s.BalanceTokenHub)
}

// UserBalances returns the user's operating balances.
func (s ChannelState) UserBalances() Balances {
	return MakeBalances(s.BalanceWeiUser, s.BalanceTokenUser)
}

// Amounts lists every amount field in canonical order together with its name.
func (s ChannelState) Amounts() []NamedAmount {
	return []NamedAmount{
		{"balanceWeiHub", s.BalanceWeiHub},
		{"balanceWeiUser", s.BalanceWeiUser},
		{"balanceTokenHub", s.BalanceTokenHub},
		{"balanceTokenUser", s.BalanceTokenUser},
		{"pendingDepositWeiHub", s.PendingDepositWeiHub},
		{"pendingWithdrawalWeiHub", s.PendingWithdrawalWeiHub},
		{"pendingDepositWeiUser", s.PendingDepositWeiUser},
		{"pendingWithdrawalWeiUser", s.PendingWithdrawalWeiUser},
		{"pendingDepositTokenHub", s.PendingDepositTokenHub},
		{"pendingWithdrawalTokenHub", s.PendingWithdrawalTokenHub},
		{"pendingDepositTokenUser", s.PendingDepositTokenUser},
		{"pendingWithdrawalTokenUser", s.PendingWithdrawalTokenUser},
	}
}

// NamedAmount pairs an amount with its wire field name.
type NamedAmount struct {
	Name  string
	Value *big.Int
}

// Clone returns a deep copy of s including the signatures.
func (s SignedChannelState) Clone() SignedChannelState {
	return SignedChannelState{
		ChannelState: s.ChannelState.Clone(),
		SigUser:      common.CopyBytes(s.SigUser),
		SigHub:       common.CopyBytes(s.SigHub),
	}
}

// Unsigned strips both signatures.
func (s SignedChannelState) Unsigned() ChannelState {
	return s.ChannelState.Clone()
}
