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
	// ThreadState is the signable fingerprint of a unidirectional thread from
	// Sender to Receiver, anchored in the channel of User.
	ThreadState struct {
		ContractAddress common.Address
		User            common.Address
		Sender          common.Address
		Receiver        common.Address

		BalanceWeiSender     *big.Int
		BalanceWeiReceiver   *big.Int
		BalanceTokenSender   *big.Int
		BalanceTokenReceiver *big.Int

		TxCount uint64
	}

	// SignedThreadState carries the sender's signature. The hub never signs
	// thread updates.
	SignedThreadState struct {
		ThreadState
		SigA []byte
	}
)

// Clone returns a deep copy of t.
func (t ThreadState) Clone() ThreadState {
	c := t
	c.BalanceWeiSender = cloneAmount(t.BalanceWeiSender)
	c.BalanceWeiReceiver = cloneAmount(t.BalanceWeiReceiver)
	c.BalanceTokenSender = cloneAmount(t.BalanceTokenSender)
	c.BalanceTokenReceiver = cloneAmount(t.BalanceTokenReceiver)
	return c
}

// SenderBalances returns the sender side of the thread.
func (t ThreadState) SenderBalances() Balances {
	return MakeBalances(t.BalanceWeiSender, t.BalanceTokenSender)
}

// ReceiverBalances returns the receiver side of the thread.
func (t ThreadState) ReceiverBalances() Balances {
	return MakeBalances(t.BalanceWeiReceiver, t.BalanceTokenReceiver)
}

// SameParties reports whether t and o describe the same thread.
func (t ThreadState) SameParties(o ThreadState) bool {
	return t.ContractAddress == o.ContractAddress && t.User == o.User &&
		t.Sender == o.Sender && t.Receiver == o.Receiver
}

// Clone returns a deep copy of t including the signature.
func (t SignedThreadState) Clone() SignedThreadState {
	return SignedThreadState{ThreadState: t.ThreadState.Clone(), SigA: common.CopyBytes(t.SigA)}
}
