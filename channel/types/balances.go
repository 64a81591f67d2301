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

import "math/big"

type (
	// Balances is a wei/token amount pair.
	Balances struct {
		Wei   *big.Int
		Token *big.Int
	}

	// PendingBalances decomposes the pending fields of a channel state by
	// party and direction.
	PendingBalances struct {
		HubDeposit     Balances
		HubWithdrawal  Balances
		UserDeposit    Balances
		UserWithdrawal Balances
	}

	// ExchangedBalances are the per-party, per-asset amounts of an exchange
	// request.
	ExchangedBalances struct {
		HubWei    *big.Int
		HubToken  *big.Int
		UserWei   *big.Int
		UserToken *big.Int
	}
)

// MakeBalances returns a Balances value holding copies of wei and token.
func MakeBalances(wei, token *big.Int) Balances {
	return Balances{Wei: cloneAmount(amountOrZero(wei)), Token: cloneAmount(amountOrZero(token))}
}

// NewBalances is a shorthand for small literal amounts.
func NewBalances(wei, token int64) Balances {
	return Balances{Wei: big.NewInt(wei), Token: big.NewInt(token)}
}

// Clone returns a deep copy of b.
func (b Balances) Clone() Balances {
	return Balances{Wei: cloneAmount(b.Wei), Token: cloneAmount(b.Token)}
}

// IsZero reports whether both amounts are zero. Nil amounts count as zero.
func (b Balances) IsZero() bool {
	return amountOrZero(b.Wei).Sign() == 0 && amountOrZero(b.Token).Sign() == 0
}

// Equal compares two balance pairs by value.
func (b Balances) Equal(o Balances) bool {
	return amountOrZero(b.Wei).Cmp(amountOrZero(o.Wei)) == 0 &&
		amountOrZero(b.Token).Cmp(amountOrZero(o.Token)) == 0
}

// Check verifies that both amounts are representable.
func (b Balances) Check() error {
	if err := CheckAmount(b.Wei); err != nil {
		return err
	}
	return CheckAmount(b.Token)
}

// PendingFromState derives the pending decomposition of s.
func PendingFromState(s ChannelState) PendingBalances {
	return PendingBalances{
		HubDeposit:     MakeBalances(s.PendingDepositWeiHub, s.PendingDepositTokenHub),
		HubWithdrawal:  MakeBalances(s.PendingWithdrawalWeiHub, s.PendingWithdrawalTokenHub),
		UserDeposit:    MakeBalances(s.PendingDepositWeiUser, s.PendingDepositTokenUser),
		UserWithdrawal: MakeBalances(s.PendingWithdrawalWeiUser, s.PendingWithdrawalTokenUser),
	}
}

// IsZero reports whether no pending operation is outstanding.
func (p PendingBalances) IsZero() bool {
	return p.HubDeposit.IsZero() && p.HubWithdrawal.IsZero() &&
		p.UserDeposit.IsZero() && p.UserWithdrawal.IsZero()
}

// Clone returns a deep copy of e.
func (e ExchangedBalances) Clone() ExchangedBalances {
	return ExchangedBalances{
		HubWei:    cloneAmount(e.HubWei),
		HubToken:  cloneAmount(e.HubToken),
		UserWei:   cloneAmount(e.UserWei),
		UserToken: cloneAmount(e.UserToken),
	}
}
