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

package channel

import (
	"math/big"

	"perun.network/perun-hub-backend/channel/types"
)

// PaymentAmount returns the amount moved by a payment from prev to cur. An
// explicit amount is returned as is. Otherwise the payer is the user if the
// hub balances did not decrease in either asset, else the hub.
func PaymentAmount(prev, cur types.ChannelState, explicit *types.Balances) types.Balances {
	if explicit != nil {
		return explicit.Clone()
	}
	userPaid := orZero(prev.BalanceWeiHub).Cmp(orZero(cur.BalanceWeiHub)) <= 0 &&
		orZero(prev.BalanceTokenHub).Cmp(orZero(cur.BalanceTokenHub)) <= 0
	if userPaid {
		return types.Balances{
			Wei:   diff(prev.BalanceWeiUser, cur.BalanceWeiUser),
			Token: diff(prev.BalanceTokenUser, cur.BalanceTokenUser),
		}
	}
	return types.Balances{
		Wei:   diff(prev.BalanceWeiHub, cur.BalanceWeiHub),
		Token: diff(prev.BalanceTokenHub, cur.BalanceTokenHub),
	}
}

// ExchangeAmount returns the signed per-party, per-asset change of the
// operating balances from prev to cur.
func ExchangeAmount(prev, cur types.ChannelState) types.ExchangedBalances {
	return types.ExchangedBalances{
		HubWei:    diff(cur.BalanceWeiHub, prev.BalanceWeiHub),
		HubToken:  diff(cur.BalanceTokenHub, prev.BalanceTokenHub),
		UserWei:   diff(cur.BalanceWeiUser, prev.BalanceWeiUser),
		UserToken: diff(cur.BalanceTokenUser, prev.BalanceTokenUser),
	}
}

// diff returns a - b in a fresh big.Int.
func diff(a, b *big.Int) *big.Int {
	return new(big.Int).Sub(orZero(a), orZero(b))
}
