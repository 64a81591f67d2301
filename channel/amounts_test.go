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
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"perun.network/perun-hub-backend/channel"
	chtest "perun.network/perun-hub-backend/channel/test"
	"perun.network/perun-hub-backend/channel/types"
)

func TestPaymentAmount(t *testing.T) {
	prev := chtest.NewChannelState(chtest.WithBalanceWei(10, 20), chtest.WithBalanceToken(30, 40))

	userPays := chtest.Next(prev, chtest.WithBalanceWei(15, 15), chtest.WithBalanceToken(30, 40))
	require.True(t, types.NewBalances(5, 0).Equal(channel.PaymentAmount(prev, userPays, nil)))

	hubPays := chtest.Next(prev, chtest.WithBalanceWei(7, 23), chtest.WithBalanceToken(28, 42))
	require.True(t, types.NewBalances(3, 2).Equal(channel.PaymentAmount(prev, hubPays, nil)))

	explicit := types.NewBalances(1, 1)
	got := channel.PaymentAmount(prev, userPays, &explicit)
	require.True(t, explicit.Equal(got))
	got.Wei.SetInt64(99)
	require.Equal(t, int64(1), explicit.Wei.Int64())
}

func TestExchangeAmount(t *testing.T) {
	prev := chtest.NewChannelState(chtest.WithBalanceWei(10, 20), chtest.WithBalanceToken(30, 40))
	cur := chtest.Next(prev, chtest.WithBalanceWei(15, 15), chtest.WithBalanceToken(20, 50))

	ex := channel.ExchangeAmount(prev, cur)
	require.Equal(t, big.NewInt(5), ex.HubWei)
	require.Equal(t, big.NewInt(-10), ex.HubToken)
	require.Equal(t, big.NewInt(-5), ex.UserWei)
	require.Equal(t, big.NewInt(10), ex.UserToken)
}
