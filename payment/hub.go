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

package payment

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"perun.network/perun-hub-backend/channel/types"
	"perun.network/perun-hub-backend/wallet"
)

type (
	// StateSource answers queries about the hub's view of a user channel.
	StateSource interface {
		// GetChannel returns the latest update of the user's channel together
		// with its dispute status.
		GetChannel(ctx context.Context, user common.Address) (types.ChannelUpdate, error)
		// GetInitialThreadStates returns the initial states of all threads
		// currently open in the user's channel.
		GetInitialThreadStates(ctx context.Context, user common.Address) ([]types.ThreadState, error)
		// GetThreads returns the latest states of all threads towards user.
		GetThreads(ctx context.Context, user common.Address) ([]types.SignedThreadState, error)
		// Sync returns all updates of the user's channel after txCount.
		Sync(ctx context.Context, txCount uint64, user common.Address) ([]types.ChannelUpdate, error)
	}

	// UpdateSink receives proposals and signed updates. Every call returns
	// the update the hub produced in response.
	UpdateSink interface {
		RequestDeposit(ctx context.Context, deposit types.Balances, txCount uint64, user common.Address) (types.ChannelUpdate, error)
		RequestWithdrawal(ctx context.Context, withdrawal types.Balances, txCount uint64, user common.Address) (types.ChannelUpdate, error)
		RequestExchange(ctx context.Context, amount types.ExchangedBalances, desiredCurrency string, txCount uint64, user common.Address) (types.ChannelUpdate, error)
		RequestCollateral(ctx context.Context, txCount uint64, user common.Address) (types.ChannelUpdate, error)
		Submit(ctx context.Context, txCount uint64, updates []types.ChannelUpdate, user common.Address) (types.ChannelUpdate, error)
	}

	// Hub is the remote counterparty of every user channel.
	Hub interface {
		StateSource
		UpdateSink
	}

	// Keystore hands out signers for the addresses it controls.
	Keystore interface {
		Unlock(addr common.Address) (wallet.Signer, error)
	}
)
