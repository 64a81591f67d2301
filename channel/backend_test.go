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
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	pkgtest "polycry.pt/poly-go/test"

	"perun.network/perun-hub-backend/channel"
	chtest "perun.network/perun-hub-backend/channel/test"
	"perun.network/perun-hub-backend/channel/types"
	"perun.network/perun-hub-backend/wallet"
	wtest "perun.network/perun-hub-backend/wallet/test"
)

func TestBackend_ChannelState(t *testing.T) {
	rng := pkgtest.Prng(t)
	ctx := context.Background()
	user := wtest.NewRandomAccount(rng)
	hub := wtest.NewRandomAccount(rng)
	s := chtest.NewRandomChannelState(rng, chtest.WithUser(user.Address()))

	sig, err := channel.Backend.SignChannelState(ctx, user, s)
	require.NoError(t, err)
	signer, err := channel.Backend.RecoverChannelSigner(s, sig)
	require.NoError(t, err)
	require.Equal(t, user.Address(), signer)
	require.NoError(t, channel.Backend.VerifyChannelState(s, sig, user.Address()))
	require.ErrorIs(t, channel.Backend.VerifyChannelState(s, sig, hub.Address()), wallet.ErrSignerMismatch)

	// A signature over another state recovers to someone else.
	other := chtest.Next(s)
	require.ErrorIs(t, channel.Backend.VerifyChannelState(other, sig, user.Address()), wallet.ErrSignerMismatch)

	hubSig, err := channel.Backend.SignChannelState(ctx, hub, s)
	require.NoError(t, err)
	signed := types.SignedChannelState{ChannelState: s, SigUser: sig, SigHub: hubSig}
	require.NoError(t, channel.Backend.VerifyCosigned(signed, hub.Address()))

	swapped := types.SignedChannelState{ChannelState: s, SigUser: hubSig, SigHub: sig}
	require.ErrorIs(t, channel.Backend.VerifyCosigned(swapped, hub.Address()), wallet.ErrSignerMismatch)

	missing := types.SignedChannelState{ChannelState: s, SigUser: sig}
	require.ErrorIs(t, channel.Backend.VerifyCosigned(missing, hub.Address()), wallet.ErrMalformedSignature)
}

func TestBackend_ThreadState(t *testing.T) {
	rng := pkgtest.Prng(t)
	sender := wtest.NewRandomAccount(rng)
	receiver := wtest.NewRandomAddress(rng)
	th := chtest.NewRandomThreadState(rng, chtest.MkAddress("0xCCC"), sender.Address(), receiver)

	sig, err := channel.Backend.SignThreadState(context.Background(), sender, th)
	require.NoError(t, err)
	signer, err := channel.Backend.RecoverThreadSigner(th, sig)
	require.NoError(t, err)
	require.Equal(t, sender.Address(), signer)
	require.NoError(t, channel.Backend.VerifyThreadState(th, sig, sender.Address()))
	require.ErrorIs(t, channel.Backend.VerifyThreadState(th, sig, receiver), wallet.ErrSignerMismatch)

	_, err = channel.Backend.RecoverThreadSigner(th, sig[:10])
	require.ErrorIs(t, err, wallet.ErrMalformedSignature)
}
