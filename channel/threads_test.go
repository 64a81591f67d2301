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
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	pkgtest "polycry.pt/poly-go/test"

	"perun.network/perun-hub-backend/channel"
	chtest "perun.network/perun-hub-backend/channel/test"
	"perun.network/perun-hub-backend/channel/types"
	"perun.network/perun-hub-backend/merkle"
)

func TestThreadRoot_Empty(t *testing.T) {
	root, err := channel.ThreadRoot(nil)
	require.NoError(t, err)
	require.Equal(t, channel.EmptyRoot, root)
	require.Equal(t, common.Hash{}, root)

	_, err = channel.ThreadTree(nil)
	require.ErrorIs(t, err, merkle.ErrEmptyTree)
}

// TestThreadRoot_Properties checks that non-empty roots never equal the empty
// root and do not depend on the order of the initial states.
func TestThreadRoot_Properties(t *testing.T) {
	rng := pkgtest.Prng(t)
	contract, receiver := chtest.MkAddress("0xCCC"), chtest.MkAddress("0xBBB")

	for n := 1; n <= 6; n++ {
		states := chtest.NewRandomThreadStates(rng, contract, receiver, n)
		root, err := channel.ThreadRoot(states)
		require.NoError(t, err)
		require.NotEqual(t, channel.EmptyRoot, root)

		reversed := make([]types.ThreadState, n)
		for i := range states {
			reversed[n-1-i] = states[i]
		}
		other, err := channel.ThreadRoot(reversed)
		require.NoError(t, err)
		require.Equal(t, root, other)
	}
}

func TestThreadRoot_SingleThreadIsPadded(t *testing.T) {
	rng := pkgtest.Prng(t)
	th := chtest.NewRandomThreadState(rng, chtest.MkAddress("0xCCC"), chtest.MkAddress("0xAAA"), chtest.MkAddress("0xBBB"))
	leaf, err := channel.HashThreadState(th)
	require.NoError(t, err)

	root, err := channel.ThreadRoot([]types.ThreadState{th})
	require.NoError(t, err)
	require.Equal(t, merkle.CombinedHash(leaf, channel.EmptyRoot), root)
}

func TestThreadProof(t *testing.T) {
	rng := pkgtest.Prng(t)
	states := chtest.NewRandomThreadStates(rng, chtest.MkAddress("0xCCC"), chtest.MkAddress("0xBBB"), 5)
	root, err := channel.ThreadRoot(states)
	require.NoError(t, err)

	for _, th := range states {
		proof, err := channel.ThreadProof(th, states)
		require.NoError(t, err)
		require.Zero(t, len(proof)%common.HashLength)

		leaf := common.BytesToHash(proof[:common.HashLength])
		want, err := channel.HashThreadState(th)
		require.NoError(t, err)
		require.Equal(t, want, leaf)

		var siblings []common.Hash
		for i := common.HashLength; i < len(proof); i += common.HashLength {
			siblings = append(siblings, common.BytesToHash(proof[i:i+common.HashLength]))
		}
		require.True(t, merkle.Verify(root, leaf, siblings))
	}

	foreign := chtest.NewRandomThreadState(rng, chtest.MkAddress("0xCCC"), chtest.MkAddress("0xDDD"), chtest.MkAddress("0xBBB"))
	_, err = channel.ThreadProof(foreign, states)
	require.ErrorIs(t, err, merkle.ErrLeafNotFound)
}
