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

package merkle_test

import (
	"math/rand"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	pkgtest "polycry.pt/poly-go/test"

	"perun.network/perun-hub-backend/merkle"
)

func randomLeaves(rng *rand.Rand, n int) []common.Hash {
	leaves := make([]common.Hash, n)
	for i := range leaves {
		rng.Read(leaves[i][:])
	}
	return leaves
}

func TestEmptyTree(t *testing.T) {
	_, err := merkle.New(nil)
	require.ErrorIs(t, err, merkle.ErrEmptyTree)
}

func TestSingleLeaf(t *testing.T) {
	leaf := crypto.Keccak256Hash([]byte("leaf"))
	tree, err := merkle.New([]common.Hash{leaf})
	require.NoError(t, err)
	require.Equal(t, leaf, tree.Root())

	proof, err := tree.Proof(leaf)
	require.NoError(t, err)
	require.Empty(t, proof)
	require.True(t, merkle.Verify(tree.Root(), leaf, proof))
}

func TestTwoLeaves(t *testing.T) {
	a := common.HexToHash("0x01")
	b := common.HexToHash("0x02")
	tree, err := merkle.New([]common.Hash{b, a})
	require.NoError(t, err)
	require.Equal(t, crypto.Keccak256Hash(a[:], b[:]), tree.Root())
	require.Equal(t, merkle.CombinedHash(a, b), merkle.CombinedHash(b, a))
}

// TestPermutationIndependence checks that the root only depends on the set of
// leaves, not their order or multiplicity.
func TestPermutationIndependence(t *testing.T) {
	rng := pkgtest.Prng(t)
	for n := 1; n <= 9; n++ {
		leaves := randomLeaves(rng, n)
		tree, err := merkle.New(leaves)
		require.NoError(t, err)

		shuffled := append([]common.Hash(nil), leaves...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		shuffled = append(shuffled, leaves[0])
		other, err := merkle.New(shuffled)
		require.NoError(t, err)

		require.Equal(t, tree.Root(), other.Root(), "n=%d", n)
		require.Len(t, other.Leaves(), n)
	}
}

func TestProofs(t *testing.T) {
	rng := pkgtest.Prng(t)
	for n := 1; n <= 17; n++ {
		leaves := randomLeaves(rng, n)
		tree, err := merkle.New(leaves)
		require.NoError(t, err)

		for _, leaf := range leaves {
			proof, err := tree.Proof(leaf)
			require.NoError(t, err)
			require.True(t, merkle.Verify(tree.Root(), leaf, proof), "n=%d", n)
		}

		foreign := randomLeaves(rng, 1)[0]
		_, err = tree.Proof(foreign)
		require.ErrorIs(t, err, merkle.ErrLeafNotFound)
		require.False(t, merkle.Verify(tree.Root(), foreign, nil))
	}
}

func TestInputNotModified(t *testing.T) {
	rng := pkgtest.Prng(t)
	leaves := randomLeaves(rng, 5)
	orig := append([]common.Hash(nil), leaves...)
	_, err := merkle.New(leaves)
	require.NoError(t, err)
	require.Equal(t, orig, leaves)
}
