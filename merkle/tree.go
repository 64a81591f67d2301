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

// Package merkle implements the sorted-pair Merkle tree that commits the open
// threads of a channel. Leaves are deduplicated and sorted, inner nodes hash
// the lexicographically ordered concatenation of their children, so proofs
// carry no position bits.
package merkle

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

var (
	// ErrEmptyTree is returned when building a tree without leaves.
	ErrEmptyTree = errors.New("merkle tree needs at least one leaf")
	// ErrLeafNotFound is returned when a proof is requested for a foreign leaf.
	ErrLeafNotFound = errors.New("leaf not found in merkle tree")
)

// Tree is an immutable Merkle tree.
type Tree struct {
	leaves []common.Hash
	layers [][]common.Hash
}

// New builds the tree over leaves. The input slice is not modified.
func New(leaves []common.Hash) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyTree
	}
	sorted := dedup(leaves)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})

	layers := [][]common.Hash{sorted}
	for len(layers[len(layers)-1]) > 1 {
		layers = append(layers, nextLayer(layers[len(layers)-1]))
	}
	return &Tree{leaves: sorted, layers: layers}, nil
}

func dedup(leaves []common.Hash) []common.Hash {
	seen := make(map[common.Hash]struct{}, len(leaves))
	out := make([]common.Hash, 0, len(leaves))
	for _, l := range leaves {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

func nextLayer(layer []common.Hash) []common.Hash {
	next := make([]common.Hash, 0, (len(layer)+1)/2)
	for i := 0; i < len(layer); i += 2 {
		if i+1 == len(layer) {
			// Odd node is carried up unchanged.
			next = append(next, layer[i])
			continue
		}
		next = append(next, CombinedHash(layer[i], layer[i+1]))
	}
	return next
}

// CombinedHash hashes two nodes in ascending byte order.
func CombinedHash(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return crypto.Keccak256Hash(a[:], b[:])
}

// Root returns the root hash. A single-leaf tree has the leaf as root.
func (t *Tree) Root() common.Hash {
	return t.layers[len(t.layers)-1][0]
}

// Leaves returns the sorted, deduplicated leaves.
func (t *Tree) Leaves() []common.Hash {
	return append([]common.Hash(nil), t.leaves...)
}

// Proof returns the sibling hashes from leaf up to the root.
func (t *Tree) Proof(leaf common.Hash) ([]common.Hash, error) {
	idx := -1
	for i, l := range t.leaves {
		if l == leaf {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, errors.WithMessagef(ErrLeafNotFound, "leaf %s", leaf.Hex())
	}

	var proof []common.Hash
	for _, layer := range t.layers {
		if pair := idx ^ 1; pair < len(layer) {
			proof = append(proof, layer[pair])
		}
		idx /= 2
	}
	return proof, nil
}

// Verify folds proof onto leaf and compares the result with root.
func Verify(root, leaf common.Hash, proof []common.Hash) bool {
	h := leaf
	for _, p := range proof {
		h = CombinedHash(h, p)
	}
	return h == root
}
