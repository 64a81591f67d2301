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
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"perun.network/perun-hub-backend/channel/types"
	"perun.network/perun-hub-backend/merkle"
)

// EmptyRoot is the thread root of a channel without open threads.
var EmptyRoot = common.Hash{}

// ThreadTree builds the Merkle tree over the initial states of the open
// threads. An odd number of states is padded with one EmptyRoot leaf.
func ThreadTree(initialStates []types.ThreadState) (*merkle.Tree, error) {
	leaves := make([]common.Hash, 0, len(initialStates)+1)
	for i, s := range initialStates {
		h, err := HashThreadState(s)
		if err != nil {
			return nil, errors.WithMessagef(err, "thread %d", i)
		}
		leaves = append(leaves, h)
	}
	if len(leaves)%2 != 0 {
		leaves = append(leaves, EmptyRoot)
	}
	return merkle.New(leaves)
}

// ThreadRoot returns the commitment to initialStates.
func ThreadRoot(initialStates []types.ThreadState) (common.Hash, error) {
	if len(initialStates) == 0 {
		return EmptyRoot, nil
	}
	tree, err := ThreadTree(initialStates)
	if err != nil {
		return common.Hash{}, err
	}
	return tree.Root(), nil
}

// ThreadProof returns the inclusion proof of thread in the format consumed by
// the contract: the leaf hash followed by the sibling hashes.
func ThreadProof(thread types.ThreadState, initialStates []types.ThreadState) ([]byte, error) {
	leaf, err := HashThreadState(thread)
	if err != nil {
		return nil, err
	}
	tree, err := ThreadTree(initialStates)
	if err != nil {
		return nil, err
	}
	siblings, err := tree.Proof(leaf)
	if err != nil {
		return nil, err
	}
	proof := make([]byte, 0, common.HashLength*(len(siblings)+1))
	proof = append(proof, leaf.Bytes()...)
	for _, s := range siblings {
		proof = append(proof, s.Bytes()...)
	}
	return proof, nil
}

func containsThread(states []types.ThreadState, t types.ThreadState) bool {
	for _, s := range states {
		if s.SameParties(t) {
			return true
		}
	}
	return false
}
