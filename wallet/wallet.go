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

package wallet

import (
	"io"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"polycry.pt/poly-go/sync"

	"perun.network/perun-hub-backend/wallet/types"
)

var (
	// ErrAccountNotFound is returned when unlocking an unknown address.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists is returned when adding an address twice.
	ErrAccountExists = errors.New("account already exists")
)

// EphemeralWallet is a wallet that stores signers in memory.
type EphemeralWallet struct {
	lock    sync.Mutex
	signers map[common.Address]Signer
}

// NewEphemeralWallet creates a new EphemeralWallet instance.
func NewEphemeralWallet() *EphemeralWallet {
	return &EphemeralWallet{
		signers: make(map[common.Address]Signer),
	}
}

// Unlock returns the signer associated with the given address.
func (e *EphemeralWallet) Unlock(addr common.Address) (Signer, error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	s, ok := e.signers[addr]
	if !ok {
		return nil, errors.WithMessage(ErrAccountNotFound, types.Format(addr))
	}
	return s, nil
}

// AddNewAccount generates a new account and adds it to the wallet.
func (e *EphemeralWallet) AddNewAccount(rng io.Reader) (*Account, error) {
	acc, err := NewRandomAccount(rng)
	if err != nil {
		return nil, err
	}
	return acc, e.AddAccount(acc)
}

// AddAccount adds the given account to the wallet.
func (e *EphemeralWallet) AddAccount(acc *Account) error {
	return e.AddSigner(acc)
}

// AddSigner adds an arbitrary signer, e.g. a RemoteSigner, to the wallet.
func (e *EphemeralWallet) AddSigner(s Signer) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	if _, ok := e.signers[s.Address()]; ok {
		return errors.WithMessage(ErrAccountExists, types.Format(s.Address()))
	}
	e.signers[s.Address()] = s
	return nil
}

// Addresses lists the addresses held by the wallet in ascending order.
func (e *EphemeralWallet) Addresses() []common.Address {
	e.lock.Lock()
	defer e.lock.Unlock()
	addrs := make([]common.Address, 0, len(e.signers))
	for a := range e.signers {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return types.Cmp(addrs[i], addrs[j]) < 0 })
	return addrs
}
