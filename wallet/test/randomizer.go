package test

import (
	"math/rand"

	"github.com/ethereum/go-ethereum/common"

	"perun.network/perun-hub-backend/wallet"
)

// NewRandomAccount creates an account from rng and panics on failure.
func NewRandomAccount(rng *rand.Rand) *wallet.Account {
	acc, err := wallet.NewRandomAccount(rng)
	if err != nil {
		panic(err)
	}
	return acc
}

// NewRandomAddress returns a random address without a known key.
func NewRandomAddress(rng *rand.Rand) common.Address {
	var a common.Address
	rng.Read(a[:])
	return a
}

// NewWallet creates an ephemeral wallet holding n random accounts.
func NewWallet(rng *rand.Rand, n int) (*wallet.EphemeralWallet, []*wallet.Account) {
	w := wallet.NewEphemeralWallet()
	accs := make([]*wallet.Account, n)
	for i := range accs {
		acc, err := w.AddNewAccount(rng)
		if err != nil {
			panic(err)
		}
		accs[i] = acc
	}
	return w, accs
}
