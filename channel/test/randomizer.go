package test

import (
	"math/big"
	"math/rand"

	"github.com/ethereum/go-ethereum/common"

	"perun.network/perun-hub-backend/channel/types"
)

const maxRandomAmount = 1_000_000

// NewRandomChannelState returns a state with random parties and balances and
// no pending operations or threads.
func NewRandomChannelState(rng *rand.Rand, opts ...StateOpt) types.ChannelState {
	s := types.ChannelState{
		ContractAddress:  randomAddress(rng),
		User:             randomAddress(rng),
		Recipient:        randomAddress(rng),
		BalanceWeiHub:    randomAmount(rng),
		BalanceWeiUser:   randomAmount(rng),
		BalanceTokenHub:  randomAmount(rng),
		BalanceTokenUser: randomAmount(rng),
		TxCountGlobal:    uint64(rng.Intn(100)),
	}
	s.TxCountChain = uint64(rng.Intn(int(s.TxCountGlobal) + 1))
	WithNoPending()(&s)
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// NewRandomThreadState returns an initial thread state between user and
// receiver in the channel manager at contract.
func NewRandomThreadState(rng *rand.Rand, contract, user, receiver common.Address) types.ThreadState {
	return types.ThreadState{
		ContractAddress:      contract,
		User:                 user,
		Sender:               user,
		Receiver:             receiver,
		BalanceWeiSender:     randomAmount(rng),
		BalanceWeiReceiver:   new(big.Int),
		BalanceTokenSender:   randomAmount(rng),
		BalanceTokenReceiver: new(big.Int),
	}
}

// NewRandomThreadStates returns n initial thread states of random users
// towards receiver.
func NewRandomThreadStates(rng *rand.Rand, contract, receiver common.Address, n int) []types.ThreadState {
	states := make([]types.ThreadState, n)
	for i := range states {
		states[i] = NewRandomThreadState(rng, contract, randomAddress(rng), receiver)
	}
	return states
}

func randomAddress(rng *rand.Rand) common.Address {
	var a common.Address
	rng.Read(a[:])
	return a
}

func randomAmount(rng *rand.Rand) *big.Int {
	return big.NewInt(rng.Int63n(maxRandomAmount))
}
