package test

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"perun.network/perun-hub-backend/channel/types"
)

// StateOpt overrides fields of a fixture channel state.
type StateOpt func(*types.ChannelState)

// MkAddress right-pads prefix with zeros to a full address.
func MkAddress(prefix string) common.Address {
	return common.HexToAddress(prefix + strings.Repeat("0", 42-len(prefix)))
}

// NewChannelState returns a fixture state with small distinct amounts in
// every field, then applies opts.
func NewChannelState(opts ...StateOpt) types.ChannelState {
	s := types.ChannelState{
		ContractAddress: MkAddress("0xCCC"),
		User:            MkAddress("0xAAA"),
		Recipient:       MkAddress("0x222"),

		BalanceWeiHub:    big.NewInt(1),
		BalanceWeiUser:   big.NewInt(2),
		BalanceTokenHub:  big.NewInt(3),
		BalanceTokenUser: big.NewInt(4),

		PendingDepositWeiHub:       big.NewInt(4),
		PendingDepositWeiUser:      big.NewInt(5),
		PendingDepositTokenHub:     big.NewInt(6),
		PendingDepositTokenUser:    big.NewInt(7),
		PendingWithdrawalWeiHub:    big.NewInt(8),
		PendingWithdrawalWeiUser:   big.NewInt(9),
		PendingWithdrawalTokenHub:  big.NewInt(10),
		PendingWithdrawalTokenUser: big.NewInt(11),

		TxCountGlobal: 1,
		TxCountChain:  1,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Next returns a copy of s with the global nonce incremented and opts applied.
func Next(s types.ChannelState, opts ...StateOpt) types.ChannelState {
	n := s.Clone()
	n.TxCountGlobal++
	for _, opt := range opts {
		opt(&n)
	}
	return n
}

func WithContract(a common.Address) StateOpt { return func(s *types.ChannelState) { s.ContractAddress = a } }

func WithUser(a common.Address) StateOpt { return func(s *types.ChannelState) { s.User = a } }

func WithRecipient(a common.Address) StateOpt { return func(s *types.ChannelState) { s.Recipient = a } }

// WithBalanceWei sets the hub and user wei balances.
func WithBalanceWei(hub, user int64) StateOpt {
	return func(s *types.ChannelState) {
		s.BalanceWeiHub, s.BalanceWeiUser = big.NewInt(hub), big.NewInt(user)
	}
}

// WithBalanceToken sets the hub and user token balances.
func WithBalanceToken(hub, user int64) StateOpt {
	return func(s *types.ChannelState) {
		s.BalanceTokenHub, s.BalanceTokenUser = big.NewInt(hub), big.NewInt(user)
	}
}

func WithPendingDepositWei(hub, user int64) StateOpt {
	return func(s *types.ChannelState) {
		s.PendingDepositWeiHub, s.PendingDepositWeiUser = big.NewInt(hub), big.NewInt(user)
	}
}

func WithPendingDepositToken(hub, user int64) StateOpt {
	return func(s *types.ChannelState) {
		s.PendingDepositTokenHub, s.PendingDepositTokenUser = big.NewInt(hub), big.NewInt(user)
	}
}

func WithPendingWithdrawalWei(hub, user int64) StateOpt {
	return func(s *types.ChannelState) {
		s.PendingWithdrawalWeiHub, s.PendingWithdrawalWeiUser = big.NewInt(hub), big.NewInt(user)
	}
}

func WithPendingWithdrawalToken(hub, user int64) StateOpt {
	return func(s *types.ChannelState) {
		s.PendingWithdrawalTokenHub, s.PendingWithdrawalTokenUser = big.NewInt(hub), big.NewInt(user)
	}
}

// WithNoPending clears all eight pending amounts.
func WithNoPending() StateOpt {
	return func(s *types.ChannelState) {
		WithPendingDepositWei(0, 0)(s)
		WithPendingDepositToken(0, 0)(s)
		WithPendingWithdrawalWei(0, 0)(s)
		WithPendingWithdrawalToken(0, 0)(s)
	}
}

// WithTxCount sets the global and chain nonce.
func WithTxCount(global, chain uint64) StateOpt {
	return func(s *types.ChannelState) { s.TxCountGlobal, s.TxCountChain = global, chain }
}

// WithThreads sets the thread commitment.
func WithThreads(root common.Hash, count uint64) StateOpt {
	return func(s *types.ChannelState) { s.ThreadRoot, s.ThreadCount = root, count }
}

func WithTimeout(timeout uint64) StateOpt { return func(s *types.ChannelState) { s.Timeout = timeout } }
