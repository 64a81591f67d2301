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
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"perun.network/perun-hub-backend/channel/types"
)

// The states are hashed by the contract with keccak256(abi.encodePacked(...)).
// Packed encoding pads array elements to full words, so everything after the
// leading raw addresses is the static ABI encoding of the remaining fields.

var (
	channelTail = abi.Arguments{
		{Type: mustType("address[2]")}, // user, recipient
		{Type: mustType("uint256[2]")}, // wei balances
		{Type: mustType("uint256[2]")}, // token balances
		{Type: mustType("uint256[4]")}, // pending wei
		{Type: mustType("uint256[4]")}, // pending token
		{Type: mustType("uint256[2]")}, // txCountGlobal, txCountChain
		{Type: mustType("bytes32")},    // threadRoot
		{Type: mustType("uint256")},    // threadCount
		{Type: mustType("uint256")},    // timeout
	}

	threadTail = abi.Arguments{
		{Type: mustType("uint256")}, // balanceWeiSender
		{Type: mustType("uint256")}, // balanceWeiReceiver
		{Type: mustType("uint256")}, // balanceTokenSender
		{Type: mustType("uint256")}, // balanceTokenReceiver
		{Type: mustType("uint256")}, // txCount
	}
)

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// EncodeChannelState returns the packed encoding of s as hashed by the
// channel manager contract.
func EncodeChannelState(s types.ChannelState) ([]byte, error) {
	for _, a := range s.Amounts() {
		if err := types.CheckAmount(a.Value); err != nil {
			return nil, errors.WithMessage(err, a.Name)
		}
	}

	tail, err := channelTail.Pack(
		[2]common.Address{s.User, s.Recipient},
		[2]*big.Int{s.BalanceWeiHub, s.BalanceWeiUser},
		[2]*big.Int{s.BalanceTokenHub, s.BalanceTokenUser},
		[4]*big.Int{
			s.PendingDepositWeiHub, s.PendingWithdrawalWeiHub,
			s.PendingDepositWeiUser, s.PendingWithdrawalWeiUser,
		},
		[4]*big.Int{
			s.PendingDepositTokenHub, s.PendingWithdrawalTokenHub,
			s.PendingDepositTokenUser, s.PendingWithdrawalTokenUser,
		},
		[2]*big.Int{u256(s.TxCountGlobal), u256(s.TxCountChain)},
		[32]byte(s.ThreadRoot),
		u256(s.ThreadCount),
		u256(s.Timeout),
	)
	if err != nil {
		return nil, errors.WithMessage(types.ErrEncoding, err.Error())
	}

	enc := make([]byte, 0, common.AddressLength+len(tail))
	enc = append(enc, s.ContractAddress.Bytes()...)
	return append(enc, tail...), nil
}

// HashChannelState returns the keccak256 fingerprint of s.
func HashChannelState(s types.ChannelState) (common.Hash, error) {
	enc, err := EncodeChannelState(s)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(enc), nil
}

// EncodeThreadState returns the packed encoding of t.
func EncodeThreadState(t types.ThreadState) ([]byte, error) {
	amounts := []types.NamedAmount{
		{Name: "balanceWeiSender", Value: t.BalanceWeiSender},
		{Name: "balanceWeiReceiver", Value: t.BalanceWeiReceiver},
		{Name: "balanceTokenSender", Value: t.BalanceTokenSender},
		{Name: "balanceTokenReceiver", Value: t.BalanceTokenReceiver},
	}
	for _, a := range amounts {
		if err := types.CheckAmount(a.Value); err != nil {
			return nil, errors.WithMessage(err, a.Name)
		}
	}

	tail, err := threadTail.Pack(
		t.BalanceWeiSender,
		t.BalanceWeiReceiver,
		t.BalanceTokenSender,
		t.BalanceTokenReceiver,
		u256(t.TxCount),
	)
	if err != nil {
		return nil, errors.WithMessage(types.ErrEncoding, err.Error())
	}

	enc := make([]byte, 0, 4*common.AddressLength+len(tail))
	for _, a := range []common.Address{t.ContractAddress, t.User, t.Sender, t.Receiver} {
		enc = append(enc, a.Bytes()...)
	}
	return append(enc, tail...), nil
}

// HashThreadState returns the keccak256 fingerprint of t.
func HashThreadState(t types.ThreadState) (common.Hash, error) {
	enc, err := EncodeThreadState(t)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(enc), nil
}

func u256(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}
