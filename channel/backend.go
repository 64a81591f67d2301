// Copyright 2024 PolyCrypt GmbH
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
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"perun.network/perun-hub-backend/channel/types"
	"perun.network/perun-hub-backend/wallet"
)

type backend struct{}

// Backend signs and verifies channel and thread states.
var Backend = backend{}

func (b backend) SignChannelState(ctx context.Context, signer wallet.Signer, s types.ChannelState) ([]byte, error) {
	hash, err := HashChannelState(s)
	if err != nil {
		return nil, err
	}
	return signer.SignHash(ctx, hash)
}

func (b backend) RecoverChannelSigner(s types.ChannelState, sig []byte) (common.Address, error) {
	hash, err := HashChannelState(s)
	if err != nil {
		return common.Address{}, err
	}
	return wallet.RecoverSigner(hash, sig)
}

func (b backend) VerifyChannelState(s types.ChannelState, sig []byte, addr common.Address) error {
	hash, err := HashChannelState(s)
	if err != nil {
		return err
	}
	return wallet.VerifySignature(hash, sig, addr)
}

func (b backend) SignThreadState(ctx context.Context, signer wallet.Signer, t types.ThreadState) ([]byte, error) {
	hash, err := HashThreadState(t)
	if err != nil {
		return nil, err
	}
	return signer.SignHash(ctx, hash)
}

func (b backend) RecoverThreadSigner(t types.ThreadState, sig []byte) (common.Address, error) {
	hash, err := HashThreadState(t)
	if err != nil {
		return common.Address{}, err
	}
	return wallet.RecoverSigner(hash, sig)
}

func (b backend) VerifyThreadState(t types.ThreadState, sig []byte, addr common.Address) error {
	hash, err := HashThreadState(t)
	if err != nil {
		return err
	}
	return wallet.VerifySignature(hash, sig, addr)
}

// VerifyCosigned checks that s carries the user's and the hub's signature.
func (b backend) VerifyCosigned(s types.SignedChannelState, hub common.Address) error {
	if len(s.SigUser) == 0 {
		return errors.WithMessage(wallet.ErrMalformedSignature, "missing user signature")
	}
	if len(s.SigHub) == 0 {
		return errors.WithMessage(wallet.ErrMalformedSignature, "missing hub signature")
	}
	hash, err := HashChannelState(s.ChannelState)
	if err != nil {
		return err
	}
	if err := wallet.VerifySignature(hash, s.SigUser, s.User); err != nil {
		return errors.WithMessage(err, "user signature")
	}
	if err := wallet.VerifySignature(hash, s.SigHub, hub); err != nil {
		return errors.WithMessage(err, "hub signature")
	}
	return nil
}
