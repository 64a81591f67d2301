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
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"perun.network/go-perun/log"
	"polycry.pt/poly-go/sync"
)

// RemoteSigner signs through a JSON-RPC endpoint implementing personal_sign,
// such as a node with an unlocked account or a signing service. Calls are
// serialized: the endpoint is acquired for the duration of one signature.
type RemoteSigner struct {
	client  *rpc.Client
	address common.Address
	lock    sync.Mutex
	log     log.Embedding
}

var _ Signer = (*RemoteSigner)(nil)

// DialRemoteSigner connects to the signing endpoint at url.
func DialRemoteSigner(ctx context.Context, url string, addr common.Address) (*RemoteSigner, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, errors.WithMessagef(err, "dialing signer %s", url)
	}
	return NewRemoteSigner(c, addr), nil
}

// NewRemoteSigner uses an existing RPC client.
func NewRemoteSigner(c *rpc.Client, addr common.Address) *RemoteSigner {
	return &RemoteSigner{
		client:  c,
		address: addr,
		log:     log.MakeEmbedding(log.WithField("signer", addr.Hex())),
	}
}

// Address returns the address the remote key belongs to.
func (r *RemoteSigner) Address() common.Address {
	return r.address
}

// SignHash asks the endpoint to sign hash. The endpoint applies the signed
// message prefix itself, the result is checked against the expected address.
func (r *RemoteSigner) SignHash(ctx context.Context, hash common.Hash) ([]byte, error) {
	if !r.lock.TryLockCtx(ctx) {
		return nil, errors.WithMessage(ctx.Err(), "acquiring remote signer")
	}
	defer r.lock.Unlock()

	var sig hexutil.Bytes
	if err := r.client.CallContext(ctx, &sig, "personal_sign", hexutil.Bytes(hash.Bytes()), r.address); err != nil {
		return nil, errors.WithMessage(err, "personal_sign")
	}
	if len(sig) != SignatureLength {
		return nil, errors.WithMessagef(ErrMalformedSignature, "remote returned %d bytes", len(sig))
	}
	if sig[crypto.RecoveryIDOffset] < 27 {
		sig[crypto.RecoveryIDOffset] += 27
	}
	if err := VerifySignature(hash, sig, r.address); err != nil {
		return nil, err
	}
	r.log.Log().Debugf("signed %s", hash.Hex())
	return sig, nil
}

// Close releases the underlying connection.
func (r *RemoteSigner) Close() {
	r.client.Close()
}
