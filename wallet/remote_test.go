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

package wallet_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"
	pkgtest "polycry.pt/poly-go/test"

	"perun.network/perun-hub-backend/wallet"
	wtest "perun.network/perun-hub-backend/wallet/test"
)

// personalService emulates the personal namespace of a node that holds the
// key for one account.
type personalService struct {
	acc     *wallet.Account
	zeroV   bool
	calls   atomic.Int32
	release chan struct{}
}

func (s *personalService) Sign(data hexutil.Bytes, addr common.Address) (hexutil.Bytes, error) {
	s.calls.Add(1)
	if s.release != nil {
		<-s.release
	}
	sig, err := s.acc.SignHash(context.Background(), common.BytesToHash(data))
	if err != nil {
		return nil, err
	}
	if s.zeroV {
		sig[64] -= 27
	}
	return sig, nil
}

func newRemote(t *testing.T, svc *personalService, addr common.Address) *wallet.RemoteSigner {
	t.Helper()
	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("personal", svc))
	t.Cleanup(srv.Stop)
	r := wallet.NewRemoteSigner(rpc.DialInProc(srv), addr)
	t.Cleanup(r.Close)
	return r
}

func TestRemoteSigner(t *testing.T) {
	rng := pkgtest.Prng(t)
	acc := wtest.NewRandomAccount(rng)
	hash := crypto.Keccak256Hash([]byte("remote"))

	t.Run("valid", func(t *testing.T) {
		r := newRemote(t, &personalService{acc: acc, zeroV: true}, acc.Address())
		sig, err := r.SignHash(context.Background(), hash)
		require.NoError(t, err)
		require.NoError(t, wallet.VerifySignature(hash, sig, acc.Address()))
	})

	t.Run("wrong key", func(t *testing.T) {
		other := wtest.NewRandomAddress(rng)
		r := newRemote(t, &personalService{acc: acc}, other)
		_, err := r.SignHash(context.Background(), hash)
		require.ErrorIs(t, err, wallet.ErrSignerMismatch)
	})

	t.Run("busy", func(t *testing.T) {
		svc := &personalService{acc: acc, release: make(chan struct{})}
		r := newRemote(t, svc, acc.Address())

		done := make(chan error, 1)
		go func() {
			_, err := r.SignHash(context.Background(), hash)
			done <- err
		}()
		require.Eventually(t, func() bool { return svc.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := r.SignHash(ctx, hash)
		require.ErrorIs(t, err, context.DeadlineExceeded)

		close(svc.release)
		require.NoError(t, <-done)
	})
}
