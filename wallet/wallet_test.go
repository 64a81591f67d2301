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
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	pkgtest "polycry.pt/poly-go/test"

	"perun.network/perun-hub-backend/wallet"
	wtest "perun.network/perun-hub-backend/wallet/test"
)

// TestEphemeralWallet tests the ephemeral wallet implementation.
func TestEphemeralWallet(t *testing.T) {
	rng := pkgtest.Prng(t)
	w := wallet.NewEphemeralWallet()

	acc, err := w.AddNewAccount(rng)
	require.NoError(t, err)
	require.ErrorIs(t, w.AddAccount(acc), wallet.ErrAccountExists)

	signer, err := w.Unlock(acc.Address())
	require.NoError(t, err)
	require.Equal(t, acc.Address(), signer.Address())

	_, err = w.Unlock(wtest.NewRandomAddress(rng))
	require.ErrorIs(t, err, wallet.ErrAccountNotFound)

	hash := crypto.Keccak256Hash([]byte("hello world"))
	sig, err := signer.SignHash(context.Background(), hash)
	require.NoError(t, err)
	require.Len(t, sig, wallet.SignatureLength)
	require.Contains(t, []byte{27, 28}, sig[64])

	require.NoError(t, wallet.VerifySignature(hash, sig, acc.Address()))
	require.Equal(t, []common.Address{acc.Address()}, w.Addresses())
}

// TestRecoverSigner checks that malformed signatures and wrong signers are
// reported as distinct errors.
func TestRecoverSigner(t *testing.T) {
	rng := pkgtest.Prng(t)
	alice := wtest.NewRandomAccount(rng)
	bob := wtest.NewRandomAccount(rng)
	hash := crypto.Keccak256Hash([]byte("state"))

	sig, err := alice.SignHash(context.Background(), hash)
	require.NoError(t, err)

	signer, err := wallet.RecoverSigner(hash, sig)
	require.NoError(t, err)
	require.Equal(t, alice.Address(), signer)

	err = wallet.VerifySignature(hash, sig, bob.Address())
	require.ErrorIs(t, err, wallet.ErrSignerMismatch)
	require.NotErrorIs(t, err, wallet.ErrMalformedSignature)

	_, err = wallet.RecoverSigner(hash, sig[:64])
	require.ErrorIs(t, err, wallet.ErrMalformedSignature)

	badV := common.CopyBytes(sig)
	badV[64] = 5
	_, err = wallet.RecoverSigner(hash, badV)
	require.ErrorIs(t, err, wallet.ErrMalformedSignature)

	zero := make([]byte, wallet.SignatureLength)
	zero[64] = 27
	_, err = wallet.RecoverSigner(hash, zero)
	require.ErrorIs(t, err, wallet.ErrMalformedSignature)

	decoded, err := wallet.DecodeSig(hexutil.Encode(sig))
	require.NoError(t, err)
	require.Equal(t, sig, decoded)
	_, err = wallet.DecodeSig("0x1234")
	require.ErrorIs(t, err, wallet.ErrMalformedSignature)
}

// TestMessageHash pins the signed-message prefix.
func TestMessageHash(t *testing.T) {
	hash := crypto.Keccak256Hash([]byte("fingerprint"))
	want := crypto.Keccak256Hash([]byte("\x19Ethereum Signed Message:\n32"), hash.Bytes())
	require.Equal(t, want, wallet.MessageHash(hash))
}

func TestAccountDeterministic(t *testing.T) {
	a := wtest.NewRandomAccount(rand.New(rand.NewSource(7)))
	b := wtest.NewRandomAccount(rand.New(rand.NewSource(7)))
	require.Equal(t, a.Address(), b.Address())
}

func TestAccountKeyFile(t *testing.T) {
	rng := pkgtest.Prng(t)
	acc := wtest.NewRandomAccount(rng)
	path := filepath.Join(t.TempDir(), "key")
	require.NoError(t, acc.SaveKey(path))

	loaded, err := wallet.LoadAccount(path)
	require.NoError(t, err)
	require.Equal(t, acc.Address(), loaded.Address())
}
