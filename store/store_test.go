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

package store_test

import (
	"bytes"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	pkgtest "polycry.pt/poly-go/test"

	chtest "perun.network/perun-hub-backend/channel/test"
	"perun.network/perun-hub-backend/channel/types"
	"perun.network/perun-hub-backend/store"
	wtest "perun.network/perun-hub-backend/wallet/test"
)

func TestMemory(t *testing.T) {
	testStore(t, store.NewMemory())
}

func TestLevelDB(t *testing.T) {
	db, err := store.OpenLevelDB(filepath.Join(t.TempDir(), "hub"))
	require.NoError(t, err)
	testStore(t, db)
}

func TestLevelDBReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hub")
	db, err := store.OpenLevelDB(path)
	require.NoError(t, err)

	s := chtest.NewChannelState()
	u := types.ChannelUpdate{
		Reason: types.ReasonPayment,
		State:  types.SignedChannelState{ChannelState: s, SigUser: make([]byte, 65)},
		Status: types.StatusOpen,
	}
	require.NoError(t, db.PutChannelUpdate(s.User, u))
	require.NoError(t, db.Close())
	require.ErrorIs(t, db.Close(), store.ErrClosed)

	db, err = store.OpenLevelDB(path)
	require.NoError(t, err)
	defer db.Close()
	got, err := db.ChannelUpdate(s.User)
	require.NoError(t, err)
	require.Equal(t, u.Reason, got.Reason)
	require.Equal(t, u.Status, got.Status)
	require.Equal(t, 0, got.State.BalanceWeiHub.Cmp(s.BalanceWeiHub))
	require.Equal(t, u.State.SigUser, got.State.SigUser)
}

func testStore(t *testing.T, st store.Store) {
	t.Helper()
	defer st.Close()
	rng := pkgtest.Prng(t)

	user := wtest.NewRandomAddress(rng)
	_, err := st.ChannelUpdate(user)
	require.ErrorIs(t, err, store.ErrNotFound)

	s := chtest.NewRandomChannelState(rng, chtest.WithUser(user), chtest.WithTxCount(5, 1))
	u := types.ChannelUpdate{Reason: types.ReasonExchange, State: types.SignedChannelState{ChannelState: s}}
	require.NoError(t, st.PutChannelUpdate(user, u))

	got, err := st.ChannelUpdate(user)
	require.NoError(t, err)
	require.Equal(t, types.ReasonExchange, got.Reason)
	require.Equal(t, uint64(5), got.State.TxCountGlobal)

	// Stored values do not alias the caller's.
	got.State.BalanceWeiUser.Add(got.State.BalanceWeiUser, big.NewInt(1))
	again, err := st.ChannelUpdate(user)
	require.NoError(t, err)
	require.Equal(t, 0, again.State.BalanceWeiUser.Cmp(s.BalanceWeiUser))

	stale := types.ChannelUpdate{
		Reason: types.ReasonPayment,
		State:  types.SignedChannelState{ChannelState: chtest.NewRandomChannelState(rng, chtest.WithUser(user), chtest.WithTxCount(4, 1))},
	}
	require.NoError(t, st.PutChannelUpdate(user, stale))
	got, err = st.ChannelUpdate(user)
	require.NoError(t, err)
	require.Equal(t, uint64(5), got.State.TxCountGlobal, "older update must not replace a newer one")

	receivers := []common.Address{wtest.NewRandomAddress(rng), wtest.NewRandomAddress(rng)}
	for _, r := range receivers {
		th := chtest.NewRandomThreadState(rng, s.ContractAddress, user, r)
		require.NoError(t, st.PutThreadState(types.SignedThreadState{ThreadState: th}))
	}
	// Replacing a thread keeps one entry per receiver.
	th := chtest.NewRandomThreadState(rng, s.ContractAddress, user, receivers[0])
	th.TxCount = 3
	require.NoError(t, st.PutThreadState(types.SignedThreadState{ThreadState: th, SigA: []byte{1}}))

	threads, err := st.ThreadStates(user)
	require.NoError(t, err)
	require.Len(t, threads, 2)
	for _, th := range threads {
		if th.Receiver == receivers[0] {
			require.Equal(t, uint64(3), th.TxCount)
			require.Equal(t, []byte{1}, th.SigA)
		}
	}
	require.Negative(t, bytes.Compare(threads[0].Receiver[:], threads[1].Receiver[:]))

	none, err := st.ThreadStates(wtest.NewRandomAddress(rng))
	require.NoError(t, err)
	require.Empty(t, none)
}

