package util_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"perun.network/perun-hub-backend/util"
)

func TestKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "user")
	acc, err := util.GenerateKeyFile(path)
	require.NoError(t, err)

	_, err = util.GenerateKeyFile(path)
	require.ErrorIs(t, err, util.ErrKeyExists)

	w, release, err := util.OpenKeystore(context.Background(), path, "", common.Address{})
	require.NoError(t, err)
	defer release()
	require.Equal(t, []common.Address{acc.Address()}, w.Addresses())
	s, err := w.Unlock(acc.Address())
	require.NoError(t, err)
	require.Equal(t, acc.Address(), s.Address())
}

func TestOpenKeystoreErrors(t *testing.T) {
	ctx := context.Background()
	_, _, err := util.OpenKeystore(ctx, "", "http://localhost:8545", common.Address{})
	require.ErrorIs(t, err, util.ErrNoSignerAddress)

	_, _, err = util.OpenKeystore(ctx, filepath.Join(t.TempDir(), "missing"), "", common.Address{})
	require.Error(t, err)
}
