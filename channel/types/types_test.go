package types_test

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"perun.network/perun-hub-backend/channel/types"
)

func TestParseAmount(t *testing.T) {
	v, err := types.ParseAmount("1000000000000000000")
	require.NoError(t, err)
	require.Equal(t, "1000000000000000000", types.FormatAmount(v))

	maxWord := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	v, err = types.ParseAmount(maxWord.String())
	require.NoError(t, err)
	require.Equal(t, 0, maxWord.Cmp(v))

	for _, bad := range []string{"", "-1", "0x10", "1.5", "abc", new(big.Int).Add(maxWord, big.NewInt(1)).String(), strings.Repeat("9", 100)} {
		_, err := types.ParseAmount(bad)
		require.ErrorIs(t, err, types.ErrEncoding, bad)
	}
	require.Equal(t, "0", types.FormatAmount(nil))
}

func TestReason(t *testing.T) {
	for _, name := range []string{"Payment", "Exchange", "ProposePending", "ConfirmPending", "OpenThread", "CloseThread"} {
		r, err := types.ParseReason(name)
		require.NoError(t, err)
		require.Equal(t, name, r.String())

		text, err := r.MarshalText()
		require.NoError(t, err)
		var back types.Reason
		require.NoError(t, back.UnmarshalText(text))
		require.Equal(t, r, back)
	}
	_, err := types.ParseReason("payment")
	require.ErrorIs(t, err, types.ErrUnknownReason)
	_, err = types.Reason(9).MarshalText()
	require.ErrorIs(t, err, types.ErrUnknownReason)
}

// TestPendingFromState checks that each pending field lands in its own slot.
func TestPendingFromState(t *testing.T) {
	s := types.ChannelState{
		PendingDepositWeiHub:       big.NewInt(1),
		PendingDepositTokenHub:     big.NewInt(2),
		PendingWithdrawalWeiHub:    big.NewInt(3),
		PendingWithdrawalTokenHub:  big.NewInt(4),
		PendingDepositWeiUser:      big.NewInt(5),
		PendingDepositTokenUser:    big.NewInt(6),
		PendingWithdrawalWeiUser:   big.NewInt(7),
		PendingWithdrawalTokenUser: big.NewInt(8),
	}
	p := types.PendingFromState(s)
	require.True(t, types.NewBalances(1, 2).Equal(p.HubDeposit))
	require.True(t, types.NewBalances(3, 4).Equal(p.HubWithdrawal))
	require.True(t, types.NewBalances(5, 6).Equal(p.UserDeposit))
	require.True(t, types.NewBalances(7, 8).Equal(p.UserWithdrawal))
	require.False(t, p.IsZero())
	require.True(t, types.PendingFromState(types.ChannelState{}).IsZero())

	p.HubDeposit.Wei.SetInt64(100)
	require.Equal(t, int64(1), s.PendingDepositWeiHub.Int64())
}

func TestCloneIsDeep(t *testing.T) {
	s := types.SignedChannelState{
		ChannelState: types.ChannelState{BalanceWeiHub: big.NewInt(1), TxCountGlobal: 3},
		SigUser:      []byte{1, 2, 3},
	}
	c := s.Clone()
	c.BalanceWeiHub.SetInt64(2)
	c.SigUser[0] = 9
	require.Equal(t, int64(1), s.BalanceWeiHub.Int64())
	require.Equal(t, byte(1), s.SigUser[0])
	require.Nil(t, c.BalanceWeiUser)

	th := types.ThreadState{BalanceWeiSender: big.NewInt(5)}
	tc := th.Clone()
	tc.BalanceWeiSender.SetInt64(0)
	require.Equal(t, int64(5), th.BalanceWeiSender.Int64())
}

func TestChannelStatus(t *testing.T) {
	require.True(t, types.ChannelStatus("").IsOpen())
	require.True(t, types.StatusOpen.IsOpen())
	require.False(t, types.StatusChannelDispute.IsOpen())
	require.False(t, types.StatusThreadDispute.IsOpen())
}
