package wire

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"perun.network/perun-hub-backend/channel/types"
	wtypes "perun.network/perun-hub-backend/wallet/types"
)

// ChannelState is the JSON representation of a signed channel state as
// exchanged with the hub.
type ChannelState struct {
	ContractAddress string `json:"contractAddress"`
	User            string `json:"user"`
	Recipient       string `json:"recipient"`

	BalanceWeiHub    string `json:"balanceWeiHub"`
	BalanceWeiUser   string `json:"balanceWeiUser"`
	BalanceTokenHub  string `json:"balanceTokenHub"`
	BalanceTokenUser string `json:"balanceTokenUser"`

	PendingDepositWeiHub       string `json:"pendingDepositWeiHub"`
	PendingDepositWeiUser      string `json:"pendingDepositWeiUser"`
	PendingDepositTokenHub     string `json:"pendingDepositTokenHub"`
	PendingDepositTokenUser    string `json:"pendingDepositTokenUser"`
	PendingWithdrawalWeiHub    string `json:"pendingWithdrawalWeiHub"`
	PendingWithdrawalWeiUser   string `json:"pendingWithdrawalWeiUser"`
	PendingWithdrawalTokenHub  string `json:"pendingWithdrawalTokenHub"`
	PendingWithdrawalTokenUser string `json:"pendingWithdrawalTokenUser"`

	TxCountGlobal Count  `json:"txCountGlobal"`
	TxCountChain  Count  `json:"txCountChain"`
	ThreadRoot    string `json:"threadRoot"`
	ThreadCount   Count  `json:"threadCount"`
	Timeout       Count  `json:"timeout"`

	SigUser string `json:"sigUser,omitempty"`
	SigHub  string `json:"sigHub,omitempty"`

	// Status is reported by the hub for the latest state of a channel.
	Status string `json:"status,omitempty"`
}

// MakeChannelState converts a signed channel state into its wire form.
func MakeChannelState(s types.SignedChannelState) ChannelState {
	return ChannelState{
		ContractAddress: wtypes.Format(s.ContractAddress),
		User:            wtypes.Format(s.User),
		Recipient:       wtypes.Format(s.Recipient),

		BalanceWeiHub:    types.FormatAmount(s.BalanceWeiHub),
		BalanceWeiUser:   types.FormatAmount(s.BalanceWeiUser),
		BalanceTokenHub:  types.FormatAmount(s.BalanceTokenHub),
		BalanceTokenUser: types.FormatAmount(s.BalanceTokenUser),

		PendingDepositWeiHub:       types.FormatAmount(s.PendingDepositWeiHub),
		PendingDepositWeiUser:      types.FormatAmount(s.PendingDepositWeiUser),
		PendingDepositTokenHub:     types.FormatAmount(s.PendingDepositTokenHub),
		PendingDepositTokenUser:    types.FormatAmount(s.PendingDepositTokenUser),
		PendingWithdrawalWeiHub:    types.FormatAmount(s.PendingWithdrawalWeiHub),
		PendingWithdrawalWeiUser:   types.FormatAmount(s.PendingWithdrawalWeiUser),
		PendingWithdrawalTokenHub:  types.FormatAmount(s.PendingWithdrawalTokenHub),
		PendingWithdrawalTokenUser: types.FormatAmount(s.PendingWithdrawalTokenUser),

		TxCountGlobal: Count(s.TxCountGlobal),
		TxCountChain:  Count(s.TxCountChain),
		ThreadRoot:    s.ThreadRoot.Hex(),
		ThreadCount:   Count(s.ThreadCount),
		Timeout:       Count(s.Timeout),

		SigUser: formatSig(s.SigUser),
		SigHub:  formatSig(s.SigHub),
	}
}

// ToChannelState parses the wire form. Every amount must be a decimal
// string and every address 0x-prefixed hex.
func ToChannelState(w ChannelState) (types.SignedChannelState, error) {
	var (
		s   types.SignedChannelState
		err error
	)
	addrs := []struct {
		name string
		in   string
		out  *common.Address
	}{
		{"contractAddress", w.ContractAddress, &s.ContractAddress},
		{"user", w.User, &s.User},
		{"recipient", w.Recipient, &s.Recipient},
	}
	for _, a := range addrs {
		if *a.out, err = wtypes.ParseAddress(a.in); err != nil {
			return types.SignedChannelState{}, errors.WithMessage(err, a.name)
		}
	}

	amounts := []struct {
		name string
		in   string
		out  **big.Int
	}{
		{"balanceWeiHub", w.BalanceWeiHub, &s.BalanceWeiHub},
		{"balanceWeiUser", w.BalanceWeiUser, &s.BalanceWeiUser},
		{"balanceTokenHub", w.BalanceTokenHub, &s.BalanceTokenHub},
		{"balanceTokenUser", w.BalanceTokenUser, &s.BalanceTokenUser},
		{"pendingDepositWeiHub", w.PendingDepositWeiHub, &s.PendingDepositWeiHub},
		{"pendingDepositWeiUser", w.PendingDepositWeiUser, &s.PendingDepositWeiUser},
		{"pendingDepositTokenHub", w.PendingDepositTokenHub, &s.PendingDepositTokenHub},
		{"pendingDepositTokenUser", w.PendingDepositTokenUser, &s.PendingDepositTokenUser},
		{"pendingWithdrawalWeiHub", w.PendingWithdrawalWeiHub, &s.PendingWithdrawalWeiHub},
		{"pendingWithdrawalWeiUser", w.PendingWithdrawalWeiUser, &s.PendingWithdrawalWeiUser},
		{"pendingWithdrawalTokenHub", w.PendingWithdrawalTokenHub, &s.PendingWithdrawalTokenHub},
		{"pendingWithdrawalTokenUser", w.PendingWithdrawalTokenUser, &s.PendingWithdrawalTokenUser},
	}
	for _, a := range amounts {
		if *a.out, err = parseAmount(a.name, a.in); err != nil {
			return types.SignedChannelState{}, err
		}
	}

	if s.ThreadRoot, err = parseHash("threadRoot", w.ThreadRoot); err != nil {
		return types.SignedChannelState{}, err
	}
	s.TxCountGlobal = uint64(w.TxCountGlobal)
	s.TxCountChain = uint64(w.TxCountChain)
	s.ThreadCount = uint64(w.ThreadCount)
	s.Timeout = uint64(w.Timeout)

	if s.SigUser, err = parseSig("sigUser", w.SigUser); err != nil {
		return types.SignedChannelState{}, err
	}
	if s.SigHub, err = parseSig("sigHub", w.SigHub); err != nil {
		return types.SignedChannelState{}, err
	}
	return s, nil
}

// UnmarshalChannelState decodes a JSON channel state.
func UnmarshalChannelState(data []byte) (types.SignedChannelState, error) {
	var w ChannelState
	if err := json.Unmarshal(data, &w); err != nil {
		return types.SignedChannelState{}, errors.WithMessage(types.ErrEncoding, err.Error())
	}
	return ToChannelState(w)
}
