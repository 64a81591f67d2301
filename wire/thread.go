package wire

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"perun.network/perun-hub-backend/channel/types"
	wtypes "perun.network/perun-hub-backend/wallet/types"
)

// ThreadState is the JSON representation of a signed thread state.
type ThreadState struct {
	ContractAddress      string `json:"contractAddress"`
	User                 string `json:"user"`
	Sender               string `json:"sender"`
	Receiver             string `json:"receiver"`
	BalanceWeiSender     string `json:"balanceWeiSender"`
	BalanceWeiReceiver   string `json:"balanceWeiReceiver"`
	BalanceTokenSender   string `json:"balanceTokenSender"`
	BalanceTokenReceiver string `json:"balanceTokenReceiver"`
	TxCount              Count  `json:"txCount"`
	SigA                 string `json:"sigA,omitempty"`
}

func MakeThreadState(t types.SignedThreadState) ThreadState {
	return ThreadState{
		ContractAddress:      wtypes.Format(t.ContractAddress),
		User:                 wtypes.Format(t.User),
		Sender:               wtypes.Format(t.Sender),
		Receiver:             wtypes.Format(t.Receiver),
		BalanceWeiSender:     types.FormatAmount(t.BalanceWeiSender),
		BalanceWeiReceiver:   types.FormatAmount(t.BalanceWeiReceiver),
		BalanceTokenSender:   types.FormatAmount(t.BalanceTokenSender),
		BalanceTokenReceiver: types.FormatAmount(t.BalanceTokenReceiver),
		TxCount:              Count(t.TxCount),
		SigA:                 formatSig(t.SigA),
	}
}

func ToThreadState(w ThreadState) (types.SignedThreadState, error) {
	var (
		t   types.SignedThreadState
		err error
	)
	addrs := []struct {
		name string
		in   string
		out  *common.Address
	}{
		{"contractAddress", w.ContractAddress, &t.ContractAddress},
		{"user", w.User, &t.User},
		{"sender", w.Sender, &t.Sender},
		{"receiver", w.Receiver, &t.Receiver},
	}
	for _, a := range addrs {
		if *a.out, err = wtypes.ParseAddress(a.in); err != nil {
			return types.SignedThreadState{}, errors.WithMessage(err, a.name)
		}
	}
	amounts := []struct {
		name string
		in   string
		out  **big.Int
	}{
		{"balanceWeiSender", w.BalanceWeiSender, &t.BalanceWeiSender},
		{"balanceWeiReceiver", w.BalanceWeiReceiver, &t.BalanceWeiReceiver},
		{"balanceTokenSender", w.BalanceTokenSender, &t.BalanceTokenSender},
		{"balanceTokenReceiver", w.BalanceTokenReceiver, &t.BalanceTokenReceiver},
	}
	for _, a := range amounts {
		if *a.out, err = parseAmount(a.name, a.in); err != nil {
			return types.SignedThreadState{}, err
		}
	}
	t.TxCount = uint64(w.TxCount)
	if t.SigA, err = parseSig("sigA", w.SigA); err != nil {
		return types.SignedThreadState{}, err
	}
	return t, nil
}

// ToThreadStates converts a list of wire thread states.
func ToThreadStates(ws []ThreadState) ([]types.SignedThreadState, error) {
	out := make([]types.SignedThreadState, len(ws))
	for i, w := range ws {
		t, err := ToThreadState(w)
		if err != nil {
			return nil, errors.WithMessagef(err, "thread %d", i)
		}
		out[i] = t
	}
	return out, nil
}
