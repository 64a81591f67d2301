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

package wire

import (
	"github.com/pkg/errors"

	"perun.network/perun-hub-backend/channel/types"
)

// ChannelUpdate is the unit exchanged with the hub.
type ChannelUpdate struct {
	Reason   types.Reason           `json:"reason"`
	State    ChannelState           `json:"state"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// MakeChannelUpdate converts u to its wire form. The channel status travels
// inside the state.
func MakeChannelUpdate(u types.ChannelUpdate) ChannelUpdate {
	state := MakeChannelState(u.State)
	state.Status = string(u.Status)
	return ChannelUpdate{Reason: u.Reason, State: state, Metadata: u.Metadata}
}

// ToChannelUpdate decodes w. It fails with types.ErrEncoding on malformed
// amounts, addresses or signatures.
func ToChannelUpdate(w ChannelUpdate) (types.ChannelUpdate, error) {
	state, err := ToChannelState(w.State)
	if err != nil {
		return types.ChannelUpdate{}, errors.WithMessage(err, "state")
	}
	return types.ChannelUpdate{
		Reason:   w.Reason,
		State:    state,
		Metadata: w.Metadata,
		Status:   types.ChannelStatus(w.State.Status),
	}, nil
}

// MakeChannelUpdates converts a batch of updates, keeping their order.
func MakeChannelUpdates(us []types.ChannelUpdate) []ChannelUpdate {
	out := make([]ChannelUpdate, len(us))
	for i, u := range us {
		out[i] = MakeChannelUpdate(u)
	}
	return out
}

// ToChannelUpdates decodes a batch of updates. The error names the index of
// the first malformed one.
func ToChannelUpdates(ws []ChannelUpdate) ([]types.ChannelUpdate, error) {
	out := make([]types.ChannelUpdate, len(ws))
	for i, w := range ws {
		u, err := ToChannelUpdate(w)
		if err != nil {
			return nil, errors.WithMessagef(err, "update %d", i)
		}
		out[i] = u
	}
	return out, nil
}

type (
	// DepositRequest is posted to request-deposit and request-withdrawal.
	DepositRequest struct {
		WeiDeposit   string `json:"weiDeposit"`
		TokenDeposit string `json:"tokenDeposit"`
		TxCount      Count  `json:"txCount"`
	}

	// ExchangedBalances is the flattened exchange amount.
	ExchangedBalances struct {
		HubWei    string `json:"hubWei"`
		HubToken  string `json:"hubToken"`
		UserWei   string `json:"userWei"`
		UserToken string `json:"userToken"`
	}

	ExchangeRequest struct {
		DesiredCurrency string            `json:"desiredCurrency"`
		ExchangeAmount  ExchangedBalances `json:"exchangeAmount"`
		TxCount         Count             `json:"txCount"`
	}

	// TxCountRequest is the body of sync and request-collateralization.
	TxCountRequest struct {
		TxCount Count `json:"txCount"`
	}

	UpdateRequest struct {
		TxCount Count           `json:"txCount"`
		Updates []ChannelUpdate `json:"updates"`
	}
)

// MakeDepositRequest builds the body of request-deposit and
// request-withdrawal for the state with the given global txCount.
func MakeDepositRequest(b types.Balances, txCount uint64) DepositRequest {
	return DepositRequest{
		WeiDeposit:   types.FormatAmount(b.Wei),
		TokenDeposit: types.FormatAmount(b.Token),
		TxCount:      Count(txCount),
	}
}

// ToBalances parses the requested amounts.
func (r DepositRequest) ToBalances() (types.Balances, error) {
	wei, err := parseAmount("weiDeposit", r.WeiDeposit)
	if err != nil {
		return types.Balances{}, err
	}
	token, err := parseAmount("tokenDeposit", r.TokenDeposit)
	if err != nil {
		return types.Balances{}, err
	}
	return types.Balances{Wei: wei, Token: token}, nil
}

// MakeExchangedBalances flattens e into decimal strings.
func MakeExchangedBalances(e types.ExchangedBalances) ExchangedBalances {
	return ExchangedBalances{
		HubWei:    types.FormatAmount(e.HubWei),
		HubToken:  types.FormatAmount(e.HubToken),
		UserWei:   types.FormatAmount(e.UserWei),
		UserToken: types.FormatAmount(e.UserToken),
	}
}

// ToExchangedBalances parses the amounts. Exchange amounts are signed.
func ToExchangedBalances(w ExchangedBalances) (types.ExchangedBalances, error) {
	var e types.ExchangedBalances
	var err error
	if e.HubWei, err = parseDelta("hubWei", w.HubWei); err != nil {
		return types.ExchangedBalances{}, err
	}
	if e.HubToken, err = parseDelta("hubToken", w.HubToken); err != nil {
		return types.ExchangedBalances{}, err
	}
	if e.UserWei, err = parseDelta("userWei", w.UserWei); err != nil {
		return types.ExchangedBalances{}, err
	}
	if e.UserToken, err = parseDelta("userToken", w.UserToken); err != nil {
		return types.ExchangedBalances{}, err
	}
	return e, nil
}
