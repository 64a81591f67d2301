// Copyright 2024 PolyCrypt GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package test

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"perun.network/perun-hub-backend/channel"
	"perun.network/perun-hub-backend/channel/types"
	"perun.network/perun-hub-backend/wallet"
	"perun.network/perun-hub-backend/wire"
)

// ErrStaleTxCount is returned when a request references an outdated nonce.
var ErrStaleTxCount = errors.New("stale txCount")

// NotFoundError reports an unknown channel. It satisfies the IsNotFound
// convention of hub errors.
type NotFoundError struct{ User common.Address }

func (e NotFoundError) Error() string    { return fmt.Sprintf("channel of %s not found", e.User.Hex()) }
func (e NotFoundError) IsNotFound() bool { return true }

// Hub is an in-memory hub that co-signs every valid update it receives.
type Hub struct {
	account *wallet.Account

	// Collateral is the hub deposit proposed on RequestCollateral.
	Collateral types.Balances

	mu          sync.Mutex
	channels    map[common.Address]*hubChannel
	initial     map[common.Address][]types.ThreadState
	threads     map[common.Address][]types.SignedThreadState
	submissions [][]types.ChannelUpdate
	syncErrs    []error
	forger      *wallet.Account
}

type hubChannel struct {
	history  []types.ChannelUpdate
	proposed []types.ChannelUpdate
	status   types.ChannelStatus
}

// NewHub returns an empty hub signing with acc.
func NewHub(acc *wallet.Account) *Hub {
	return &Hub{
		account:    acc,
		Collateral: types.NewBalances(10, 10),
		channels:   make(map[common.Address]*hubChannel),
		initial:    make(map[common.Address][]types.ThreadState),
		threads:    make(map[common.Address][]types.SignedThreadState),
	}
}

// Address returns the hub's signing address.
func (h *Hub) Address() common.Address {
	return h.account.Address()
}

// OpenChannel registers s as the hub-signed latest state of its user's
// channel. If user is given, the state also carries its signature.
func (h *Hub) OpenChannel(s types.ChannelState, user ...wallet.Signer) (types.ChannelUpdate, error) {
	state := types.SignedChannelState{ChannelState: s.Clone()}
	for _, signer := range user {
		sig, err := channel.Backend.SignChannelState(context.Background(), signer, s)
		if err != nil {
			return types.ChannelUpdate{}, err
		}
		state.SigUser = sig
	}
	u, err := h.cosign(types.ChannelUpdate{Reason: types.ReasonConfirmPending, State: state})
	if err != nil {
		return types.ChannelUpdate{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.channels[s.User] = &hubChannel{history: []types.ChannelUpdate{u}, status: types.StatusOpen}
	return u, nil
}

// SetStatus sets the dispute status reported for the user's channel.
func (h *Hub) SetStatus(user common.Address, status types.ChannelStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.channels[user]; ok {
		ch.status = status
	}
}

// PutThread replaces the latest known state of a thread.
func (h *Hub) PutThread(t types.SignedThreadState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.putThread(t)
}

// Propose queues a hub-signed update on top of the user's latest state or
// queued proposal. Queued proposals are returned by Sync until they are
// submitted.
func (h *Hub) Propose(user common.Address, r types.Reason, metadata map[string]interface{}, apply ...func(*types.ChannelState)) (types.ChannelUpdate, error) {
	h.mu.Lock()
	ch, ok := h.channels[user]
	if !ok {
		h.mu.Unlock()
		return types.ChannelUpdate{}, NotFoundError{user}
	}
	head := ch.history[len(ch.history)-1].State.ChannelState
	if n := len(ch.proposed); n > 0 {
		head = ch.proposed[n-1].State.ChannelState
	}
	h.mu.Unlock()

	s := head.Clone()
	for _, f := range apply {
		f(&s)
	}
	s.TxCountGlobal++
	u, err := h.cosign(types.ChannelUpdate{Reason: r, State: types.SignedChannelState{ChannelState: s}, Metadata: metadata})
	if err != nil {
		return types.ChannelUpdate{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	ch.proposed = append(ch.proposed, cloneUpdate(u))
	return u, nil
}

// ForgeResponses makes Submit return updates signed by acc instead of the
// hub's account. The stored history stays correctly signed.
func (h *Hub) ForgeResponses(acc *wallet.Account) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.forger = acc
}

// FailSync makes the next len(errs) Sync calls fail with errs in order.
func (h *Hub) FailSync(errs ...error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.syncErrs = append(h.syncErrs, errs...)
}

// Submissions returns all batches passed to Submit.
func (h *Hub) Submissions() [][]types.ChannelUpdate {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][]types.ChannelUpdate(nil), h.submissions...)
}

func (h *Hub) GetChannel(_ context.Context, user common.Address) (types.ChannelUpdate, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.channels[user]
	if !ok {
		return types.ChannelUpdate{}, NotFoundError{user}
	}
	u := cloneUpdate(ch.history[len(ch.history)-1])
	u.Status = ch.status
	return u, nil
}

func (h *Hub) GetInitialThreadStates(_ context.Context, user common.Address) ([]types.ThreadState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	states := make([]types.ThreadState, len(h.initial[user]))
	for i, t := range h.initial[user] {
		states[i] = t.Clone()
	}
	return states, nil
}

func (h *Hub) GetThreads(_ context.Context, receiver common.Address) ([]types.SignedThreadState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	threads := make([]types.SignedThreadState, len(h.threads[receiver]))
	for i, t := range h.threads[receiver] {
		threads[i] = t.Clone()
	}
	return threads, nil
}

// Sync returns the history of the user's channel from txCount on.
func (h *Hub) Sync(_ context.Context, txCount uint64, user common.Address) ([]types.ChannelUpdate, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.syncErrs) > 0 {
		err := h.syncErrs[0]
		h.syncErrs = h.syncErrs[1:]
		return nil, err
	}
	ch, ok := h.channels[user]
	if !ok {
		return nil, NotFoundError{user}
	}
	var updates []types.ChannelUpdate
	for _, u := range append(ch.history[:len(ch.history):len(ch.history)], ch.proposed...) {
		if u.State.TxCountGlobal >= txCount {
			updates = append(updates, cloneUpdate(u))
		}
	}
	return updates, nil
}

func (h *Hub) RequestDeposit(_ context.Context, deposit types.Balances, txCount uint64, user common.Address) (types.ChannelUpdate, error) {
	return h.propose(user, txCount, types.ReasonProposePending, func(s *types.ChannelState) {
		s.PendingDepositWeiUser = new(big.Int).Set(deposit.Wei)
		s.PendingDepositTokenUser = new(big.Int).Set(deposit.Token)
	})
}

func (h *Hub) RequestWithdrawal(_ context.Context, withdrawal types.Balances, txCount uint64, user common.Address) (types.ChannelUpdate, error) {
	return h.propose(user, txCount, types.ReasonProposePending, func(s *types.ChannelState) {
		s.PendingWithdrawalWeiUser = new(big.Int).Set(withdrawal.Wei)
		s.PendingWithdrawalTokenUser = new(big.Int).Set(withdrawal.Token)
	})
}

// RequestExchange applies amount as signed per-party deltas. txCount is the
// nonce of the proposed state.
func (h *Hub) RequestExchange(_ context.Context, amount types.ExchangedBalances, _ string, txCount uint64, user common.Address) (types.ChannelUpdate, error) {
	if txCount == 0 {
		return types.ChannelUpdate{}, ErrStaleTxCount
	}
	return h.propose(user, txCount-1, types.ReasonExchange, func(s *types.ChannelState) {
		s.BalanceWeiHub = addDelta(s.BalanceWeiHub, amount.HubWei)
		s.BalanceTokenHub = addDelta(s.BalanceTokenHub, amount.HubToken)
		s.BalanceWeiUser = addDelta(s.BalanceWeiUser, amount.UserWei)
		s.BalanceTokenUser = addDelta(s.BalanceTokenUser, amount.UserToken)
	})
}

func (h *Hub) RequestCollateral(_ context.Context, txCount uint64, user common.Address) (types.ChannelUpdate, error) {
	return h.propose(user, txCount, types.ReasonProposePending, func(s *types.ChannelState) {
		s.PendingDepositWeiHub = new(big.Int).Set(h.Collateral.Wei)
		s.PendingDepositTokenHub = new(big.Int).Set(h.Collateral.Token)
	})
}

// Submit verifies the user's signature on every update, co-signs it and
// appends it to the channel history. Updates must extend the history by
// exactly one nonce each.
func (h *Hub) Submit(_ context.Context, _ uint64, updates []types.ChannelUpdate, user common.Address) (types.ChannelUpdate, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.submissions = append(h.submissions, updates)

	ch, ok := h.channels[user]
	if !ok {
		return types.ChannelUpdate{}, NotFoundError{user}
	}
	var last types.ChannelUpdate
	for i, u := range updates {
		head := ch.history[len(ch.history)-1].State
		if u.State.TxCountGlobal != head.TxCountGlobal+1 {
			return types.ChannelUpdate{}, errors.WithMessagef(ErrStaleTxCount, "update %d has txCountGlobal %d", i, u.State.TxCountGlobal)
		}
		if err := channel.Backend.VerifyChannelState(u.State.ChannelState, u.State.SigUser, user); err != nil {
			return types.ChannelUpdate{}, errors.WithMessagef(err, "update %d", i)
		}
		cosigned, err := h.cosign(u)
		if err != nil {
			return types.ChannelUpdate{}, err
		}
		if err := h.applyThread(user, cosigned); err != nil {
			return types.ChannelUpdate{}, err
		}
		ch.history = append(ch.history, cosigned)
		last = cosigned
	}

	proposed := ch.proposed[:0]
	for _, u := range ch.proposed {
		if u.State.TxCountGlobal > last.State.TxCountGlobal {
			proposed = append(proposed, u)
		}
	}
	ch.proposed = proposed

	if h.forger != nil && len(updates) > 0 {
		sig, err := channel.Backend.SignChannelState(context.Background(), h.forger, last.State.ChannelState)
		if err != nil {
			return types.ChannelUpdate{}, err
		}
		forged := cloneUpdate(last)
		forged.State.SigHub = sig
		return forged, nil
	}
	return cloneUpdate(last), nil
}

func (h *Hub) propose(user common.Address, txCount uint64, r types.Reason, apply func(*types.ChannelState)) (types.ChannelUpdate, error) {
	h.mu.Lock()
	ch, ok := h.channels[user]
	if !ok {
		h.mu.Unlock()
		return types.ChannelUpdate{}, NotFoundError{user}
	}
	head := ch.history[len(ch.history)-1].State.ChannelState
	h.mu.Unlock()

	if txCount != head.TxCountGlobal {
		return types.ChannelUpdate{}, errors.WithMessagef(ErrStaleTxCount, "got %d, latest is %d", txCount, head.TxCountGlobal)
	}
	s := head.Clone()
	apply(&s)
	s.TxCountGlobal++
	s.Timeout = 0
	return h.cosign(types.ChannelUpdate{Reason: r, State: types.SignedChannelState{ChannelState: s}})
}

// cosign returns a copy of u carrying the hub's signature.
func (h *Hub) cosign(u types.ChannelUpdate) (types.ChannelUpdate, error) {
	sig, err := channel.Backend.SignChannelState(context.Background(), h.account, u.State.ChannelState)
	if err != nil {
		return types.ChannelUpdate{}, err
	}
	c := cloneUpdate(u)
	c.State.SigHub = sig
	return c, nil
}

// applyThread tracks the threads opened and closed by u.
func (h *Hub) applyThread(user common.Address, u types.ChannelUpdate) error {
	if u.Reason != types.ReasonOpenThread && u.Reason != types.ReasonCloseThread {
		return nil
	}
	raw, ok := u.Metadata["threadState"]
	if !ok {
		return errors.New("thread update without thread state")
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	var w wire.ThreadState
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	t, err := wire.ToThreadState(w)
	if err != nil {
		return err
	}

	if u.Reason == types.ReasonOpenThread {
		h.initial[user] = append(h.initial[user], t.ThreadState.Clone())
		h.putThread(t)
		return nil
	}
	remaining := h.initial[user][:0]
	for _, it := range h.initial[user] {
		if !(it.User == t.User && it.Receiver == t.Receiver) {
			remaining = append(remaining, it)
		}
	}
	h.initial[user] = remaining
	threads := h.threads[t.Receiver][:0]
	for _, it := range h.threads[t.Receiver] {
		if it.User != t.User {
			threads = append(threads, it)
		}
	}
	h.threads[t.Receiver] = threads
	return nil
}

func (h *Hub) putThread(t types.SignedThreadState) {
	threads := h.threads[t.Receiver]
	for i, it := range threads {
		if it.User == t.User {
			threads[i] = t.Clone()
			return
		}
	}
	h.threads[t.Receiver] = append(threads, t.Clone())
}

func addDelta(v, delta *big.Int) *big.Int {
	if delta == nil {
		return new(big.Int).Set(v)
	}
	return new(big.Int).Add(v, delta)
}

func cloneUpdate(u types.ChannelUpdate) types.ChannelUpdate {
	c := u
	c.State = u.State.Clone()
	return c
}
