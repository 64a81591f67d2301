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

package payment

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"perun.network/perun-hub-backend/channel"
	"perun.network/perun-hub-backend/channel/types"
	"perun.network/perun-hub-backend/wallet"
	"perun.network/perun-hub-backend/wire"
)

// OpenedThread is the result of opening a thread: the sender-signed initial
// thread state and the user-signed channel update that locks its funds.
type OpenedThread struct {
	Thread types.SignedThreadState
	Update types.ChannelUpdate
}

// OpenThread locks balance from the user's channel into a new thread towards
// receiver.
func (c *Client) OpenThread(ctx context.Context, receiver common.Address, balance types.Balances, user common.Address) (OpenedThread, error) {
	if err := balance.Check(); err != nil {
		return OpenedThread{}, errors.WithMessage(err, "thread balance")
	}
	user, signer, release, err := c.begin(ctx, user)
	if err != nil {
		return OpenedThread{}, err
	}
	defer release()

	var (
		latest  types.ChannelUpdate
		initial []types.ThreadState
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		latest, err = c.latest(gctx, user)
		return err
	})
	g.Go(func() (err error) {
		initial, err = c.hub.GetInitialThreadStates(gctx, user)
		return errors.WithMessage(err, "fetching initial thread states")
	})
	if err := g.Wait(); err != nil {
		return OpenedThread{}, err
	}

	prev := latest.State.ChannelState
	if prev.BalanceWeiUser.Cmp(balance.Wei) < 0 || prev.BalanceTokenUser.Cmp(balance.Token) < 0 {
		return OpenedThread{}, errors.WithMessagef(ErrInsufficientBalance,
			"locking %s wei and %s tokens", balance.Wei, balance.Token)
	}

	thread := types.ThreadState{
		ContractAddress:      prev.ContractAddress,
		User:                 user,
		Sender:               user,
		Receiver:             receiver,
		BalanceWeiSender:     new(big.Int).Set(balance.Wei),
		BalanceWeiReceiver:   new(big.Int),
		BalanceTokenSender:   new(big.Int).Set(balance.Token),
		BalanceTokenReceiver: new(big.Int),
	}
	if rej := channel.ValidateThreadOpen(thread); rej != nil {
		return OpenedThread{}, c.rejected(rej)
	}
	signedThread, err := c.signThread(ctx, signer, thread)
	if err != nil {
		return OpenedThread{}, err
	}

	states := make([]types.ThreadState, 0, len(initial)+1)
	states = append(append(states, initial...), thread)
	root, err := channel.ThreadRoot(states)
	if err != nil {
		return OpenedThread{}, err
	}

	cur := prev.Clone()
	cur.BalanceWeiUser = new(big.Int).Sub(prev.BalanceWeiUser, balance.Wei)
	cur.BalanceTokenUser = new(big.Int).Sub(prev.BalanceTokenUser, balance.Token)
	cur.ThreadRoot = root
	cur.ThreadCount = prev.ThreadCount + 1
	cur.TxCountGlobal = prev.TxCountGlobal + 1
	cur.Timeout = 0

	t := channel.OpenThreadTransition{Thread: thread, InitialStates: states}
	if err := c.validate(prev, cur, t); err != nil {
		return OpenedThread{}, err
	}
	update, err := c.sign(ctx, signer, types.ChannelUpdate{
		Reason:   types.ReasonOpenThread,
		State:    types.SignedChannelState{ChannelState: cur},
		Metadata: map[string]interface{}{MetadataThreadState: wire.MakeThreadState(signedThread)},
	})
	if err != nil {
		return OpenedThread{}, err
	}
	c.recordCosigned(user, update)
	c.recordThread(signedThread)
	return OpenedThread{Thread: signedThread, Update: update}, nil
}

// CloseThread settles the latest state of the thread between user and
// receiver back into the user's channel. closer is the party that initiated
// the close.
func (c *Client) CloseThread(ctx context.Context, receiver, user, closer common.Address) (types.ChannelUpdate, error) {
	user, signer, release, err := c.begin(ctx, user)
	if err != nil {
		return types.ChannelUpdate{}, err
	}
	defer release()

	var (
		thread  types.SignedThreadState
		latest  types.ChannelUpdate
		initial []types.ThreadState
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		thread, err = c.threadByParties(gctx, receiver, user)
		return err
	})
	g.Go(func() (err error) {
		latest, err = c.latest(gctx, user)
		return err
	})
	g.Go(func() (err error) {
		initial, err = c.hub.GetInitialThreadStates(gctx, user)
		return errors.WithMessage(err, "fetching initial thread states")
	})
	if err := g.Wait(); err != nil {
		return types.ChannelUpdate{}, err
	}
	if len(thread.SigA) != 0 {
		if err := channel.Backend.VerifyThreadState(thread.ThreadState, thread.SigA, thread.Sender); err != nil {
			return types.ChannelUpdate{}, errors.WithMessage(err, "latest thread state")
		}
	}

	prev := latest.State.ChannelState
	hubGets, userGets := thread.ReceiverBalances(), thread.SenderBalances()
	if closer == receiver {
		hubGets, userGets = userGets, hubGets
	}
	cur := prev.Clone()
	cur.BalanceWeiHub = new(big.Int).Add(prev.BalanceWeiHub, hubGets.Wei)
	cur.BalanceTokenHub = new(big.Int).Add(prev.BalanceTokenHub, hubGets.Token)
	cur.BalanceWeiUser = new(big.Int).Add(prev.BalanceWeiUser, userGets.Wei)
	cur.BalanceTokenUser = new(big.Int).Add(prev.BalanceTokenUser, userGets.Token)

	remaining := make([]types.ThreadState, 0, len(initial))
	for _, t := range initial {
		if t.User == user && t.Receiver == receiver {
			continue
		}
		remaining = append(remaining, t)
	}
	if cur.ThreadRoot, err = channel.ThreadRoot(remaining); err != nil {
		return types.ChannelUpdate{}, err
	}
	if prev.ThreadCount > 0 {
		cur.ThreadCount = prev.ThreadCount - 1
	}
	cur.TxCountGlobal = prev.TxCountGlobal + 1
	cur.Timeout = 0

	t := channel.CloseThreadTransition{Thread: thread.ThreadState, InitialStates: remaining}
	if err := c.validate(prev, cur, t); err != nil {
		return types.ChannelUpdate{}, err
	}
	update, err := c.sign(ctx, signer, types.ChannelUpdate{
		Reason:   types.ReasonCloseThread,
		State:    types.SignedChannelState{ChannelState: cur},
		Metadata: map[string]interface{}{MetadataThreadState: wire.MakeThreadState(thread)},
	})
	if err != nil {
		return types.ChannelUpdate{}, err
	}
	c.recordCosigned(user, update)
	return update, nil
}

// ThreadPayment moves payment from the user to receiver within their thread
// and returns the new sender-signed thread state.
func (c *Client) ThreadPayment(ctx context.Context, payment types.Balances, receiver, user common.Address) (types.SignedThreadState, error) {
	if err := payment.Check(); err != nil {
		return types.SignedThreadState{}, errors.WithMessage(err, "payment")
	}
	user, signer, release, err := c.begin(ctx, user)
	if err != nil {
		return types.SignedThreadState{}, err
	}
	defer release()

	prev, err := c.threadByParties(ctx, receiver, user)
	if err != nil {
		return types.SignedThreadState{}, err
	}
	cur := types.ThreadState{
		ContractAddress:      prev.ContractAddress,
		User:                 prev.User,
		Sender:               prev.Sender,
		Receiver:             prev.Receiver,
		BalanceWeiSender:     new(big.Int).Sub(prev.BalanceWeiSender, payment.Wei),
		BalanceWeiReceiver:   new(big.Int).Add(prev.BalanceWeiReceiver, payment.Wei),
		BalanceTokenSender:   new(big.Int).Sub(prev.BalanceTokenSender, payment.Token),
		BalanceTokenReceiver: new(big.Int).Add(prev.BalanceTokenReceiver, payment.Token),
		TxCount:              prev.TxCount + 1,
	}
	if rej := channel.ValidateThreadPayment(prev.ThreadState, cur); rej != nil {
		return types.SignedThreadState{}, c.rejected(rej)
	}
	signed, err := c.signThread(ctx, signer, cur)
	if err != nil {
		return types.SignedThreadState{}, err
	}
	c.recordThread(signed)
	return signed, nil
}

// ThreadByParties returns the latest state of the thread from user to
// receiver.
func (c *Client) ThreadByParties(ctx context.Context, receiver, user common.Address) (types.SignedThreadState, error) {
	user, err := c.resolveUser(user)
	if err != nil {
		return types.SignedThreadState{}, err
	}
	return c.threadByParties(ctx, receiver, user)
}

// ThreadAtTxCount returns the state of the thread from user to receiver if
// the hub's latest state has the given txCount.
func (c *Client) ThreadAtTxCount(ctx context.Context, txCount uint64, receiver, user common.Address) (types.SignedThreadState, error) {
	user, err := c.resolveUser(user)
	if err != nil {
		return types.SignedThreadState{}, err
	}
	return c.findThread(ctx, user, receiver, func(t types.SignedThreadState) bool {
		return t.TxCount == txCount
	})
}

func (c *Client) threadByParties(ctx context.Context, receiver, user common.Address) (types.SignedThreadState, error) {
	return c.findThread(ctx, user, receiver, func(types.SignedThreadState) bool { return true })
}

// findThread looks up the thread from user to receiver at the hub. If the
// hub cannot be reached, the cached thread state is used instead.
func (c *Client) findThread(ctx context.Context, user, receiver common.Address, match func(types.SignedThreadState) bool) (types.SignedThreadState, error) {
	threads, err := c.hub.GetThreads(ctx, receiver)
	if err != nil {
		if isNotFound(err) || ctx.Err() != nil || c.store == nil {
			return types.SignedThreadState{}, errors.WithMessage(err, "fetching threads")
		}
		cached, cerr := c.store.ThreadStates(user)
		if cerr != nil {
			return types.SignedThreadState{}, errors.WithMessage(err, "fetching threads")
		}
		c.Log().WithError(err).Warn("Hub unavailable, using cached thread states")
		threads = cached
	}
	for _, t := range threads {
		if t.User == user && t.Receiver == receiver && match(t) {
			return t, nil
		}
	}
	return types.SignedThreadState{}, errors.WithMessagef(ErrThreadNotFound, "receiver %s", receiver.Hex())
}

func (c *Client) signThread(ctx context.Context, signer wallet.Signer, t types.ThreadState) (types.SignedThreadState, error) {
	sig, err := channel.Backend.SignThreadState(ctx, signer, t)
	if err != nil {
		return types.SignedThreadState{}, errors.WithMessage(err, "signing thread state")
	}
	c.metrics.signedThread()
	c.Log().WithField("receiver", t.Receiver.Hex()).Debugf("Signed thread state at txCount %d", t.TxCount)
	return types.SignedThreadState{ThreadState: t, SigA: sig}, nil
}
