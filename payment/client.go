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

// Package payment orchestrates the updates of hub payment channels: it
// fetches state from the hub, validates every proposed transition, signs
// with the user's key and hands the result back to the hub.
package payment

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"perun.network/go-perun/log"
	pkgsync "polycry.pt/poly-go/sync"

	"perun.network/perun-hub-backend/channel"
	"perun.network/perun-hub-backend/channel/types"
	"perun.network/perun-hub-backend/store"
	"perun.network/perun-hub-backend/wallet"
)

var (
	// ErrNoUser is returned when an operation gets the zero address as user
	// and the client has no default user.
	ErrNoUser = errors.New("no user specified and no default user configured")
	// ErrChannelBusy is returned when another update of the same channel is
	// in flight until the context ends.
	ErrChannelBusy = errors.New("channel is busy")
	// ErrChannelNotOpen is returned when the hub reports a dispute.
	ErrChannelNotOpen = errors.New("channel is not open")
	// ErrThreadNotFound is returned when no thread matches a lookup.
	ErrThreadNotFound = errors.New("thread not found")
)

const (
	// DefaultSyncRetries is the number of retries of a failing sync.
	DefaultSyncRetries = 5
	// DefaultSyncInterval is the initial wait between sync attempts.
	DefaultSyncInterval = 500 * time.Millisecond
)

// Client drives the channels of one or more users against a hub.
type Client struct {
	log.Embedding

	hub  Hub
	keys Keystore

	hubAddress   common.Address
	defaultUser  common.Address
	store        store.Store
	metrics      *Metrics
	syncRetries  uint64
	syncInterval time.Duration

	locksMu sync.Mutex
	locks   map[common.Address]*pkgsync.Mutex
}

// Option configures a Client.
type Option func(*Client)

// WithHubAddress sets the address whose signature CheckHubResponse expects.
func WithHubAddress(addr common.Address) Option {
	return func(c *Client) { c.hubAddress = addr }
}

// WithDefaultUser sets the user that operations fall back to when called
// with the zero address.
func WithDefaultUser(user common.Address) Option {
	return func(c *Client) { c.defaultUser = user }
}

// WithStore records every signed and co-signed state in s.
func WithStore(s store.Store) Option {
	return func(c *Client) { c.store = s }
}

// WithMetrics counts signing and hub traffic in m.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithSyncRetries configures how often and how fast a failing sync is
// retried.
func WithSyncRetries(retries uint64, interval time.Duration) Option {
	return func(c *Client) {
		c.syncRetries = retries
		c.syncInterval = interval
	}
}

// NewClient returns a client that talks to hub and signs with keys.
func NewClient(hub Hub, keys Keystore, opts ...Option) *Client {
	c := &Client{
		Embedding:    log.MakeEmbedding(log.Default()),
		hub:          hub,
		keys:         keys,
		syncRetries:  DefaultSyncRetries,
		syncInterval: DefaultSyncInterval,
		locks:        make(map[common.Address]*pkgsync.Mutex),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) resolveUser(user common.Address) (common.Address, error) {
	if user != (common.Address{}) {
		return user, nil
	}
	if c.defaultUser == (common.Address{}) {
		return common.Address{}, ErrNoUser
	}
	return c.defaultUser, nil
}

// acquire locks the user's channel for a mutating operation. The returned
// function releases it.
func (c *Client) acquire(ctx context.Context, user common.Address) (func(), error) {
	c.locksMu.Lock()
	l, ok := c.locks[user]
	if !ok {
		l = new(pkgsync.Mutex)
		c.locks[user] = l
	}
	c.locksMu.Unlock()

	if !l.TryLockCtx(ctx) {
		return nil, errors.WithMessagef(ErrChannelBusy, "user %s", user.Hex())
	}
	return l.Unlock, nil
}

// begin resolves the user, locks its channel and unlocks its signer.
func (c *Client) begin(ctx context.Context, user common.Address) (common.Address, wallet.Signer, func(), error) {
	user, err := c.resolveUser(user)
	if err != nil {
		return common.Address{}, nil, nil, err
	}
	signer, err := c.keys.Unlock(user)
	if err != nil {
		return common.Address{}, nil, nil, errors.WithMessage(err, "unlocking user key")
	}
	release, err := c.acquire(ctx, user)
	if err != nil {
		return common.Address{}, nil, nil, err
	}
	return user, signer, release, nil
}

// latest fetches the user's channel and fails if it is disputed.
func (c *Client) latest(ctx context.Context, user common.Address) (types.ChannelUpdate, error) {
	u, err := c.hub.GetChannel(ctx, user)
	if err != nil {
		return types.ChannelUpdate{}, errors.WithMessage(err, "fetching channel")
	}
	if !u.Status.IsOpen() {
		return types.ChannelUpdate{}, errors.WithMessagef(ErrChannelNotOpen, "status %s", u.Status)
	}
	return u, nil
}

// validate runs the validation engine and accounts for rejections.
func (c *Client) validate(prev, cur types.ChannelState, t channel.Transition) error {
	if rej := channel.Validate(prev, cur, t); rej != nil {
		return c.rejected(rej)
	}
	return nil
}

func (c *Client) rejected(rej *channel.Rejection) error {
	c.metrics.rejection(rej.Reason, rej.Rule)
	c.Log().WithField("rule", rej.Rule).Warnf("Rejected %s update: %s", rej.Reason, rej.Message)
	return rej
}

// sign adds the user's signature to a copy of u.
func (c *Client) sign(ctx context.Context, signer wallet.Signer, u types.ChannelUpdate) (types.ChannelUpdate, error) {
	sig, err := channel.Backend.SignChannelState(ctx, signer, u.State.ChannelState)
	if err != nil {
		return types.ChannelUpdate{}, errors.WithMessagef(err, "signing %s update", u.Reason)
	}
	signed := u
	signed.State = u.State.Clone()
	signed.State.SigUser = sig
	c.metrics.signedUpdate(u.Reason)
	c.Log().WithField("user", signer.Address().Hex()).
		Debugf("Signed %s update at txCountGlobal %d", u.Reason, u.State.TxCountGlobal)
	return signed, nil
}

func (c *Client) submit(ctx context.Context, txCount uint64, updates []types.ChannelUpdate, user common.Address) (types.ChannelUpdate, error) {
	c.Log().WithField("user", user.Hex()).Infof("Submitting %d updates at txCount %d", len(updates), txCount)
	resp, err := c.hub.Submit(ctx, txCount, updates, user)
	c.metrics.submission(err)
	if err != nil {
		return types.ChannelUpdate{}, errors.WithMessage(err, "submitting updates")
	}
	if err := c.checkCosigned(resp); err != nil {
		return types.ChannelUpdate{}, errors.WithMessage(err, "hub response")
	}
	c.record(user, resp)
	return resp, nil
}

// checkCosigned verifies that u is signed by its user and the hub. Without a
// configured hub address, the hub signature is only required to be present.
func (c *Client) checkCosigned(u types.ChannelUpdate) error {
	if c.hubAddress != (common.Address{}) {
		return c.CheckHubResponse(u)
	}
	if len(u.State.SigHub) == 0 {
		return errors.WithMessage(wallet.ErrMalformedSignature, "missing hub signature")
	}
	return channel.Backend.VerifyChannelState(u.State.ChannelState, u.State.SigUser, u.State.User)
}

// record stores the co-signed update u as the user's latest one. Storage
// failures are logged and do not fail the operation.
func (c *Client) record(user common.Address, u types.ChannelUpdate) {
	if c.store == nil {
		return
	}
	if err := c.store.PutChannelUpdate(user, u); err != nil {
		c.Log().WithError(err).Warn("Could not record channel update")
	}
}

// recordCosigned records u if both parties signed it. Proposals the hub did
// not sign yet stay out of the cache.
func (c *Client) recordCosigned(user common.Address, u types.ChannelUpdate) {
	if c.store == nil {
		return
	}
	if err := c.checkCosigned(u); err != nil {
		c.Log().WithField("user", user.Hex()).
			Debugf("Not caching %s update at txCountGlobal %d: %v", u.Reason, u.State.TxCountGlobal, err)
		return
	}
	c.record(user, u)
}

func (c *Client) recordThread(t types.SignedThreadState) {
	if c.store == nil {
		return
	}
	if err := c.store.PutThreadState(t); err != nil {
		c.Log().WithError(err).Warn("Could not record thread state")
	}
}
