package payment

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"perun.network/perun-hub-backend/channel/types"
	"perun.network/perun-hub-backend/store"
)

// notFound is implemented by hub errors that report a missing resource.
type notFound interface {
	IsNotFound() bool
}

func isNotFound(err error) bool {
	var nf notFound
	return errors.As(err, &nf) && nf.IsNotFound()
}

// Sync returns the updates of the user's channel starting at sinceTxCount.
// Failing requests are retried with exponential backoff. A channel unknown
// to the hub yields no updates.
func (c *Client) Sync(ctx context.Context, sinceTxCount uint64, user common.Address) ([]types.ChannelUpdate, error) {
	user, err := c.resolveUser(user)
	if err != nil {
		return nil, err
	}

	var updates []types.ChannelUpdate
	op := func() error {
		var err error
		updates, err = c.hub.Sync(ctx, sinceTxCount, user)
		switch {
		case err == nil:
			return nil
		case isNotFound(err):
			updates = nil
			return nil
		case ctx.Err() != nil:
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.metrics.syncRetry()
		c.Log().WithError(err).Warnf("Sync failed, retrying in %v", wait)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.syncInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, c.syncRetries), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, errors.WithMessage(err, "syncing channel")
	}
	if i := lastCosigned(updates, c.checkCosigned); i >= 0 {
		c.record(user, updates[i])
	}
	return updates, nil
}

// lastCosigned returns the index of the last update passing check, or -1.
func lastCosigned(updates []types.ChannelUpdate, check func(types.ChannelUpdate) error) int {
	for i := len(updates) - 1; i >= 0; i-- {
		if check(updates[i]) == nil {
			return i
		}
	}
	return -1
}

// ErrNoCosignedState is returned by PendingUpdates if the hub reports no
// co-signed state to build on.
var ErrNoCosignedState = errors.New("no co-signed channel state")

// PendingUpdates syncs the user's channel from the cached state on and
// returns the latest co-signed update together with the hub proposals that
// follow it. The proposals are meant to be passed to VerifyAndCosign.
func (c *Client) PendingUpdates(ctx context.Context, user common.Address) (types.ChannelUpdate, []types.ChannelUpdate, error) {
	user, err := c.resolveUser(user)
	if err != nil {
		return types.ChannelUpdate{}, nil, err
	}

	var since uint64
	if c.store != nil {
		cached, err := c.store.ChannelUpdate(user)
		switch {
		case err == nil:
			since = cached.State.TxCountGlobal
		case !errors.Is(err, store.ErrNotFound):
			return types.ChannelUpdate{}, nil, errors.WithMessage(err, "reading cached state")
		}
	}

	updates, err := c.Sync(ctx, since, user)
	if err != nil {
		return types.ChannelUpdate{}, nil, err
	}
	i := lastCosigned(updates, c.checkCosigned)
	if i < 0 {
		return types.ChannelUpdate{}, nil, errors.WithMessagef(ErrNoCosignedState, "since txCountGlobal %d", since)
	}
	return updates[i], updates[i+1:], nil
}

// ErrUpdateNotFound is returned when the hub has no update at a requested
// nonce.
var ErrUpdateNotFound = errors.New("update not found")

// ChannelStateAtNonce returns the update of the user's channel whose global
// nonce is txCount.
func (c *Client) ChannelStateAtNonce(ctx context.Context, txCount uint64, user common.Address) (types.ChannelUpdate, error) {
	updates, err := c.Sync(ctx, txCount, user)
	if err != nil {
		return types.ChannelUpdate{}, err
	}
	for _, u := range updates {
		if u.State.TxCountGlobal == txCount {
			return u, nil
		}
	}
	return types.ChannelUpdate{}, errors.WithMessagef(ErrUpdateNotFound, "txCountGlobal %d", txCount)
}
