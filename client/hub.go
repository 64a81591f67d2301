package client

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"perun.network/perun-hub-backend/channel/types"
	wtypes "perun.network/perun-hub-backend/wallet/types"
	"perun.network/perun-hub-backend/wire"
)

func channelPath(user common.Address, suffix string) string {
	p := "channel/" + wtypes.Format(user)
	if suffix != "" {
		p += "/" + suffix
	}
	return p
}

// GetChannel returns the latest update of the user's channel.
func (c *Client) GetChannel(ctx context.Context, user common.Address) (types.ChannelUpdate, error) {
	var w wire.ChannelUpdate
	if err := c.get(ctx, channelPath(user, ""), &w); err != nil {
		if IsNotFound(err) {
			return types.ChannelUpdate{}, errors.WithMessagef(ErrChannelNotFound, "user %s", user.Hex())
		}
		return types.ChannelUpdate{}, err
	}
	return wire.ToChannelUpdate(w)
}

// GetInitialThreadStates returns the initial states of all open threads of
// the user's channel.
func (c *Client) GetInitialThreadStates(ctx context.Context, user common.Address) ([]types.ThreadState, error) {
	var ws []wire.ThreadState
	if err := c.get(ctx, channelPath(user, "initial-thread-states"), &ws); err != nil {
		if IsNotFound(err) {
			return []types.ThreadState{}, nil
		}
		return nil, err
	}
	signed, err := wire.ToThreadStates(ws)
	if err != nil {
		return nil, err
	}
	states := make([]types.ThreadState, len(signed))
	for i, s := range signed {
		states[i] = s.ThreadState
	}
	return states, nil
}

// GetThreads returns the latest states of the threads the user takes part in.
func (c *Client) GetThreads(ctx context.Context, user common.Address) ([]types.SignedThreadState, error) {
	var ws []wire.ThreadState
	if err := c.get(ctx, channelPath(user, "threads"), &ws); err != nil {
		if IsNotFound(err) {
			return []types.SignedThreadState{}, nil
		}
		return nil, err
	}
	return wire.ToThreadStates(ws)
}

// Sync returns every update the hub holds from txCount on.
func (c *Client) Sync(ctx context.Context, txCount uint64, user common.Address) ([]types.ChannelUpdate, error) {
	var ws []wire.ChannelUpdate
	err := c.post(ctx, channelPath(user, "sync"), wire.TxCountRequest{TxCount: wire.Count(txCount)}, &ws)
	if err != nil {
		if IsNotFound(err) {
			return []types.ChannelUpdate{}, nil
		}
		return nil, err
	}
	return wire.ToChannelUpdates(ws)
}

func (c *Client) RequestDeposit(ctx context.Context, deposit types.Balances, txCount uint64, user common.Address) (types.ChannelUpdate, error) {
	return c.postUpdate(ctx, channelPath(user, "request-deposit"), wire.MakeDepositRequest(deposit, txCount))
}

// RequestWithdrawal uses the deposit request body.
func (c *Client) RequestWithdrawal(ctx context.Context, withdrawal types.Balances, txCount uint64, user common.Address) (types.ChannelUpdate, error) {
	return c.postUpdate(ctx, channelPath(user, "request-withdrawal"), wire.MakeDepositRequest(withdrawal, txCount))
}

func (c *Client) RequestExchange(ctx context.Context, amount types.ExchangedBalances, desiredCurrency string, txCount uint64, user common.Address) (types.ChannelUpdate, error) {
	req := wire.ExchangeRequest{
		DesiredCurrency: desiredCurrency,
		ExchangeAmount:  wire.MakeExchangedBalances(amount),
		TxCount:         wire.Count(txCount),
	}
	return c.postUpdate(ctx, channelPath(user, "request-exchange"), req)
}

func (c *Client) RequestCollateral(ctx context.Context, txCount uint64, user common.Address) (types.ChannelUpdate, error) {
	return c.postUpdate(ctx, channelPath(user, "request-collateralization"), wire.TxCountRequest{TxCount: wire.Count(txCount)})
}

// Submit posts signed updates on top of the state at txCount and returns the
// hub's response.
func (c *Client) Submit(ctx context.Context, txCount uint64, updates []types.ChannelUpdate, user common.Address) (types.ChannelUpdate, error) {
	req := wire.UpdateRequest{TxCount: wire.Count(txCount), Updates: wire.MakeChannelUpdates(updates)}
	return c.postUpdate(ctx, channelPath(user, "update"), req)
}

func (c *Client) postUpdate(ctx context.Context, path string, body interface{}) (types.ChannelUpdate, error) {
	var w wire.ChannelUpdate
	if err := c.post(ctx, path, body, &w); err != nil {
		return types.ChannelUpdate{}, err
	}
	return wire.ToChannelUpdate(w)
}
