package payment

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"perun.network/perun-hub-backend/channel"
	"perun.network/perun-hub-backend/channel/types"
)

// ErrInsufficientBalance is returned when a payment or thread deposit
// exceeds the payer's balance.
var ErrInsufficientBalance = errors.New("insufficient balance")

type pendingRequest func(ctx context.Context, txCount uint64, user common.Address) (types.ChannelUpdate, error)

// ProposeDeposit asks the hub for a pending deposit and returns the
// user-signed ProposePending update. Submitting it on-chain is up to the
// caller.
func (c *Client) ProposeDeposit(ctx context.Context, deposit types.Balances, user common.Address) (types.ChannelUpdate, error) {
	if err := deposit.Check(); err != nil {
		return types.ChannelUpdate{}, errors.WithMessage(err, "deposit")
	}
	return c.proposePending(ctx, user, func(ctx context.Context, txCount uint64, user common.Address) (types.ChannelUpdate, error) {
		return c.hub.RequestDeposit(ctx, deposit, txCount, user)
	})
}

// ProposeWithdrawal asks the hub for a pending withdrawal and returns the
// user-signed ProposePending update.
func (c *Client) ProposeWithdrawal(ctx context.Context, withdrawal types.Balances, user common.Address) (types.ChannelUpdate, error) {
	if err := withdrawal.Check(); err != nil {
		return types.ChannelUpdate{}, errors.WithMessage(err, "withdrawal")
	}
	return c.proposePending(ctx, user, func(ctx context.Context, txCount uint64, user common.Address) (types.ChannelUpdate, error) {
		return c.hub.RequestWithdrawal(ctx, withdrawal, txCount, user)
	})
}

func (c *Client) proposePending(ctx context.Context, user common.Address, request pendingRequest) (types.ChannelUpdate, error) {
	user, signer, release, err := c.begin(ctx, user)
	if err != nil {
		return types.ChannelUpdate{}, err
	}
	defer release()

	latest, err := c.latest(ctx, user)
	if err != nil {
		return types.ChannelUpdate{}, err
	}
	resp, err := request(ctx, latest.State.TxCountGlobal, user)
	if err != nil {
		return types.ChannelUpdate{}, errors.WithMessage(err, "requesting pending update")
	}
	if resp.Reason != types.ReasonProposePending {
		return types.ChannelUpdate{}, errors.WithMessagef(channel.ErrValidationRejected,
			"hub answered with a %s update instead of %s", resp.Reason, types.ReasonProposePending)
	}
	pending := types.PendingFromState(resp.State.ChannelState)
	t := channel.ProposePendingTransition{Pending: &pending}
	if err := c.validate(latest.State.ChannelState, resp.State.ChannelState, t); err != nil {
		return types.ChannelUpdate{}, err
	}
	signed, err := c.sign(ctx, signer, resp)
	if err != nil {
		return types.ChannelUpdate{}, err
	}
	c.recordCosigned(user, signed)
	return signed, nil
}

// ProposeExchange asks the hub to swap the given amounts and returns the
// user-signed Exchange update.
func (c *Client) ProposeExchange(ctx context.Context, amount types.ExchangedBalances, desiredCurrency string, user common.Address) (types.ChannelUpdate, error) {
	user, signer, release, err := c.begin(ctx, user)
	if err != nil {
		return types.ChannelUpdate{}, err
	}
	defer release()

	latest, err := c.latest(ctx, user)
	if err != nil {
		return types.ChannelUpdate{}, err
	}
	resp, err := c.hub.RequestExchange(ctx, amount, desiredCurrency, latest.State.TxCountGlobal+1, user)
	if err != nil {
		return types.ChannelUpdate{}, errors.WithMessage(err, "requesting exchange")
	}
	exchanged := amount.Clone()
	t := channel.ExchangeTransition{Amount: &exchanged}
	if err := c.validate(latest.State.ChannelState, resp.State.ChannelState, t); err != nil {
		return types.ChannelUpdate{}, err
	}
	resp.Reason = types.ReasonExchange
	signed, err := c.sign(ctx, signer, resp)
	if err != nil {
		return types.ChannelUpdate{}, err
	}
	c.recordCosigned(user, signed)
	return signed, nil
}

// RequestCollateral asks the hub to collateralize the user's channel and
// signs whatever update the hub proposes in response.
func (c *Client) RequestCollateral(ctx context.Context, user common.Address) (types.ChannelUpdate, error) {
	user, signer, release, err := c.begin(ctx, user)
	if err != nil {
		return types.ChannelUpdate{}, err
	}
	defer release()

	latest, err := c.latest(ctx, user)
	if err != nil {
		return types.ChannelUpdate{}, err
	}
	resp, err := c.hub.RequestCollateral(ctx, latest.State.TxCountGlobal, user)
	if err != nil {
		return types.ChannelUpdate{}, errors.WithMessage(err, "requesting collateral")
	}
	t, err := transitionFor(resp)
	if err != nil {
		return types.ChannelUpdate{}, err
	}
	if _, ok := t.(channel.ProposePendingTransition); ok {
		pending := types.PendingFromState(resp.State.ChannelState)
		t = channel.ProposePendingTransition{Pending: &pending}
	}
	if err := c.validate(latest.State.ChannelState, resp.State.ChannelState, t); err != nil {
		return types.ChannelUpdate{}, err
	}
	signed, err := c.sign(ctx, signer, resp)
	if err != nil {
		return types.ChannelUpdate{}, err
	}
	c.recordCosigned(user, signed)
	return signed, nil
}

// ChannelPayment pays the hub from the user's balance and submits the signed
// update. It returns the hub's co-signed response.
func (c *Client) ChannelPayment(ctx context.Context, payment types.Balances, metadata map[string]interface{}, user common.Address) (types.ChannelUpdate, error) {
	if err := payment.Check(); err != nil {
		return types.ChannelUpdate{}, errors.WithMessage(err, "payment")
	}
	user, signer, release, err := c.begin(ctx, user)
	if err != nil {
		return types.ChannelUpdate{}, err
	}
	defer release()

	latest, err := c.latest(ctx, user)
	if err != nil {
		return types.ChannelUpdate{}, err
	}
	prev := latest.State.ChannelState
	if prev.BalanceWeiUser.Cmp(payment.Wei) < 0 || prev.BalanceTokenUser.Cmp(payment.Token) < 0 {
		return types.ChannelUpdate{}, errors.WithMessagef(ErrInsufficientBalance,
			"paying %s wei and %s tokens", payment.Wei, payment.Token)
	}

	cur := prev.Clone()
	cur.BalanceWeiUser = new(big.Int).Sub(prev.BalanceWeiUser, payment.Wei)
	cur.BalanceTokenUser = new(big.Int).Sub(prev.BalanceTokenUser, payment.Token)
	cur.BalanceWeiHub = new(big.Int).Add(prev.BalanceWeiHub, payment.Wei)
	cur.BalanceTokenHub = new(big.Int).Add(prev.BalanceTokenHub, payment.Token)
	cur.TxCountGlobal = prev.TxCountGlobal + 1
	cur.Timeout = 0

	amount := payment.Clone()
	if err := c.validate(prev, cur, channel.PaymentTransition{Amount: &amount}); err != nil {
		return types.ChannelUpdate{}, err
	}
	signed, err := c.sign(ctx, signer, types.ChannelUpdate{
		Reason:   types.ReasonPayment,
		State:    types.SignedChannelState{ChannelState: cur},
		Metadata: metadata,
	})
	if err != nil {
		return types.ChannelUpdate{}, err
	}
	return c.submit(ctx, cur.TxCountGlobal, []types.ChannelUpdate{signed}, user)
}
