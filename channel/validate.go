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

package channel

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"perun.network/perun-hub-backend/channel/types"
)

// ErrValidationRejected matches every *Rejection with errors.Is.
var ErrValidationRejected = errors.New("update rejected")

// Rule identifiers reported in a Rejection.
const (
	RuleGlobalNonce       = "global-nonce"
	RuleChainNonce        = "chain-nonce"
	RulePendingUnchanged  = "pending-unchanged"
	RuleWeiConserved      = "wei-conserved"
	RuleTokenConserved    = "token-conserved"
	RuleThreadsUnchanged  = "threads-unchanged"
	RuleNoPending         = "no-pending"
	RuleBalancesUnchanged = "balances-unchanged"
	RulePendingApplied    = "pending-applied"
	RuleThreadMissing     = "thread-missing"
	RuleThreadRoot        = "thread-root"
	RuleThreadCount       = "thread-count"
	RuleThreadIdentity    = "thread-identity"
	RuleThreadNonce       = "thread-nonce"
	RuleThreadConserved   = "thread-conserved"
	RuleThreadDirection   = "thread-direction"
	RuleThreadInitial     = "thread-initial"
)

// Rejection describes why a transition was refused.
type Rejection struct {
	Reason   types.Reason
	Rule     string
	Message  string
	Previous types.ChannelState
	Current  types.ChannelState
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s update rejected [%s]: %s", r.Reason, r.Rule, r.Message)
}

// Is makes every rejection match ErrValidationRejected.
func (r *Rejection) Is(target error) bool {
	return target == ErrValidationRejected
}

type (
	// Transition is the payload that accompanies a channel update of a
	// specific reason. The set of transitions is closed.
	Transition interface {
		Reason() types.Reason
		isTransition()
	}

	// PaymentTransition moves funds between hub and user. Amount is
	// optional.
	PaymentTransition struct{ Amount *types.Balances }

	// ExchangeTransition swaps wei against tokens.
	ExchangeTransition struct{ Amount *types.ExchangedBalances }

	// ProposePendingTransition announces deposits and withdrawals.
	ProposePendingTransition struct{ Pending *types.PendingBalances }

	// ConfirmPendingTransition moves pending deposits into the balances.
	ConfirmPendingTransition struct{ Pending *types.PendingBalances }

	// OpenThreadTransition locks user funds into a new thread.
	// InitialStates are the initial states of all threads open after the
	// update. They are optional, nil skips the root and count checks.
	OpenThreadTransition struct {
		Thread        types.ThreadState
		InitialStates []types.ThreadState
	}

	// CloseThreadTransition settles a thread back into the channel.
	// InitialStates are the initial states of the threads that remain open.
	CloseThreadTransition struct {
		Thread        types.ThreadState
		InitialStates []types.ThreadState
	}
)

func (PaymentTransition) Reason() types.Reason        { return types.ReasonPayment }
func (ExchangeTransition) Reason() types.Reason       { return types.ReasonExchange }
func (ProposePendingTransition) Reason() types.Reason { return types.ReasonProposePending }
func (ConfirmPendingTransition) Reason() types.Reason { return types.ReasonConfirmPending }
func (OpenThreadTransition) Reason() types.Reason     { return types.ReasonOpenThread }
func (CloseThreadTransition) Reason() types.Reason    { return types.ReasonCloseThread }

func (PaymentTransition) isTransition()        {}
func (ExchangeTransition) isTransition()       {}
func (ProposePendingTransition) isTransition() {}
func (ConfirmPendingTransition) isTransition() {}
func (OpenThreadTransition) isTransition()     {}
func (CloseThreadTransition) isTransition()    {}

// TransitionFor returns the payload-less transition for reason r. Thread
// transitions built this way carry no thread and are rejected by Validate.
func TransitionFor(r types.Reason) (Transition, error) {
	switch r {
	case types.ReasonPayment:
		return PaymentTransition{}, nil
	case types.ReasonExchange:
		return ExchangeTransition{}, nil
	case types.ReasonProposePending:
		return ProposePendingTransition{}, nil
	case types.ReasonConfirmPending:
		return ConfirmPendingTransition{}, nil
	case types.ReasonOpenThread:
		return OpenThreadTransition{}, nil
	case types.ReasonCloseThread:
		return CloseThreadTransition{}, nil
	}
	return nil, errors.WithMessagef(types.ErrUnknownReason, "reason %d", r)
}

// Validate checks that cur is a legal successor of prev under t. It returns
// nil if the transition is accepted.
func Validate(prev, cur types.ChannelState, t Transition) *Rejection {
	v := validator{prev: prev, cur: cur, reason: t.Reason()}

	if !isIncrement(prev.TxCountGlobal, cur.TxCountGlobal) {
		return v.reject(RuleGlobalNonce, "Can only increase the global nonce by 1")
	}
	if cur.TxCountChain != prev.TxCountChain && !isIncrement(prev.TxCountChain, cur.TxCountChain) {
		return v.reject(RuleChainNonce, "Can only increase the chain nonce by 1 or not at all")
	}

	switch t := t.(type) {
	case PaymentTransition:
		return v.payment()
	case ExchangeTransition:
		return v.noThreadChanges()
	case ProposePendingTransition:
		return v.proposePending()
	case ConfirmPendingTransition:
		return v.confirmPending()
	case OpenThreadTransition:
		return v.openThread(t)
	case CloseThreadTransition:
		return v.closeThread(t)
	}
	panic(fmt.Sprintf("unknown transition %T", t))
}

type validator struct {
	prev, cur types.ChannelState
	reason    types.Reason
}

func (v validator) reject(rule, format string, args ...interface{}) *Rejection {
	return &Rejection{
		Reason:   v.reason,
		Rule:     rule,
		Message:  fmt.Sprintf(format, args...),
		Previous: v.prev.Clone(),
		Current:  v.cur.Clone(),
	}
}

func (v validator) payment() *Rejection {
	prev, cur := v.prev.Amounts(), v.cur.Amounts()
	// The first four amounts are the operating balances.
	for i := 4; i < len(prev); i++ {
		if !eq(prev[i].Value, cur[i].Value) {
			return v.reject(RulePendingUnchanged, "Cannot update %s in payment update type", prev[i].Name)
		}
	}
	if !eq(sum(v.prev.BalanceWeiHub, v.prev.BalanceWeiUser), sum(v.cur.BalanceWeiHub, v.cur.BalanceWeiUser)) {
		return v.reject(RuleWeiConserved, "Channel wei balance must be conserved")
	}
	if !eq(sum(v.prev.BalanceTokenHub, v.prev.BalanceTokenUser), sum(v.cur.BalanceTokenHub, v.cur.BalanceTokenUser)) {
		return v.reject(RuleTokenConserved, "Channel token balance must be conserved")
	}
	return v.noThreadChanges()
}

func (v validator) proposePending() *Rejection {
	for _, a := range v.prev.Amounts()[4:] {
		if !eq(a.Value, nil) {
			return v.reject(RuleNoPending, "Previous state cannot have pending ops when proposing deposit. %s exists", a.Name)
		}
	}
	prev, cur := v.prev.Amounts(), v.cur.Amounts()
	for i := 0; i < 4; i++ {
		if !eq(prev[i].Value, cur[i].Value) {
			return v.reject(RuleBalancesUnchanged, "Cannot change operating balances while proposing deposit. %s changed", prev[i].Name)
		}
	}
	return v.noThreadChanges()
}

func (v validator) confirmPending() *Rejection {
	p, c := v.prev, v.cur
	checks := []struct {
		party, asset     string
		bal, dep, result *big.Int
	}{
		{"Hub", "wei", p.BalanceWeiHub, p.PendingDepositWeiHub, c.BalanceWeiHub},
		{"Hub", "token", p.BalanceTokenHub, p.PendingDepositTokenHub, c.BalanceTokenHub},
		{"User", "wei", p.BalanceWeiUser, p.PendingDepositWeiUser, c.BalanceWeiUser},
		{"User", "token", p.BalanceTokenUser, p.PendingDepositTokenUser, c.BalanceTokenUser},
	}
	for _, chk := range checks {
		if !eq(sum(chk.bal, chk.dep), chk.result) {
			return v.reject(RulePendingApplied, "%s %s deposit added to balance incorrectly", chk.party, chk.asset)
		}
	}
	return v.noThreadChanges()
}

func (v validator) noThreadChanges() *Rejection {
	if v.prev.ThreadRoot != v.cur.ThreadRoot {
		return v.reject(RuleThreadsUnchanged, "Incorrect threadRoot detected in current channel")
	}
	if v.prev.ThreadCount != v.cur.ThreadCount {
		return v.reject(RuleThreadsUnchanged, "Incorrect threadCount detected in current channel")
	}
	return nil
}

func (v validator) openThread(t OpenThreadTransition) *Rejection {
	if rej := v.requireThread(t.Thread); rej != nil {
		return rej
	}
	if t.InitialStates == nil {
		return nil
	}
	if !containsThread(t.InitialStates, t.Thread) {
		return v.reject(RuleThreadRoot, "Opened thread is missing from the initial states")
	}
	if rej := v.checkRoot(t.InitialStates); rej != nil {
		return rej
	}
	if !isIncrement(v.prev.ThreadCount, v.cur.ThreadCount) {
		return v.reject(RuleThreadCount, "Opening a thread must increase the threadCount by 1")
	}
	return nil
}

func (v validator) closeThread(t CloseThreadTransition) *Rejection {
	if rej := v.requireThread(t.Thread); rej != nil {
		return rej
	}
	if t.InitialStates == nil {
		return nil
	}
	if containsThread(t.InitialStates, t.Thread) {
		return v.reject(RuleThreadRoot, "Closed thread is still part of the initial states")
	}
	if rej := v.checkRoot(t.InitialStates); rej != nil {
		return rej
	}
	if !isIncrement(v.cur.ThreadCount, v.prev.ThreadCount) {
		return v.reject(RuleThreadCount, "Closing a thread must decrease the threadCount by 1")
	}
	return nil
}

func (v validator) requireThread(t types.ThreadState) *Rejection {
	if t.Sender == (common.Address{}) || t.Receiver == (common.Address{}) {
		return v.reject(RuleThreadMissing, "No thread state supplied for %s update", v.reason)
	}
	return nil
}

func (v validator) checkRoot(initialStates []types.ThreadState) *Rejection {
	root, err := ThreadRoot(initialStates)
	if err != nil {
		return v.reject(RuleThreadRoot, "Cannot compute thread root: %v", err)
	}
	if root != v.cur.ThreadRoot {
		return v.reject(RuleThreadRoot, "Incorrect threadRoot detected in current channel")
	}
	return nil
}

// isIncrement reports whether next is exactly prev+1. A counter at its
// maximum has no successor.
func isIncrement(prev, next uint64) bool {
	return next > prev && next-prev == 1
}

func eq(a, b *big.Int) bool {
	return orZero(a).Cmp(orZero(b)) == 0
}

func sum(a, b *big.Int) *big.Int {
	return new(big.Int).Add(orZero(a), orZero(b))
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
