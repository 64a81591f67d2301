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

	"perun.network/perun-hub-backend/channel/types"
)

// ValidateThreadPayment checks that cur is a legal successor of prev within
// one thread. Funds only move from sender to receiver.
func ValidateThreadPayment(prev, cur types.ThreadState) *Rejection {
	if !prev.SameParties(cur) {
		return threadReject(types.ReasonPayment, RuleThreadIdentity, "Thread parties cannot change")
	}
	if !isIncrement(prev.TxCount, cur.TxCount) {
		return threadReject(types.ReasonPayment, RuleThreadNonce, "Can only increase the thread nonce by 1")
	}
	assets := []struct {
		name                     string
		prevS, prevR, curS, curR *big.Int
	}{
		{"wei", prev.BalanceWeiSender, prev.BalanceWeiReceiver, cur.BalanceWeiSender, cur.BalanceWeiReceiver},
		{"token", prev.BalanceTokenSender, prev.BalanceTokenReceiver, cur.BalanceTokenSender, cur.BalanceTokenReceiver},
	}
	for _, a := range assets {
		if !eq(sum(a.prevS, a.prevR), sum(a.curS, a.curR)) {
			return threadReject(types.ReasonPayment, RuleThreadConserved, "Thread %s balance must be conserved", a.name)
		}
		if orZero(a.curS).Cmp(orZero(a.prevS)) > 0 || orZero(a.curR).Cmp(orZero(a.prevR)) < 0 {
			return threadReject(types.ReasonPayment, RuleThreadDirection, "Thread %s can only move from sender to receiver", a.name)
		}
		if orZero(a.curS).Sign() < 0 {
			return threadReject(types.ReasonPayment, RuleThreadDirection, "Sender %s balance cannot become negative", a.name)
		}
	}
	return nil
}

// ValidateThreadOpen checks that t is a valid initial thread state.
func ValidateThreadOpen(t types.ThreadState) *Rejection {
	if t.Sender == t.Receiver {
		return threadReject(types.ReasonOpenThread, RuleThreadIdentity, "Thread sender and receiver must differ")
	}
	if t.TxCount != 0 {
		return threadReject(types.ReasonOpenThread, RuleThreadInitial, "Initial thread state must have txCount 0")
	}
	if !t.ReceiverBalances().IsZero() {
		return threadReject(types.ReasonOpenThread, RuleThreadInitial, "Receiver balances must be zero on thread open")
	}
	return nil
}

func threadReject(r types.Reason, rule, format string, args ...interface{}) *Rejection {
	return &Rejection{Reason: r, Rule: rule, Message: fmt.Sprintf(format, args...)}
}
