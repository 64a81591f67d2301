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

package types

import (
	"github.com/pkg/errors"
)

// Reason classifies a channel update.
type Reason uint8

const (
	ReasonPayment        Reason = iota // balance transfer between user and hub
	ReasonExchange                     // wei/token swap at a hub-quoted rate
	ReasonProposePending               // new pending deposit or withdrawal
	ReasonConfirmPending               // pending deposit moved into balances
	ReasonOpenThread                   // thread committed into the thread root
	ReasonCloseThread                  // thread removed from the thread root
)

var reasonNames = map[Reason]string{
	ReasonPayment:        "Payment",
	ReasonExchange:       "Exchange",
	ReasonProposePending: "ProposePending",
	ReasonConfirmPending: "ConfirmPending",
	ReasonOpenThread:     "OpenThread",
	ReasonCloseThread:    "CloseThread",
}

// ErrUnknownReason is returned when parsing an unsupported update reason.
var ErrUnknownReason = errors.New("unknown update reason")

// ParseReason parses the wire name of a reason.
func ParseReason(s string) (Reason, error) {
	for r, name := range reasonNames {
		if name == s {
			return r, nil
		}
	}
	return 0, errors.WithMessagef(ErrUnknownReason, "%q", s)
}

func (r Reason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return "Unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (r Reason) MarshalText() ([]byte, error) {
	name, ok := reasonNames[r]
	if !ok {
		return nil, errors.WithMessagef(ErrUnknownReason, "%d", uint8(r))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Reason) UnmarshalText(text []byte) error {
	parsed, err := ParseReason(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ChannelStatus is the dispute status of a channel as reported by the hub.
type ChannelStatus string

const (
	StatusOpen           ChannelStatus = "Open"
	StatusChannelDispute ChannelStatus = "ChannelDispute"
	StatusThreadDispute  ChannelStatus = "ThreadDispute"
)

// IsOpen treats an unreported status as open.
func (s ChannelStatus) IsOpen() bool {
	return s == "" || s == StatusOpen
}

// ChannelUpdate is a channel state together with the reason that produced it.
type ChannelUpdate struct {
	Reason   Reason
	State    SignedChannelState
	Metadata map[string]interface{}
	// Status is only set on updates returned as a channel's latest state.
	Status ChannelStatus
}
