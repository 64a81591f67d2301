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
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"perun.network/perun-hub-backend/channel"
	"perun.network/perun-hub-backend/channel/types"
	"perun.network/perun-hub-backend/wire"
)

// MetadataThreadState is the metadata key under which thread updates carry
// the affected thread state.
const MetadataThreadState = "threadState"

// VerifyAndCosign validates a chain of hub-proposed updates starting at
// latest, signs all of them and submits them to the hub. Nothing is signed
// unless every step of the chain is valid.
func (c *Client) VerifyAndCosign(ctx context.Context, latest types.ChannelUpdate, items []types.ChannelUpdate, user common.Address) (types.ChannelUpdate, error) {
	user, signer, release, err := c.begin(ctx, user)
	if err != nil {
		return types.ChannelUpdate{}, err
	}
	defer release()

	prev := latest.State.ChannelState
	for i, item := range items {
		t, err := transitionFor(item)
		if err != nil {
			return types.ChannelUpdate{}, errors.WithMessagef(err, "item %d", i)
		}
		if err := c.validate(prev, item.State.ChannelState, t); err != nil {
			return types.ChannelUpdate{}, errors.WithMessagef(err, "item %d", i)
		}
		prev = item.State.ChannelState
	}

	signed := make([]types.ChannelUpdate, len(items))
	for i, item := range items {
		if signed[i], err = c.sign(ctx, signer, item); err != nil {
			return types.ChannelUpdate{}, err
		}
	}
	return c.submit(ctx, latest.State.TxCountGlobal, signed, user)
}

// CheckHubResponse verifies that a hub response carries valid signatures of
// both the user and the configured hub address.
func (c *Client) CheckHubResponse(u types.ChannelUpdate) error {
	if c.hubAddress == (common.Address{}) {
		return errors.New("no hub address configured")
	}
	return channel.Backend.VerifyCosigned(u.State, c.hubAddress)
}

// transitionFor derives the validation payload of a hub-proposed update.
// Thread updates take their thread from the update's metadata.
func transitionFor(u types.ChannelUpdate) (channel.Transition, error) {
	t, err := channel.TransitionFor(u.Reason)
	if err != nil {
		return nil, err
	}
	raw, ok := u.Metadata[MetadataThreadState]
	if !ok {
		return t, nil
	}
	switch t.(type) {
	case channel.OpenThreadTransition:
		thread, err := threadFromMetadata(raw)
		return channel.OpenThreadTransition{Thread: thread}, err
	case channel.CloseThreadTransition:
		thread, err := threadFromMetadata(raw)
		return channel.CloseThreadTransition{Thread: thread}, err
	}
	return t, nil
}

// threadFromMetadata accepts a wire thread state or its decoded JSON form.
func threadFromMetadata(raw interface{}) (types.ThreadState, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return types.ThreadState{}, errors.WithMessage(types.ErrEncoding, err.Error())
	}
	var w wire.ThreadState
	if err := json.Unmarshal(data, &w); err != nil {
		return types.ThreadState{}, errors.WithMessage(types.ErrEncoding, err.Error())
	}
	t, err := wire.ToThreadState(w)
	if err != nil {
		return types.ThreadState{}, errors.WithMessage(err, MetadataThreadState)
	}
	return t.ThreadState, nil
}
