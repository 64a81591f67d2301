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

// Package store caches the latest channel updates and thread states a user
// has signed or received co-signed from the hub.
package store

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"perun.network/perun-hub-backend/channel/types"
)

// ErrNotFound is returned when no entry exists for a key.
var ErrNotFound = errors.New("store: not found")

// Store persists the latest known state per user channel and per thread.
// Implementations are safe for concurrent use.
type Store interface {
	// PutChannelUpdate replaces the latest update of the user's channel.
	// Updates with a lower global nonce than the stored one are ignored.
	PutChannelUpdate(user common.Address, u types.ChannelUpdate) error
	ChannelUpdate(user common.Address) (types.ChannelUpdate, error)

	// PutThreadState replaces the latest state of the thread identified by
	// its user and receiver.
	PutThreadState(t types.SignedThreadState) error
	ThreadStates(user common.Address) ([]types.SignedThreadState, error)

	Close() error
}

// newer reports whether u should replace old.
func newer(old, u types.ChannelUpdate) bool {
	return u.State.TxCountGlobal >= old.State.TxCountGlobal
}
