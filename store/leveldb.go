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

package store

import (
	"encoding/json"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"perun.network/perun-hub-backend/channel/types"
	"perun.network/perun-hub-backend/wire"
)

const (
	channelPrefix byte = 0x00
	threadPrefix  byte = 0x01
)

// ErrClosed is returned by operations on a closed LevelDB store.
var ErrClosed = errors.New("store: closed")

// LevelDB is a Store backed by a LevelDB database on disk. Values are kept
// in the hub wire format.
type LevelDB struct {
	// mu serialises read-modify-write of channel updates.
	mu sync.Mutex
	db *leveldb.DB
}

// OpenLevelDB opens or creates the database at path.
func OpenLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		return nil, errors.WithMessagef(err, "opening store at %s", path)
	}
	return &LevelDB{db: db}, nil
}

func channelKey(user common.Address) []byte {
	return append([]byte{channelPrefix}, user.Bytes()...)
}

func threadKey(user, receiver common.Address) []byte {
	key := append([]byte{threadPrefix}, user.Bytes()...)
	return append(key, receiver.Bytes()...)
}

func (l *LevelDB) PutChannelUpdate(user common.Address, u types.ChannelUpdate) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	old, err := l.channelUpdate(user)
	switch {
	case err == nil && !newer(old, u):
		return nil
	case err != nil && !errors.Is(err, ErrNotFound):
		return err
	}

	data, err := json.Marshal(wire.MakeChannelUpdate(u))
	if err != nil {
		return errors.WithMessage(err, "encoding channel update")
	}
	return l.put(channelKey(user), data)
}

func (l *LevelDB) ChannelUpdate(user common.Address) (types.ChannelUpdate, error) {
	return l.channelUpdate(user)
}

func (l *LevelDB) channelUpdate(user common.Address) (types.ChannelUpdate, error) {
	data, err := l.db.Get(channelKey(user), nil)
	if err != nil {
		return types.ChannelUpdate{}, dbError(err)
	}
	var w wire.ChannelUpdate
	if err := json.Unmarshal(data, &w); err != nil {
		return types.ChannelUpdate{}, errors.WithMessage(err, "decoding channel update")
	}
	return wire.ToChannelUpdate(w)
}

func (l *LevelDB) PutThreadState(t types.SignedThreadState) error {
	data, err := json.Marshal(wire.MakeThreadState(t))
	if err != nil {
		return errors.WithMessage(err, "encoding thread state")
	}
	return l.put(threadKey(t.User, t.Receiver), data)
}

// ThreadStates returns the user's threads ordered by receiver address.
func (l *LevelDB) ThreadStates(user common.Address) ([]types.SignedThreadState, error) {
	prefix := append([]byte{threadPrefix}, user.Bytes()...)
	iter := l.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	var states []types.SignedThreadState
	for iter.Next() {
		var w wire.ThreadState
		if err := json.Unmarshal(iter.Value(), &w); err != nil {
			return nil, errors.WithMessage(err, "decoding thread state")
		}
		t, err := wire.ToThreadState(w)
		if err != nil {
			return nil, err
		}
		states = append(states, t)
	}
	if err := iter.Error(); err != nil {
		return nil, dbError(err)
	}
	return states, nil
}

// Close releases the database. Further calls return ErrClosed.
func (l *LevelDB) Close() error {
	return dbError(l.db.Close())
}

func (l *LevelDB) put(key, value []byte) error {
	return dbError(l.db.Put(key, value, nil))
}

func dbError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, leveldb.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, leveldb.ErrClosed):
		return ErrClosed
	}
	return errors.WithMessage(err, "leveldb")
}
