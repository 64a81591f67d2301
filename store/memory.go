package store

import (
	"bytes"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"perun.network/perun-hub-backend/channel/types"
)

// Memory is a Store that lives in process memory.
type Memory struct {
	mu       sync.RWMutex
	channels map[common.Address]types.ChannelUpdate
	threads  map[common.Address]map[common.Address]types.SignedThreadState
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		channels: make(map[common.Address]types.ChannelUpdate),
		threads:  make(map[common.Address]map[common.Address]types.SignedThreadState),
	}
}

func (m *Memory) PutChannelUpdate(user common.Address, u types.ChannelUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.channels[user]; ok && !newer(old, u) {
		return nil
	}
	m.channels[user] = cloneUpdate(u)
	return nil
}

func (m *Memory) ChannelUpdate(user common.Address) (types.ChannelUpdate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.channels[user]
	if !ok {
		return types.ChannelUpdate{}, ErrNotFound
	}
	return cloneUpdate(u), nil
}

func (m *Memory) PutThreadState(t types.SignedThreadState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byReceiver, ok := m.threads[t.User]
	if !ok {
		byReceiver = make(map[common.Address]types.SignedThreadState)
		m.threads[t.User] = byReceiver
	}
	byReceiver[t.Receiver] = t.Clone()
	return nil
}

// ThreadStates returns the user's threads ordered by receiver address.
func (m *Memory) ThreadStates(user common.Address) ([]types.SignedThreadState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	states := make([]types.SignedThreadState, 0, len(m.threads[user]))
	for _, t := range m.threads[user] {
		states = append(states, t.Clone())
	}
	sort.Slice(states, func(i, j int) bool {
		return bytes.Compare(states[i].Receiver[:], states[j].Receiver[:]) < 0
	})
	return states, nil
}

func (m *Memory) Close() error { return nil }

func cloneUpdate(u types.ChannelUpdate) types.ChannelUpdate {
	c := u
	c.State = u.State.Clone()
	if u.Metadata != nil {
		c.Metadata = make(map[string]interface{}, len(u.Metadata))
		for k, v := range u.Metadata {
			c.Metadata[k] = v
		}
	}
	return c
}
