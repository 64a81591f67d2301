// Copyright 2024 PolyCrypt GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package client_test

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	pkgtest "polycry.pt/poly-go/test"

	"perun.network/perun-hub-backend/channel"
	chtest "perun.network/perun-hub-backend/channel/test"
	"perun.network/perun-hub-backend/channel/types"
	"perun.network/perun-hub-backend/client"
	"perun.network/perun-hub-backend/payment"
	paytest "perun.network/perun-hub-backend/payment/test"
	wtest "perun.network/perun-hub-backend/wallet/test"
)

func newHubServer(t *testing.T) (*paytest.Hub, *client.Client, common.Address, *payment.Client) {
	t.Helper()
	rng := pkgtest.Prng(t)
	w, accs := wtest.NewWallet(rng, 1)
	hub := paytest.NewHub(wtest.NewRandomAccount(rng))
	user := accs[0].Address()
	_, err := hub.OpenChannel(chtest.NewChannelState(
		chtest.WithUser(user),
		chtest.WithNoPending(),
		chtest.WithBalanceWei(50, 50),
		chtest.WithBalanceToken(50, 50),
	))
	require.NoError(t, err)

	srv := httptest.NewServer(client.NewHandler(hub))
	t.Cleanup(srv.Close)
	c := client.NewClient(srv.URL + "/")
	pc := payment.NewClient(c, w, payment.WithHubAddress(hub.Address()), payment.WithDefaultUser(user))
	return hub, c, user, pc
}

func TestRoundTripOverHTTP(t *testing.T) {
	hub, c, user, pc := newHubServer(t)
	ctx := context.Background()

	latest, err := c.GetChannel(ctx, user)
	require.NoError(t, err)
	require.Equal(t, types.StatusOpen, latest.Status)
	require.NoError(t, channel.Backend.VerifyChannelState(latest.State.ChannelState, latest.State.SigHub, hub.Address()))

	resp, err := pc.ChannelPayment(ctx, types.NewBalances(5, 0), nil, user)
	require.NoError(t, err)
	require.NoError(t, pc.CheckHubResponse(resp))
	require.Equal(t, uint64(2), resp.State.TxCountGlobal)

	dep, err := pc.ProposeDeposit(ctx, types.NewBalances(1, 2), user)
	require.NoError(t, err)
	require.True(t, types.PendingFromState(dep.State.ChannelState).UserDeposit.Equal(types.NewBalances(1, 2)))

	ex, err := pc.ProposeExchange(ctx, types.ExchangedBalances{
		HubWei:    big.NewInt(-1),
		HubToken:  big.NewInt(1),
		UserWei:   big.NewInt(1),
		UserToken: big.NewInt(-1),
	}, "ETH", user)
	require.NoError(t, err)
	require.Equal(t, types.ReasonExchange, ex.Reason)

	updates, err := pc.Sync(ctx, 0, user)
	require.NoError(t, err)
	require.Len(t, updates, 2)

	receiver := wtest.NewRandomAddress(pkgtest.Prng(t))
	opened, err := pc.OpenThread(ctx, receiver, types.NewBalances(3, 3), user)
	require.NoError(t, err)
	_, err = c.Submit(ctx, resp.State.TxCountGlobal, []types.ChannelUpdate{opened.Update}, user)
	require.NoError(t, err)

	initial, err := c.GetInitialThreadStates(ctx, user)
	require.NoError(t, err)
	require.Len(t, initial, 1)
	threads, err := c.GetThreads(ctx, receiver)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	require.Equal(t, opened.Thread.SigA, threads[0].SigA)

	coll, err := pc.RequestCollateral(ctx, user)
	require.NoError(t, err)
	require.Equal(t, types.ReasonProposePending, coll.Reason)
}

func TestNotFound(t *testing.T) {
	_, c, _, _ := newHubServer(t)
	ctx := context.Background()
	unknown := wtest.NewRandomAddress(pkgtest.Prng(t))

	_, err := c.GetChannel(ctx, unknown)
	require.ErrorIs(t, err, client.ErrChannelNotFound)

	updates, err := c.Sync(ctx, 0, unknown)
	require.NoError(t, err)
	require.Empty(t, updates)

	_, err = c.RequestDeposit(ctx, types.NewBalances(1, 1), 1, unknown)
	require.True(t, client.IsNotFound(err))
}

// recorder is a fake hub that records the raw requests it receives.
type recorder struct {
	mu       sync.Mutex
	paths    []string
	bodies   []string
	requests []string
}

func (rec *recorder) handler(t *testing.T) http.Handler {
	r := chi.NewRouter()
	r.HandleFunc("/*", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		rec.mu.Lock()
		rec.paths = append(rec.paths, r.Method+" "+r.URL.Path)
		rec.bodies = append(rec.bodies, string(body))
		rec.requests = append(rec.requests, r.Header.Get(client.RequestIDHeader))
		rec.mu.Unlock()

		switch {
		case strings.HasSuffix(r.URL.Path, "/threads"):
			w.WriteHeader(http.StatusOK)
		case strings.HasSuffix(r.URL.Path, "/request-exchange"):
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"code":"rate","message":"exchange rate expired"}`)
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, "upstream down")
		}
	})
	return r
}

func TestWireFormat(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(t))
	defer srv.Close()
	c := client.NewClient(srv.URL)
	ctx := context.Background()
	user := common.HexToAddress("0xAbCdEf0000000000000000000000000000000001")

	threads, err := c.GetThreads(ctx, user)
	require.NoError(t, err)
	require.Empty(t, threads)

	_, err = c.RequestDeposit(ctx, types.NewBalances(10, 20), 7, user)
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	require.Contains(t, apiErr.Message, "upstream down")

	_, err = c.RequestExchange(ctx, types.ExchangedBalances{}, "TOKEN", 8, user)
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "rate", apiErr.Code)
	require.False(t, apiErr.IsNotFound())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Equal(t, []string{
		"GET /channel/0xabcdef0000000000000000000000000000000001/threads",
		"POST /channel/0xabcdef0000000000000000000000000000000001/request-deposit",
		"POST /channel/0xabcdef0000000000000000000000000000000001/request-exchange",
	}, rec.paths)
	require.JSONEq(t, `{"weiDeposit":"10","tokenDeposit":"20","txCount":"7"}`, rec.bodies[1])

	var ex map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(rec.bodies[2]), &ex))
	require.Equal(t, "TOKEN", ex["desiredCurrency"])
	require.Equal(t, "8", ex["txCount"])

	for _, id := range rec.requests {
		_, err := uuid.Parse(id)
		require.NoError(t, err)
	}
	require.NotEqual(t, rec.requests[0], rec.requests[1])
}
