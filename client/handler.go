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

package client

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"perun.network/go-perun/log"

	"perun.network/perun-hub-backend/channel"
	"perun.network/perun-hub-backend/channel/types"
	"perun.network/perun-hub-backend/payment"
	wtypes "perun.network/perun-hub-backend/wallet/types"
	"perun.network/perun-hub-backend/wire"
)

type handler struct {
	log.Embedding
	hub payment.Hub
}

// NewHandler exposes hub over the REST API that Client speaks.
func NewHandler(hub payment.Hub) http.Handler {
	h := &handler{Embedding: log.MakeEmbedding(log.Default()), hub: hub}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(echoRequestID)
	r.Route("/channel/{user}", func(r chi.Router) {
		r.Get("/", h.getChannel)
		r.Get("/initial-thread-states", h.getInitialThreadStates)
		r.Get("/threads", h.getThreads)
		r.Post("/sync", h.sync)
		r.Post("/request-deposit", h.requestDeposit)
		r.Post("/request-withdrawal", h.requestWithdrawal)
		r.Post("/request-exchange", h.requestExchange)
		r.Post("/request-collateralization", h.requestCollateral)
		r.Post("/update", h.update)
	})
	return r
}

func echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(RequestIDHeader, middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r)
	})
}

func (h *handler) getChannel(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	u, err := h.hub.GetChannel(r.Context(), user)
	h.respondUpdate(w, r, u, err)
}

func (h *handler) getInitialThreadStates(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	states, err := h.hub.GetInitialThreadStates(r.Context(), user)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ws := make([]wire.ThreadState, len(states))
	for i, s := range states {
		ws[i] = wire.MakeThreadState(types.SignedThreadState{ThreadState: s})
	}
	h.respond(w, ws)
}

func (h *handler) getThreads(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	threads, err := h.hub.GetThreads(r.Context(), user)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ws := make([]wire.ThreadState, len(threads))
	for i, t := range threads {
		ws[i] = wire.MakeThreadState(t)
	}
	h.respond(w, ws)
}

func (h *handler) sync(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	var req wire.TxCountRequest
	if !h.decode(w, r, &req) {
		return
	}
	updates, err := h.hub.Sync(r.Context(), uint64(req.TxCount), user)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, wire.MakeChannelUpdates(updates))
}

func (h *handler) requestDeposit(w http.ResponseWriter, r *http.Request) {
	h.pending(w, r, h.hub.RequestDeposit)
}

func (h *handler) requestWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.pending(w, r, h.hub.RequestWithdrawal)
}

func (h *handler) pending(w http.ResponseWriter, r *http.Request, request func(ctx context.Context, b types.Balances, txCount uint64, user common.Address) (types.ChannelUpdate, error)) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	var req wire.DepositRequest
	if !h.decode(w, r, &req) {
		return
	}
	b, err := req.ToBalances()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := request(r.Context(), b, uint64(req.TxCount), user)
	h.respondUpdate(w, r, u, err)
}

func (h *handler) requestExchange(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	var req wire.ExchangeRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, err := wire.ToExchangedBalances(req.ExchangeAmount)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.hub.RequestExchange(r.Context(), amount, req.DesiredCurrency, uint64(req.TxCount), user)
	h.respondUpdate(w, r, u, err)
}

func (h *handler) requestCollateral(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	var req wire.TxCountRequest
	if !h.decode(w, r, &req) {
		return
	}
	u, err := h.hub.RequestCollateral(r.Context(), uint64(req.TxCount), user)
	h.respondUpdate(w, r, u, err)
}

func (h *handler) update(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	var req wire.UpdateRequest
	if !h.decode(w, r, &req) {
		return
	}
	updates, err := wire.ToChannelUpdates(req.Updates)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.hub.Submit(r.Context(), uint64(req.TxCount), updates, user)
	h.respondUpdate(w, r, u, err)
}

func (h *handler) user(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	user, err := wtypes.ParseAddress(chi.URLParam(r, "user"))
	if err != nil {
		h.fail(w, r, err)
		return common.Address{}, false
	}
	return user, true
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.fail(w, r, errors.WithMessage(types.ErrEncoding, err.Error()))
		return false
	}
	return true
}

func (h *handler) respondUpdate(w http.ResponseWriter, r *http.Request, u types.ChannelUpdate, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, wire.MakeChannelUpdate(u))
}

func (h *handler) respond(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Log().WithError(err).Warn("Writing response failed")
	}
}

// fail maps err onto an HTTP status and writes it as an APIError body.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := APIError{Code: "internal", Message: err.Error(), StatusCode: http.StatusInternalServerError}
	var nf interface{ IsNotFound() bool }
	switch {
	case errors.As(err, &nf) && nf.IsNotFound(), errors.Is(err, ErrChannelNotFound):
		apiErr.Code, apiErr.StatusCode = "not_found", http.StatusNotFound
	case errors.Is(err, channel.ErrValidationRejected), errors.Is(err, types.ErrEncoding):
		apiErr.Code, apiErr.StatusCode = "bad_request", http.StatusBadRequest
	}
	h.Log().WithField("request", middleware.GetReqID(r.Context())).
		Debugf("%s %s failed: %v", r.Method, r.URL.Path, err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.StatusCode)
	_ = json.NewEncoder(w).Encode(struct {
		Error APIError `json:"error"`
	}{apiErr})
}
