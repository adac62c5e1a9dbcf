// Copyright (C) 2023 Gobalsky Labs Limited
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"code.stratumtrade.io/stratum/logging"
	"code.stratumtrade.io/stratum/metrics"
)

type indexPriceRequest struct {
	MinPriceX96 string `json:"minPriceX96"`
	MaxPriceX96 string `json:"maxPriceX96"`
}

func (s *Server) SetIndexPrice(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	defer metrics.StartAPIRequestAndTimeREST("SetIndexPrice")()
	req := indexPriceRequest{}
	if err := unmarshalBody(r, &req); err != nil {
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	minP, err := parseUint(req.MinPriceX96, "minPriceX96")
	if err != nil {
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	maxP, err := parseUint(req.MaxPriceX96, "maxPriceX96")
	if err != nil {
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	if err := s.oracle.SetIndexPriceX96(p.ByName("market"), minP, maxP); err != nil {
		s.log.Debug("index price rejected", logging.Error(err))
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	writeSuccess(w, struct{}{}, http.StatusOK)
}

// SampleFundingRate lets a keeper advance a market's funding sampling
// without waiting for the next engine tick.
func (s *Server) SampleFundingRate(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	defer metrics.StartAPIRequestAndTimeREST("SampleFundingRate")()
	if err := s.engine.SampleFundingRate(r.Context(), p.ByName("market")); err != nil {
		s.log.Debug("funding sample rejected", logging.Error(err))
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	writeSuccess(w, struct{}{}, http.StatusOK)
}

type registerTokenRequest struct {
	Token  uint64 `json:"token"`
	Owner  string `json:"owner"`
	Parent uint64 `json:"parent"`
}

func (s *Server) RegisterReferralToken(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	defer metrics.StartAPIRequestAndTimeREST("RegisterReferralToken")()
	req := registerTokenRequest{}
	if err := unmarshalBody(r, &req); err != nil {
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	if err := s.referral.RegisterToken(req.Token, req.Owner, req.Parent); err != nil {
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	writeSuccess(w, struct{}{}, http.StatusOK)
}

type bindTokenRequest struct {
	Account string `json:"account"`
	Token   uint64 `json:"token"`
}

func (s *Server) BindReferralToken(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	defer metrics.StartAPIRequestAndTimeREST("BindReferralToken")()
	req := bindTokenRequest{}
	if err := unmarshalBody(r, &req); err != nil {
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	if err := s.referral.Bind(req.Account, req.Token); err != nil {
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	writeSuccess(w, struct{}{}, http.StatusOK)
}
