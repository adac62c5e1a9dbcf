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

	"code.stratumtrade.io/stratum/libs/num"
	"code.stratumtrade.io/stratum/logging"
	"code.stratumtrade.io/stratum/metrics"
)

type tradeRequest struct {
	Caller      string `json:"caller"`
	Account     string `json:"account"`
	Side        string `json:"side"`
	MarginDelta string `json:"marginDelta"`
	SizeDelta   string `json:"sizeDelta"`
	Receiver    string `json:"receiver"`
}

type tradeResponse struct {
	FundingFee  string `json:"fundingFee"`
	RealizedPnL string `json:"realizedPnl"`
	TradingFee  string `json:"tradingFee"`
	Payout      string `json:"payout"`
	MarginAfter string `json:"marginAfter"`
	SizeAfter   string `json:"sizeAfter"`
	Closed      bool   `json:"closed"`
}

func (s *Server) IncreasePosition(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	defer metrics.StartAPIRequestAndTimeREST("IncreasePosition")()
	req := tradeRequest{}
	if err := unmarshalBody(r, &req); err != nil {
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	side, err := parseSide(req.Side)
	if err != nil {
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	marginDelta, err := parseUint(req.MarginDelta, "marginDelta")
	if err != nil {
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	sizeDelta, err := parseUint(req.SizeDelta, "sizeDelta")
	if err != nil {
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	outcome, err := s.engine.IncreasePosition(r.Context(), req.Caller, p.ByName("market"),
		req.Account, side, marginDelta, sizeDelta)
	if err != nil {
		s.log.Debug("increase position rejected", logging.Error(err))
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	writeSuccess(w, tradeResponse{
		FundingFee:  outcome.FundingFee.String(),
		RealizedPnL: outcome.RealizedPnL.String(),
		TradingFee:  outcome.Fee.TradingFee.String(),
		Payout:      outcome.Payout.String(),
		MarginAfter: outcome.MarginAfter.String(),
		SizeAfter:   outcome.SizeAfter.String(),
		Closed:      outcome.Closed,
	}, http.StatusOK)
}

func (s *Server) DecreasePosition(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	defer metrics.StartAPIRequestAndTimeREST("DecreasePosition")()
	req := tradeRequest{}
	if err := unmarshalBody(r, &req); err != nil {
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	side, err := parseSide(req.Side)
	if err != nil {
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	marginDelta, err := parseUint(req.MarginDelta, "marginDelta")
	if err != nil {
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	sizeDelta, err := parseUint(req.SizeDelta, "sizeDelta")
	if err != nil {
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	outcome, err := s.engine.DecreasePosition(r.Context(), req.Caller, p.ByName("market"),
		req.Account, side, marginDelta, sizeDelta, req.Receiver)
	if err != nil {
		s.log.Debug("decrease position rejected", logging.Error(err))
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	writeSuccess(w, tradeResponse{
		FundingFee:  outcome.FundingFee.String(),
		RealizedPnL: outcome.RealizedPnL.String(),
		TradingFee:  outcome.Fee.TradingFee.String(),
		Payout:      outcome.Payout.String(),
		MarginAfter: outcome.MarginAfter.String(),
		SizeAfter:   outcome.SizeAfter.String(),
		Closed:      outcome.Closed,
	}, http.StatusOK)
}

type liquidateRequest struct {
	Caller      string `json:"caller"`
	Account     string `json:"account"`
	Side        string `json:"side"`
	FeeReceiver string `json:"feeReceiver"`
}

type liquidateResponse struct {
	Size                string `json:"size"`
	LiquidationPriceX96 string `json:"liquidationPriceX96"`
	ExecutionFee        string `json:"executionFee"`
	TradingFee          string `json:"tradingFee"`
	FundingFee          string `json:"fundingFee"`
}

func (s *Server) LiquidatePosition(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	defer metrics.StartAPIRequestAndTimeREST("LiquidatePosition")()
	req := liquidateRequest{}
	if err := unmarshalBody(r, &req); err != nil {
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	side, err := parseSide(req.Side)
	if err != nil {
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	outcome, err := s.engine.LiquidatePosition(r.Context(), req.Caller, p.ByName("market"),
		req.Account, side, req.FeeReceiver)
	if err != nil {
		s.log.Debug("liquidation rejected", logging.Error(err))
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	metrics.LiquidationCounterInc(p.ByName("market"), "position")
	writeSuccess(w, liquidateResponse{
		Size:                outcome.Size.String(),
		LiquidationPriceX96: outcome.LiquidationPriceX96.String(),
		ExecutionFee:        outcome.ExecutionFee.String(),
		TradingFee:          outcome.Fee.TradingFee.String(),
		FundingFee:          outcome.FundingFee.String(),
	}, http.StatusOK)
}

type openLiquidityRequest struct {
	Caller    string `json:"caller"`
	Account   string `json:"account"`
	Margin    string `json:"margin"`
	Liquidity string `json:"liquidity"`
}

type openLiquidityResponse struct {
	ID uint64 `json:"id"`
}

func (s *Server) OpenLiquidityPosition(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	defer metrics.StartAPIRequestAndTimeREST("OpenLiquidityPosition")()
	req := openLiquidityRequest{}
	if err := unmarshalBody(r, &req); err != nil {
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	margin, err := parseUint(req.Margin, "margin")
	if err != nil {
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	liquidity, err := parseUint(req.Liquidity, "liquidity")
	if err != nil {
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	id, err := s.engine.OpenLiquidityPosition(r.Context(), req.Caller, p.ByName("market"),
		req.Account, margin, liquidity)
	if err != nil {
		s.log.Debug("open liquidity position rejected", logging.Error(err))
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	metrics.LiquidityGaugeAdd(1, p.ByName("market"))
	writeSuccess(w, openLiquidityResponse{ID: id}, http.StatusOK)
}

type closeLiquidityRequest struct {
	Caller   string `json:"caller"`
	ID       uint64 `json:"id"`
	Account  string `json:"account"`
	Receiver string `json:"receiver"`
}

func (s *Server) CloseLiquidityPosition(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	defer metrics.StartAPIRequestAndTimeREST("CloseLiquidityPosition")()
	req := closeLiquidityRequest{}
	if err := unmarshalBody(r, &req); err != nil {
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	if err := s.engine.CloseLiquidityPosition(r.Context(), req.Caller, p.ByName("market"),
		req.ID, req.Account, req.Receiver); err != nil {
		s.log.Debug("close liquidity position rejected", logging.Error(err))
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	metrics.LiquidityGaugeAdd(-1, p.ByName("market"))
	writeSuccess(w, struct{}{}, http.StatusOK)
}

type adjustMarginRequest struct {
	Caller      string `json:"caller"`
	ID          uint64 `json:"id"`
	Account     string `json:"account"`
	MarginDelta string `json:"marginDelta"`
	Receiver    string `json:"receiver"`
}

func (s *Server) AdjustLiquidityPositionMargin(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	defer metrics.StartAPIRequestAndTimeREST("AdjustLiquidityPositionMargin")()
	req := adjustMarginRequest{}
	if err := unmarshalBody(r, &req); err != nil {
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	marginDelta, err := parseIntAmount(req.MarginDelta)
	if err != nil {
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	if err := s.engine.AdjustLiquidityPositionMargin(r.Context(), req.Caller, p.ByName("market"),
		req.ID, req.Account, marginDelta, req.Receiver); err != nil {
		s.log.Debug("adjust liquidity margin rejected", logging.Error(err))
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	writeSuccess(w, struct{}{}, http.StatusOK)
}

type liquidateLiquidityRequest struct {
	Caller      string `json:"caller"`
	ID          uint64 `json:"id"`
	FeeReceiver string `json:"feeReceiver"`
}

func (s *Server) LiquidateLiquidityPosition(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	defer metrics.StartAPIRequestAndTimeREST("LiquidateLiquidityPosition")()
	req := liquidateLiquidityRequest{}
	if err := unmarshalBody(r, &req); err != nil {
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	if err := s.engine.LiquidateLiquidityPosition(r.Context(), req.Caller, p.ByName("market"),
		req.ID, req.FeeReceiver); err != nil {
		s.log.Debug("liquidity liquidation rejected", logging.Error(err))
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	metrics.LiquidationCounterInc(p.ByName("market"), "liquidity")
	metrics.LiquidityGaugeAdd(-1, p.ByName("market"))
	writeSuccess(w, struct{}{}, http.StatusOK)
}

type riskBufferRequest struct {
	Caller    string `json:"caller"`
	Account   string `json:"account"`
	Liquidity string `json:"liquidity"`
	Receiver  string `json:"receiver"`
}

func (s *Server) IncreaseRiskBufferFundPosition(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	defer metrics.StartAPIRequestAndTimeREST("IncreaseRiskBufferFundPosition")()
	req := riskBufferRequest{}
	if err := unmarshalBody(r, &req); err != nil {
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	liquidity, err := parseUint(req.Liquidity, "liquidity")
	if err != nil {
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	if err := s.engine.IncreaseRiskBufferFundPosition(r.Context(), req.Caller, p.ByName("market"),
		req.Account, liquidity); err != nil {
		s.log.Debug("risk buffer increase rejected", logging.Error(err))
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	writeSuccess(w, struct{}{}, http.StatusOK)
}

func (s *Server) DecreaseRiskBufferFundPosition(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	defer metrics.StartAPIRequestAndTimeREST("DecreaseRiskBufferFundPosition")()
	req := riskBufferRequest{}
	if err := unmarshalBody(r, &req); err != nil {
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	liquidity, err := parseUint(req.Liquidity, "liquidity")
	if err != nil {
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	if err := s.engine.DecreaseRiskBufferFundPosition(r.Context(), req.Caller, p.ByName("market"),
		req.Account, liquidity, req.Receiver); err != nil {
		s.log.Debug("risk buffer decrease rejected", logging.Error(err))
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	writeSuccess(w, struct{}{}, http.StatusOK)
}

type collectFeeRequest struct {
	Caller   string `json:"caller"`
	Token    uint64 `json:"token"`
	Receiver string `json:"receiver"`
}

type collectFeeResponse struct {
	Amount string `json:"amount"`
}

func (s *Server) CollectProtocolFee(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	defer metrics.StartAPIRequestAndTimeREST("CollectProtocolFee")()
	req := collectFeeRequest{}
	if err := unmarshalBody(r, &req); err != nil {
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	amount, err := s.engine.CollectProtocolFee(r.Context(), req.Caller, p.ByName("market"), req.Receiver)
	if err != nil {
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	writeSuccess(w, collectFeeResponse{Amount: amount.String()}, http.StatusOK)
}

func (s *Server) CollectReferralFee(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	defer metrics.StartAPIRequestAndTimeREST("CollectReferralFee")()
	req := collectFeeRequest{}
	if err := unmarshalBody(r, &req); err != nil {
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	amount, err := s.engine.CollectReferralFee(r.Context(), req.Caller, "", req.Token, req.Receiver)
	if err != nil {
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	writeSuccess(w, collectFeeResponse{Amount: amount.String()}, http.StatusOK)
}

// parseIntAmount reads a signed decimal string into a num.Int.
func parseIntAmount(s string) (*num.Int, error) {
	negative := false
	if len(s) > 0 && s[0] == '-' {
		negative = true
		s = s[1:]
	}
	u, err := parseUint(s, "marginDelta")
	if err != nil {
		return nil, err
	}
	return num.IntFromUint(u, !negative), nil
}
