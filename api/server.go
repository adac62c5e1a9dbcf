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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"code.stratumtrade.io/stratum/core/market"
	"code.stratumtrade.io/stratum/core/oracle"
	"code.stratumtrade.io/stratum/core/referral"
	"code.stratumtrade.io/stratum/core/types"
	"code.stratumtrade.io/stratum/libs/num"
	"code.stratumtrade.io/stratum/logging"
)

// Server exposes the market engine over HTTP: read views for market
// state and submit endpoints for the engine operations. Amounts are
// decimal strings, prices are X96 fixed point decimal strings.
type Server struct {
	*httprouter.Router

	log      *logging.Logger
	cfg      Config
	engine   *market.Engine
	oracle   *oracle.Engine
	referral *referral.Engine
	srv      *http.Server
}

// New wires the routing table and returns a server ready to Start.
func New(log *logging.Logger, cfg Config, engine *market.Engine, orc *oracle.Engine, ref *referral.Engine) *Server {
	log = log.Named(namedLogger)
	log.SetLevel(cfg.Level.Get())

	s := &Server{
		Router:   httprouter.New(),
		log:      log,
		cfg:      cfg,
		engine:   engine,
		oracle:   orc,
		referral: ref,
	}

	s.GET("/api/v1/markets", s.Markets)
	s.GET("/api/v1/markets/:market/config", s.MarketConfig)
	s.GET("/api/v1/markets/:market/price", s.MarketPrice)
	s.GET("/api/v1/markets/:market/price-state", s.PriceState)
	s.GET("/api/v1/markets/:market/liquidity", s.GlobalLiquidityPosition)
	s.GET("/api/v1/markets/:market/global-position", s.GlobalPosition)
	s.GET("/api/v1/markets/:market/funding", s.FundingSample)
	s.GET("/api/v1/markets/:market/risk-buffer", s.RiskBufferFund)
	s.GET("/api/v1/markets/:market/positions", s.Positions)
	s.GET("/api/v1/markets/:market/liquidity-positions", s.LiquidityPositions)

	s.POST("/api/v1/markets/:market/positions/increase", s.IncreasePosition)
	s.POST("/api/v1/markets/:market/positions/decrease", s.DecreasePosition)
	s.POST("/api/v1/markets/:market/positions/liquidate", s.LiquidatePosition)
	s.POST("/api/v1/markets/:market/liquidity-positions/open", s.OpenLiquidityPosition)
	s.POST("/api/v1/markets/:market/liquidity-positions/close", s.CloseLiquidityPosition)
	s.POST("/api/v1/markets/:market/liquidity-positions/adjust-margin", s.AdjustLiquidityPositionMargin)
	s.POST("/api/v1/markets/:market/liquidity-positions/liquidate", s.LiquidateLiquidityPosition)
	s.POST("/api/v1/markets/:market/risk-buffer/increase", s.IncreaseRiskBufferFundPosition)
	s.POST("/api/v1/markets/:market/risk-buffer/decrease", s.DecreaseRiskBufferFundPosition)
	s.POST("/api/v1/markets/:market/fees/protocol/collect", s.CollectProtocolFee)
	s.POST("/api/v1/fees/referral/collect", s.CollectReferralFee)
	s.POST("/api/v1/markets/:market/index-price", s.SetIndexPrice)
	s.POST("/api/v1/markets/:market/funding/sample", s.SampleFundingRate)
	s.POST("/api/v1/referrals/tokens", s.RegisterReferralToken)
	s.POST("/api/v1/referrals/bind", s.BindReferralToken)

	return s
}

// Start binds the listener, blocking until Stop or a listen error.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.IP, s.cfg.Port),
		Handler:      s,
		ReadTimeout:  s.cfg.Timeout.Get(),
		WriteTimeout: s.cfg.Timeout.Get(),
	}
	s.log.Info("starting api server", logging.String("address", s.srv.Addr))
	return s.srv.ListenAndServe()
}

// Stop shuts the listener down, draining inflight requests.
func (s *Server) Stop() error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(context.Background())
}

type marketsResponse struct {
	Markets []string `json:"markets"`
}

func (s *Server) Markets(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeSuccess(w, marketsResponse{Markets: s.engine.MarketIDs()}, http.StatusOK)
}

type vertexView struct {
	BalanceRate uint64 `json:"balanceRate"`
	PremiumRate uint64 `json:"premiumRate"`
}

type marketConfigResponse struct {
	MinMarginPerLiquidityPosition   string `json:"minMarginPerLiquidityPosition"`
	MaxRiskRatePerLiquidityPosition uint64 `json:"maxRiskRatePerLiquidityPosition"`
	MaxLeveragePerLiquidityPosition uint64 `json:"maxLeveragePerLiquidityPosition"`
	MinMarginPerPosition            string `json:"minMarginPerPosition"`
	MaxLeveragePerPosition          uint64 `json:"maxLeveragePerPosition"`
	LiquidationFeeRate              uint64 `json:"liquidationFeeRate"`
	LiquidationExecutionFee         string `json:"liquidationExecutionFee"`
	InterestRate                    uint64 `json:"interestRate"`
	MaxFundingRate                  uint64 `json:"maxFundingRate"`

	TradingFeeRate              uint64 `json:"tradingFeeRate"`
	LiquidityFeeRate            uint64 `json:"liquidityFeeRate"`
	ProtocolFeeRate             uint64 `json:"protocolFeeRate"`
	ReferralReturnFeeRate       uint64 `json:"referralReturnFeeRate"`
	ReferralParentReturnFeeRate uint64 `json:"referralParentReturnFeeRate"`
	ReferralDiscountRate        uint64 `json:"referralDiscountRate"`

	MaxPriceImpactLiquidity string                          `json:"maxPriceImpactLiquidity"`
	LiquidationVertexIndex  uint8                           `json:"liquidationVertexIndex"`
	Vertices                [types.VertexCount]vertexView   `json:"vertices"`
}

func (s *Server) MarketConfig(w http.ResponseWriter, _ *http.Request, p httprouter.Params) {
	cfg, err := s.engine.MarketConfig(p.ByName("market"))
	if err != nil {
		writeError(w, newError(err.Error()), http.StatusNotFound)
		return
	}
	resp := marketConfigResponse{
		MinMarginPerLiquidityPosition:   cfg.Base.MinMarginPerLiquidityPosition.String(),
		MaxRiskRatePerLiquidityPosition: cfg.Base.MaxRiskRatePerLiquidityPosition,
		MaxLeveragePerLiquidityPosition: cfg.Base.MaxLeveragePerLiquidityPosition,
		MinMarginPerPosition:            cfg.Base.MinMarginPerPosition.String(),
		MaxLeveragePerPosition:          cfg.Base.MaxLeveragePerPosition,
		LiquidationFeeRate:              cfg.Base.LiquidationFeeRate,
		LiquidationExecutionFee:         cfg.Base.LiquidationExecutionFee.String(),
		InterestRate:                    cfg.Base.InterestRate,
		MaxFundingRate:                  cfg.Base.MaxFundingRate,
		TradingFeeRate:                  cfg.FeeRate.TradingFeeRate,
		LiquidityFeeRate:                cfg.FeeRate.LiquidityFeeRate,
		ProtocolFeeRate:                 cfg.FeeRate.ProtocolFeeRate,
		ReferralReturnFeeRate:           cfg.FeeRate.ReferralReturnFeeRate,
		ReferralParentReturnFeeRate:     cfg.FeeRate.ReferralParentReturnFeeRate,
		ReferralDiscountRate:            cfg.FeeRate.ReferralDiscountRate,
		MaxPriceImpactLiquidity:         cfg.Price.MaxPriceImpactLiquidity.String(),
		LiquidationVertexIndex:          cfg.Price.LiquidationVertexIndex,
	}
	for i, v := range cfg.Price.Vertices {
		resp.Vertices[i] = vertexView{BalanceRate: v.BalanceRate, PremiumRate: v.PremiumRate}
	}
	writeSuccess(w, resp, http.StatusOK)
}

type marketPriceResponse struct {
	Side     string `json:"side"`
	PriceX96 string `json:"priceX96"`
}

func (s *Server) MarketPrice(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	side, err := parseSide(r.URL.Query().Get("side"))
	if err != nil {
		writeError(w, newError(err.Error()), http.StatusBadRequest)
		return
	}
	price, err := s.engine.MarketPriceX96(p.ByName("market"), side)
	if err != nil {
		writeError(w, newError(err.Error()), http.StatusNotFound)
		return
	}
	writeSuccess(w, marketPriceResponse{Side: side.String(), PriceX96: price.String()}, http.StatusOK)
}

type priceVertexView struct {
	Size           string `json:"size"`
	PremiumRateX96 string `json:"premiumRateX96"`
}

type priceStateResponse struct {
	PremiumRateX96            string                             `json:"premiumRateX96"`
	CurrentVertexIndex        uint8                              `json:"currentVertexIndex"`
	PendingVertexIndex        uint8                              `json:"pendingVertexIndex"`
	Vertices                  [types.VertexCount]priceVertexView `json:"vertices"`
	LiquidationBufferNetSizes [types.VertexCount]string          `json:"liquidationBufferNetSizes"`
}

func (s *Server) PriceState(w http.ResponseWriter, _ *http.Request, p httprouter.Params) {
	st, err := s.engine.PriceState(p.ByName("market"))
	if err != nil {
		writeError(w, newError(err.Error()), http.StatusNotFound)
		return
	}
	resp := priceStateResponse{
		PremiumRateX96:     st.PremiumRateX96.String(),
		CurrentVertexIndex: st.CurrentVertexIndex,
		PendingVertexIndex: st.PendingVertexIndex,
	}
	for i := range st.Vertices {
		resp.Vertices[i] = priceVertexView{
			Size:           st.Vertices[i].Size.String(),
			PremiumRateX96: st.Vertices[i].PremiumRateX96.String(),
		}
		resp.LiquidationBufferNetSizes[i] = st.LiquidationBufferNetSizes[i].String()
	}
	writeSuccess(w, resp, http.StatusOK)
}

type globalLiquidityResponse struct {
	Liquidity                string `json:"liquidity"`
	NetSize                  string `json:"netSize"`
	LiquidationBufferNetSize string `json:"liquidationBufferNetSize"`
	Side                     string `json:"side"`
	EntryPriceX96            string `json:"entryPriceX96"`
	RealizedProfitGrowthX64  string `json:"realizedProfitGrowthX64"`
}

func (s *Server) GlobalLiquidityPosition(w http.ResponseWriter, _ *http.Request, p httprouter.Params) {
	glp, err := s.engine.GlobalLiquidityPosition(p.ByName("market"))
	if err != nil {
		writeError(w, newError(err.Error()), http.StatusNotFound)
		return
	}
	writeSuccess(w, globalLiquidityResponse{
		Liquidity:                glp.Liquidity.String(),
		NetSize:                  glp.NetSize.String(),
		LiquidationBufferNetSize: glp.LiquidationBufferNetSize.String(),
		Side:                     glp.Side.String(),
		EntryPriceX96:            glp.EntryPriceX96.String(),
		RealizedProfitGrowthX64:  glp.RealizedProfitGrowthX64.String(),
	}, http.StatusOK)
}

type globalPositionResponse struct {
	LongSize                  string `json:"longSize"`
	ShortSize                 string `json:"shortSize"`
	LongFundingRateGrowthX96  string `json:"longFundingRateGrowthX96"`
	ShortFundingRateGrowthX96 string `json:"shortFundingRateGrowthX96"`
}

func (s *Server) GlobalPosition(w http.ResponseWriter, _ *http.Request, p httprouter.Params) {
	gp, err := s.engine.GlobalPosition(p.ByName("market"))
	if err != nil {
		writeError(w, newError(err.Error()), http.StatusNotFound)
		return
	}
	writeSuccess(w, globalPositionResponse{
		LongSize:                  gp.LongSize.String(),
		ShortSize:                 gp.ShortSize.String(),
		LongFundingRateGrowthX96:  gp.LongFundingRateGrowthX96.String(),
		ShortFundingRateGrowthX96: gp.ShortFundingRateGrowthX96.String(),
	}, http.StatusOK)
}

type fundingSampleResponse struct {
	LastAdjustFundingRateTime int64  `json:"lastAdjustFundingRateTime"`
	SampleCount               uint16 `json:"sampleCount"`
	CumulativePremiumRateX96  string `json:"cumulativePremiumRateX96"`
}

func (s *Server) FundingSample(w http.ResponseWriter, _ *http.Request, p httprouter.Params) {
	sample, err := s.engine.FundingSample(p.ByName("market"))
	if err != nil {
		writeError(w, newError(err.Error()), http.StatusNotFound)
		return
	}
	writeSuccess(w, fundingSampleResponse{
		LastAdjustFundingRateTime: sample.LastAdjustFundingRateTime.Unix(),
		SampleCount:               sample.SampleCount,
		CumulativePremiumRateX96:  sample.CumulativePremiumRateX96.String(),
	}, http.StatusOK)
}

type riskBufferResponse struct {
	Fund      string `json:"fund"`
	Liquidity string `json:"liquidity"`
}

func (s *Server) RiskBufferFund(w http.ResponseWriter, _ *http.Request, p httprouter.Params) {
	fund, liquidity, err := s.engine.RiskBufferFund(p.ByName("market"))
	if err != nil {
		writeError(w, newError(err.Error()), http.StatusNotFound)
		return
	}
	writeSuccess(w, riskBufferResponse{Fund: fund.String(), Liquidity: liquidity.String()}, http.StatusOK)
}

type positionView struct {
	Account                   string `json:"account"`
	Side                      string `json:"side"`
	Margin                    string `json:"margin"`
	Size                      string `json:"size"`
	EntryPriceX96             string `json:"entryPriceX96"`
	EntryFundingRateGrowthX96 string `json:"entryFundingRateGrowthX96"`
}

func (s *Server) Positions(w http.ResponseWriter, _ *http.Request, p httprouter.Params) {
	ps, err := s.engine.Positions(p.ByName("market"))
	if err != nil {
		writeError(w, newError(err.Error()), http.StatusNotFound)
		return
	}
	out := make([]positionView, 0, len(ps))
	for _, pos := range ps {
		out = append(out, positionView{
			Account:                   pos.Account,
			Side:                      pos.Side.String(),
			Margin:                    pos.Margin.String(),
			Size:                      pos.Size.String(),
			EntryPriceX96:             pos.EntryPriceX96.String(),
			EntryFundingRateGrowthX96: pos.EntryFundingRateGrowthX96.String(),
		})
	}
	writeSuccess(w, out, http.StatusOK)
}

type liquidityPositionView struct {
	ID                           uint64 `json:"id"`
	Account                      string `json:"account"`
	Margin                       string `json:"margin"`
	Liquidity                    string `json:"liquidity"`
	EntryUnrealizedLoss          string `json:"entryUnrealizedLoss"`
	EntryRealizedProfitGrowthX64 string `json:"entryRealizedProfitGrowthX64"`
	EntryTime                    int64  `json:"entryTime"`
}

func (s *Server) LiquidityPositions(w http.ResponseWriter, _ *http.Request, p httprouter.Params) {
	ps, err := s.engine.LiquidityPositions(p.ByName("market"))
	if err != nil {
		writeError(w, newError(err.Error()), http.StatusNotFound)
		return
	}
	out := make([]liquidityPositionView, 0, len(ps))
	for _, pos := range ps {
		out = append(out, liquidityPositionView{
			ID:                           pos.ID,
			Account:                      pos.Account,
			Margin:                       pos.Margin.String(),
			Liquidity:                    pos.Liquidity.String(),
			EntryUnrealizedLoss:          pos.EntryUnrealizedLoss.String(),
			EntryRealizedProfitGrowthX64: pos.EntryRealizedProfitGrowthX64.String(),
			EntryTime:                    pos.EntryTime.Unix(),
		})
	}
	writeSuccess(w, out, http.StatusOK)
}

func parseSide(s string) (types.Side, error) {
	switch s {
	case "long":
		return types.SideLong, nil
	case "short":
		return types.SideShort, nil
	default:
		return types.SideUnspecified, fmt.Errorf("invalid side %q", s)
	}
}

func parseUint(s, field string) (*num.Uint, error) {
	u, overflow := num.UintFromString(s, 10)
	if overflow {
		return nil, fmt.Errorf("invalid %s %q", field, s)
	}
	return u, nil
}

func unmarshalBody(r *http.Request, into interface{}) error {
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return ErrInvalidRequest
	}
	return json.Unmarshal(body, into)
}

func writeError(w http.ResponseWriter, e error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	buf, _ := json.Marshal(e)
	w.Write(buf)
}

func writeSuccess(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	buf, _ := json.Marshal(data)
	w.Write(buf)
}

// ErrInvalidRequest is returned when the request body cannot be read.
var ErrInvalidRequest = newError("invalid request")

// HTTPError is the JSON shape of every error response.
type HTTPError struct {
	ErrorStr string `json:"error"`
}

func (e HTTPError) Error() string {
	return e.ErrorStr
}

func newError(e string) HTTPError {
	return HTTPError{ErrorStr: e}
}
