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

package market_test

import (
	"context"
	"testing"
	"time"

	"code.stratumtrade.io/stratum/core/collateral"
	"code.stratumtrade.io/stratum/core/market"
	"code.stratumtrade.io/stratum/core/market/mocks"
	"code.stratumtrade.io/stratum/core/types"
	"code.stratumtrade.io/stratum/libs/num"
	"code.stratumtrade.io/stratum/logging"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	marketID = "eth-usd"
	router   = "router"
	governor = "governor"
)

type testEngine struct {
	*market.Engine
	ctrl *gomock.Controller
	col  *collateral.Engine

	now    time.Time
	minP   *num.Uint
	maxP   *num.Uint
	tokens map[string]uint64

	// net position size deltas reported to the reward sink, per account
	posStake map[string]*num.Int
}

func getTestEngine(t *testing.T) *testEngine {
	t.Helper()
	ctrl := gomock.NewController(t)

	te := &testEngine{
		ctrl:   ctrl,
		now:    time.Date(2023, 5, 15, 12, 0, 0, 0, time.UTC),
		minP:   num.Q96(),
		maxP:   num.Q96(),
		tokens:   map[string]uint64{},
		posStake: map[string]*num.Int{},
	}

	broker := mocks.NewMockBroker(ctrl)
	broker.EXPECT().Send(gomock.Any()).AnyTimes()
	broker.EXPECT().SendBatch(gomock.Any()).AnyTimes()

	ts := mocks.NewMockTimeService(ctrl)
	ts.EXPECT().GetTimeNow().DoAndReturn(func() time.Time { return te.now }).AnyTimes()

	feed := mocks.NewMockPriceFeed(ctrl)
	feed.EXPECT().GetMinPriceX96(gomock.Any()).DoAndReturn(
		func(string) (*num.Uint, error) { return te.minP.Clone(), nil }).AnyTimes()
	feed.EXPECT().GetMaxPriceX96(gomock.Any()).DoAndReturn(
		func(string) (*num.Uint, error) { return te.maxP.Clone(), nil }).AnyTimes()

	rewards := mocks.NewMockRewardSink(ctrl)
	rewards.EXPECT().OnLiquidityPositionChanged(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	rewards.EXPECT().OnPositionChanged(gomock.Any(), gomock.Any(), gomock.Any()).Do(
		func(_, account string, sizeDelta *num.Int) {
			cur, ok := te.posStake[account]
			if !ok {
				cur = num.IntZero()
			}
			te.posStake[account] = cur.Add(sizeDelta)
		}).AnyTimes()
	rewards.EXPECT().OnRiskBufferFundPositionChanged(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()

	referral := mocks.NewMockReferral(ctrl)
	referral.EXPECT().ReferralTokens(gomock.Any()).DoAndReturn(
		func(account string) (uint64, uint64) { return te.tokens[account], 0 }).AnyTimes()

	te.col = collateral.New(logging.NewTestLogger(), collateral.NewDefaultConfig())
	te.Engine = market.New(logging.NewTestLogger(), market.NewDefaultConfig(),
		broker, ts, feed, rewards, referral, te.col, router, governor)
	return te
}

// testMarketConfig carries a single sloped price impact segment up to a
// 100% premium at half the 1_000_000 impact liquidity, a 1% trading fee
// split 50/25, 10x trader leverage and a fixed execution fee of 10.
func testMarketConfig() *types.MarketConfig {
	cfg := &types.MarketConfig{
		Base: types.MarketBaseConfig{
			MinMarginPerLiquidityPosition:   num.NewUint(100),
			MaxRiskRatePerLiquidityPosition: 50_000_000,
			MaxLeveragePerLiquidityPosition: 100,
			MinMarginPerPosition:            num.NewUint(100),
			MaxLeveragePerPosition:          10,
			LiquidationFeeRate:              1_000_000,
			LiquidationExecutionFee:         num.NewUint(10),
			InterestRate:                    0,
			MaxFundingRate:                  50_000,
		},
		FeeRate: types.MarketFeeRateConfig{
			TradingFeeRate:              1_000_000,
			LiquidityFeeRate:            50_000_000,
			ProtocolFeeRate:             25_000_000,
			ReferralReturnFeeRate:       10_000_000,
			ReferralParentReturnFeeRate: 5_000_000,
			ReferralDiscountRate:        10_000_000,
		},
		Price: types.MarketPriceConfig{
			MaxPriceImpactLiquidity: num.NewUint(1_000_000),
			LiquidationVertexIndex:  1,
		},
	}
	cfg.Price.Vertices[1] = types.VertexConfig{BalanceRate: 50_000_000, PremiumRate: 100_000_000}
	for i := 2; i < types.VertexCount; i++ {
		cfg.Price.Vertices[i] = types.VertexConfig{BalanceRate: 100_000_000, PremiumRate: 100_000_000}
	}
	return cfg
}

func (te *testEngine) createMarket(t *testing.T) {
	t.Helper()
	require.NoError(t, te.CreateMarket(context.Background(), governor, marketID, testMarketConfig()))
}

// seedPool funds the LP account and books 1_000_000 pool liquidity, the
// full price impact liquidity, so the curve realizes its configured
// vertices exactly.
func (te *testEngine) seedPool(t *testing.T) {
	t.Helper()
	te.col.Deposit("lp", num.NewUint(20_000))
	_, err := te.OpenLiquidityPosition(context.Background(), router, marketID, "lp",
		num.NewUint(10_000), num.NewUint(1_000_000))
	require.NoError(t, err)
}

// openLong funds alice and opens a 250_000 long. At the Q96 index the
// pool quote is 1.25*Q96, a 312_500 notional and a 3125 fee, leaving
// 71_875 position margin out of the 75_000 delta.
func (te *testEngine) openLong(t *testing.T) {
	t.Helper()
	te.col.Deposit("alice", num.NewUint(100_000))
	_, err := te.IncreasePosition(context.Background(), router, marketID, "alice",
		types.SideLong, num.NewUint(75_000), num.NewUint(250_000))
	require.NoError(t, err)
}

func TestMarketAdministration(t *testing.T) {
	t.Run("market creation is gated to the governor", testCreateGated)
	t.Run("market ids must be unique", testCreateDuplicate)
	t.Run("config validation runs on create and update", testCreateInvalid)
	t.Run("operations on an unknown market fail", testUnknownMarket)
	t.Run("config updates swap atomically", testUpdateConfig)
	t.Run("liquidator registration is gated to the governor", testLiquidatorGated)
}

func testCreateGated(t *testing.T) {
	e := getTestEngine(t)
	defer e.ctrl.Finish()

	err := e.CreateMarket(context.Background(), "mallory", marketID, testMarketConfig())
	require.Error(t, err)
	assert.ErrorIs(t, errors.Cause(err), types.ErrCallerNotGovernor)
}

func testCreateDuplicate(t *testing.T) {
	e := getTestEngine(t)
	defer e.ctrl.Finish()
	e.createMarket(t)

	err := e.CreateMarket(context.Background(), governor, marketID, testMarketConfig())
	require.Error(t, err)
	assert.ErrorIs(t, errors.Cause(err), types.ErrMarketAlreadyExists)
	assert.Equal(t, []string{marketID}, e.MarketIDs())
}

func testCreateInvalid(t *testing.T) {
	e := getTestEngine(t)
	defer e.ctrl.Finish()

	cfg := testMarketConfig()
	cfg.FeeRate.TradingFeeRate = types.BasisPointsDivisor + 1
	err := e.CreateMarket(context.Background(), governor, marketID, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, errors.Cause(err), types.ErrInvalidRate)
}

func testUnknownMarket(t *testing.T) {
	e := getTestEngine(t)
	defer e.ctrl.Finish()

	_, err := e.IncreasePosition(context.Background(), router, "no-such", "alice",
		types.SideLong, num.NewUint(1000), num.UintZero())
	require.Error(t, err)
	assert.ErrorIs(t, errors.Cause(err), types.ErrMarketNotFound)

	_, err = e.MarketConfig("no-such")
	require.Error(t, err)
	assert.ErrorIs(t, errors.Cause(err), types.ErrMarketNotFound)
}

func testUpdateConfig(t *testing.T) {
	e := getTestEngine(t)
	defer e.ctrl.Finish()
	e.createMarket(t)

	cfg := testMarketConfig()
	cfg.FeeRate.TradingFeeRate = 2_000_000
	require.NoError(t, e.UpdateMarketConfig(context.Background(), governor, marketID, cfg))

	got, err := e.MarketConfig(marketID)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_000_000), got.FeeRate.TradingFeeRate)

	err = e.UpdateMarketConfig(context.Background(), "mallory", marketID, cfg)
	assert.ErrorIs(t, errors.Cause(err), types.ErrCallerNotGovernor)
}

func testLiquidatorGated(t *testing.T) {
	e := getTestEngine(t)
	defer e.ctrl.Finish()
	e.createMarket(t)

	err := e.RegisterLiquidator("mallory", "keeper")
	assert.ErrorIs(t, errors.Cause(err), types.ErrCallerNotGovernor)

	_, err = e.LiquidatePosition(context.Background(), "keeper", marketID, "alice",
		types.SideLong, "keeper")
	assert.ErrorIs(t, errors.Cause(err), types.ErrCallerNotLiquidator)

	require.NoError(t, e.RegisterLiquidator(governor, "keeper"))
	_, err = e.LiquidatePosition(context.Background(), "keeper", marketID, "alice",
		types.SideLong, "keeper")
	assert.ErrorIs(t, errors.Cause(err), types.ErrPositionNotFound)

	require.NoError(t, e.UnregisterLiquidator(governor, "keeper"))
	_, err = e.LiquidatePosition(context.Background(), "keeper", marketID, "alice",
		types.SideLong, "keeper")
	assert.ErrorIs(t, errors.Cause(err), types.ErrCallerNotLiquidator)
}

func TestTradeFlow(t *testing.T) {
	t.Run("a size delta needs pool liquidity", testTradeNeedsLiquidity)
	t.Run("the margin delta needs escrow balance", testTradeNeedsBalance)
	t.Run("caller gating on the router", testTradeGated)
	t.Run("a round trip settles margin, fees and the pool", testTradeRoundTrip)
	t.Run("referred trades fill the referral fee pot", testTradeReferral)
}

func testTradeNeedsLiquidity(t *testing.T) {
	e := getTestEngine(t)
	defer e.ctrl.Finish()
	e.createMarket(t)
	e.col.Deposit("alice", num.NewUint(100_000))

	_, err := e.IncreasePosition(context.Background(), router, marketID, "alice",
		types.SideLong, num.NewUint(75_000), num.NewUint(250_000))
	require.Error(t, err)
	assert.ErrorIs(t, errors.Cause(err), types.ErrInsufficientGlobalLiquidity)
}

func testTradeNeedsBalance(t *testing.T) {
	e := getTestEngine(t)
	defer e.ctrl.Finish()
	e.createMarket(t)
	e.seedPool(t)

	_, err := e.IncreasePosition(context.Background(), router, marketID, "alice",
		types.SideLong, num.NewUint(75_000), num.NewUint(250_000))
	require.Error(t, err)
	assert.ErrorIs(t, errors.Cause(err), types.ErrInsufficientBalance)
}

func testTradeGated(t *testing.T) {
	e := getTestEngine(t)
	defer e.ctrl.Finish()
	e.createMarket(t)

	_, err := e.IncreasePosition(context.Background(), "mallory", marketID, "alice",
		types.SideLong, num.NewUint(1000), num.UintZero())
	assert.ErrorIs(t, errors.Cause(err), types.ErrCallerNotRouter)

	_, err = e.DecreasePosition(context.Background(), "mallory", marketID, "alice",
		types.SideLong, num.UintZero(), num.NewUint(1), "alice")
	assert.ErrorIs(t, errors.Cause(err), types.ErrCallerNotRouter)
}

func testTradeRoundTrip(t *testing.T) {
	e := getTestEngine(t)
	defer e.ctrl.Finish()
	e.createMarket(t)
	e.seedPool(t)
	ctx := context.Background()

	e.openLong(t)
	assert.True(t, e.col.Balance("alice").EQ(num.NewUint(25_000)))

	p, err := e.Position(marketID, "alice", types.SideLong)
	require.NoError(t, err)
	assert.True(t, p.Margin.EQ(num.NewUint(71_875)))
	assert.True(t, p.Size.EQ(num.NewUint(250_000)))
	assert.True(t, e.posStake["alice"].EQ(num.NewInt(250_000)))

	glp, err := e.GlobalLiquidityPosition(marketID)
	require.NoError(t, err)
	assert.Equal(t, types.SideShort, glp.Side)
	assert.True(t, glp.NetSize.EQ(num.NewUint(250_000)))

	// the 3125 fee splits 1562 to LPs, 781 to the protocol pot and the
	// 782 remainder to the risk buffer fund
	assert.True(t, e.col.ProtocolFee(marketID).EQ(num.NewUint(781)))
	fund, _, err := e.RiskBufferFund(marketID)
	require.NoError(t, err)
	assert.True(t, fund.EQ(num.NewInt(782)))

	// closing at the same index re-traces the curve, the trade breaks even
	out, err := e.DecreasePosition(ctx, router, marketID, "alice",
		types.SideLong, num.UintZero(), num.NewUint(250_000), "alice")
	require.NoError(t, err)
	require.True(t, out.Closed)
	assert.True(t, out.RealizedPnL.IsZero())
	assert.True(t, out.Payout.EQ(num.NewUint(68_750)))
	assert.True(t, e.col.Balance("alice").EQ(num.NewUint(93_750)))

	glp, err = e.GlobalLiquidityPosition(marketID)
	require.NoError(t, err)
	assert.True(t, glp.TotalNetSize().IsZero())
	gp, err := e.GlobalPosition(marketID)
	require.NoError(t, err)
	assert.True(t, gp.LongSize.IsZero())

	_, err = e.Position(marketID, "alice", types.SideLong)
	assert.ErrorIs(t, errors.Cause(err), types.ErrPositionNotFound)
	assert.True(t, e.posStake["alice"].IsZero())
}

func testTradeReferral(t *testing.T) {
	e := getTestEngine(t)
	defer e.ctrl.Finish()
	e.createMarket(t)
	e.seedPool(t)
	e.tokens["alice"] = 7
	ctx := context.Background()

	e.col.Deposit("alice", num.NewUint(100_000))
	out, err := e.IncreasePosition(ctx, router, marketID, "alice",
		types.SideLong, num.NewUint(75_000), num.NewUint(250_000))
	require.NoError(t, err)

	// the 3125 fee is discounted 10% to 2813, 10% of which accrues to
	// token 7
	assert.True(t, out.Fee.TradingFee.EQ(num.NewUint(2813)))
	assert.True(t, out.Fee.ReferralFee.EQ(num.NewUint(281)))
	assert.True(t, e.col.ReferralFee(7).EQ(num.NewUint(281)))

	got, err := e.CollectReferralFee(ctx, router, marketID, 7, "referrer")
	require.NoError(t, err)
	assert.True(t, got.EQ(num.NewUint(281)))
	assert.True(t, e.col.Balance("referrer").EQ(num.NewUint(281)))
	assert.True(t, e.col.ReferralFee(7).IsZero())

	_, err = e.CollectReferralFee(ctx, "mallory", marketID, 7, "referrer")
	assert.ErrorIs(t, errors.Cause(err), types.ErrCallerNotRouter)
}

func TestCollectProtocolFee(t *testing.T) {
	e := getTestEngine(t)
	defer e.ctrl.Finish()
	e.createMarket(t)
	e.seedPool(t)
	e.openLong(t)
	ctx := context.Background()

	_, err := e.CollectProtocolFee(ctx, "mallory", marketID, "treasury")
	assert.ErrorIs(t, errors.Cause(err), types.ErrCallerNotGovernor)

	got, err := e.CollectProtocolFee(ctx, governor, marketID, "treasury")
	require.NoError(t, err)
	assert.True(t, got.EQ(num.NewUint(781)))
	assert.True(t, e.col.Balance("treasury").EQ(num.NewUint(781)))

	got, err = e.CollectProtocolFee(ctx, governor, marketID, "treasury")
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestPositionLiquidationFlow(t *testing.T) {
	e := getTestEngine(t)
	defer e.ctrl.Finish()
	e.createMarket(t)
	e.seedPool(t)
	e.openLong(t)
	require.NoError(t, e.RegisterLiquidator(governor, "keeper"))
	ctx := context.Background()

	// the index halves, alice's long is deep under water
	e.minP = num.MulDiv(num.Q96(), num.NewUint(1), num.NewUint(2), num.RoundDown)
	e.maxP = e.minP.Clone()

	out, err := e.LiquidatePosition(ctx, "keeper", marketID, "alice", types.SideLong, "keeper")
	require.NoError(t, err)
	assert.True(t, out.ExecutionFee.EQ(num.NewUint(10)))
	assert.True(t, e.col.Balance("keeper").EQ(num.NewUint(10)))

	gp, err := e.GlobalPosition(marketID)
	require.NoError(t, err)
	assert.True(t, gp.LongSize.IsZero())
	glp, err := e.GlobalLiquidityPosition(marketID)
	require.NoError(t, err)
	assert.True(t, glp.TotalNetSize().IsZero())
	assert.True(t, e.posStake["alice"].IsZero())

	// the fund holds the open fee remainder, the pool's buyback profit,
	// the forfeited margin net of fees and the unwind fee remainder
	fund, _, err := e.RiskBufferFund(marketID)
	require.NoError(t, err)
	assert.True(t, fund.IsPositive())
	assert.True(t, fund.GT(num.NewInt(125_000)))
}

func TestRiskBufferFundFlow(t *testing.T) {
	e := getTestEngine(t)
	defer e.ctrl.Finish()
	e.createMarket(t)
	ctx := context.Background()

	e.col.Deposit("carol", num.NewUint(5000))
	require.NoError(t, e.IncreaseRiskBufferFundPosition(ctx, router, marketID, "carol", num.NewUint(3000)))
	assert.True(t, e.col.Balance("carol").EQ(num.NewUint(2000)))

	fund, locked, err := e.RiskBufferFund(marketID)
	require.NoError(t, err)
	assert.True(t, fund.EQ(num.NewInt(3000)))
	assert.True(t, locked.EQ(num.NewUint(3000)))

	// deposits are locked for the cooldown
	err = e.DecreaseRiskBufferFundPosition(ctx, router, marketID, "carol", num.NewUint(3000), "carol")
	require.Error(t, err)
	assert.ErrorIs(t, errors.Cause(err), types.ErrRiskBufferFundPositionLocked)

	// governance can only draw surplus above the locked deposits
	err = e.GovUseRiskBufferFund(ctx, governor, marketID, "treasury", num.NewUint(100))
	require.Error(t, err)
	assert.ErrorIs(t, errors.Cause(err), types.ErrInsufficientRiskBufferFund)

	e.now = e.now.Add(91 * 24 * time.Hour)
	require.NoError(t, e.DecreaseRiskBufferFundPosition(ctx, router, marketID, "carol", num.NewUint(3000), "carol"))
	assert.True(t, e.col.Balance("carol").EQ(num.NewUint(5000)))

	fund, locked, err = e.RiskBufferFund(marketID)
	require.NoError(t, err)
	assert.True(t, fund.IsZero())
	assert.True(t, locked.IsZero())
}

func TestMarketViews(t *testing.T) {
	e := getTestEngine(t)
	defer e.ctrl.Finish()
	e.createMarket(t)
	e.seedPool(t)

	t.Run("market price tracks the index on a balanced pool", func(t *testing.T) {
		p, err := e.MarketPriceX96(marketID, types.SideLong)
		require.NoError(t, err)
		assert.True(t, p.EQ(num.Q96()))
		p, err = e.MarketPriceX96(marketID, types.SideShort)
		require.NoError(t, err)
		assert.True(t, p.EQ(num.Q96()))
	})
	t.Run("price state realizes the configured vertices", func(t *testing.T) {
		st, err := e.PriceState(marketID)
		require.NoError(t, err)
		assert.True(t, st.Vertices[1].Size.EQ(num.NewUint(500_000)))
		assert.True(t, st.Vertices[1].PremiumRateX96.EQ(num.Q96()))
	})
	t.Run("liquidity positions are listed", func(t *testing.T) {
		lps, err := e.LiquidityPositions(marketID)
		require.NoError(t, err)
		require.Len(t, lps, 1)
		assert.Equal(t, "lp", lps[0].Account)
	})
}

func TestOnTickAdvancesFunding(t *testing.T) {
	e := getTestEngine(t)
	defer e.ctrl.Finish()
	e.createMarket(t)

	genesis := e.now
	e.now = e.now.Add(time.Hour)
	e.OnTick(context.Background(), e.now)

	s, err := e.FundingSample(marketID)
	require.NoError(t, err)
	assert.Equal(t, genesis.Add(time.Hour), s.LastAdjustFundingRateTime)
	assert.Equal(t, uint16(0), s.SampleCount)
}

func TestSampleFundingRate(t *testing.T) {
	e := getTestEngine(t)
	defer e.ctrl.Finish()
	e.createMarket(t)

	t.Run("rejects an unknown market", func(t *testing.T) {
		err := e.SampleFundingRate(context.Background(), "no-such")
		require.Error(t, err)
		assert.ErrorIs(t, errors.Cause(err), types.ErrMarketNotFound)
	})
	t.Run("advances the market's funding window", func(t *testing.T) {
		genesis := e.now
		e.now = e.now.Add(time.Hour)
		require.NoError(t, e.SampleFundingRate(context.Background(), marketID))

		s, err := e.FundingSample(marketID)
		require.NoError(t, err)
		assert.Equal(t, genesis.Add(time.Hour), s.LastAdjustFundingRateTime)
		assert.Equal(t, uint16(0), s.SampleCount)
	})
}

func TestLiquidityPositionFlow(t *testing.T) {
	e := getTestEngine(t)
	defer e.ctrl.Finish()
	e.createMarket(t)
	ctx := context.Background()

	e.col.Deposit("lp", num.NewUint(20_000))
	id, err := e.OpenLiquidityPosition(ctx, router, marketID, "lp",
		num.NewUint(10_000), num.NewUint(1_000_000))
	require.NoError(t, err)
	assert.True(t, e.col.Balance("lp").EQ(num.NewUint(10_000)))

	t.Run("margin adjustments move escrow", func(t *testing.T) {
		require.NoError(t, e.AdjustLiquidityPositionMargin(ctx, router, marketID, id, "lp",
			num.NewInt(5000), "lp"))
		assert.True(t, e.col.Balance("lp").EQ(num.NewUint(5000)))

		require.NoError(t, e.AdjustLiquidityPositionMargin(ctx, router, marketID, id, "lp",
			num.NewInt(-5000), "lp"))
		assert.True(t, e.col.Balance("lp").EQ(num.NewUint(10_000)))
	})
	t.Run("closing returns the margin", func(t *testing.T) {
		require.NoError(t, e.CloseLiquidityPosition(ctx, router, marketID, id, "lp", "lp"))
		assert.True(t, e.col.Balance("lp").EQ(num.NewUint(20_000)))

		lps, err := e.LiquidityPositions(marketID)
		require.NoError(t, err)
		assert.Empty(t, lps)
	})
}
