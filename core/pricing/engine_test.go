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

package pricing_test

import (
	"context"
	"testing"

	"code.stratumtrade.io/stratum/core/market/mocks"
	"code.stratumtrade.io/stratum/core/pricing"
	"code.stratumtrade.io/stratum/core/types"
	"code.stratumtrade.io/stratum/libs/num"
	"code.stratumtrade.io/stratum/logging"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// the test curve: one sloped segment from (0, 0) up to half the pool
// liquidity at a full Q96 premium, flat from there to the full
// liquidity. With liquidity 1_000_000 and index Q96, vertex 1 realizes
// at size 500_000 so every interpolation in the tests divides exactly.
func testPriceConfig() types.MarketPriceConfig {
	cfg := types.MarketPriceConfig{
		MaxPriceImpactLiquidity: num.NewUint(1_000_000),
		LiquidationVertexIndex:  1,
	}
	cfg.Vertices = [types.VertexCount]types.VertexConfig{
		{},
		{BalanceRate: 50_000_000, PremiumRate: 100_000_000},
		{BalanceRate: 100_000_000, PremiumRate: 100_000_000},
		{BalanceRate: 100_000_000, PremiumRate: 100_000_000},
		{BalanceRate: 100_000_000, PremiumRate: 100_000_000},
		{BalanceRate: 100_000_000, PremiumRate: 100_000_000},
		{BalanceRate: 100_000_000, PremiumRate: 100_000_000},
	}
	return cfg
}

type testEngine struct {
	*pricing.Engine
	ctrl  *gomock.Controller
	glp   *types.GlobalLiquidityPosition
	index *num.Uint
}

func getTestEngine(t *testing.T) *testEngine {
	t.Helper()
	ctrl := gomock.NewController(t)
	broker := mocks.NewMockBroker(ctrl)
	broker.EXPECT().Send(gomock.Any()).AnyTimes()

	glp := types.NewGlobalLiquidityPosition()
	glp.Liquidity = num.NewUint(1_000_000)

	eng := pricing.New(logging.NewTestLogger(), pricing.NewDefaultConfig(),
		broker, "eth-usd", glp, testPriceConfig())
	eng.OnLiquidityChanged(context.Background(), num.Q96())

	return &testEngine{Engine: eng, ctrl: ctrl, glp: glp, index: num.Q96()}
}

// q96Frac returns n/d scaled by Q96, the fractions used here are exact.
func q96Frac(n, d uint64) *num.Uint {
	return num.MulDiv(num.Q96(), num.NewUint(n), num.NewUint(d), num.RoundDown)
}

func TestVertexDerivation(t *testing.T) {
	e := getTestEngine(t)
	defer e.ctrl.Finish()

	st := e.State()
	assert.Equal(t, "500000", st.Vertices[1].Size.String())
	assert.True(t, st.Vertices[1].PremiumRateX96.EQ(num.Q96()))
	for i := 2; i < types.VertexCount; i++ {
		assert.Equal(t, "1000000", st.Vertices[i].Size.String())
		assert.True(t, st.Vertices[i].PremiumRateX96.EQ(num.Q96()))
	}

	// without liquidity the curve collapses to zero sizes
	e.glp.Liquidity = num.UintZero()
	e.OnLiquidityChanged(context.Background(), e.index)
	st = e.State()
	for i := 1; i < types.VertexCount; i++ {
		assert.True(t, st.Vertices[i].Size.IsZero())
	}
}

func TestQuoteValidation(t *testing.T) {
	e := getTestEngine(t)
	defer e.ctrl.Finish()

	_, err := e.Quote(e.index, types.SideUnspecified, num.NewUint(1), false)
	assert.Error(t, err)

	_, err = e.Quote(e.index, types.SideShort, num.UintZero(), false)
	assert.ErrorIs(t, errors.Cause(err), types.ErrZeroSizeDelta)

	_, err = e.Quote(e.index, types.SideShort, nil, false)
	assert.ErrorIs(t, errors.Cause(err), types.ErrZeroSizeDelta)

	// a voluntary walk past the last vertex fails
	_, err = e.Quote(e.index, types.SideShort, num.NewUint(1_000_001), false)
	assert.ErrorIs(t, errors.Cause(err), types.ErrMaxPremiumRateExceeded)
}

func TestQuoteOpensPoolShort(t *testing.T) {
	e := getTestEngine(t)
	defer e.ctrl.Finish()
	ctx := context.Background()

	res, err := e.Quote(e.index, types.SideShort, num.NewUint(250_000), false)
	require.NoError(t, err)

	// the walk climbs half way up the first segment, the average
	// premium over the trapezoid is a quarter of Q96
	assert.True(t, res.TradePriceX96.EQ(num.Sum(num.Q96(), q96Frac(1, 4))))
	assert.True(t, res.EntryPriceAfterX96.EQ(res.TradePriceX96))
	assert.Equal(t, types.SideShort, res.SideAfter)
	assert.Equal(t, "250000", res.NetSizeAfter.String())
	assert.True(t, res.BufferAfter.IsZero())
	assert.True(t, res.RealizedPnL.IsZero())

	// nothing moved until Apply
	assert.True(t, e.State().PremiumRateX96.IsZero())
	assert.True(t, e.glp.NetSize.IsZero())

	e.Apply(ctx, res)
	st := e.State()
	assert.True(t, st.PremiumRateX96.EQ(q96Frac(1, 2)))
	assert.Equal(t, uint8(1), st.CurrentVertexIndex)
	assert.Equal(t, "250000", e.glp.NetSize.String())
	assert.Equal(t, types.SideShort, e.glp.Side)
}

func TestQuoteImproveRealizesPnL(t *testing.T) {
	e := getTestEngine(t)
	defer e.ctrl.Finish()
	ctx := context.Background()

	res, err := e.Quote(e.index, types.SideShort, num.NewUint(250_000), false)
	require.NoError(t, err)
	e.Apply(ctx, res)

	// closing the top half of the position buys back at the top of the
	// curve, above the pool's average entry, a realized loss
	res, err = e.Quote(e.index, types.SideLong, num.NewUint(125_000), false)
	require.NoError(t, err)
	assert.True(t, res.TradePriceX96.EQ(num.Sum(num.Q96(), q96Frac(3, 8))))
	assert.Equal(t, "-15625", res.RealizedPnL.String())
	assert.Equal(t, types.SideShort, res.SideAfter)
	assert.Equal(t, "125000", res.NetSizeAfter.String())
	// a pure improve keeps the entry price
	assert.True(t, res.EntryPriceAfterX96.EQ(num.Sum(num.Q96(), q96Frac(1, 4))))
	e.Apply(ctx, res)
	assert.True(t, e.State().PremiumRateX96.EQ(q96Frac(1, 4)))

	// the bottom half closes below entry, the mirror profit
	res, err = e.Quote(e.index, types.SideLong, num.NewUint(125_000), false)
	require.NoError(t, err)
	assert.Equal(t, "15625", res.RealizedPnL.String())
	assert.True(t, res.NetSizeAfter.IsZero())
	e.Apply(ctx, res)
	assert.True(t, e.State().PremiumRateX96.IsZero())
	assert.Equal(t, uint8(0), e.State().CurrentVertexIndex)
}

func TestQuoteCrossesZero(t *testing.T) {
	e := getTestEngine(t)
	defer e.ctrl.Finish()
	ctx := context.Background()

	res, err := e.Quote(e.index, types.SideShort, num.NewUint(250_000), false)
	require.NoError(t, err)
	e.Apply(ctx, res)

	// closing 250k and opening 150k on the other side in one trade
	res, err = e.Quote(e.index, types.SideLong, num.NewUint(400_000), false)
	require.NoError(t, err)
	assert.Equal(t, types.SideLong, res.SideAfter)
	assert.Equal(t, "150000", res.NetSizeAfter.String())
	// the opened remainder enters below index, the pool now quotes long
	assert.True(t, res.EntryPriceAfterX96.LT(num.Q96()))

	e.Apply(ctx, res)
	assert.Equal(t, types.SideLong, e.glp.Side)
	assert.Equal(t, "150000", e.glp.NetSize.String())
}

func TestLiquidationParksPastVertex(t *testing.T) {
	e := getTestEngine(t)
	defer e.ctrl.Finish()
	ctx := context.Background()

	res, err := e.Quote(e.index, types.SideShort, num.NewUint(600_000), false)
	require.NoError(t, err)
	e.Apply(ctx, res)
	require.True(t, e.State().PremiumRateX96.EQ(num.Q96()))

	// past the liquidation vertex a forced flow parks off-curve at the
	// standing premium instead of failing
	res, err = e.Quote(e.index, types.SideShort, num.NewUint(100_000), true)
	require.NoError(t, err)
	assert.True(t, res.TradePriceX96.EQ(num.Sum(num.Q96(), num.Q96())))
	assert.Equal(t, "600000", res.NetSizeAfter.String())
	assert.Equal(t, "100000", res.BufferAfter.String())

	e.Apply(ctx, res)
	assert.True(t, e.State().PremiumRateX96.EQ(num.Q96()))
	assert.Equal(t, "100000", e.glp.LiquidationBufferNetSize.String())
	assert.Equal(t, "100000", e.State().LiquidationBufferNetSizes[1].String())

	// a closing trade consumes the parked exposure before the curve
	res, err = e.Quote(e.index, types.SideLong, num.NewUint(50_000), false)
	require.NoError(t, err)
	assert.Equal(t, "600000", res.NetSizeAfter.String())
	assert.Equal(t, "50000", res.BufferAfter.String())
	e.Apply(ctx, res)
	assert.True(t, e.State().PremiumRateX96.EQ(num.Q96()))
}

func TestVertexRederivationDeferred(t *testing.T) {
	e := getTestEngine(t)
	defer e.ctrl.Finish()
	ctx := context.Background()

	res, err := e.Quote(e.index, types.SideShort, num.NewUint(250_000), false)
	require.NoError(t, err)
	e.Apply(ctx, res)

	// halving the liquidity only re-derives the vertices above the
	// curve position, the occupied one is deferred
	e.glp.Liquidity = num.NewUint(500_000)
	e.OnLiquidityChanged(ctx, e.index)
	st := e.State()
	assert.Equal(t, uint8(1), st.PendingVertexIndex)
	assert.Equal(t, "500000", st.Vertices[1].Size.String())
	for i := 2; i < types.VertexCount; i++ {
		assert.Equal(t, "500000", st.Vertices[i].Size.String())
	}

	// once the position drops below the deferred vertex it realizes
	res, err = e.Quote(e.index, types.SideLong, num.NewUint(250_000), false)
	require.NoError(t, err)
	e.Apply(ctx, res)
	st = e.State()
	assert.Equal(t, uint8(0), st.PendingVertexIndex)
	assert.Equal(t, "250000", st.Vertices[1].Size.String())
}

func TestMarketPrice(t *testing.T) {
	e := getTestEngine(t)
	defer e.ctrl.Finish()
	ctx := context.Background()

	// balanced pool, both sides trade at index
	assert.True(t, e.MarketPriceX96(e.index, types.SideLong).EQ(num.Q96()))
	assert.True(t, e.MarketPriceX96(e.index, types.SideShort).EQ(num.Q96()))

	// a short pool raises the price for both sides
	res, err := e.Quote(e.index, types.SideShort, num.NewUint(250_000), false)
	require.NoError(t, err)
	e.Apply(ctx, res)
	want := num.Sum(num.Q96(), q96Frac(1, 2))
	assert.True(t, e.MarketPriceX96(e.index, types.SideLong).EQ(want))
	assert.True(t, e.MarketPriceX96(e.index, types.SideShort).EQ(want))
}

func TestMarketPricePoolLong(t *testing.T) {
	e := getTestEngine(t)
	defer e.ctrl.Finish()
	ctx := context.Background()

	res, err := e.Quote(e.index, types.SideLong, num.NewUint(250_000), false)
	require.NoError(t, err)
	// the pool moving long discounts the execution price below index
	assert.True(t, res.TradePriceX96.EQ(num.UintZero().Sub(num.Q96(), q96Frac(1, 4))))
	e.Apply(ctx, res)

	want := num.UintZero().Sub(num.Q96(), q96Frac(1, 2))
	assert.True(t, e.MarketPriceX96(e.index, types.SideLong).EQ(want))
	assert.True(t, e.MarketPriceX96(e.index, types.SideShort).EQ(want))
}
