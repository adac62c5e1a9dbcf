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

package funding_test

import (
	"context"
	"testing"
	"time"

	"code.stratumtrade.io/stratum/core/funding"
	"code.stratumtrade.io/stratum/core/market/mocks"
	"code.stratumtrade.io/stratum/core/types"
	"code.stratumtrade.io/stratum/libs/num"
	"code.stratumtrade.io/stratum/logging"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEngine struct {
	*funding.Engine
	ctrl    *gomock.Controller
	glp     *types.GlobalLiquidityPosition
	gp      *types.GlobalPosition
	genesis time.Time
	index   *num.Uint
}

func getTestEngine(t *testing.T) *testEngine {
	t.Helper()
	ctrl := gomock.NewController(t)
	broker := mocks.NewMockBroker(ctrl)
	broker.EXPECT().Send(gomock.Any()).AnyTimes()

	glp := types.NewGlobalLiquidityPosition()
	glp.Liquidity = num.NewUint(1_000_000)
	glp.Side = types.SideShort
	gp := types.NewGlobalPosition()
	genesis := time.Date(2023, 5, 15, 12, 0, 0, 0, time.UTC)

	eng := funding.New(logging.NewTestLogger(), funding.NewDefaultConfig(),
		broker, "eth-usd", glp, gp, genesis)
	eng.UpdateParams(0, 50_000, num.NewUint(1_000_000))

	return &testEngine{
		Engine:  eng,
		ctrl:    ctrl,
		glp:     glp,
		gp:      gp,
		genesis: genesis,
		index:   num.Q96(),
	}
}

// maxRateX96 is the per-hour funding rate bound of the test market,
// 0.05% as an X96 fraction. The per-adjustment change clamp sits at the
// same value.
func maxRateX96() *num.Uint {
	return num.MulDiv(num.NewUint(50_000), num.Q96(), num.NewUint(types.BasisPointsDivisor), num.RoundDown)
}

func halfQ96() *num.Uint {
	return num.MulDiv(num.Q96(), num.NewUint(1), num.NewUint(2), num.RoundDown)
}

func TestFundingSampling(t *testing.T) {
	e := getTestEngine(t)
	defer e.ctrl.Finish()
	ctx := context.Background()

	// under one sample interval nothing accrues
	out := e.Accrue(ctx, e.genesis.Add(4*time.Second), halfQ96(), e.index)
	assert.True(t, out.IsZero())
	assert.Equal(t, uint16(0), e.Sample().SampleCount)

	// 25 seconds is 5 samples at ordinal weights 1..5
	out = e.Accrue(ctx, e.genesis.Add(25*time.Second), halfQ96(), e.index)
	assert.True(t, out.IsZero())
	s := e.Sample()
	assert.Equal(t, uint16(5), s.SampleCount)
	want := num.IntFromUint(num.MulDiv(num.Q96(), num.NewUint(15), num.NewUint(2), num.RoundDown), true)
	assert.True(t, s.CumulativePremiumRateX96.EQ(want))

	// accrual is idempotent within a tick
	e.Accrue(ctx, e.genesis.Add(25*time.Second), halfQ96(), e.index)
	e.Accrue(ctx, e.genesis.Add(26*time.Second), halfQ96(), e.index)
	assert.True(t, e.Sample().CumulativePremiumRateX96.EQ(want))
	assert.Equal(t, uint16(5), e.Sample().SampleCount)
}

func TestFundingScalesWithLiquidity(t *testing.T) {
	e := getTestEngine(t)
	defer e.ctrl.Finish()
	ctx := context.Background()

	// half the price impact liquidity halves the sampled premium
	e.glp.Liquidity = num.NewUint(500_000)
	e.Accrue(ctx, e.genesis.Add(5*time.Second), halfQ96(), e.index)

	want := num.IntFromUint(num.MulDiv(num.Q96(), num.NewUint(1), num.NewUint(4), num.RoundDown), true)
	assert.True(t, e.Sample().CumulativePremiumRateX96.EQ(want))
}

func TestFundingSettlesTowardsInterest(t *testing.T) {
	e := getTestEngine(t)
	defer e.ctrl.Finish()
	ctx := context.Background()

	// 1% interest with a zero premium: the hourly rate pulls up from
	// zero, bounded by the adjustment clamp, then longs pay shorts
	e.UpdateParams(1_000_000, 50_000, num.NewUint(1_000_000))
	e.gp.LongSize = num.NewUint(10_000_000)
	e.gp.ShortSize = num.NewUint(5_000_000)

	out := e.Accrue(ctx, e.genesis.Add(time.Hour), num.UintZero(), e.index)
	assert.True(t, out.IsZero())

	rate := maxRateX96()
	assert.True(t, e.gp.LongFundingRateGrowthX96.EQ(num.IntFromUint(rate, false)))
	wantShort := num.MulDiv(rate, num.NewUint(10_000_000), num.NewUint(5_000_000), num.RoundDown)
	assert.True(t, e.gp.ShortFundingRateGrowthX96.EQ(num.IntFromUint(wantShort, true)))

	// the pre-settlement snapshot still shows the old accumulators
	assert.True(t, e.PreviousGrowthOf(types.SideLong).IsZero())
	assert.True(t, e.PreviousGrowthOf(types.SideShort).IsZero())

	s := e.Sample()
	assert.Equal(t, e.genesis.Add(time.Hour), s.LastAdjustFundingRateTime)
	assert.Equal(t, uint16(0), s.SampleCount)
	assert.True(t, s.CumulativePremiumRateX96.IsZero())
}

func TestFundingNegativeRate(t *testing.T) {
	e := getTestEngine(t)
	defer e.ctrl.Finish()
	ctx := context.Background()

	// a long pool samples a negative premium, shorts pay longs
	e.glp.Side = types.SideLong
	e.gp.LongSize = num.NewUint(10_000_000)
	e.gp.ShortSize = num.NewUint(5_000_000)

	e.Accrue(ctx, e.genesis.Add(time.Hour), halfQ96(), e.index)

	rate := maxRateX96()
	assert.True(t, e.gp.ShortFundingRateGrowthX96.EQ(num.IntFromUint(rate, false)))
	wantLong := num.MulDiv(rate, num.NewUint(5_000_000), num.NewUint(10_000_000), num.RoundDown)
	assert.True(t, e.gp.LongFundingRateGrowthX96.EQ(num.IntFromUint(wantLong, true)))
}

func TestFundingEmptyReceiver(t *testing.T) {
	e := getTestEngine(t)
	defer e.ctrl.Finish()
	ctx := context.Background()

	// nobody is short, the longs' payment has no receiver and falls to
	// the risk buffer fund
	e.UpdateParams(1_000_000, 50_000, num.NewUint(1_000_000))
	e.gp.LongSize = num.NewUint(10_000_000)

	out := e.Accrue(ctx, e.genesis.Add(time.Hour), num.UintZero(), e.index)

	rate := maxRateX96()
	wantTotal := num.MulDiv(rate, num.NewUint(10_000_000), num.Q96(), num.RoundDown)
	assert.True(t, out.EQ(num.IntFromUint(wantTotal, true)))
	assert.True(t, e.gp.LongFundingRateGrowthX96.EQ(num.IntFromUint(rate, false)))
	assert.True(t, e.gp.ShortFundingRateGrowthX96.IsZero())
}

func TestFundingEmptyPayer(t *testing.T) {
	e := getTestEngine(t)
	defer e.ctrl.Finish()
	ctx := context.Background()

	// a positive rate with no longs moves nothing
	e.UpdateParams(1_000_000, 50_000, num.NewUint(1_000_000))
	e.gp.ShortSize = num.NewUint(5_000_000)

	out := e.Accrue(ctx, e.genesis.Add(time.Hour), num.UintZero(), e.index)
	assert.True(t, out.IsZero())
	assert.True(t, e.gp.LongFundingRateGrowthX96.IsZero())
	assert.True(t, e.gp.ShortFundingRateGrowthX96.IsZero())
}

func TestFundingGenesisTruncatedToHour(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	broker := mocks.NewMockBroker(ctrl)
	broker.EXPECT().Send(gomock.Any()).AnyTimes()

	genesis := time.Date(2023, 5, 15, 12, 42, 17, 0, time.UTC)
	eng := funding.New(logging.NewTestLogger(), funding.NewDefaultConfig(),
		broker, "eth-usd", types.NewGlobalLiquidityPosition(), types.NewGlobalPosition(), genesis)

	require.Equal(t, time.Date(2023, 5, 15, 12, 0, 0, 0, time.UTC),
		eng.Sample().LastAdjustFundingRateTime)
}
