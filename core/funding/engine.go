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

package funding

import (
	"context"
	"time"

	"code.stratumtrade.io/stratum/core/events"
	"code.stratumtrade.io/stratum/core/types"
	"code.stratumtrade.io/stratum/libs/num"
	"code.stratumtrade.io/stratum/logging"
)

// Broker send events.
type Broker interface {
	Send(event events.Event)
}

const (
	// SampleInterval is the spacing of premium rate samples inside an
	// hourly funding window.
	SampleInterval = 5 * time.Second
	// SamplesPerHour is the number of samples closing a funding window.
	SamplesPerHour = 720
	// sampleWeightSum is 1+2+...+SamplesPerHour, the denominator of the
	// ordinal weighted premium average.
	sampleWeightSum = SamplesPerHour * (SamplesPerHour + 1) / 2
	// rateChangeClampBasisPoints bounds how far a single funding
	// adjustment can pull the rate towards the interest rate, 0.05%.
	rateChangeClampBasisPoints uint64 = 50_000
)

// Engine accrues premium rate samples and settles the hourly funding
// transfer between the long and short sides of one market. Later samples
// carry linearly more weight, so the rate tracks the end of the window
// more closely than its start.
type Engine struct {
	Config
	log      *logging.Logger
	broker   Broker
	marketID string

	glp    *types.GlobalLiquidityPosition
	gp     *types.GlobalPosition
	prev   *types.PreviousGlobalFundingRate
	sample *types.GlobalFundingRateSample

	interestRate            uint64
	maxFundingRate          uint64
	maxPriceImpactLiquidity *num.Uint
}

// New returns a funding engine for one market. The window opens at the
// given genesis time, which callers align to a wall clock hour.
func New(
	log *logging.Logger,
	config Config,
	broker Broker,
	marketID string,
	glp *types.GlobalLiquidityPosition,
	gp *types.GlobalPosition,
	genesis time.Time,
) *Engine {
	log = log.Named(namedLogger)
	log.SetLevel(config.Level.Get())

	return &Engine{
		Config:                  config,
		log:                     log,
		broker:                  broker,
		marketID:                marketID,
		glp:                     glp,
		gp:                      gp,
		prev:                    types.NewPreviousGlobalFundingRate(),
		sample:                  types.NewGlobalFundingRateSample(genesis.Truncate(time.Hour)),
		maxPriceImpactLiquidity: num.UintZero(),
	}
}

// UpdateParams swaps in the funding parameters of a market config change.
func (e *Engine) UpdateParams(interestRate, maxFundingRate uint64, maxPriceImpactLiquidity *num.Uint) {
	e.interestRate = interestRate
	e.maxFundingRate = maxFundingRate
	e.maxPriceImpactLiquidity = maxPriceImpactLiquidity.Clone()
}

// PreviousGrowthOf returns the growth accumulator snapshot taken before
// the last settlement, for the given side.
func (e *Engine) PreviousGrowthOf(side types.Side) *num.Int {
	return e.prev.GrowthOf(side).Clone()
}

// Sample returns a copy of the open window's accumulator state.
func (e *Engine) Sample() *types.GlobalFundingRateSample {
	return &types.GlobalFundingRateSample{
		LastAdjustFundingRateTime: e.sample.LastAdjustFundingRateTime,
		SampleCount:               e.sample.SampleCount,
		CumulativePremiumRateX96:  e.sample.CumulativePremiumRateX96.Clone(),
	}
}

// Accrue folds the elapsed 5 second ticks since the last touch into the
// open window at the standing premium, settling every full hour crossed.
// The returned amount is funding that found no receiver and belongs to
// the risk buffer fund. Accrue is idempotent inside a single tick.
func (e *Engine) Accrue(ctx context.Context, now time.Time, premiumRateX96 *num.Uint, maxIndexPriceX96 *num.Uint) *num.Int {
	unreceived := num.IntZero()
	for {
		elapsed := now.Sub(e.sample.LastAdjustFundingRateTime)
		if elapsed < SampleInterval {
			return unreceived
		}
		count := uint16(min64(int64(elapsed/SampleInterval), SamplesPerHour))
		if count <= e.sample.SampleCount {
			return unreceived
		}

		prem := e.scaledPremiumX96(premiumRateX96)
		// sample i carries weight i, fold all missed ticks in one go
		before := uint64(e.sample.SampleCount)
		after := uint64(count)
		weight := (after*(after+1) - before*(before+1)) / 2
		e.sample.CumulativePremiumRateX96.Add(
			num.MulDivInt(prem, num.NewUint(weight), num.NewUint(1), num.RoundDown))
		e.sample.SampleCount = count

		if count < SamplesPerHour {
			return unreceived
		}
		unreceived.Add(e.settleWindow(ctx, maxIndexPriceX96))
	}
}

// scaledPremiumX96 is the signed sample value: the standing premium
// scaled down when the pool carries less than the full price impact
// liquidity, positive when the pool is net short.
func (e *Engine) scaledPremiumX96(premiumRateX96 *num.Uint) *num.Int {
	if premiumRateX96.IsZero() || e.maxPriceImpactLiquidity.IsZero() {
		return num.IntZero()
	}
	liquidity := num.Min(e.glp.Liquidity, e.maxPriceImpactLiquidity)
	scaled := num.MulDiv(premiumRateX96, liquidity, e.maxPriceImpactLiquidity, num.RoundDown)
	return num.IntFromUint(scaled, e.glp.Side == types.SideShort)
}

func (e *Engine) settleWindow(ctx context.Context, maxIndexPriceX96 *num.Uint) *num.Int {
	avgMag := num.DivRound(e.sample.CumulativePremiumRateX96.Abs(), num.NewUint(sampleWeightSum), num.RoundDown)
	avg := num.IntFromUint(avgMag, !e.sample.CumulativePremiumRateX96.IsNegative())

	// pull the average towards the interest rate, bounded per adjustment
	interestX96 := num.IntFromUint(
		num.MulDiv(num.NewUint(e.interestRate), num.Q96(), num.NewUint(types.BasisPointsDivisor), num.RoundDown), true)
	clampX96 := num.MulDiv(num.NewUint(rateChangeClampBasisPoints), num.Q96(), num.NewUint(types.BasisPointsDivisor), num.RoundDown)
	pull := interestX96.Sub(avg.Clone())
	pull = clampInt(pull, clampX96)
	delta := avg.Add(pull)

	maxRateX96 := num.MulDiv(num.NewUint(e.maxFundingRate), num.Q96(), num.NewUint(types.BasisPointsDivisor), num.RoundDown)
	delta = clampInt(delta, maxRateX96)

	unreceived := e.adjust(ctx, delta, maxIndexPriceX96)

	e.sample.LastAdjustFundingRateTime = e.sample.LastAdjustFundingRateTime.Add(time.Hour)
	e.sample.SampleCount = 0
	e.sample.CumulativePremiumRateX96 = num.IntZero()

	e.broker.Send(events.NewFundingRateAdjusted(ctx, e.marketID, delta,
		e.gp.LongFundingRateGrowthX96, e.gp.ShortFundingRateGrowthX96,
		e.sample.LastAdjustFundingRateTime))
	return unreceived
}

// adjust moves the growth accumulators by one settled funding rate. A
// positive rate means longs pay shorts. When the receiving side is empty
// the full amount is returned for the risk buffer fund instead.
func (e *Engine) adjust(ctx context.Context, deltaX96 *num.Int, maxIndexPriceX96 *num.Uint) *num.Int {
	if deltaX96.IsZero() {
		return num.IntZero()
	}
	e.prev.LongFundingRateGrowthX96 = e.gp.LongFundingRateGrowthX96.Clone()
	e.prev.ShortFundingRateGrowthX96 = e.gp.ShortFundingRateGrowthX96.Clone()

	payer, receiver := types.SideLong, types.SideShort
	if deltaX96.IsNegative() {
		payer, receiver = types.SideShort, types.SideLong
	}
	payerSize := e.gp.SizeOf(payer)
	if payerSize.IsZero() {
		return num.IntZero()
	}

	// token amount per unit of payer size, carried at X96
	unitDeltaX96 := num.MulDiv(maxIndexPriceX96, deltaX96.Abs(), num.Q96(), num.RoundUp)
	e.gp.GrowthOf(payer).SubUint(unitDeltaX96)

	receiverSize := e.gp.SizeOf(receiver)
	if receiverSize.IsZero() {
		total := num.MulDiv(unitDeltaX96, payerSize, num.Q96(), num.RoundDown)
		if e.log.GetLevel() == logging.DebugLevel {
			e.log.Debug("funding settled with empty receiver side",
				logging.MarketID(e.marketID),
				logging.Stringer("payer", payer),
				logging.String("amount", total.String()))
		}
		return num.IntFromUint(total, true)
	}
	recvX96 := num.MulDiv(unitDeltaX96, payerSize, receiverSize, num.RoundDown)
	e.gp.GrowthOf(receiver).AddUint(recvX96)
	return num.IntZero()
}

func clampInt(v *num.Int, bound *num.Uint) *num.Int {
	if v.Abs().GT(bound) {
		return num.IntFromUint(bound, !v.IsNegative())
	}
	return v
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
