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

package types

import (
	"time"

	"code.stratumtrade.io/stratum/libs/num"
)

// GlobalLiquidityPosition is the pool's aggregate opposite-side exposure
// to all trader positions, one per market. The side flips when net trader
// exposure crosses zero.
type GlobalLiquidityPosition struct {
	// Liquidity is the total liquidity of all open LP positions.
	Liquidity *num.Uint
	// NetSize is the pool position size sitting on the price impact curve.
	NetSize *num.Uint
	// LiquidationBufferNetSize is pool exposure parked off-curve by forced
	// liquidation flows.
	LiquidationBufferNetSize *num.Uint
	Side                     Side
	EntryPriceX96            *num.Uint
	// RealizedProfitGrowthX64 is the accumulated realized profit per unit
	// of liquidity, as a 64 bit fractional fixed point value.
	RealizedProfitGrowthX64 *num.Uint
}

func NewGlobalLiquidityPosition() *GlobalLiquidityPosition {
	return &GlobalLiquidityPosition{
		Liquidity:                num.UintZero(),
		NetSize:                  num.UintZero(),
		LiquidationBufferNetSize: num.UintZero(),
		EntryPriceX96:            num.UintZero(),
		RealizedProfitGrowthX64:  num.UintZero(),
	}
}

// TotalNetSize returns the pool's full exposure, curve position plus
// liquidation buffer.
func (g *GlobalLiquidityPosition) TotalNetSize() *num.Uint {
	return num.Sum(g.NetSize, g.LiquidationBufferNetSize)
}

// LiquidityPosition is a single LP deposit, keyed by a numeric id.
type LiquidityPosition struct {
	ID      uint64
	Account string
	Margin  *num.Uint
	// Liquidity never changes after open, except by close or liquidation.
	Liquidity *num.Uint
	// EntryUnrealizedLoss snapshots the absolute pool-wide unrealized loss
	// at open.
	EntryUnrealizedLoss *num.Uint
	// EntryRealizedProfitGrowthX64 snapshots the realized profit growth
	// accumulator at open.
	EntryRealizedProfitGrowthX64 *num.Uint
	EntryTime                    time.Time
}

func (p *LiquidityPosition) Clone() *LiquidityPosition {
	cpy := *p
	cpy.Margin = p.Margin.Clone()
	cpy.Liquidity = p.Liquidity.Clone()
	cpy.EntryUnrealizedLoss = p.EntryUnrealizedLoss.Clone()
	cpy.EntryRealizedProfitGrowthX64 = p.EntryRealizedProfitGrowthX64.Clone()
	return &cpy
}

// GlobalUnrealizedLossMetrics is the running time and liquidity weighted
// accumulator used to apportion pool-wide unrealized loss across LP
// positions opened at different times. The base resets whenever total
// unrealized loss returns to zero.
type GlobalUnrealizedLossMetrics struct {
	LastZeroLossTime time.Time
	// Liquidity is the summed liquidity of LP positions opened after
	// LastZeroLossTime.
	Liquidity *num.Uint
	// LiquidityTimesUnrealizedLoss is the summed liquidity * entry loss
	// product of those positions.
	LiquidityTimesUnrealizedLoss *num.Uint
}

func NewGlobalUnrealizedLossMetrics() *GlobalUnrealizedLossMetrics {
	return &GlobalUnrealizedLossMetrics{
		Liquidity:                    num.UintZero(),
		LiquidityTimesUnrealizedLoss: num.UintZero(),
	}
}

// PriceVertex is a realized breakpoint of the price impact curve, size in
// position units, premium as an X96 fraction.
type PriceVertex struct {
	Size           *num.Uint
	PremiumRateX96 *num.Uint
}

func (v PriceVertex) Clone() PriceVertex {
	return PriceVertex{
		Size:           v.Size.Clone(),
		PremiumRateX96: v.PremiumRateX96.Clone(),
	}
}

// PriceState is the realized piecewise linear curve mapping pool imbalance
// to premium. Vertex 0 is fixed at (0, 0), vertices are monotonically non
// decreasing in both size and premium.
type PriceState struct {
	PremiumRateX96 *num.Uint
	// CurrentVertexIndex i means the curve position sits in
	// (vertices[i-1].Size, vertices[i].Size], index 0 iff the position is 0.
	CurrentVertexIndex uint8
	// PendingVertexIndex marks vertices at or below the current one whose
	// re-derivation is deferred until the curve position drops below them.
	PendingVertexIndex        uint8
	Vertices                  [VertexCount]PriceVertex
	LiquidationBufferNetSizes [VertexCount]*num.Uint
}

func NewPriceState() *PriceState {
	ps := &PriceState{
		PremiumRateX96: num.UintZero(),
	}
	for i := 0; i < VertexCount; i++ {
		ps.Vertices[i] = PriceVertex{Size: num.UintZero(), PremiumRateX96: num.UintZero()}
		ps.LiquidationBufferNetSizes[i] = num.UintZero()
	}
	return ps
}

func (ps *PriceState) Clone() *PriceState {
	cpy := &PriceState{
		PremiumRateX96:     ps.PremiumRateX96.Clone(),
		CurrentVertexIndex: ps.CurrentVertexIndex,
		PendingVertexIndex: ps.PendingVertexIndex,
	}
	for i := 0; i < VertexCount; i++ {
		cpy.Vertices[i] = ps.Vertices[i].Clone()
		cpy.LiquidationBufferNetSizes[i] = ps.LiquidationBufferNetSizes[i].Clone()
	}
	return cpy
}

// GlobalPosition tracks aggregate trader exposure per side and the funding
// rate growth accumulators, which move in opposite directions for long vs
// short.
type GlobalPosition struct {
	LongSize  *num.Uint
	ShortSize *num.Uint
	// growth accumulators are X96 token amounts per unit of position size
	LongFundingRateGrowthX96  *num.Int
	ShortFundingRateGrowthX96 *num.Int
}

func NewGlobalPosition() *GlobalPosition {
	return &GlobalPosition{
		LongSize:                  num.UintZero(),
		ShortSize:                 num.UintZero(),
		LongFundingRateGrowthX96:  num.IntZero(),
		ShortFundingRateGrowthX96: num.IntZero(),
	}
}

// SizeOf returns the aggregate size of the given side.
func (g *GlobalPosition) SizeOf(side Side) *num.Uint {
	if side == SideLong {
		return g.LongSize
	}
	return g.ShortSize
}

// GrowthOf returns the funding rate growth accumulator of the given side.
func (g *GlobalPosition) GrowthOf(side Side) *num.Int {
	if side == SideLong {
		return g.LongFundingRateGrowthX96
	}
	return g.ShortFundingRateGrowthX96
}

// PreviousGlobalFundingRate is the growth accumulator snapshot taken
// immediately before a funding adjustment, referenced by the liquidation
// funding fee correction.
type PreviousGlobalFundingRate struct {
	LongFundingRateGrowthX96  *num.Int
	ShortFundingRateGrowthX96 *num.Int
}

func NewPreviousGlobalFundingRate() *PreviousGlobalFundingRate {
	return &PreviousGlobalFundingRate{
		LongFundingRateGrowthX96:  num.IntZero(),
		ShortFundingRateGrowthX96: num.IntZero(),
	}
}

func (p *PreviousGlobalFundingRate) GrowthOf(side Side) *num.Int {
	if side == SideLong {
		return p.LongFundingRateGrowthX96
	}
	return p.ShortFundingRateGrowthX96
}

// GlobalFundingRateSample accumulates premium rate samples within the
// current hour window.
type GlobalFundingRateSample struct {
	LastAdjustFundingRateTime time.Time
	SampleCount               uint16
	CumulativePremiumRateX96  *num.Int
}

func NewGlobalFundingRateSample(t time.Time) *GlobalFundingRateSample {
	return &GlobalFundingRateSample{
		LastAdjustFundingRateTime: t,
		CumulativePremiumRateX96:  num.IntZero(),
	}
}

// Position is a leveraged trader position, keyed by (account, side),
// deleted when size returns to zero.
type Position struct {
	Account                   string
	Side                      Side
	Margin                    *num.Uint
	Size                      *num.Uint
	EntryPriceX96             *num.Uint
	EntryFundingRateGrowthX96 *num.Int
}

func (p *Position) Clone() *Position {
	cpy := *p
	cpy.Margin = p.Margin.Clone()
	cpy.Size = p.Size.Clone()
	cpy.EntryPriceX96 = p.EntryPriceX96.Clone()
	cpy.EntryFundingRateGrowthX96 = p.EntryFundingRateGrowthX96.Clone()
	return &cpy
}

// GlobalRiskBufferFund is the insurance pool ledger. The fund balance is
// signed, it can be drawn below zero only through controlled liquidation
// flows.
type GlobalRiskBufferFund struct {
	RiskBufferFund *num.Int
	// Liquidity is the sum of locked per-account deposits.
	Liquidity *num.Uint
}

func NewGlobalRiskBufferFund() *GlobalRiskBufferFund {
	return &GlobalRiskBufferFund{
		RiskBufferFund: num.IntZero(),
		Liquidity:      num.UintZero(),
	}
}

// RiskBufferFundPosition is a locked per-account deposit into the risk
// buffer fund.
type RiskBufferFundPosition struct {
	Account   string
	Liquidity *num.Uint
	EntryTime time.Time
}

func (p *RiskBufferFundPosition) Clone() *RiskBufferFundPosition {
	cpy := *p
	cpy.Liquidity = p.Liquidity.Clone()
	return &cpy
}
