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
	"github.com/pkg/errors"

	"code.stratumtrade.io/stratum/libs/num"
)

// BasisPointsDivisor is the fixed divisor all configured rate fields are
// expressed against, 100_000_000 == 100%.
const BasisPointsDivisor uint64 = 100_000_000

// VertexCount is the fixed number of breakpoints on the price impact
// curve, vertex 0 is pinned at (0, 0).
const VertexCount = 7

// VertexConfig is a configured breakpoint of the piecewise linear price
// impact curve, both fields out of BasisPointsDivisor.
type VertexConfig struct {
	// BalanceRate is the pool imbalance, as a fraction of the price impact
	// liquidity, at which this vertex sits.
	BalanceRate uint64
	// PremiumRate is the premium applied on top of the index price at this
	// vertex.
	PremiumRate uint64
}

// MarketBaseConfig bundles the leverage, margin and liquidation
// parameters of a market.
type MarketBaseConfig struct {
	MinMarginPerLiquidityPosition   *num.Uint
	MaxRiskRatePerLiquidityPosition uint64
	MaxLeveragePerLiquidityPosition uint64

	MinMarginPerPosition   *num.Uint
	MaxLeveragePerPosition uint64
	LiquidationFeeRate     uint64
	LiquidationExecutionFee *num.Uint

	InterestRate   uint64
	MaxFundingRate uint64
}

// MarketFeeRateConfig bundles the trading fee split parameters of a
// market, all out of BasisPointsDivisor.
type MarketFeeRateConfig struct {
	TradingFeeRate              uint64
	LiquidityFeeRate            uint64
	ProtocolFeeRate             uint64
	ReferralReturnFeeRate       uint64
	ReferralParentReturnFeeRate uint64
	ReferralDiscountRate        uint64
}

// MarketPriceConfig bundles the price impact curve parameters of a market.
type MarketPriceConfig struct {
	MaxPriceImpactLiquidity *num.Uint
	LiquidationVertexIndex  uint8
	Vertices                [VertexCount]VertexConfig
}

// MarketConfig is the full per-market parameter tuple supplied by the
// external configuration store. A config update is an atomic swap-in.
type MarketConfig struct {
	Base    MarketBaseConfig
	FeeRate MarketFeeRateConfig
	Price   MarketPriceConfig
}

var (
	ErrInvalidRate          = errors.New("rate exceeds the basis points divisor")
	ErrInvalidVertices      = errors.New("invalid price impact vertices")
	ErrInvalidLiquidityCfg  = errors.New("invalid price impact liquidity")
	ErrInvalidMarginCfg     = errors.New("invalid margin configuration")
	ErrInvalidLeverageCfg   = errors.New("invalid leverage configuration")
	ErrInvalidVertexIndex   = errors.New("invalid liquidation vertex index")
)

// Validate checks the full parameter tuple. Violating the divisor bound on
// any rate field is a hard validation failure, as is a malformed vertex
// array.
func (c *MarketConfig) Validate() error {
	rates := []struct {
		name string
		rate uint64
	}{
		{"max-risk-rate-per-liquidity-position", c.Base.MaxRiskRatePerLiquidityPosition},
		{"liquidation-fee-rate", c.Base.LiquidationFeeRate},
		{"interest-rate", c.Base.InterestRate},
		{"max-funding-rate", c.Base.MaxFundingRate},
		{"trading-fee-rate", c.FeeRate.TradingFeeRate},
		{"liquidity-fee-rate", c.FeeRate.LiquidityFeeRate},
		{"protocol-fee-rate", c.FeeRate.ProtocolFeeRate},
		{"referral-return-fee-rate", c.FeeRate.ReferralReturnFeeRate},
		{"referral-parent-return-fee-rate", c.FeeRate.ReferralParentReturnFeeRate},
		{"referral-discount-rate", c.FeeRate.ReferralDiscountRate},
	}
	for _, r := range rates {
		if r.rate > BasisPointsDivisor {
			return errors.Wrap(ErrInvalidRate, r.name)
		}
	}
	// the fee split may not exceed the full fee
	split := c.FeeRate.LiquidityFeeRate + c.FeeRate.ProtocolFeeRate +
		c.FeeRate.ReferralReturnFeeRate + c.FeeRate.ReferralParentReturnFeeRate
	if split > BasisPointsDivisor {
		return errors.Wrap(ErrInvalidRate, "fee split")
	}

	if c.Base.MinMarginPerLiquidityPosition == nil || c.Base.MinMarginPerPosition == nil ||
		c.Base.LiquidationExecutionFee == nil {
		return errors.Wrap(ErrInvalidMarginCfg, "margin fields must be set")
	}
	if c.Base.MaxLeveragePerLiquidityPosition == 0 || c.Base.MaxLeveragePerPosition == 0 {
		return errors.Wrap(ErrInvalidLeverageCfg, "max leverage must be > 0")
	}

	if c.Price.MaxPriceImpactLiquidity == nil || c.Price.MaxPriceImpactLiquidity.IsZero() {
		return errors.Wrap(ErrInvalidLiquidityCfg, "max price impact liquidity must be > 0")
	}
	if int(c.Price.LiquidationVertexIndex) >= VertexCount {
		return ErrInvalidVertexIndex
	}
	if v0 := c.Price.Vertices[0]; v0.BalanceRate != 0 || v0.PremiumRate != 0 {
		return errors.Wrap(ErrInvalidVertices, "vertex 0 must be (0, 0)")
	}
	for i := 1; i < VertexCount; i++ {
		cur, prev := c.Price.Vertices[i], c.Price.Vertices[i-1]
		if cur.BalanceRate > BasisPointsDivisor || cur.PremiumRate > BasisPointsDivisor {
			return errors.Wrapf(ErrInvalidVertices, "vertex %d rate out of bounds", i)
		}
		if cur.BalanceRate < prev.BalanceRate || cur.PremiumRate < prev.PremiumRate {
			return errors.Wrapf(ErrInvalidVertices, "vertex %d not monotonic", i)
		}
	}
	return nil
}

// Clone returns a deep copy of the config so a swapped-in update can not
// alias caller owned memory.
func (c *MarketConfig) Clone() *MarketConfig {
	cpy := *c
	cpy.Base.MinMarginPerLiquidityPosition = c.Base.MinMarginPerLiquidityPosition.Clone()
	cpy.Base.MinMarginPerPosition = c.Base.MinMarginPerPosition.Clone()
	cpy.Base.LiquidationExecutionFee = c.Base.LiquidationExecutionFee.Clone()
	cpy.Price.MaxPriceImpactLiquidity = c.Price.MaxPriceImpactLiquidity.Clone()
	return &cpy
}
