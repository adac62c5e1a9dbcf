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

package types_test

import (
	"testing"

	"code.stratumtrade.io/stratum/core/types"
	"code.stratumtrade.io/stratum/libs/num"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validMarketConfig() *types.MarketConfig {
	cfg := &types.MarketConfig{
		Base: types.MarketBaseConfig{
			MinMarginPerLiquidityPosition:   num.NewUint(1000),
			MaxRiskRatePerLiquidityPosition: 99_000_000,
			MaxLeveragePerLiquidityPosition: 100,
			MinMarginPerPosition:            num.NewUint(100),
			MaxLeveragePerPosition:          10,
			LiquidationFeeRate:              400_000,
			LiquidationExecutionFee:         num.NewUint(100),
			InterestRate:                    1_000_000,
			MaxFundingRate:                  50_000,
		},
		FeeRate: types.MarketFeeRateConfig{
			TradingFeeRate:              1_000_000,
			LiquidityFeeRate:            50_000_000,
			ProtocolFeeRate:             30_000_000,
			ReferralReturnFeeRate:       10_000_000,
			ReferralParentReturnFeeRate: 1_000_000,
			ReferralDiscountRate:        10_000_000,
		},
		Price: types.MarketPriceConfig{
			MaxPriceImpactLiquidity: num.NewUint(1_000_000),
			LiquidationVertexIndex:  4,
		},
	}
	rates := [types.VertexCount]types.VertexConfig{
		{},
		{BalanceRate: 4_000_000, PremiumRate: 50_000},
		{BalanceRate: 8_000_000, PremiumRate: 100_000},
		{BalanceRate: 10_000_000, PremiumRate: 150_000},
		{BalanceRate: 12_000_000, PremiumRate: 200_000},
		{BalanceRate: 20_000_000, PremiumRate: 1_000_000},
		{BalanceRate: 100_000_000, PremiumRate: 10_000_000},
	}
	cfg.Price.Vertices = rates
	return cfg
}

func TestMarketConfig(t *testing.T) {
	t.Run("valid config passes", testConfigValid)
	t.Run("rate above divisor rejected", testConfigRateBound)
	t.Run("fee split above divisor rejected", testConfigFeeSplit)
	t.Run("missing margin fields rejected", testConfigMarginFields)
	t.Run("zero leverage rejected", testConfigLeverage)
	t.Run("vertex validation", testConfigVertices)
	t.Run("clone is deep", testConfigClone)
}

func testConfigValid(t *testing.T) {
	require.NoError(t, validMarketConfig().Validate())
}

func testConfigRateBound(t *testing.T) {
	cfg := validMarketConfig()
	cfg.FeeRate.TradingFeeRate = types.BasisPointsDivisor + 1
	assert.ErrorIs(t, errors.Cause(cfg.Validate()), types.ErrInvalidRate)

	cfg = validMarketConfig()
	cfg.Base.MaxFundingRate = types.BasisPointsDivisor + 1
	assert.ErrorIs(t, errors.Cause(cfg.Validate()), types.ErrInvalidRate)
}

func testConfigFeeSplit(t *testing.T) {
	cfg := validMarketConfig()
	cfg.FeeRate.LiquidityFeeRate = 60_000_000
	cfg.FeeRate.ProtocolFeeRate = 50_000_000
	assert.ErrorIs(t, errors.Cause(cfg.Validate()), types.ErrInvalidRate)
}

func testConfigMarginFields(t *testing.T) {
	cfg := validMarketConfig()
	cfg.Base.MinMarginPerPosition = nil
	assert.ErrorIs(t, errors.Cause(cfg.Validate()), types.ErrInvalidMarginCfg)

	cfg = validMarketConfig()
	cfg.Base.LiquidationExecutionFee = nil
	assert.ErrorIs(t, errors.Cause(cfg.Validate()), types.ErrInvalidMarginCfg)
}

func testConfigLeverage(t *testing.T) {
	cfg := validMarketConfig()
	cfg.Base.MaxLeveragePerPosition = 0
	assert.ErrorIs(t, errors.Cause(cfg.Validate()), types.ErrInvalidLeverageCfg)
}

func testConfigVertices(t *testing.T) {
	cfg := validMarketConfig()
	cfg.Price.Vertices[0] = types.VertexConfig{BalanceRate: 1, PremiumRate: 0}
	assert.ErrorIs(t, errors.Cause(cfg.Validate()), types.ErrInvalidVertices)

	cfg = validMarketConfig()
	cfg.Price.Vertices[3].BalanceRate = cfg.Price.Vertices[2].BalanceRate - 1
	assert.ErrorIs(t, errors.Cause(cfg.Validate()), types.ErrInvalidVertices)

	cfg = validMarketConfig()
	cfg.Price.LiquidationVertexIndex = types.VertexCount
	assert.ErrorIs(t, cfg.Validate(), types.ErrInvalidVertexIndex)

	cfg = validMarketConfig()
	cfg.Price.MaxPriceImpactLiquidity = num.UintZero()
	assert.ErrorIs(t, errors.Cause(cfg.Validate()), types.ErrInvalidLiquidityCfg)
}

func testConfigClone(t *testing.T) {
	cfg := validMarketConfig()
	cpy := cfg.Clone()
	cpy.Base.MinMarginPerPosition.Add(cpy.Base.MinMarginPerPosition, num.NewUint(1))
	cpy.Price.MaxPriceImpactLiquidity.Add(cpy.Price.MaxPriceImpactLiquidity, num.NewUint(1))

	assert.Equal(t, "100", cfg.Base.MinMarginPerPosition.String())
	assert.Equal(t, "1000000", cfg.Price.MaxPriceImpactLiquidity.String())
}
