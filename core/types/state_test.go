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

	"github.com/stretchr/testify/assert"
)

func TestSide(t *testing.T) {
	assert.Equal(t, types.SideShort, types.SideLong.Flip())
	assert.Equal(t, types.SideLong, types.SideShort.Flip())
	assert.Equal(t, types.SideUnspecified, types.SideUnspecified.Flip())

	assert.True(t, types.SideLong.Valid())
	assert.True(t, types.SideShort.Valid())
	assert.False(t, types.SideUnspecified.Valid())

	assert.Equal(t, "long", types.SideLong.String())
	assert.Equal(t, "short", types.SideShort.String())
}

func TestGlobalPositionAccessors(t *testing.T) {
	gp := types.NewGlobalPosition()
	gp.SizeOf(types.SideLong).Add(gp.LongSize, num.NewUint(5))
	assert.Equal(t, "5", gp.LongSize.String())
	assert.True(t, gp.ShortSize.IsZero())

	gp.GrowthOf(types.SideShort).SubUint(num.NewUint(3))
	assert.Equal(t, "-3", gp.ShortFundingRateGrowthX96.String())
	assert.True(t, gp.LongFundingRateGrowthX96.IsZero())
}

func TestGlobalLiquidityPositionTotalNetSize(t *testing.T) {
	glp := types.NewGlobalLiquidityPosition()
	glp.NetSize = num.NewUint(100)
	glp.LiquidationBufferNetSize = num.NewUint(25)
	assert.Equal(t, "125", glp.TotalNetSize().String())
}

func TestPriceStateClone(t *testing.T) {
	ps := types.NewPriceState()
	ps.Vertices[1] = types.PriceVertex{Size: num.NewUint(10), PremiumRateX96: num.NewUint(20)}
	ps.LiquidationBufferNetSizes[2] = num.NewUint(30)

	cpy := ps.Clone()
	cpy.Vertices[1].Size.Add(cpy.Vertices[1].Size, num.NewUint(1))
	cpy.LiquidationBufferNetSizes[2].Add(cpy.LiquidationBufferNetSizes[2], num.NewUint(1))

	assert.Equal(t, "10", ps.Vertices[1].Size.String())
	assert.Equal(t, "30", ps.LiquidationBufferNetSizes[2].String())
}
