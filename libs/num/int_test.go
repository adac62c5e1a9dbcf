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

package num_test

import (
	"testing"

	"code.stratumtrade.io/stratum/libs/num"

	"github.com/stretchr/testify/assert"
)

func TestInt(t *testing.T) {
	t.Run("add crosses zero", testIntAddCrossing)
	t.Run("sub is add of the flipped sign", testIntSub)
	t.Run("uint deltas", testIntUintDeltas)
	t.Run("zero is never negative", testIntZeroNormalised)
	t.Run("comparisons", testIntComparisons)
	t.Run("from uint copies the magnitude", testIntFromUint)
}

func testIntAddCrossing(t *testing.T) {
	i := num.NewInt(5)
	i.Add(num.NewInt(-8))
	assert.Equal(t, "-3", i.String())
	assert.True(t, i.IsNegative())

	i.Add(num.NewInt(3))
	assert.True(t, i.IsZero())
	assert.False(t, i.IsNegative())

	i.Add(num.NewInt(7))
	assert.Equal(t, "7", i.String())
	assert.True(t, i.IsPositive())
}

func testIntSub(t *testing.T) {
	i := num.NewInt(-5)
	i.Sub(num.NewInt(-8))
	assert.Equal(t, "3", i.String())

	oth := num.NewInt(-2)
	i.Sub(oth)
	// the operand must not be mutated
	assert.Equal(t, "-2", oth.String())
	assert.Equal(t, "5", i.String())
}

func testIntUintDeltas(t *testing.T) {
	i := num.NewInt(10)
	i.SubUint(num.NewUint(25))
	assert.Equal(t, "-15", i.String())
	i.AddUint(num.NewUint(15))
	assert.True(t, i.IsZero())
}

func testIntZeroNormalised(t *testing.T) {
	z := num.IntFromUint(num.UintZero(), false)
	assert.False(t, z.IsNegative())
	assert.Equal(t, 0, z.Sign())

	i := num.NewInt(-4)
	i.AddUint(num.NewUint(4))
	assert.False(t, i.IsNegative())
	assert.Equal(t, "0", i.String())
}

func testIntComparisons(t *testing.T) {
	assert.True(t, num.NewInt(-2).LT(num.NewInt(1)))
	assert.True(t, num.NewInt(-2).GT(num.NewInt(-3)))
	assert.True(t, num.NewInt(0).GTE(num.NewInt(0)))
	assert.True(t, num.NewInt(5).LTE(num.NewInt(5)))
	assert.False(t, num.NewInt(5).EQ(num.NewInt(-5)))
}

func testIntFromUint(t *testing.T) {
	u := num.NewUint(9)
	i := num.IntFromUint(u, false)
	assert.Equal(t, "-9", i.String())

	u.Add(u, num.NewUint(1))
	assert.Equal(t, "-9", i.String())
	assert.Equal(t, "9", i.Abs().String())
}
