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
	"github.com/stretchr/testify/require"
)

func TestFixedPoint(t *testing.T) {
	t.Run("muldiv rounding modes", testMulDivRounding)
	t.Run("muldiv survives a 512 bit intermediate", testMulDivWideIntermediate)
	t.Run("muldiv panics on zero denominator", testMulDivZeroDen)
	t.Run("muldivint keeps the sign", testMulDivInt)
	t.Run("divround", testDivRound)
	t.Run("mulratio", testMulRatio)
	t.Run("weighted average", testWeightedAverage)
	t.Run("q constants are fresh copies", testQConstants)
}

func testMulDivRounding(t *testing.T) {
	// 7 * 3 / 2 = 10.5
	assert.Equal(t, "10", num.MulDiv(num.NewUint(7), num.NewUint(3), num.NewUint(2), num.RoundDown).String())
	assert.Equal(t, "11", num.MulDiv(num.NewUint(7), num.NewUint(3), num.NewUint(2), num.RoundUp).String())
	// exact division rounds nowhere
	assert.Equal(t, "6", num.MulDiv(num.NewUint(4), num.NewUint(3), num.NewUint(2), num.RoundUp).String())
}

func testMulDivWideIntermediate(t *testing.T) {
	// q96 * q96 overflows 192 bits but the quotient fits
	got := num.MulDiv(num.Q96(), num.Q96(), num.Q96(), num.RoundDown)
	assert.True(t, got.EQ(num.Q96()))
}

func testMulDivZeroDen(t *testing.T) {
	require.Panics(t, func() {
		num.MulDiv(num.NewUint(1), num.NewUint(1), num.UintZero(), num.RoundDown)
	})
}

func testMulDivInt(t *testing.T) {
	a := num.NewInt(-7)
	got := num.MulDivInt(a, num.NewUint(3), num.NewUint(2), num.RoundDown)
	assert.Equal(t, "-10", got.String())

	got = num.MulDivInt(num.NewInt(7), num.NewUint(3), num.NewUint(2), num.RoundUp)
	assert.Equal(t, "11", got.String())

	// zero magnitude never carries a sign
	got = num.MulDivInt(num.NewInt(-1), num.NewUint(1), num.NewUint(2), num.RoundDown)
	assert.False(t, got.IsNegative())
	assert.True(t, got.IsZero())
}

func testDivRound(t *testing.T) {
	assert.Equal(t, "3", num.DivRound(num.NewUint(10), num.NewUint(3), num.RoundDown).String())
	assert.Equal(t, "4", num.DivRound(num.NewUint(10), num.NewUint(3), num.RoundUp).String())
	assert.Equal(t, "5", num.DivRound(num.NewUint(10), num.NewUint(2), num.RoundUp).String())
}

func testMulRatio(t *testing.T) {
	// 2.5% of 1000 out of a 100_000_000 divisor
	got := num.MulRatio(num.NewUint(1000), 2_500_000, 100_000_000, num.RoundDown)
	assert.Equal(t, "25", got.String())

	// 1% of 150 = 1.5
	assert.Equal(t, "1", num.MulRatio(num.NewUint(150), 1_000_000, 100_000_000, num.RoundDown).String())
	assert.Equal(t, "2", num.MulRatio(num.NewUint(150), 1_000_000, 100_000_000, num.RoundUp).String())
}

func testWeightedAverage(t *testing.T) {
	// (100*1 + 200*3) / 4 = 175
	got := num.WeightedAverage(num.NewUint(100), num.NewUint(1), num.NewUint(200), num.NewUint(3), num.RoundDown)
	assert.Equal(t, "175", got.String())

	// (10*1 + 11*2) / 3 = 10.66..
	assert.Equal(t, "10", num.WeightedAverage(num.NewUint(10), num.NewUint(1), num.NewUint(11), num.NewUint(2), num.RoundDown).String())
	assert.Equal(t, "11", num.WeightedAverage(num.NewUint(10), num.NewUint(1), num.NewUint(11), num.NewUint(2), num.RoundUp).String())

	require.Panics(t, func() {
		num.WeightedAverage(num.NewUint(1), num.UintZero(), num.NewUint(2), num.UintZero(), num.RoundDown)
	})
}

func testQConstants(t *testing.T) {
	q := num.Q96()
	q.Add(q, num.NewUint(1))
	assert.True(t, q.NEQ(num.Q96()))

	// 2^96 and 2^64
	assert.Equal(t, "79228162514264337593543950336", num.Q96().String())
	assert.Equal(t, "18446744073709551616", num.Q64().String())
}
