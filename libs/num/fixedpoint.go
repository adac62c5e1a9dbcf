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

package num

import (
	"fmt"
	"math/big"
)

// Rounding selects the direction a lossy division rounds towards. The
// engine rounds up for fees, maintenance margin and loss apportionment,
// and down for payouts and profit accrual. Callers pick the mode
// explicitly on every division, truncation is never implicit.
type Rounding uint8

const (
	RoundDown Rounding = iota
	RoundUp
)

var (
	q96 = mustShift(96)
	q64 = mustShift(64)
)

func mustShift(bits uint) *Uint {
	u, overflow := UintFromBig(new(big.Int).Lsh(big.NewInt(1), bits))
	if overflow {
		panic("fixed point constant overflow")
	}
	return u
}

// Q96 returns 2^96, the denominator of 96 bit fractional fixed point
// prices and premium rates. A fresh copy is returned so callers can not
// corrupt the constant.
func Q96() *Uint {
	return q96.Clone()
}

// Q64 returns 2^64, the denominator of 64 bit fractional growth
// accumulators.
func Q64() *Uint {
	return q64.Clone()
}

// MulDiv computes a * b / den through a 512 bit intermediate with the
// requested rounding. Overflow of the 256 bit result, or a zero
// denominator, indicates corrupted engine state and panics.
func MulDiv(a, b, den *Uint, r Rounding) *Uint {
	if den.IsZero() {
		panic("fixed point division by zero")
	}
	prod := new(big.Int).Mul(a.BigInt(), b.BigInt())
	quo, rem := new(big.Int).QuoRem(prod, den.BigInt(), new(big.Int))
	if r == RoundUp && rem.Sign() != 0 {
		quo.Add(quo, big.NewInt(1))
	}
	out, overflow := UintFromBig(quo)
	if overflow {
		panic(fmt.Sprintf("fixed point overflow: %s * %s / %s", a, b, den))
	}
	return out
}

// MulDivInt is MulDiv over a signed first operand, the rounding mode
// applies to the magnitude.
func MulDivInt(a *Int, b, den *Uint, r Rounding) *Int {
	return IntFromUint(MulDiv(a.U, b, den, r), !a.IsNegative())
}

// DivRound divides a by den with the requested rounding.
func DivRound(a, den *Uint, r Rounding) *Uint {
	quo := UintZero().Div(a, den)
	if r == RoundUp && !UintZero().Mod(a, den).IsZero() {
		quo.Add(quo, NewUint(1))
	}
	return quo
}

// MulRatio scales value by rate out of basis, rate expressed in basis
// points of the given divisor.
func MulRatio(value *Uint, rate uint64, basis uint64, r Rounding) *Uint {
	return MulDiv(value, NewUint(rate), NewUint(basis), r)
}

// WeightedAverage computes (p1*w1 + p2*w2) / (w1 + w2) through a big
// intermediate with the requested rounding. A zero total weight panics.
func WeightedAverage(p1, w1, p2, w2 *Uint, r Rounding) *Uint {
	den := new(big.Int).Add(w1.BigInt(), w2.BigInt())
	if den.Sign() == 0 {
		panic("weighted average with zero weight")
	}
	sum := new(big.Int).Mul(p1.BigInt(), w1.BigInt())
	sum.Add(sum, new(big.Int).Mul(p2.BigInt(), w2.BigInt()))
	quo, rem := new(big.Int).QuoRem(sum, den, new(big.Int))
	if r == RoundUp && rem.Sign() != 0 {
		quo.Add(quo, big.NewInt(1))
	}
	out, overflow := UintFromBig(quo)
	if overflow {
		panic("weighted average overflow")
	}
	return out
}
