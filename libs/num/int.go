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

// Int is a wrapper for a signed 256 bit value, used where engine
// accounting can legitimately go negative: funding rate growths, the risk
// buffer fund balance, margin deltas. The magnitude is stored as a Uint
// with a separate sign, zero is always stored non-negative.
type Int struct {
	// U is the magnitude of the value.
	U        *Uint
	negative bool
}

// NewInt creates a new Int with the value of the int64 passed in.
func NewInt(val int64) *Int {
	if val < 0 {
		return &Int{
			U:        NewUint(uint64(-val)),
			negative: true,
		}
	}
	return &Int{
		U:        NewUint(uint64(val)),
		negative: false,
	}
}

// IntZero returns a new Int set to zero.
func IntZero() *Int {
	return NewInt(0)
}

// IntFromUint creates a new Int with a copy of the given magnitude and the
// sign implied by the positive flag.
func IntFromUint(u *Uint, positive bool) *Int {
	return (&Int{U: u.Clone()}).normalise(!positive)
}

func (i *Int) normalise(negative bool) *Int {
	i.negative = negative && !i.U.IsZero()
	return i
}

// Clone creates a copy of the value.
func (i Int) Clone() *Int {
	return &Int{U: i.U.Clone(), negative: i.negative}
}

// IsPositive returns true if the value is strictly greater than zero.
func (i Int) IsPositive() bool {
	return !i.negative && !i.U.IsZero()
}

// IsNegative returns true if the value is strictly less than zero.
func (i Int) IsNegative() bool {
	return i.negative
}

// IsZero returns true if the value is zero.
func (i Int) IsZero() bool {
	return i.U.IsZero()
}

// Sign returns -1, 0, or 1 depending on the sign of the value.
func (i Int) Sign() int {
	switch {
	case i.negative:
		return -1
	case i.U.IsZero():
		return 0
	default:
		return 1
	}
}

// FlipSign negates the value in place.
func (i *Int) FlipSign() *Int {
	return i.normalise(!i.negative)
}

// Abs returns a copy of the magnitude of the value.
func (i Int) Abs() *Uint {
	return i.U.Clone()
}

// Add adds oth to i in place, `i += oth`, and returns i for convenience.
func (i *Int) Add(oth *Int) *Int {
	if i.negative == oth.negative {
		i.U.Add(i.U, oth.U)
		return i.normalise(i.negative)
	}
	// result takes the sign of the larger magnitude
	mag, neg := UintZero().Delta(i.U, oth.U)
	i.U = mag
	if neg {
		return i.normalise(oth.negative)
	}
	return i.normalise(i.negative)
}

// Sub subtracts oth from i in place, `i -= oth`, and returns i.
func (i *Int) Sub(oth *Int) *Int {
	return i.Add(oth.Clone().FlipSign())
}

// AddUint adds a Uint to i in place, `i += u`, and returns i.
func (i *Int) AddUint(u *Uint) *Int {
	return i.Add(IntFromUint(u, true))
}

// SubUint subtracts a Uint from i in place, `i -= u`, and returns i.
func (i *Int) SubUint(u *Uint) *Int {
	return i.Add(IntFromUint(u, false))
}

// EQ returns true if the two values are equal, `i == oth`.
func (i Int) EQ(oth *Int) bool {
	return i.negative == oth.negative && i.U.EQ(oth.U)
}

// GT returns true if `i > oth`.
func (i Int) GT(oth *Int) bool {
	switch {
	case i.negative && oth.negative:
		return i.U.LT(oth.U)
	case i.negative != oth.negative:
		return oth.negative
	default:
		return i.U.GT(oth.U)
	}
}

// GTE returns true if `i >= oth`.
func (i Int) GTE(oth *Int) bool {
	return i.EQ(oth) || i.GT(oth)
}

// LT returns true if `i < oth`.
func (i Int) LT(oth *Int) bool {
	return !i.GTE(oth)
}

// LTE returns true if `i <= oth`.
func (i Int) LTE(oth *Int) bool {
	return !i.GT(oth)
}

// String returns a string version of the number.
func (i Int) String() string {
	if i.negative {
		return "-" + i.U.String()
	}
	return i.U.String()
}
