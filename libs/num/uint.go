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

	"github.com/holiman/uint256"
)

// Uint is a wrapper for a 256 bit unsigned integer. All monetary amounts,
// position sizes and fixed point quantities in the engine are stored as
// Uint values.
type Uint struct {
	u uint256.Int
}

// NewUint creates a new Uint with the value of the uint64 passed as a parameter.
func NewUint(val uint64) *Uint {
	return &Uint{*uint256.NewInt(val)}
}

// UintZero returns a new Uint set to zero.
func UintZero() *Uint {
	return NewUint(0)
}

// Min returns the smallest of the 2 numbers.
func Min(a, b *Uint) *Uint {
	if a.LT(b) {
		return a
	}
	return b
}

// Max returns the largest of the 2 numbers.
func Max(a, b *Uint) *Uint {
	if a.GT(b) {
		return a
	}
	return b
}

// UintFromBig constructs a new Uint from a big.Int,
// returns true if overflow happened.
func UintFromBig(b *big.Int) (*Uint, bool) {
	u, overflow := uint256.FromBig(b)
	if overflow {
		return NewUint(0), true
	}
	return &Uint{*u}, false
}

// UintFromDecimal returns a Uint from a Decimal, dropping any fractional
// part, returns true if overflow happened.
func UintFromDecimal(d Decimal) (*Uint, bool) {
	return UintFromBig(d.BigInt())
}

// UintFromString creates a new Uint from a string interpreted using
// the given base. Returns true if an error or overflow happened.
func UintFromString(str string, base int) (*Uint, bool) {
	b, ok := big.NewInt(0).SetString(str, base)
	if !ok {
		return NewUint(0), true
	}
	return UintFromBig(b)
}

// MustUintFromString creates a new Uint from a base 10 string,
// it panics on parse or overflow failure. Use for static values only.
func MustUintFromString(str string) *Uint {
	u, overflow := UintFromString(str, 10)
	if overflow {
		panic(fmt.Sprintf("invalid uint string %q", str))
	}
	return u
}

// Sum just removes the need to write num.NewUint(0).AddSum(x, y, z)
// so you can write num.Sum(x, y, z) instead, equivalent to x + y + z.
func Sum(vals ...*Uint) *Uint {
	return NewUint(0).AddSum(vals...)
}

func (z *Uint) Set(oth *Uint) *Uint {
	z.u.Set(&oth.u)
	return z
}

func (z *Uint) SetUint64(val uint64) *Uint {
	z.u.SetUint64(val)
	return z
}

func (z Uint) Uint64() uint64 {
	return z.u.Uint64()
}

func (z Uint) BigInt() *big.Int {
	return z.u.ToBig()
}

func (z Uint) ToDecimal() Decimal {
	return DecimalFromUint(&z)
}

// Add computes z = x + y and returns z for convenience,
// no new variable is created.
func (z *Uint) Add(x, y *Uint) *Uint {
	z.u.Add(&x.u, &y.u)
	return z
}

// AddSum adds multiple values at the same time to a given uint
// so x.AddSum(y, z) is equivalent to x + y + z.
func (z *Uint) AddSum(vals ...*Uint) *Uint {
	for _, x := range vals {
		z.u.Add(&z.u, &x.u)
	}
	return z
}

// Sub computes z = x - y and returns z for convenience.
func (z *Uint) Sub(x, y *Uint) *Uint {
	z.u.Sub(&x.u, &y.u)
	return z
}

// SubOverflow computes z = x - y, the returned bool is true
// if an underflow occurred.
func (z *Uint) SubOverflow(x, y *Uint) (*Uint, bool) {
	_, ok := z.u.SubOverflow(&x.u, &y.u)
	return z, ok
}

// Delta computes z = abs(x - y), the returned bool is true when
// the result is negative (y > x).
func (z *Uint) Delta(x, y *Uint) (*Uint, bool) {
	if y.GT(x) {
		_ = z.Sub(y, x)
		return z, true
	}
	_ = z.Sub(x, y)
	return z, false
}

// Mul computes z = x * y and returns z for convenience.
func (z *Uint) Mul(x, y *Uint) *Uint {
	z.u.Mul(&x.u, &y.u)
	return z
}

// Div computes z = x / y rounding down, and returns z for convenience.
func (z *Uint) Div(x, y *Uint) *Uint {
	z.u.Div(&x.u, &y.u)
	return z
}

// Mod computes z = x % y and returns z for convenience.
func (z *Uint) Mod(x, y *Uint) *Uint {
	z.u.Mod(&x.u, &y.u)
	return z
}

// LT checks if the value stored in z is lesser than oth, `z < oth`.
func (z Uint) LT(oth *Uint) bool {
	return z.u.Lt(&oth.u)
}

// LTE checks if the value stored in z is lesser than or equal to oth.
func (z Uint) LTE(oth *Uint) bool {
	return z.u.Lt(&oth.u) || z.u.Eq(&oth.u)
}

// EQ checks if the value stored in z is equal to oth, `z == oth`.
func (z Uint) EQ(oth *Uint) bool {
	return z.u.Eq(&oth.u)
}

// EQUint64 checks if the value stored in z is equal to oth, `z == oth`.
func (z Uint) EQUint64(oth uint64) bool {
	return z.u.Eq(uint256.NewInt(oth))
}

// NEQ checks if the value stored in z is different than oth, `z != oth`.
func (z Uint) NEQ(oth *Uint) bool {
	return !z.u.Eq(&oth.u)
}

// GT checks if the value stored in z is greater than oth, `z > oth`.
func (z Uint) GT(oth *Uint) bool {
	return z.u.Gt(&oth.u)
}

// GTUint64 checks if the value stored in z is greater than oth.
func (z Uint) GTUint64(oth uint64) bool {
	return z.u.GtUint64(oth)
}

// GTE checks if the value stored in z is greater than or equal to oth.
func (z Uint) GTE(oth *Uint) bool {
	return z.u.Gt(&oth.u) || z.u.Eq(&oth.u)
}

// IsZero returns whether z == 0 or not.
func (z Uint) IsZero() bool {
	return z.u.IsZero()
}

// Copy sets z to x, `z = x`, and returns z.
func (z *Uint) Copy(x *Uint) *Uint {
	z.u = x.u
	return z
}

// Clone creates a copy of the value, `x := z`.
func (z Uint) Clone() *Uint {
	return &Uint{z.u}
}

// String returns the stored value as a base 10 string.
func (z Uint) String() string {
	return z.u.ToBig().String()
}

// Format implements fmt.Formatter.
func (z Uint) Format(s fmt.State, ch rune) {
	z.u.Format(s, ch)
}
