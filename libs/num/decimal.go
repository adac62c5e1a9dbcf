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
	"github.com/shopspring/decimal"
)

type Decimal = decimal.Decimal

var dzero = decimal.Zero

func DecimalZero() Decimal {
	return dzero
}

func DecimalFromInt64(i int64) Decimal {
	return decimal.NewFromInt(i)
}

func DecimalFromFloat(f float64) Decimal {
	return decimal.NewFromFloat(f)
}

func DecimalFromString(s string) (Decimal, error) {
	return decimal.NewFromString(s)
}

func MustDecimalFromString(s string) Decimal {
	d, err := DecimalFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func DecimalFromUint(u *Uint) Decimal {
	return decimal.NewFromBigInt(u.BigInt(), 0)
}

func DecimalFromInt(i *Int) Decimal {
	d := DecimalFromUint(i.U)
	if i.IsNegative() {
		return d.Neg()
	}
	return d
}

// DecimalFromPriceX96 renders a 96 bit fractional fixed point price as a
// plain decimal, for read views and metrics only. Engine math never goes
// through Decimal.
func DecimalFromPriceX96(priceX96 *Uint) Decimal {
	return DecimalFromUint(priceX96).Div(DecimalFromUint(Q96()))
}
