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

// Side is the direction of a position, long or short. The zero value means
// no exposure yet and is only ever observed on a fresh global liquidity
// position.
type Side uint8

const (
	SideUnspecified Side = iota
	SideLong
	SideShort
)

// Flip returns the opposite side.
func (s Side) Flip() Side {
	switch s {
	case SideLong:
		return SideShort
	case SideShort:
		return SideLong
	default:
		return SideUnspecified
	}
}

func (s Side) Valid() bool {
	return s == SideLong || s == SideShort
}

func (s Side) String() string {
	switch s {
	case SideLong:
		return "long"
	case SideShort:
		return "short"
	default:
		return "unspecified"
	}
}
