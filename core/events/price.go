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

package events

import (
	"context"

	"code.stratumtrade.io/stratum/core/types"
	"code.stratumtrade.io/stratum/libs/num"
)

// PriceVertexChanged is emitted for every vertex re-derived from the
// curve configuration.
type PriceVertexChanged struct {
	*Base
	index          uint8
	size           *num.Uint
	premiumRateX96 *num.Uint
}

func NewPriceVertexChanged(ctx context.Context, marketID string, index uint8, size, premiumRateX96 *num.Uint) *PriceVertexChanged {
	return &PriceVertexChanged{
		Base:           newBase(ctx, PriceVertexChangedEvent, marketID),
		index:          index,
		size:           size.Clone(),
		premiumRateX96: premiumRateX96.Clone(),
	}
}

func (p PriceVertexChanged) Index() uint8 {
	return p.index
}

func (p PriceVertexChanged) Size() *num.Uint {
	return p.size.Clone()
}

func (p PriceVertexChanged) PremiumRateX96() *num.Uint {
	return p.premiumRateX96.Clone()
}

// GlobalLiquidityPositionChanged is emitted after a trade moved the
// pool's net exposure.
type GlobalLiquidityPositionChanged struct {
	*Base
	side           types.Side
	netSize        *num.Uint
	entryPriceX96  *num.Uint
	premiumRateX96 *num.Uint
}

func NewGlobalLiquidityPositionChanged(
	ctx context.Context,
	marketID string,
	side types.Side,
	netSize, entryPriceX96, premiumRateX96 *num.Uint,
) *GlobalLiquidityPositionChanged {
	return &GlobalLiquidityPositionChanged{
		Base:           newBase(ctx, GlobalLiquidityPositionChangedEvent, marketID),
		side:           side,
		netSize:        netSize.Clone(),
		entryPriceX96:  entryPriceX96.Clone(),
		premiumRateX96: premiumRateX96.Clone(),
	}
}

func (g GlobalLiquidityPositionChanged) Side() types.Side {
	return g.side
}

func (g GlobalLiquidityPositionChanged) NetSize() *num.Uint {
	return g.netSize.Clone()
}

func (g GlobalLiquidityPositionChanged) EntryPriceX96() *num.Uint {
	return g.entryPriceX96.Clone()
}

func (g GlobalLiquidityPositionChanged) PremiumRateX96() *num.Uint {
	return g.premiumRateX96.Clone()
}
