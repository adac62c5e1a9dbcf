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

// PositionIncreased is emitted after a trader opened or increased a
// position.
type PositionIncreased struct {
	*Base
	account       string
	side          types.Side
	marginDelta   *num.Uint
	sizeDelta     *num.Uint
	tradePriceX96 *num.Uint
	marginAfter   *num.Uint
	sizeAfter     *num.Uint
	entryPriceX96 *num.Uint
	fundingFee    *num.Int
	tradingFee    *num.Uint
}

func NewPositionIncreased(
	ctx context.Context,
	marketID, account string,
	side types.Side,
	marginDelta, sizeDelta, tradePriceX96, marginAfter, sizeAfter, entryPriceX96 *num.Uint,
	fundingFee *num.Int,
	tradingFee *num.Uint,
) *PositionIncreased {
	return &PositionIncreased{
		Base:          newBase(ctx, PositionIncreasedEvent, marketID),
		account:       account,
		side:          side,
		marginDelta:   marginDelta.Clone(),
		sizeDelta:     sizeDelta.Clone(),
		tradePriceX96: tradePriceX96.Clone(),
		marginAfter:   marginAfter.Clone(),
		sizeAfter:     sizeAfter.Clone(),
		entryPriceX96: entryPriceX96.Clone(),
		fundingFee:    fundingFee.Clone(),
		tradingFee:    tradingFee.Clone(),
	}
}

func (p PositionIncreased) Account() string          { return p.account }
func (p PositionIncreased) Side() types.Side         { return p.side }
func (p PositionIncreased) MarginDelta() *num.Uint   { return p.marginDelta.Clone() }
func (p PositionIncreased) SizeDelta() *num.Uint     { return p.sizeDelta.Clone() }
func (p PositionIncreased) TradePriceX96() *num.Uint { return p.tradePriceX96.Clone() }
func (p PositionIncreased) MarginAfter() *num.Uint   { return p.marginAfter.Clone() }
func (p PositionIncreased) SizeAfter() *num.Uint     { return p.sizeAfter.Clone() }
func (p PositionIncreased) EntryPriceX96() *num.Uint { return p.entryPriceX96.Clone() }
func (p PositionIncreased) FundingFee() *num.Int     { return p.fundingFee.Clone() }
func (p PositionIncreased) TradingFee() *num.Uint    { return p.tradingFee.Clone() }

// PositionDecreased is emitted after a trader reduced or closed a
// position.
type PositionDecreased struct {
	*Base
	account       string
	side          types.Side
	sizeDelta     *num.Uint
	tradePriceX96 *num.Uint
	marginAfter   *num.Uint
	sizeAfter     *num.Uint
	realizedPnL   *num.Int
	fundingFee    *num.Int
	tradingFee    *num.Uint
	payout        *num.Uint
	receiver      string
}

func NewPositionDecreased(
	ctx context.Context,
	marketID, account string,
	side types.Side,
	sizeDelta, tradePriceX96, marginAfter, sizeAfter *num.Uint,
	realizedPnL, fundingFee *num.Int,
	tradingFee, payout *num.Uint,
	receiver string,
) *PositionDecreased {
	return &PositionDecreased{
		Base:          newBase(ctx, PositionDecreasedEvent, marketID),
		account:       account,
		side:          side,
		sizeDelta:     sizeDelta.Clone(),
		tradePriceX96: tradePriceX96.Clone(),
		marginAfter:   marginAfter.Clone(),
		sizeAfter:     sizeAfter.Clone(),
		realizedPnL:   realizedPnL.Clone(),
		fundingFee:    fundingFee.Clone(),
		tradingFee:    tradingFee.Clone(),
		payout:        payout.Clone(),
		receiver:      receiver,
	}
}

func (p PositionDecreased) Account() string          { return p.account }
func (p PositionDecreased) Side() types.Side         { return p.side }
func (p PositionDecreased) SizeDelta() *num.Uint     { return p.sizeDelta.Clone() }
func (p PositionDecreased) TradePriceX96() *num.Uint { return p.tradePriceX96.Clone() }
func (p PositionDecreased) MarginAfter() *num.Uint   { return p.marginAfter.Clone() }
func (p PositionDecreased) SizeAfter() *num.Uint     { return p.sizeAfter.Clone() }
func (p PositionDecreased) RealizedPnL() *num.Int    { return p.realizedPnL.Clone() }
func (p PositionDecreased) FundingFee() *num.Int     { return p.fundingFee.Clone() }
func (p PositionDecreased) TradingFee() *num.Uint    { return p.tradingFee.Clone() }
func (p PositionDecreased) Payout() *num.Uint        { return p.payout.Clone() }
func (p PositionDecreased) Receiver() string         { return p.receiver }

// PositionLiquidated is emitted when a position is forcibly unwound.
type PositionLiquidated struct {
	*Base
	account             string
	side                types.Side
	size                *num.Uint
	liquidationPriceX96 *num.Uint
	executionFee        *num.Uint
	feeReceiver         string
	fundingFee          *num.Int
}

func NewPositionLiquidated(
	ctx context.Context,
	marketID, account string,
	side types.Side,
	size, liquidationPriceX96, executionFee *num.Uint,
	feeReceiver string,
	fundingFee *num.Int,
) *PositionLiquidated {
	return &PositionLiquidated{
		Base:                newBase(ctx, PositionLiquidatedEvent, marketID),
		account:             account,
		side:                side,
		size:                size.Clone(),
		liquidationPriceX96: liquidationPriceX96.Clone(),
		executionFee:        executionFee.Clone(),
		feeReceiver:         feeReceiver,
		fundingFee:          fundingFee.Clone(),
	}
}

func (p PositionLiquidated) Account() string                { return p.account }
func (p PositionLiquidated) Side() types.Side               { return p.side }
func (p PositionLiquidated) Size() *num.Uint                { return p.size.Clone() }
func (p PositionLiquidated) LiquidationPriceX96() *num.Uint { return p.liquidationPriceX96.Clone() }
func (p PositionLiquidated) ExecutionFee() *num.Uint        { return p.executionFee.Clone() }
func (p PositionLiquidated) FeeReceiver() string            { return p.feeReceiver }
func (p PositionLiquidated) FundingFee() *num.Int           { return p.fundingFee.Clone() }
