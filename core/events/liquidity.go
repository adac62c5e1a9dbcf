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

	"code.stratumtrade.io/stratum/libs/num"
)

// LiquidityPositionOpened is emitted when an LP deposit is created.
type LiquidityPositionOpened struct {
	*Base
	positionID uint64
	account    string
	margin     *num.Uint
	liquidity  *num.Uint
}

func NewLiquidityPositionOpened(ctx context.Context, marketID string, positionID uint64, account string, margin, liquidity *num.Uint) *LiquidityPositionOpened {
	return &LiquidityPositionOpened{
		Base:       newBase(ctx, LiquidityPositionOpenedEvent, marketID),
		positionID: positionID,
		account:    account,
		margin:     margin.Clone(),
		liquidity:  liquidity.Clone(),
	}
}

func (l LiquidityPositionOpened) PositionID() uint64  { return l.positionID }
func (l LiquidityPositionOpened) Account() string     { return l.account }
func (l LiquidityPositionOpened) Margin() *num.Uint   { return l.margin.Clone() }
func (l LiquidityPositionOpened) Liquidity() *num.Uint { return l.liquidity.Clone() }

// LiquidityPositionClosed is emitted when an LP deposit is closed
// voluntarily.
type LiquidityPositionClosed struct {
	*Base
	positionID     uint64
	account        string
	payout         *num.Uint
	realizedProfit *num.Uint
	unrealizedLoss *num.Uint
}

func NewLiquidityPositionClosed(ctx context.Context, marketID string, positionID uint64, account string, payout, realizedProfit, unrealizedLoss *num.Uint) *LiquidityPositionClosed {
	return &LiquidityPositionClosed{
		Base:           newBase(ctx, LiquidityPositionClosedEvent, marketID),
		positionID:     positionID,
		account:        account,
		payout:         payout.Clone(),
		realizedProfit: realizedProfit.Clone(),
		unrealizedLoss: unrealizedLoss.Clone(),
	}
}

func (l LiquidityPositionClosed) PositionID() uint64       { return l.positionID }
func (l LiquidityPositionClosed) Account() string          { return l.account }
func (l LiquidityPositionClosed) Payout() *num.Uint        { return l.payout.Clone() }
func (l LiquidityPositionClosed) RealizedProfit() *num.Uint { return l.realizedProfit.Clone() }
func (l LiquidityPositionClosed) UnrealizedLoss() *num.Uint { return l.unrealizedLoss.Clone() }

// LiquidityPositionMarginAdjusted is emitted when LP margin is added or
// withdrawn.
type LiquidityPositionMarginAdjusted struct {
	*Base
	positionID  uint64
	account     string
	marginDelta *num.Int
	marginAfter *num.Uint
}

func NewLiquidityPositionMarginAdjusted(ctx context.Context, marketID string, positionID uint64, account string, marginDelta *num.Int, marginAfter *num.Uint) *LiquidityPositionMarginAdjusted {
	return &LiquidityPositionMarginAdjusted{
		Base:        newBase(ctx, LiquidityPositionMarginAdjustedEvent, marketID),
		positionID:  positionID,
		account:     account,
		marginDelta: marginDelta.Clone(),
		marginAfter: marginAfter.Clone(),
	}
}

func (l LiquidityPositionMarginAdjusted) PositionID() uint64    { return l.positionID }
func (l LiquidityPositionMarginAdjusted) Account() string       { return l.account }
func (l LiquidityPositionMarginAdjusted) MarginDelta() *num.Int { return l.marginDelta.Clone() }
func (l LiquidityPositionMarginAdjusted) MarginAfter() *num.Uint { return l.marginAfter.Clone() }

// LiquidityPositionLiquidated is emitted when an LP deposit is forcibly
// closed.
type LiquidityPositionLiquidated struct {
	*Base
	positionID   uint64
	account      string
	executionFee *num.Uint
	feeReceiver  string
}

func NewLiquidityPositionLiquidated(ctx context.Context, marketID string, positionID uint64, account string, executionFee *num.Uint, feeReceiver string) *LiquidityPositionLiquidated {
	return &LiquidityPositionLiquidated{
		Base:         newBase(ctx, LiquidityPositionLiquidatedEvent, marketID),
		positionID:   positionID,
		account:      account,
		executionFee: executionFee.Clone(),
		feeReceiver:  feeReceiver,
	}
}

func (l LiquidityPositionLiquidated) PositionID() uint64      { return l.positionID }
func (l LiquidityPositionLiquidated) Account() string         { return l.account }
func (l LiquidityPositionLiquidated) ExecutionFee() *num.Uint { return l.executionFee.Clone() }
func (l LiquidityPositionLiquidated) FeeReceiver() string     { return l.feeReceiver }
