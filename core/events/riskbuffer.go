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

// RiskBufferFundPositionChanged is emitted when a locked risk buffer fund
// deposit is increased or decreased.
type RiskBufferFundPositionChanged struct {
	*Base
	account        string
	liquidityAfter *num.Uint
}

func NewRiskBufferFundPositionChanged(ctx context.Context, marketID, account string, liquidityAfter *num.Uint) *RiskBufferFundPositionChanged {
	return &RiskBufferFundPositionChanged{
		Base:           newBase(ctx, RiskBufferFundPositionChangedEvent, marketID),
		account:        account,
		liquidityAfter: liquidityAfter.Clone(),
	}
}

func (r RiskBufferFundPositionChanged) Account() string           { return r.account }
func (r RiskBufferFundPositionChanged) LiquidityAfter() *num.Uint { return r.liquidityAfter.Clone() }

// RiskBufferFundGovUsed is emitted on a governance draw-down.
type RiskBufferFundGovUsed struct {
	*Base
	receiver string
	amount   *num.Uint
}

func NewRiskBufferFundGovUsed(ctx context.Context, marketID, receiver string, amount *num.Uint) *RiskBufferFundGovUsed {
	return &RiskBufferFundGovUsed{
		Base:     newBase(ctx, RiskBufferFundGovUsedEvent, marketID),
		receiver: receiver,
		amount:   amount.Clone(),
	}
}

func (r RiskBufferFundGovUsed) Receiver() string  { return r.receiver }
func (r RiskBufferFundGovUsed) Amount() *num.Uint { return r.amount.Clone() }
