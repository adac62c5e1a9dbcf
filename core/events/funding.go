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
	"time"

	"code.stratumtrade.io/stratum/libs/num"
)

// FundingRateAdjusted is emitted when an hourly funding settlement moves
// the growth accumulators.
type FundingRateAdjusted struct {
	*Base
	fundingRateDeltaX96       *num.Int
	longFundingRateGrowthX96  *num.Int
	shortFundingRateGrowthX96 *num.Int
	lastAdjustFundingRateTime time.Time
}

func NewFundingRateAdjusted(
	ctx context.Context,
	marketID string,
	fundingRateDeltaX96, longGrowthX96, shortGrowthX96 *num.Int,
	lastAdjustTime time.Time,
) *FundingRateAdjusted {
	return &FundingRateAdjusted{
		Base:                      newBase(ctx, FundingRateAdjustedEvent, marketID),
		fundingRateDeltaX96:       fundingRateDeltaX96.Clone(),
		longFundingRateGrowthX96:  longGrowthX96.Clone(),
		shortFundingRateGrowthX96: shortGrowthX96.Clone(),
		lastAdjustFundingRateTime: lastAdjustTime,
	}
}

func (f FundingRateAdjusted) FundingRateDeltaX96() *num.Int {
	return f.fundingRateDeltaX96.Clone()
}

func (f FundingRateAdjusted) LongFundingRateGrowthX96() *num.Int {
	return f.longFundingRateGrowthX96.Clone()
}

func (f FundingRateAdjusted) ShortFundingRateGrowthX96() *num.Int {
	return f.shortFundingRateGrowthX96.Clone()
}

func (f FundingRateAdjusted) LastAdjustFundingRateTime() time.Time {
	return f.lastAdjustFundingRateTime
}
