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

import "github.com/pkg/errors"

// The error taxonomy of the market engine. Validation failures are
// categorical: entry points wrap these sentinels with the offending
// values, and no partial mutation occurs before an error is returned.
var (
	// trading and LP errors
	ErrInsufficientMargin          = errors.New("insufficient margin")
	ErrInsufficientBalance         = errors.New("insufficient balance")
	ErrLeverageTooHigh             = errors.New("leverage too high")
	ErrRiskRateTooHigh             = errors.New("risk rate too high")
	ErrRiskRateTooLow              = errors.New("risk rate too low")
	ErrLiquidityPositionNotFound   = errors.New("liquidity position not found")
	ErrLastLiquidityPositionCannotBeClosed = errors.New("last liquidity position cannot be closed")
	ErrInvalidLiquidityDelta       = errors.New("liquidity delta must be greater than zero")

	ErrPositionNotFound            = errors.New("position not found")
	ErrInsufficientGlobalLiquidity = errors.New("insufficient global liquidity")
	ErrMarginRateTooHigh           = errors.New("margin rate too high")
	ErrMarginRateTooLow            = errors.New("margin rate too low")
	ErrInsufficientSizeToDecrease  = errors.New("insufficient size to decrease")
	ErrZeroSizeDelta               = errors.New("size delta must be greater than zero")
	ErrMaxPremiumRateExceeded      = errors.New("max premium rate exceeded")

	// risk buffer fund errors
	ErrRiskBufferFundPositionLocked   = errors.New("risk buffer fund position still locked")
	ErrRiskBufferFundPositionNotFound = errors.New("risk buffer fund position not found")
	ErrInsufficientRiskBufferFund     = errors.New("insufficient risk buffer fund")

	// authorization errors
	ErrCallerNotRouter     = errors.New("caller is not the router")
	ErrCallerNotLiquidator = errors.New("caller is not a liquidator")
	ErrCallerNotGovernor   = errors.New("caller is not the governor")

	// engine errors
	ErrMarketNotFound      = errors.New("market not found")
	ErrMarketAlreadyExists = errors.New("market already exists")
	ErrReentrantCall       = errors.New("reentrant engine call rejected")
)
