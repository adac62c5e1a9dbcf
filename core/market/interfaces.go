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

package market

import (
	"time"

	"code.stratumtrade.io/stratum/core/events"
	"code.stratumtrade.io/stratum/libs/num"
)

// Broker send events.
//
//go:generate go run github.com/golang/mock/mockgen -destination mocks/broker_mock.go -package mocks code.stratumtrade.io/stratum/core/market Broker
type Broker interface {
	Send(event events.Event)
	SendBatch(events []events.Event)
}

// TimeService provides the current engine time.
//
//go:generate go run github.com/golang/mock/mockgen -destination mocks/time_service_mock.go -package mocks code.stratumtrade.io/stratum/core/market TimeService
type TimeService interface {
	GetTimeNow() time.Time
}

// PriceFeed provides the index price band of a market as X96 fixed point
// values.
//
//go:generate go run github.com/golang/mock/mockgen -destination mocks/price_feed_mock.go -package mocks code.stratumtrade.io/stratum/core/market PriceFeed
type PriceFeed interface {
	GetMinPriceX96(marketID string) (*num.Uint, error)
	GetMaxPriceX96(marketID string) (*num.Uint, error)
}

// RewardSink is notified of stake-weighted balance changes so an
// external reward program can track them.
//
//go:generate go run github.com/golang/mock/mockgen -destination mocks/reward_sink_mock.go -package mocks code.stratumtrade.io/stratum/core/market RewardSink
type RewardSink interface {
	OnLiquidityPositionChanged(marketID, account string, liquidityDelta *num.Int)
	OnPositionChanged(marketID, account string, sizeDelta *num.Int)
	OnRiskBufferFundPositionChanged(marketID, account string, liquidityAfter *num.Uint)
}

// Referral resolves an account's referral tokens, zero when the account
// is not referred.
//
//go:generate go run github.com/golang/mock/mockgen -destination mocks/referral_mock.go -package mocks code.stratumtrade.io/stratum/core/market Referral
type Referral interface {
	ReferralTokens(account string) (token, parentToken uint64)
}
