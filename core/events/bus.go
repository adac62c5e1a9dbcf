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
)

type Type int

const (
	// All is used by subscribers to receive every event, it has no
	// corresponding payload.
	All Type = iota
	FundingRateAdjustedEvent
	PriceVertexChangedEvent
	GlobalLiquidityPositionChangedEvent
	LiquidityPositionOpenedEvent
	LiquidityPositionClosedEvent
	LiquidityPositionMarginAdjustedEvent
	LiquidityPositionLiquidatedEvent
	PositionIncreasedEvent
	PositionDecreasedEvent
	PositionLiquidatedEvent
	RiskBufferFundPositionChangedEvent
	RiskBufferFundGovUsedEvent
	ProtocolFeeCollectedEvent
	ReferralFeeCollectedEvent
)

var eventStrings = map[Type]string{
	All:                                  "ALL",
	FundingRateAdjustedEvent:             "FundingRateAdjusted",
	PriceVertexChangedEvent:              "PriceVertexChanged",
	GlobalLiquidityPositionChangedEvent:  "GlobalLiquidityPositionChanged",
	LiquidityPositionOpenedEvent:         "LiquidityPositionOpened",
	LiquidityPositionClosedEvent:         "LiquidityPositionClosed",
	LiquidityPositionMarginAdjustedEvent: "LiquidityPositionMarginAdjusted",
	LiquidityPositionLiquidatedEvent:     "LiquidityPositionLiquidated",
	PositionIncreasedEvent:               "PositionIncreased",
	PositionDecreasedEvent:               "PositionDecreased",
	PositionLiquidatedEvent:              "PositionLiquidated",
	RiskBufferFundPositionChangedEvent:   "RiskBufferFundPositionChanged",
	RiskBufferFundGovUsedEvent:           "RiskBufferFundGovUsed",
	ProtocolFeeCollectedEvent:            "ProtocolFeeCollected",
	ReferralFeeCollectedEvent:            "ReferralFeeCollected",
}

func (t Type) String() string {
	s, ok := eventStrings[t]
	if !ok {
		return "UNKNOWN"
	}
	return s
}

// Event is the common denominator all event-bus events share.
type Event interface {
	Type() Type
	Context() context.Context
	MarketID() string
}

// Base is embedded by every event payload.
type Base struct {
	ctx      context.Context
	et       Type
	marketID string
}

func newBase(ctx context.Context, t Type, marketID string) *Base {
	return &Base{
		ctx:      ctx,
		et:       t,
		marketID: marketID,
	}
}

// Context returns the context the event was emitted with.
func (b Base) Context() context.Context {
	return b.ctx
}

// Type returns the event type.
func (b Base) Type() Type {
	return b.et
}

// MarketID returns the market the event relates to.
func (b Base) MarketID() string {
	return b.marketID
}
