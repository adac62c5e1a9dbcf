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

// ProtocolFeeCollected is emitted when the accumulated protocol fee pot
// is drained to the fee sink.
type ProtocolFeeCollected struct {
	*Base
	receiver string
	amount   *num.Uint
}

func NewProtocolFeeCollected(ctx context.Context, marketID, receiver string, amount *num.Uint) *ProtocolFeeCollected {
	return &ProtocolFeeCollected{
		Base:     newBase(ctx, ProtocolFeeCollectedEvent, marketID),
		receiver: receiver,
		amount:   amount.Clone(),
	}
}

func (p ProtocolFeeCollected) Receiver() string  { return p.receiver }
func (p ProtocolFeeCollected) Amount() *num.Uint { return p.amount.Clone() }

// ReferralFeeCollected is emitted when an accumulated referral fee pot is
// drained.
type ReferralFeeCollected struct {
	*Base
	token    uint64
	receiver string
	amount   *num.Uint
}

func NewReferralFeeCollected(ctx context.Context, marketID string, token uint64, receiver string, amount *num.Uint) *ReferralFeeCollected {
	return &ReferralFeeCollected{
		Base:     newBase(ctx, ReferralFeeCollectedEvent, marketID),
		token:    token,
		receiver: receiver,
		amount:   amount.Clone(),
	}
}

func (r ReferralFeeCollected) Token() uint64     { return r.token }
func (r ReferralFeeCollected) Receiver() string  { return r.receiver }
func (r ReferralFeeCollected) Amount() *num.Uint { return r.amount.Clone() }
