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

package riskbuffer

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"code.stratumtrade.io/stratum/core/events"
	"code.stratumtrade.io/stratum/core/types"
	"code.stratumtrade.io/stratum/libs/num"
	"code.stratumtrade.io/stratum/logging"
)

// Broker send events.
type Broker interface {
	Send(event events.Event)
}

// Engine is the insurance fund of one market. The fund balance absorbs
// the realized flows of the pool and of liquidations, and can go
// negative under extreme loss. Voluntary deposits lock for a cooldown
// and share none of the upside until withdrawn, they only backstop the
// fund's solvency floor.
type Engine struct {
	Config
	log      *logging.Logger
	broker   Broker
	marketID string

	fund      *types.GlobalRiskBufferFund
	positions map[string]*types.RiskBufferFundPosition
}

// New returns a risk buffer fund engine for one market.
func New(log *logging.Logger, config Config, broker Broker, marketID string) *Engine {
	log = log.Named(namedLogger)
	log.SetLevel(config.Level.Get())

	return &Engine{
		Config:    config,
		log:       log,
		broker:    broker,
		marketID:  marketID,
		fund:      types.NewGlobalRiskBufferFund(),
		positions: map[string]*types.RiskBufferFundPosition{},
	}
}

// Fund returns a copy of the fund balance.
func (e *Engine) Fund() *num.Int {
	return e.fund.RiskBufferFund.Clone()
}

// Liquidity returns a copy of the total locked deposits.
func (e *Engine) Liquidity() *num.Uint {
	return e.fund.Liquidity.Clone()
}

// Position returns a copy of an account's locked deposit, if any.
func (e *Engine) Position(account string) (*types.RiskBufferFundPosition, bool) {
	p, ok := e.positions[account]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// Settle folds a realized flow into the fund balance: pool trade PnL,
// liquidation remainders, fee remainders and unreceived funding.
func (e *Engine) Settle(delta *num.Int) {
	if delta.IsZero() {
		return
	}
	e.fund.RiskBufferFund.Add(delta)
	if e.log.GetLevel() == logging.DebugLevel {
		e.log.Debug("risk buffer fund settled",
			logging.MarketID(e.marketID),
			logging.String("delta", delta.String()),
			logging.String("fund", e.fund.RiskBufferFund.String()))
	}
}

// Increase locks a deposit into the fund. Topping up an existing deposit
// restarts its cooldown.
func (e *Engine) Increase(ctx context.Context, account string, liquidityDelta *num.Uint, now time.Time) error {
	if liquidityDelta.IsZero() {
		return errors.Wrap(types.ErrInvalidLiquidityDelta, "risk buffer fund increase")
	}
	p, ok := e.positions[account]
	if !ok {
		p = &types.RiskBufferFundPosition{
			Account:   account,
			Liquidity: num.UintZero(),
		}
		e.positions[account] = p
	}
	p.Liquidity.Add(p.Liquidity, liquidityDelta)
	p.EntryTime = now

	e.fund.Liquidity.Add(e.fund.Liquidity, liquidityDelta)
	e.fund.RiskBufferFund.AddUint(liquidityDelta)

	e.broker.Send(events.NewRiskBufferFundPositionChanged(ctx, e.marketID, account, p.Liquidity))
	return nil
}

// Decrease releases part of a locked deposit once its cooldown has
// passed, provided the fund stays solvent against the remaining locked
// liquidity.
func (e *Engine) Decrease(ctx context.Context, account string, liquidityDelta *num.Uint, now time.Time) error {
	p, ok := e.positions[account]
	if !ok {
		return errors.Wrapf(types.ErrRiskBufferFundPositionNotFound, "account %s", account)
	}
	if unlockAt := p.EntryTime.Add(e.Cooldown.Get()); now.Before(unlockAt) {
		return errors.Wrapf(types.ErrRiskBufferFundPositionLocked, "unlocks at %s", unlockAt)
	}
	if liquidityDelta.IsZero() || liquidityDelta.GT(p.Liquidity) {
		return errors.Wrapf(types.ErrInvalidLiquidityDelta,
			"decrease %s exceeds locked %s", liquidityDelta, p.Liquidity)
	}
	fundAfter := e.fund.RiskBufferFund.Clone().SubUint(liquidityDelta)
	liquidityAfter := num.UintZero().Sub(e.fund.Liquidity, liquidityDelta)
	if fundAfter.LT(num.IntFromUint(liquidityAfter, true)) {
		return errors.Wrapf(types.ErrInsufficientRiskBufferFund,
			"fund %s after decrease, locked %s", fundAfter, liquidityAfter)
	}

	p.Liquidity.Sub(p.Liquidity, liquidityDelta)
	if p.Liquidity.IsZero() {
		delete(e.positions, account)
	}
	e.fund.Liquidity = liquidityAfter
	e.fund.RiskBufferFund = fundAfter

	e.broker.Send(events.NewRiskBufferFundPositionChanged(ctx, e.marketID, account, p.Liquidity))
	return nil
}

// GovUse draws down fund surplus by governance. Locked deposits are not
// drawable.
func (e *Engine) GovUse(ctx context.Context, receiver string, amount *num.Uint) error {
	usable := e.fund.RiskBufferFund.Clone().SubUint(e.fund.Liquidity)
	if amount.IsZero() || usable.LT(num.IntFromUint(amount, true)) {
		return errors.Wrapf(types.ErrInsufficientRiskBufferFund,
			"usable %s, want %s", usable, amount)
	}
	e.fund.RiskBufferFund.SubUint(amount)
	e.broker.Send(events.NewRiskBufferFundGovUsed(ctx, e.marketID, receiver, amount))
	return nil
}
