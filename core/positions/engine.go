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

package positions

import (
	"context"
	"sort"

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

// FundingSnapshot exposes the growth accumulator values from just before
// the last funding settlement, used when a liquidated position can not
// cover its funding charge at the current accumulators.
type FundingSnapshot interface {
	PreviousGrowthOf(side types.Side) *num.Int
}

type positionKey struct {
	account string
	side    types.Side
}

// Engine keeps the leveraged trader positions of one market, keyed by
// account and side, and the aggregate sizes per side shared with the
// funding engine. Execution prices come from the pricing engine through
// the market, this engine owns margin, fee and liquidation accounting.
type Engine struct {
	Config
	log      *logging.Logger
	broker   Broker
	marketID string

	gp        *types.GlobalPosition
	snapshot  FundingSnapshot
	positions map[positionKey]*types.Position

	base    types.MarketBaseConfig
	feeRate types.MarketFeeRateConfig
}

// FeeSplit is one trading fee broken into its destinations. The
// remainder, anything the configured split rates leave unassigned, goes
// to the risk buffer fund.
type FeeSplit struct {
	TradingFee        *num.Uint
	LiquidityFee      *num.Uint
	ProtocolFee       *num.Uint
	ReferralFee       *num.Uint
	ReferralParentFee *num.Uint
	Remainder         *num.Uint
}

func zeroFeeSplit() *FeeSplit {
	return &FeeSplit{
		TradingFee:        num.UintZero(),
		LiquidityFee:      num.UintZero(),
		ProtocolFee:       num.UintZero(),
		ReferralFee:       num.UintZero(),
		ReferralParentFee: num.UintZero(),
		Remainder:         num.UintZero(),
	}
}

// TradeOutcome reports the settled flows of an increase or decrease for
// the market to route.
type TradeOutcome struct {
	FundingFee  *num.Int
	RealizedPnL *num.Int
	Fee         *FeeSplit
	// Payout is margin released back to the trader.
	Payout      *num.Uint
	MarginAfter *num.Uint
	SizeAfter   *num.Uint
	Closed      bool
}

// LiquidationOutcome reports the settled flows of a forced unwind.
type LiquidationOutcome struct {
	Size                *num.Uint
	LiquidationPriceX96 *num.Uint
	ExecutionFee        *num.Uint
	Fee                 *FeeSplit
	FundingFee          *num.Int
	// RiskBufferDelta is what is left of the forfeited margin after the
	// execution fee and trading fee, negative when the margin fell short.
	RiskBufferDelta *num.Int
}

// New returns a positions engine for one market.
func New(
	log *logging.Logger,
	config Config,
	broker Broker,
	marketID string,
	gp *types.GlobalPosition,
	snapshot FundingSnapshot,
) *Engine {
	log = log.Named(namedLogger)
	log.SetLevel(config.Level.Get())

	return &Engine{
		Config:    config,
		log:       log,
		broker:    broker,
		marketID:  marketID,
		gp:        gp,
		snapshot:  snapshot,
		positions: map[positionKey]*types.Position{},
	}
}

// UpdateParams swaps in the trading parameters of a market config change.
func (e *Engine) UpdateParams(base types.MarketBaseConfig, feeRate types.MarketFeeRateConfig) {
	base.MinMarginPerLiquidityPosition = base.MinMarginPerLiquidityPosition.Clone()
	base.MinMarginPerPosition = base.MinMarginPerPosition.Clone()
	base.LiquidationExecutionFee = base.LiquidationExecutionFee.Clone()
	e.base = base
	e.feeRate = feeRate
}

// Position returns a copy of a trader position.
func (e *Engine) Position(account string, side types.Side) (*types.Position, bool) {
	p, ok := e.positions[positionKey{account, side}]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// Positions returns copies of all open positions, ordered by account and
// side.
func (e *Engine) Positions() []*types.Position {
	out := make([]*types.Position, 0, len(e.positions))
	for _, p := range e.positions {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Account != out[j].Account {
			return out[i].Account < out[j].Account
		}
		return out[i].Side < out[j].Side
	})
	return out
}

// FundingFeeOf is the funding accrued by a position since its entry,
// negative when the position owes.
func (e *Engine) FundingFeeOf(p *types.Position) *num.Int {
	if p.Size.IsZero() {
		return num.IntZero()
	}
	delta := e.gp.GrowthOf(p.Side).Clone().Sub(p.EntryFundingRateGrowthX96)
	return num.MulDivInt(delta, p.Size, num.Q96(), num.RoundDown)
}

// MaintenanceMargin is the margin floor of a position: the liquidation
// and trading fees of unwinding it at its entry notional, plus the fixed
// execution fee. Rounds up.
func (e *Engine) MaintenanceMargin(entryPriceX96, size *num.Uint) *num.Uint {
	notional := num.MulDiv(entryPriceX96, size, num.Q96(), num.RoundUp)
	mm := num.MulRatio(notional, e.base.LiquidationFeeRate+e.feeRate.TradingFeeRate,
		types.BasisPointsDivisor, num.RoundUp)
	return mm.Add(mm, e.base.LiquidationExecutionFee)
}

func (e *Engine) feeSplit(notional *num.Uint, hasReferral bool) *FeeSplit {
	fee := num.MulRatio(notional, e.feeRate.TradingFeeRate, types.BasisPointsDivisor, num.RoundUp)
	if hasReferral && e.feeRate.ReferralDiscountRate > 0 {
		fee = num.MulRatio(fee, types.BasisPointsDivisor-e.feeRate.ReferralDiscountRate,
			types.BasisPointsDivisor, num.RoundUp)
	}
	s := zeroFeeSplit()
	s.TradingFee = fee
	s.LiquidityFee = num.MulRatio(fee, e.feeRate.LiquidityFeeRate, types.BasisPointsDivisor, num.RoundDown)
	s.ProtocolFee = num.MulRatio(fee, e.feeRate.ProtocolFeeRate, types.BasisPointsDivisor, num.RoundDown)
	if hasReferral {
		s.ReferralFee = num.MulRatio(fee, e.feeRate.ReferralReturnFeeRate, types.BasisPointsDivisor, num.RoundDown)
		s.ReferralParentFee = num.MulRatio(fee, e.feeRate.ReferralParentReturnFeeRate, types.BasisPointsDivisor, num.RoundDown)
	}
	assigned := num.Sum(s.LiquidityFee, s.ProtocolFee, s.ReferralFee, s.ReferralParentFee)
	s.Remainder = num.UintZero().Sub(fee, assigned)
	return s
}

func pnl(side types.Side, entryPriceX96, priceX96, size *num.Uint) *num.Int {
	diff, priceBelow := num.UintZero().Delta(priceX96, entryPriceX96)
	mag := num.MulDiv(diff, size, num.Q96(), num.RoundDown)
	profit := (side == types.SideLong) != priceBelow
	return num.IntFromUint(mag, profit)
}

// checkMarginRate requires the margin plus unrealized PnL to stay
// strictly above the maintenance margin.
func checkMarginRate(margin *num.Uint, unrealized *num.Int, mm *num.Uint) error {
	net := num.IntFromUint(margin, true).Add(unrealized)
	if !net.IsPositive() || net.LTE(num.IntFromUint(mm, true)) {
		return errors.Wrapf(types.ErrMarginRateTooHigh,
			"margin %s with unrealized pnl %s against maintenance %s", margin, unrealized, mm)
	}
	return nil
}

// Increase opens or grows a position. tradePriceX96 is the execution
// price quoted by the pricing engine, valuationPriceX96 the index bound
// adverse to the trader. All validations run before any mutation.
func (e *Engine) Increase(
	ctx context.Context,
	account string,
	side types.Side,
	marginDelta, sizeDelta *num.Uint,
	tradePriceX96, valuationPriceX96 *num.Uint,
	hasReferral bool,
) (*TradeOutcome, error) {
	if marginDelta.IsZero() && sizeDelta.IsZero() {
		return nil, errors.Wrap(types.ErrZeroSizeDelta, "position increase")
	}
	key := positionKey{account, side}
	p, exists := e.positions[key]
	if !exists {
		if sizeDelta.IsZero() {
			return nil, errors.Wrapf(types.ErrPositionNotFound, "%s %s", account, side)
		}
		p = &types.Position{
			Account:                   account,
			Side:                      side,
			Margin:                    num.UintZero(),
			Size:                      num.UintZero(),
			EntryPriceX96:             num.UintZero(),
			EntryFundingRateGrowthX96: num.IntZero(),
		}
	}

	fundingFee := e.FundingFeeOf(p)
	sizeAfter := num.Sum(p.Size, sizeDelta)
	entryAfter := p.EntryPriceX96.Clone()
	fee := zeroFeeSplit()
	if !sizeDelta.IsZero() {
		if p.Size.IsZero() {
			entryAfter = tradePriceX96.Clone()
		} else {
			r := num.RoundDown
			if side == types.SideLong {
				r = num.RoundUp
			}
			entryAfter = num.WeightedAverage(p.EntryPriceX96, p.Size, tradePriceX96, sizeDelta, r)
		}
		notional := num.MulDiv(tradePriceX96, sizeDelta, num.Q96(), num.RoundUp)
		fee = e.feeSplit(notional, hasReferral)
	}

	marginInt := num.IntFromUint(p.Margin, true).
		Add(fundingFee).
		AddUint(marginDelta).
		SubUint(fee.TradingFee)
	if !marginInt.IsPositive() {
		return nil, errors.Wrapf(types.ErrInsufficientMargin, "margin after fees %s", marginInt)
	}
	marginAfter := marginInt.Abs()
	// the margin floor only gates opening, an existing position may be
	// topped up from below it
	if !exists && marginAfter.LT(e.base.MinMarginPerPosition) {
		return nil, errors.Wrapf(types.ErrInsufficientMargin,
			"margin %s below minimum %s", marginAfter, e.base.MinMarginPerPosition)
	}

	mm := e.MaintenanceMargin(entryAfter, sizeAfter)
	unrealized := pnl(side, entryAfter, valuationPriceX96, sizeAfter)
	if err := checkMarginRate(marginAfter, unrealized, mm); err != nil {
		return nil, err
	}
	if !marginDelta.IsZero() {
		notionalTotal := num.MulDiv(entryAfter, sizeAfter, num.Q96(), num.RoundUp)
		if num.UintZero().Mul(marginAfter, num.NewUint(e.base.MaxLeveragePerPosition)).LT(notionalTotal) {
			return nil, errors.Wrapf(types.ErrLeverageTooHigh,
				"notional %s exceeds %dx margin %s", notionalTotal, e.base.MaxLeveragePerPosition, marginAfter)
		}
	}

	if !exists {
		e.positions[key] = p
	}
	p.Margin = marginAfter
	p.Size = sizeAfter
	p.EntryPriceX96 = entryAfter
	p.EntryFundingRateGrowthX96 = e.gp.GrowthOf(side).Clone()
	gs := e.gp.SizeOf(side)
	gs.Add(gs, sizeDelta)

	e.broker.Send(events.NewPositionIncreased(ctx, e.marketID, account, side,
		marginDelta, sizeDelta, tradePriceX96, p.Margin, p.Size, p.EntryPriceX96,
		fundingFee, fee.TradingFee))
	return &TradeOutcome{
		FundingFee:  fundingFee,
		RealizedPnL: num.IntZero(),
		Fee:         fee,
		Payout:      num.UintZero(),
		MarginAfter: p.Margin.Clone(),
		SizeAfter:   p.Size.Clone(),
	}, nil
}

// Decrease shrinks or closes a position, optionally withdrawing margin.
// Closing the full size releases all remaining margin regardless of
// marginDelta.
func (e *Engine) Decrease(
	ctx context.Context,
	account string,
	side types.Side,
	marginDelta, sizeDelta *num.Uint,
	tradePriceX96, valuationPriceX96 *num.Uint,
	hasReferral bool,
	receiver string,
) (*TradeOutcome, error) {
	key := positionKey{account, side}
	p, ok := e.positions[key]
	if !ok {
		return nil, errors.Wrapf(types.ErrPositionNotFound, "%s %s", account, side)
	}
	if sizeDelta.GT(p.Size) {
		return nil, errors.Wrapf(types.ErrInsufficientSizeToDecrease,
			"size %s, decrease %s", p.Size, sizeDelta)
	}
	if marginDelta.IsZero() && sizeDelta.IsZero() {
		return nil, errors.Wrap(types.ErrZeroSizeDelta, "position decrease")
	}

	fundingFee := e.FundingFeeOf(p)
	realized := num.IntZero()
	fee := zeroFeeSplit()
	if !sizeDelta.IsZero() {
		realized = pnl(side, p.EntryPriceX96, tradePriceX96, sizeDelta)
		notional := num.MulDiv(tradePriceX96, sizeDelta, num.Q96(), num.RoundUp)
		fee = e.feeSplit(notional, hasReferral)
	}
	sizeAfter := num.UintZero().Sub(p.Size, sizeDelta)

	marginInt := num.IntFromUint(p.Margin, true).
		Add(fundingFee).
		Add(realized).
		SubUint(fee.TradingFee)

	var payout, marginAfter *num.Uint
	closed := sizeAfter.IsZero()
	if closed {
		if marginInt.IsNegative() {
			return nil, errors.Wrapf(types.ErrInsufficientMargin, "margin after close %s", marginInt)
		}
		payout = marginInt.Abs()
		marginAfter = num.UintZero()
	} else {
		marginInt.SubUint(marginDelta)
		if !marginInt.IsPositive() {
			return nil, errors.Wrapf(types.ErrInsufficientMargin, "margin after decrease %s", marginInt)
		}
		marginAfter = marginInt.Abs()
		mm := e.MaintenanceMargin(p.EntryPriceX96, sizeAfter)
		unrealized := pnl(side, p.EntryPriceX96, valuationPriceX96, sizeAfter)
		if err := checkMarginRate(marginAfter, unrealized, mm); err != nil {
			return nil, err
		}
		if !marginDelta.IsZero() {
			notionalTotal := num.MulDiv(p.EntryPriceX96, sizeAfter, num.Q96(), num.RoundUp)
			if num.UintZero().Mul(marginAfter, num.NewUint(e.base.MaxLeveragePerPosition)).LT(notionalTotal) {
				return nil, errors.Wrapf(types.ErrLeverageTooHigh,
					"notional %s exceeds %dx margin %s", notionalTotal, e.base.MaxLeveragePerPosition, marginAfter)
			}
		}
		payout = marginDelta.Clone()
	}

	gs := e.gp.SizeOf(side)
	gs.Sub(gs, sizeDelta)
	if closed {
		delete(e.positions, key)
	} else {
		p.Margin = marginAfter
		p.Size = sizeAfter
		p.EntryFundingRateGrowthX96 = e.gp.GrowthOf(side).Clone()
	}

	e.broker.Send(events.NewPositionDecreased(ctx, e.marketID, account, side,
		sizeDelta, tradePriceX96, marginAfter, sizeAfter, realized, fundingFee,
		fee.TradingFee, payout, receiver))
	return &TradeOutcome{
		FundingFee:  fundingFee,
		RealizedPnL: realized,
		Fee:         fee,
		Payout:      payout.Clone(),
		MarginAfter: marginAfter.Clone(),
		SizeAfter:   sizeAfter.Clone(),
		Closed:      closed,
	}, nil
}

// Liquidatable reports whether a position's margin, settled for funding,
// no longer covers its maintenance margin at the given valuation.
func (e *Engine) Liquidatable(account string, side types.Side, valuationPriceX96 *num.Uint) bool {
	p, ok := e.positions[positionKey{account, side}]
	if !ok {
		return false
	}
	margin, _, _ := e.settleFundingForLiquidation(p)
	net := num.IntFromUint(margin, true).Add(pnl(side, p.EntryPriceX96, valuationPriceX96, p.Size))
	return net.LTE(num.IntFromUint(e.MaintenanceMargin(p.EntryPriceX96, p.Size), true))
}

// settleFundingForLiquidation resolves the funding charge of a position
// about to be unwound. A charge the margin can not cover retries against
// the pre-settlement snapshot, then clamps to the whole margin. The
// returned shortfall is the uncollected remainder, a non-positive value.
func (e *Engine) settleFundingForLiquidation(p *types.Position) (margin *num.Uint, fee, shortfall *num.Int) {
	required := e.FundingFeeOf(p)
	fee = required
	if fee.IsNegative() && fee.Abs().GT(p.Margin) {
		prevDelta := e.snapshot.PreviousGrowthOf(p.Side).Clone().Sub(p.EntryFundingRateGrowthX96)
		fee = num.MulDivInt(prevDelta, p.Size, num.Q96(), num.RoundDown)
	}
	if fee.IsNegative() && fee.Abs().GT(p.Margin) {
		fee = num.IntFromUint(p.Margin, false)
	}
	shortfall = required.Clone().Sub(fee)
	margin = num.IntFromUint(p.Margin, true).Add(fee).Abs()
	return margin, fee, shortfall
}

// Liquidate unwinds a position whose margin rate breached the
// maintenance bound. The position's margin is forfeited: the execution
// fee, capped at the remaining margin, goes to the liquidator's
// receiver, the trading fee is split as usual at the computed
// liquidation price, and whatever remains falls to the risk buffer
// fund.
func (e *Engine) Liquidate(
	ctx context.Context,
	account string,
	side types.Side,
	valuationPriceX96 *num.Uint,
	hasReferral bool,
	feeReceiver string,
) (*LiquidationOutcome, error) {
	key := positionKey{account, side}
	p, ok := e.positions[key]
	if !ok {
		return nil, errors.Wrapf(types.ErrPositionNotFound, "%s %s", account, side)
	}

	margin, fundingFee, shortfall := e.settleFundingForLiquidation(p)
	net := num.IntFromUint(margin, true).Add(pnl(side, p.EntryPriceX96, valuationPriceX96, p.Size))
	if net.GT(num.IntFromUint(e.MaintenanceMargin(p.EntryPriceX96, p.Size), true)) {
		return nil, errors.Wrapf(types.ErrMarginRateTooLow, "position %s %s not liquidatable", account, side)
	}

	riskBufferDelta := num.IntZero()
	if !shortfall.IsZero() {
		// the receiving side was already credited at settlement, claw the
		// uncollected charge back from its accumulator
		opp := side.Flip()
		oppSize := e.gp.SizeOf(opp)
		if !oppSize.IsZero() {
			adj := num.MulDivInt(shortfall, num.Q96(), oppSize, num.RoundDown)
			e.gp.GrowthOf(opp).Add(adj)
		} else {
			riskBufferDelta.Add(shortfall)
		}
	}

	liqPrice := e.liquidationPriceX96(side, p.EntryPriceX96, p.Size, margin)
	notional := num.MulDiv(liqPrice, p.Size, num.Q96(), num.RoundUp)
	fee := e.feeSplit(notional, hasReferral)
	// the liquidator is paid from the forfeited margin only
	execFee := num.Min(e.base.LiquidationExecutionFee, margin).Clone()

	riskBufferDelta.AddUint(margin).SubUint(execFee).SubUint(fee.TradingFee)

	size := p.Size.Clone()
	gs := e.gp.SizeOf(side)
	gs.Sub(gs, p.Size)
	delete(e.positions, key)

	if e.log.GetLevel() == logging.DebugLevel {
		e.log.Debug("position liquidated",
			logging.MarketID(e.marketID),
			logging.PartyID(account),
			logging.Stringer("side", side),
			logging.String("size", size.String()),
			logging.String("liquidation-price-x96", liqPrice.String()))
	}
	e.broker.Send(events.NewPositionLiquidated(ctx, e.marketID, account, side,
		size, liqPrice, execFee, feeReceiver, fundingFee))
	return &LiquidationOutcome{
		Size:                size,
		LiquidationPriceX96: liqPrice,
		ExecutionFee:        execFee,
		Fee:                 fee,
		FundingFee:          fundingFee,
		RiskBufferDelta:     riskBufferDelta,
	}, nil
}

// liquidationPriceX96 solves for the price at which the position's
// margin exactly covers its PnL, the unwind fees and the execution fee.
func (e *Engine) liquidationPriceX96(side types.Side, entryPriceX96, size, margin *num.Uint) *num.Uint {
	rateSum := e.base.LiquidationFeeRate + e.feeRate.TradingFeeRate
	entryNotional := num.MulDiv(entryPriceX96, size, num.Q96(), num.RoundUp)

	if side == types.SideLong {
		if rateSum >= types.BasisPointsDivisor {
			return num.UintZero()
		}
		// price*size/Q96 * (basis-rates)/basis = entryNotional + execFee - margin
		target := num.IntFromUint(entryNotional, true).
			AddUint(e.base.LiquidationExecutionFee).
			SubUint(margin)
		if !target.IsPositive() {
			return num.UintZero()
		}
		scaled := num.MulDiv(target.Abs(), num.NewUint(types.BasisPointsDivisor),
			num.NewUint(types.BasisPointsDivisor-rateSum), num.RoundUp)
		return num.MulDiv(scaled, num.Q96(), size, num.RoundUp)
	}
	// price*size/Q96 * (basis+rates)/basis = margin + entryNotional - execFee
	target := num.IntFromUint(margin, true).
		AddUint(entryNotional).
		SubUint(e.base.LiquidationExecutionFee)
	if !target.IsPositive() {
		return num.UintZero()
	}
	scaled := num.MulDiv(target.Abs(), num.NewUint(types.BasisPointsDivisor),
		num.NewUint(types.BasisPointsDivisor+rateSum), num.RoundDown)
	return num.MulDiv(scaled, num.Q96(), size, num.RoundDown)
}
