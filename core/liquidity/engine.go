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

package liquidity

import (
	"context"
	"sort"
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

// Engine keeps the LP book of one market: individual liquidity deposits,
// their share of the pool's unrealized loss, and the realized profit
// growth accumulator fed by trading fees. The pool's aggregate position
// lives in the shared GlobalLiquidityPosition, trade bookkeeping on it
// belongs to the pricing engine.
type Engine struct {
	Config
	log      *logging.Logger
	broker   Broker
	marketID string

	glp       *types.GlobalLiquidityPosition
	metrics   *types.GlobalUnrealizedLossMetrics
	positions map[uint64]*types.LiquidityPosition
	nextID    uint64

	minMargin      *num.Uint
	maxRiskRate    uint64
	maxLeverage    uint64
	liquidationFee *num.Uint
}

// CloseResult is the settlement of a voluntary LP close. Payout goes back
// to the owner, LossShare to the risk buffer fund.
type CloseResult struct {
	Payout         *num.Uint
	RealizedProfit *num.Uint
	LossShare      *num.Uint
}

// LiquidateResult is the settlement of an LP liquidation. The execution
// fee goes to the liquidator's receiver, the remainder of the margin to
// the risk buffer fund.
type LiquidateResult struct {
	Account      string
	ExecutionFee *num.Uint
	Remainder    *num.Uint
}

// New returns a liquidity engine bound to the given market's global
// liquidity position.
func New(log *logging.Logger, config Config, broker Broker, marketID string, glp *types.GlobalLiquidityPosition) *Engine {
	log = log.Named(namedLogger)
	log.SetLevel(config.Level.Get())

	return &Engine{
		Config:         config,
		log:            log,
		broker:         broker,
		marketID:       marketID,
		glp:            glp,
		metrics:        types.NewGlobalUnrealizedLossMetrics(),
		positions:      map[uint64]*types.LiquidityPosition{},
		nextID:         1,
		minMargin:      num.UintZero(),
		liquidationFee: num.UintZero(),
	}
}

// UpdateParams swaps in the LP parameters of a market config change.
func (e *Engine) UpdateParams(minMargin *num.Uint, maxRiskRate, maxLeverage uint64, liquidationExecutionFee *num.Uint) {
	e.minMargin = minMargin.Clone()
	e.maxRiskRate = maxRiskRate
	e.maxLeverage = maxLeverage
	e.liquidationFee = liquidationExecutionFee.Clone()
}

// Position returns a copy of an LP position.
func (e *Engine) Position(id uint64) (*types.LiquidityPosition, bool) {
	p, ok := e.positions[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// Positions returns copies of all LP positions ordered by id.
func (e *Engine) Positions() []*types.LiquidityPosition {
	out := make([]*types.LiquidityPosition, 0, len(e.positions))
	for _, p := range e.positions {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Metrics returns a copy of the unrealized loss apportionment
// accumulators.
func (e *Engine) Metrics() *types.GlobalUnrealizedLossMetrics {
	return &types.GlobalUnrealizedLossMetrics{
		LastZeroLossTime:             e.metrics.LastZeroLossTime,
		Liquidity:                    e.metrics.Liquidity.Clone(),
		LiquidityTimesUnrealizedLoss: e.metrics.LiquidityTimesUnrealizedLoss.Clone(),
	}
}

// GlobalUnrealizedLoss values the pool's open exposure against the less
// favorable index bound, zero when the pool is in profit. Rounds up.
func (e *Engine) GlobalUnrealizedLoss(indexMinPriceX96, indexMaxPriceX96 *num.Uint) *num.Uint {
	total := e.glp.TotalNetSize()
	if total.IsZero() || !e.glp.Side.Valid() {
		return num.UintZero()
	}
	var adverse *num.Uint
	if e.glp.Side == types.SideShort {
		// a short pool loses when price rises above its entry
		if indexMaxPriceX96.LTE(e.glp.EntryPriceX96) {
			return num.UintZero()
		}
		adverse = num.UintZero().Sub(indexMaxPriceX96, e.glp.EntryPriceX96)
	} else {
		if indexMinPriceX96.GTE(e.glp.EntryPriceX96) {
			return num.UintZero()
		}
		adverse = num.UintZero().Sub(e.glp.EntryPriceX96, indexMinPriceX96)
	}
	return num.MulDiv(adverse, total, num.Q96(), num.RoundUp)
}

// OnLiquidityFee folds a trading fee's liquidity portion into the
// realized profit growth accumulator.
func (e *Engine) OnLiquidityFee(fee *num.Uint) {
	if fee.IsZero() || e.glp.Liquidity.IsZero() {
		return
	}
	growth := num.MulDiv(fee, num.Q64(), e.glp.Liquidity, num.RoundDown)
	e.glp.RealizedProfitGrowthX64.Add(e.glp.RealizedProfitGrowthX64, growth)
}

// sampleLoss maintains the loss apportionment base: observing zero loss
// resets the zero point and drops the accumulated products.
func (e *Engine) sampleLoss(now time.Time, loss *num.Uint) {
	if !loss.IsZero() {
		return
	}
	e.metrics.LastZeroLossTime = now
	e.metrics.Liquidity = num.UintZero()
	e.metrics.LiquidityTimesUnrealizedLoss = num.UintZero()
}

// lossShareOf apportions the current pool loss to one position. Positions
// opened after the last zero point only carry loss accrued past their
// own entry snapshot.
func (e *Engine) lossShareOf(p *types.LiquidityPosition, loss *num.Uint) *num.Uint {
	if loss.IsZero() || e.glp.Liquidity.IsZero() {
		return num.UintZero()
	}
	attributable := loss
	if p.EntryTime.After(e.metrics.LastZeroLossTime) {
		if loss.LTE(p.EntryUnrealizedLoss) {
			return num.UintZero()
		}
		attributable = num.UintZero().Sub(loss, p.EntryUnrealizedLoss)
	}
	return num.MulDiv(attributable, p.Liquidity, e.glp.Liquidity, num.RoundUp)
}

func (e *Engine) realizedProfitOf(p *types.LiquidityPosition) *num.Uint {
	growth := num.UintZero().Sub(e.glp.RealizedProfitGrowthX64, p.EntryRealizedProfitGrowthX64)
	return num.MulDiv(growth, p.Liquidity, num.Q64(), num.RoundDown)
}

// Open books a new LP position. The margin is already escrowed by the
// caller.
func (e *Engine) Open(
	ctx context.Context,
	account string,
	margin, liquidityDelta *num.Uint,
	indexMinPriceX96, indexMaxPriceX96 *num.Uint,
	now time.Time,
) (uint64, error) {
	if liquidityDelta.IsZero() {
		return 0, errors.Wrap(types.ErrInvalidLiquidityDelta, "open liquidity position")
	}
	if margin.LT(e.minMargin) {
		return 0, errors.Wrapf(types.ErrInsufficientMargin,
			"margin %s below minimum %s", margin, e.minMargin)
	}
	leveraged := num.UintZero().Mul(margin, num.NewUint(e.maxLeverage))
	if leveraged.LT(liquidityDelta) {
		return 0, errors.Wrapf(types.ErrLeverageTooHigh,
			"liquidity %s exceeds %dx margin %s", liquidityDelta, e.maxLeverage, margin)
	}

	loss := e.GlobalUnrealizedLoss(indexMinPriceX96, indexMaxPriceX96)
	e.sampleLoss(now, loss)
	if !loss.IsZero() {
		e.metrics.Liquidity.Add(e.metrics.Liquidity, liquidityDelta)
		e.metrics.LiquidityTimesUnrealizedLoss.Add(
			e.metrics.LiquidityTimesUnrealizedLoss,
			num.UintZero().Mul(liquidityDelta, loss))
	}

	id := e.nextID
	e.nextID++
	e.positions[id] = &types.LiquidityPosition{
		ID:                           id,
		Account:                      account,
		Margin:                       margin.Clone(),
		Liquidity:                    liquidityDelta.Clone(),
		EntryUnrealizedLoss:          loss,
		EntryRealizedProfitGrowthX64: e.glp.RealizedProfitGrowthX64.Clone(),
		EntryTime:                    now,
	}
	e.glp.Liquidity.Add(e.glp.Liquidity, liquidityDelta)

	if e.log.GetLevel() == logging.DebugLevel {
		e.log.Debug("liquidity position opened",
			logging.MarketID(e.marketID),
			logging.PartyID(account),
			logging.Uint64("position-id", id),
			logging.String("liquidity", liquidityDelta.String()))
	}
	e.broker.Send(events.NewLiquidityPositionOpened(ctx, e.marketID, id, account, margin, liquidityDelta))
	return id, nil
}

// Close settles an LP position back to its owner. The position's loss
// share moves to the risk buffer fund, the rest of the margin plus the
// realized fee profit pays out.
func (e *Engine) Close(
	ctx context.Context,
	id uint64,
	account string,
	indexMinPriceX96, indexMaxPriceX96 *num.Uint,
	now time.Time,
) (*CloseResult, error) {
	p, ok := e.positions[id]
	if !ok || p.Account != account {
		return nil, errors.Wrapf(types.ErrLiquidityPositionNotFound, "id %d", id)
	}
	if len(e.positions) == 1 && !e.glp.TotalNetSize().IsZero() {
		return nil, types.ErrLastLiquidityPositionCannotBeClosed
	}

	loss := e.GlobalUnrealizedLoss(indexMinPriceX96, indexMaxPriceX96)
	e.sampleLoss(now, loss)
	profit := e.realizedProfitOf(p)
	lossShare := e.lossShareOf(p, loss)

	marginAfter := num.Sum(p.Margin, profit)
	if err := e.checkRiskRate(marginAfter, lossShare); err != nil {
		return nil, err
	}
	// risk rate bound guarantees lossShare + fee < marginAfter
	payout := num.UintZero().Sub(marginAfter, lossShare)

	e.removePosition(p, loss)

	e.broker.Send(events.NewLiquidityPositionClosed(ctx, e.marketID, id, account, payout, profit, lossShare))
	return &CloseResult{Payout: payout, RealizedProfit: profit, LossShare: lossShare}, nil
}

// AdjustMargin moves margin in or out of an LP position. Withdrawals must
// leave the position above the minimum margin, within leverage, and
// under the liquidation risk rate.
func (e *Engine) AdjustMargin(
	ctx context.Context,
	id uint64,
	account string,
	marginDelta *num.Int,
	indexMinPriceX96, indexMaxPriceX96 *num.Uint,
	now time.Time,
) error {
	p, ok := e.positions[id]
	if !ok || p.Account != account {
		return errors.Wrapf(types.ErrLiquidityPositionNotFound, "id %d", id)
	}
	marginAfter := num.IntFromUint(p.Margin, true).Add(marginDelta)
	if marginAfter.IsNegative() || marginAfter.IsZero() {
		return errors.Wrapf(types.ErrInsufficientMargin, "margin after adjustment %s", marginAfter)
	}
	if marginDelta.IsNegative() {
		if marginAfter.Abs().LT(e.minMargin) {
			return errors.Wrapf(types.ErrInsufficientMargin,
				"margin %s below minimum %s", marginAfter, e.minMargin)
		}
		leveraged := num.UintZero().Mul(marginAfter.Abs(), num.NewUint(e.maxLeverage))
		if leveraged.LT(p.Liquidity) {
			return errors.Wrapf(types.ErrLeverageTooHigh,
				"liquidity %s exceeds %dx margin %s", p.Liquidity, e.maxLeverage, marginAfter)
		}
		loss := e.GlobalUnrealizedLoss(indexMinPriceX96, indexMaxPriceX96)
		e.sampleLoss(now, loss)
		withProfit := num.Sum(marginAfter.Abs(), e.realizedProfitOf(p))
		if err := e.checkRiskRate(withProfit, e.lossShareOf(p, loss)); err != nil {
			return err
		}
	}
	p.Margin = marginAfter.Abs()

	e.broker.Send(events.NewLiquidityPositionMarginAdjusted(ctx, e.marketID, id, account, marginDelta, p.Margin))
	return nil
}

// Liquidate force-closes an LP position whose loss share breached the
// risk rate bound. The caller has already authorized the liquidator.
func (e *Engine) Liquidate(
	ctx context.Context,
	id uint64,
	feeReceiver string,
	indexMinPriceX96, indexMaxPriceX96 *num.Uint,
	now time.Time,
) (*LiquidateResult, error) {
	p, ok := e.positions[id]
	if !ok {
		return nil, errors.Wrapf(types.ErrLiquidityPositionNotFound, "id %d", id)
	}
	loss := e.GlobalUnrealizedLoss(indexMinPriceX96, indexMaxPriceX96)
	e.sampleLoss(now, loss)
	profit := e.realizedProfitOf(p)
	lossShare := e.lossShareOf(p, loss)
	marginAfter := num.Sum(p.Margin, profit)
	if e.checkRiskRate(marginAfter, lossShare) == nil {
		return nil, errors.Wrapf(types.ErrRiskRateTooLow, "position %d not liquidatable", id)
	}

	execFee := num.Min(e.liquidationFee, marginAfter).Clone()
	remainder := num.UintZero().Sub(marginAfter, execFee)

	account := p.Account
	e.removePosition(p, loss)

	e.broker.Send(events.NewLiquidityPositionLiquidated(ctx, e.marketID, id, account, execFee, feeReceiver))
	return &LiquidateResult{Account: account, ExecutionFee: execFee, Remainder: remainder}, nil
}

// checkRiskRate bounds lossShare against the position's margin net of the
// liquidation execution fee reserve.
func (e *Engine) checkRiskRate(margin, lossShare *num.Uint) error {
	if margin.LTE(e.liquidationFee) {
		return errors.Wrapf(types.ErrRiskRateTooHigh,
			"margin %s does not cover the liquidation fee %s", margin, e.liquidationFee)
	}
	base := num.UintZero().Sub(margin, e.liquidationFee)
	// lossShare / base > maxRiskRate / basis
	lhs := num.UintZero().Mul(lossShare, num.NewUint(types.BasisPointsDivisor))
	rhs := num.UintZero().Mul(base, num.NewUint(e.maxRiskRate))
	if lhs.GT(rhs) {
		return errors.Wrapf(types.ErrRiskRateTooHigh,
			"loss share %s against margin %s", lossShare, base)
	}
	return nil
}

func (e *Engine) removePosition(p *types.LiquidityPosition, lossNow *num.Uint) {
	if !lossNow.IsZero() && p.EntryTime.After(e.metrics.LastZeroLossTime) {
		if e.metrics.Liquidity.GTE(p.Liquidity) {
			e.metrics.Liquidity.Sub(e.metrics.Liquidity, p.Liquidity)
		}
		product := num.UintZero().Mul(p.Liquidity, p.EntryUnrealizedLoss)
		if e.metrics.LiquidityTimesUnrealizedLoss.GTE(product) {
			e.metrics.LiquidityTimesUnrealizedLoss.Sub(e.metrics.LiquidityTimesUnrealizedLoss, product)
		}
	}
	e.glp.Liquidity.Sub(e.glp.Liquidity, p.Liquidity)
	delete(e.positions, p.ID)
}
