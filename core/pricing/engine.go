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

package pricing

import (
	"context"

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

// Engine realizes the piecewise linear price impact curve of one market.
// The curve maps the pool's net exposure to a premium over the index
// price, realized from the configured balance/premium rate breakpoints
// against the current pool liquidity.
//
// A trade is priced in two phases: Quote walks the curve on a copy of the
// state and validates the move without touching anything, Apply commits
// the resulting state and emits the change events. Callers run all of
// their own validations between the two phases, so an error anywhere
// leaves the curve untouched.
type Engine struct {
	Config
	log      *logging.Logger
	broker   Broker
	marketID string

	glp   *types.GlobalLiquidityPosition
	state *types.PriceState
	price types.MarketPriceConfig
}

// TradeResult is the outcome of a curve walk, computed by Quote and
// committed by Apply. Side is the direction the pool's net position
// moved, the counterparty side of the trader's action.
type TradeResult struct {
	Side          types.Side
	SizeDelta     *num.Uint
	IndexPriceX96 *num.Uint
	// TradePriceX96 is the size weighted average execution price over the
	// whole walk.
	TradePriceX96 *num.Uint

	SideAfter          types.Side
	NetSizeAfter       *num.Uint
	BufferAfter        *num.Uint
	EntryPriceAfterX96 *num.Uint
	// RealizedPnL is the pool's realized profit or loss on the closed
	// portion of its position, settled into the risk buffer fund.
	RealizedPnL *num.Int

	state *types.PriceState
}

// New returns a pricing engine bound to the given market's global
// liquidity position. The engine owns the curve state and the trade
// bookkeeping of the position, liquidity amounts are maintained by the
// liquidity engine through the shared struct.
func New(
	log *logging.Logger,
	config Config,
	broker Broker,
	marketID string,
	glp *types.GlobalLiquidityPosition,
	priceCfg types.MarketPriceConfig,
) *Engine {
	log = log.Named(namedLogger)
	log.SetLevel(config.Level.Get())

	return &Engine{
		Config:   config,
		log:      log,
		broker:   broker,
		marketID: marketID,
		glp:      glp,
		state:    types.NewPriceState(),
		price:    clonePriceConfig(priceCfg),
	}
}

func clonePriceConfig(cfg types.MarketPriceConfig) types.MarketPriceConfig {
	cfg.MaxPriceImpactLiquidity = cfg.MaxPriceImpactLiquidity.Clone()
	return cfg
}

// State returns a copy of the realized curve state.
func (e *Engine) State() *types.PriceState {
	return e.state.Clone()
}

// PremiumRateX96 returns the premium at the current curve position.
func (e *Engine) PremiumRateX96() *num.Uint {
	return e.state.PremiumRateX96.Clone()
}

// MarketPriceX96 returns the marginal trade price for a taker on the
// given side, the index price adjusted by the standing premium. A long
// taker rounds against themselves, as does a short one.
func (e *Engine) MarketPriceX96(indexPriceX96 *num.Uint, side types.Side) *num.Uint {
	if e.state.PremiumRateX96.IsZero() {
		return indexPriceX96.Clone()
	}
	raises := e.glp.Side == types.SideShort
	var r num.Rounding
	if side == types.SideLong == raises {
		r = num.RoundUp
	} else {
		r = num.RoundDown
	}
	off := num.MulDiv(indexPriceX96, e.state.PremiumRateX96, num.Q96(), r)
	if raises {
		return num.UintZero().Add(indexPriceX96, off)
	}
	if off.GT(indexPriceX96) {
		return num.UintZero()
	}
	return num.UintZero().Sub(indexPriceX96, off)
}

// OnPriceConfigChanged swaps in a new curve configuration. Vertices above
// the current curve position are re-derived immediately, those at or
// below it are deferred until the position drops past them.
func (e *Engine) OnPriceConfigChanged(ctx context.Context, cfg types.MarketPriceConfig, indexPriceX96 *num.Uint) {
	e.price = clonePriceConfig(cfg)
	e.markVertices(ctx, indexPriceX96)
}

// OnLiquidityChanged re-derives the curve after the pool's total
// liquidity moved, with the same deferral rule as a config change.
func (e *Engine) OnLiquidityChanged(ctx context.Context, indexPriceX96 *num.Uint) {
	e.markVertices(ctx, indexPriceX96)
}

func (e *Engine) markVertices(ctx context.Context, indexPriceX96 *num.Uint) {
	e.state.PendingVertexIndex = e.state.CurrentVertexIndex
	e.rederiveVertices(ctx, e.state, indexPriceX96, int(e.state.CurrentVertexIndex)+1, types.VertexCount-1)
}

// rederiveVertices recomputes vertices from..to against the current
// liquidity and index price, clamping each to its predecessor so the
// realized curve stays monotonic.
func (e *Engine) rederiveVertices(ctx context.Context, st *types.PriceState, indexPriceX96 *num.Uint, from, to int) {
	for i := from; i <= to; i++ {
		if i <= 0 {
			continue
		}
		size, prem := e.deriveVertex(i, indexPriceX96)
		prev := st.Vertices[i-1]
		if size.LT(prev.Size) || prem.LT(prev.PremiumRateX96) {
			size, prem = prev.Size.Clone(), prev.PremiumRateX96.Clone()
		}
		old := st.Vertices[i]
		if size.EQ(old.Size) && prem.EQ(old.PremiumRateX96) {
			continue
		}
		st.Vertices[i] = types.PriceVertex{Size: size, PremiumRateX96: prem}
		e.broker.Send(events.NewPriceVertexChanged(ctx, e.marketID, uint8(i), size, prem))
	}
}

func (e *Engine) deriveVertex(i int, indexPriceX96 *num.Uint) (*num.Uint, *num.Uint) {
	cfg := e.price.Vertices[i]
	prem := num.MulDiv(num.NewUint(cfg.PremiumRate), num.Q96(), num.NewUint(types.BasisPointsDivisor), num.RoundDown)

	liquidity := num.Min(e.glp.Liquidity, e.price.MaxPriceImpactLiquidity)
	if liquidity.IsZero() || indexPriceX96.IsZero() {
		return num.UintZero(), prem
	}
	// size = balanceRate * min(liquidity, maxImpact) * Q96 / (basis * index)
	den := num.UintZero().Mul(num.NewUint(types.BasisPointsDivisor), indexPriceX96)
	size := num.MulDiv(num.UintZero().Mul(num.NewUint(cfg.BalanceRate), liquidity), num.Q96(), den, num.RoundDown)
	return size, prem
}

// Quote prices a trade of sizeDelta moving the pool's net position in the
// given direction, without mutating any state. A liquidation walk parks
// exposure past the liquidation vertex off-curve instead of failing, a
// voluntary walk past the last vertex fails with
// ErrMaxPremiumRateExceeded.
func (e *Engine) Quote(indexPriceX96 *num.Uint, side types.Side, sizeDelta *num.Uint, liquidation bool) (*TradeResult, error) {
	if !side.Valid() {
		return nil, errors.Errorf("invalid trade side %v", side)
	}
	if sizeDelta == nil || sizeDelta.IsZero() {
		return nil, errors.Wrap(types.ErrZeroSizeDelta, "price quote")
	}

	st := e.state.Clone()
	glpSide := e.glp.Side
	entry := e.glp.EntryPriceX96
	totalNet := e.glp.TotalNetSize()
	improve := !totalNet.IsZero() && glpSide.Valid() && side != glpSide

	w := &walk{
		st:   st,
		x:    e.glp.NetSize.Clone(),
		prem: st.PremiumRateX96.Clone(),
		left: sizeDelta.Clone(),
		idx:  int(st.CurrentVertexIndex),
		sum2: num.IntZero(),
	}
	liqIdx := int(e.price.LiquidationVertexIndex)

	res := &TradeResult{
		Side:          side,
		SizeDelta:     sizeDelta.Clone(),
		IndexPriceX96: indexPriceX96.Clone(),
		RealizedPnL:   num.IntZero(),
		state:         st,
	}

	if !improve {
		if err := w.up(liqIdx, liquidation, side == types.SideShort); err != nil {
			return nil, errors.Wrapf(err, "market %s side %s delta %s", e.marketID, side, sizeDelta)
		}
		res.SideAfter = side
		res.TradePriceX96 = e.priceFrom(indexPriceX96, w.sum2, sizeDelta, side)
		if totalNet.IsZero() {
			res.EntryPriceAfterX96 = res.TradePriceX96.Clone()
		} else {
			res.EntryPriceAfterX96 = weightedEntry(entry, totalNet, res.TradePriceX96, sizeDelta, side)
		}
	} else {
		raises := glpSide == types.SideShort
		w.down(raises)
		improved := num.UintZero().Sub(sizeDelta, w.left)
		improveSum2 := w.sum2.Clone()
		if !w.left.IsZero() {
			// the pool position crossed zero, the remainder opens on the
			// other side from the bottom of the curve
			w.x, w.prem, w.idx = num.UintZero(), num.UintZero(), 0
			if err := w.up(liqIdx, liquidation, side == types.SideShort); err != nil {
				return nil, errors.Wrapf(err, "market %s side %s delta %s", e.marketID, side, sizeDelta)
			}
		}
		res.TradePriceX96 = e.priceFrom(indexPriceX96, w.sum2, sizeDelta, side)

		if !improved.IsZero() {
			closePrice := e.priceFrom(indexPriceX96, improveSum2, improved, side)
			diff, entryBelow := num.UintZero().Delta(entry, closePrice)
			mag := num.MulDiv(diff, improved, num.Q96(), num.RoundDown)
			// a short pool profits when it closes below entry
			profit := (glpSide == types.SideShort) != entryBelow
			res.RealizedPnL = num.IntFromUint(mag, profit)
		}

		if opened := num.UintZero().Sub(sizeDelta, improved); !opened.IsZero() {
			postSum2 := w.sum2.Clone().Sub(improveSum2)
			res.SideAfter = side
			res.EntryPriceAfterX96 = e.priceFrom(indexPriceX96, postSum2, opened, side)
		} else {
			res.SideAfter = glpSide
			res.EntryPriceAfterX96 = entry.Clone()
		}
	}

	st.PremiumRateX96 = w.prem
	st.CurrentVertexIndex = vertexIndexOf(st, w.x)
	res.NetSizeAfter = w.x.Clone()
	res.BufferAfter = num.UintZero()
	for i := 0; i < types.VertexCount; i++ {
		res.BufferAfter.Add(res.BufferAfter, st.LiquidationBufferNetSizes[i])
	}
	return res, nil
}

// Apply commits a quoted trade: the curve state, the pool position's
// trade bookkeeping, any deferred vertex re-derivation the position
// dropped past, and the change event.
func (e *Engine) Apply(ctx context.Context, res *TradeResult) {
	e.state = res.state
	e.glp.NetSize = res.NetSizeAfter.Clone()
	e.glp.LiquidationBufferNetSize = res.BufferAfter.Clone()
	e.glp.Side = res.SideAfter
	e.glp.EntryPriceX96 = res.EntryPriceAfterX96.Clone()

	if e.state.CurrentVertexIndex < e.state.PendingVertexIndex {
		e.rederiveVertices(ctx, e.state, res.IndexPriceX96,
			int(e.state.CurrentVertexIndex)+1, int(e.state.PendingVertexIndex))
		e.state.PendingVertexIndex = e.state.CurrentVertexIndex
	}

	if e.log.GetLevel() == logging.DebugLevel {
		e.log.Debug("trade applied to price curve",
			logging.MarketID(e.marketID),
			logging.Stringer("side", res.Side),
			logging.String("size-delta", res.SizeDelta.String()),
			logging.String("trade-price-x96", res.TradePriceX96.String()),
			logging.String("net-size", e.glp.NetSize.String()))
	}
	e.broker.Send(events.NewGlobalLiquidityPositionChanged(
		ctx, e.marketID, e.glp.Side, e.glp.NetSize, e.glp.EntryPriceX96, e.state.PremiumRateX96))
}

// priceFrom converts an accumulated premium*size sum, carried at twice
// scale to defer all rounding to this single division, into the average
// execution price. The price rounds against the taker: up when the pool
// moves short, down when it moves long.
func (e *Engine) priceFrom(indexPriceX96 *num.Uint, sum2 *num.Int, size *num.Uint, side types.Side) *num.Uint {
	if sum2.IsZero() {
		return indexPriceX96.Clone()
	}
	roundUpPrice := side == types.SideShort
	var r num.Rounding
	if sum2.IsNegative() != roundUpPrice {
		r = num.RoundDown
	} else {
		r = num.RoundUp
	}
	den := num.UintZero().Mul(num.Q96(), size)
	den.Add(den, den)
	off := num.MulDiv(indexPriceX96, sum2.Abs(), den, r)
	if !sum2.IsNegative() {
		return num.UintZero().Add(indexPriceX96, off)
	}
	if off.GT(indexPriceX96) {
		return num.UintZero()
	}
	return num.UintZero().Sub(indexPriceX96, off)
}

// weightedEntry folds a worsening trade into the pool's average entry
// price, rounding towards the conservative side for the pool.
func weightedEntry(entry, size, tradePrice, sizeDelta *num.Uint, side types.Side) *num.Uint {
	r := num.RoundDown
	if side == types.SideLong {
		r = num.RoundUp
	}
	return num.WeightedAverage(entry, size, tradePrice, sizeDelta, r)
}

func vertexIndexOf(st *types.PriceState, x *num.Uint) uint8 {
	if x.IsZero() {
		return 0
	}
	for i := 1; i < types.VertexCount; i++ {
		if x.LTE(st.Vertices[i].Size) {
			return uint8(i)
		}
	}
	return types.VertexCount - 1
}

// walk is the cursor of a single curve traversal. sum2 accumulates
// (premiumBefore + premiumAfter) * step per segment, signed positive for
// price raising regions, so the trapezoid average needs no per-step
// division.
type walk struct {
	st   *types.PriceState
	x    *num.Uint
	prem *num.Uint
	left *num.Uint
	idx  int
	sum2 *num.Int
}

func (w *walk) accum(a, b, step *num.Uint, raises bool) {
	c := num.UintZero().Mul(num.UintZero().Add(a, b), step)
	if raises {
		w.sum2.AddUint(c)
	} else {
		w.sum2.SubUint(c)
	}
}

// up walks the curve away from balance. During a liquidation the walk
// stops at the liquidation vertex and parks the remainder off-curve at
// the standing premium, a voluntary trade past the last vertex fails.
func (w *walk) up(liqIdx int, liquidation, raises bool) error {
	for !w.left.IsZero() {
		v := &w.st.Vertices
		if liquidation && w.x.GTE(v[liqIdx].Size) {
			w.accum(w.prem, w.prem, w.left, raises)
			buf := w.st.LiquidationBufferNetSizes[liqIdx]
			buf.Add(buf, w.left)
			w.left = num.UintZero()
			return nil
		}
		for w.idx < types.VertexCount-1 && w.x.GTE(v[w.idx].Size) {
			w.idx++
		}
		if w.x.GTE(v[w.idx].Size) {
			return types.ErrMaxPremiumRateExceeded
		}
		room := num.UintZero().Sub(v[w.idx].Size, w.x)
		step := num.Min(w.left, room).Clone()
		xAfter := num.UintZero().Add(w.x, step)
		premAfter := premiumAt(v[w.idx-1], v[w.idx], xAfter, num.RoundUp)
		w.accum(w.prem, premAfter, step, raises)
		w.x, w.prem = xAfter, premAfter
		w.left.Sub(w.left, step)
	}
	return nil
}

// down walks the curve back towards balance. Exposure parked off-curve by
// liquidations is consumed first, at the standing premium, before the
// curve position moves. The walk stops at zero with any remainder left
// for the caller to open on the other side.
func (w *walk) down(raises bool) {
	for !w.left.IsZero() {
		drained := false
		for j := types.VertexCount - 1; j >= 0; j-- {
			buf := w.st.LiquidationBufferNetSizes[j]
			if buf.IsZero() {
				continue
			}
			step := num.Min(w.left, buf).Clone()
			w.accum(w.prem, w.prem, step, raises)
			buf.Sub(buf, step)
			w.left.Sub(w.left, step)
			drained = true
			if w.left.IsZero() {
				return
			}
		}
		if w.x.IsZero() {
			if !drained {
				return
			}
			continue
		}
		v := &w.st.Vertices
		for w.idx > 1 && w.x.LTE(v[w.idx-1].Size) {
			w.idx--
		}
		room := num.UintZero().Sub(w.x, v[w.idx-1].Size)
		step := num.Min(w.left, room).Clone()
		xAfter := num.UintZero().Sub(w.x, step)
		premAfter := premiumAt(v[w.idx-1], v[w.idx], xAfter, num.RoundDown)
		w.accum(w.prem, premAfter, step, raises)
		w.x, w.prem = xAfter, premAfter
		w.left.Sub(w.left, step)
	}
}

// premiumAt interpolates the premium at position x inside the segment
// between two vertices.
func premiumAt(prev, next types.PriceVertex, x *num.Uint, r num.Rounding) *num.Uint {
	run := num.UintZero().Sub(next.Size, prev.Size)
	if run.IsZero() {
		return next.PremiumRateX96.Clone()
	}
	rise := num.UintZero().Sub(next.PremiumRateX96, prev.PremiumRateX96)
	dx := num.UintZero().Sub(x, prev.Size)
	return num.UintZero().Add(prev.PremiumRateX96, num.MulDiv(rise, dx, run, r))
}
