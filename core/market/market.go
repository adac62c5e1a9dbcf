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
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"code.stratumtrade.io/stratum/core/collateral"
	"code.stratumtrade.io/stratum/core/funding"
	"code.stratumtrade.io/stratum/core/liquidity"
	"code.stratumtrade.io/stratum/core/positions"
	"code.stratumtrade.io/stratum/core/pricing"
	"code.stratumtrade.io/stratum/core/riskbuffer"
	"code.stratumtrade.io/stratum/core/types"
	"code.stratumtrade.io/stratum/libs/num"
	"code.stratumtrade.io/stratum/logging"
)

// Market bundles the engines of one perpetual market around its shared
// state. Entry points are serialized per market and guarded against
// re-entry, so each operation observes and leaves consistent state.
type Market struct {
	id  string
	log *logging.Logger

	cfg *types.MarketConfig
	glp *types.GlobalLiquidityPosition
	gp  *types.GlobalPosition

	pricing    *pricing.Engine
	funding    *funding.Engine
	liquidity  *liquidity.Engine
	positions  *positions.Engine
	riskBuffer *riskbuffer.Engine

	mu         sync.Mutex
	inProgress bool
}

func newMarket(
	log *logging.Logger,
	config Config,
	broker Broker,
	id string,
	cfg *types.MarketConfig,
	genesis time.Time,
) *Market {
	glp := types.NewGlobalLiquidityPosition()
	gp := types.NewGlobalPosition()

	fundingEng := funding.New(log, config.Funding, broker, id, glp, gp, genesis)
	m := &Market{
		id:         id,
		log:        log,
		cfg:        cfg.Clone(),
		glp:        glp,
		gp:         gp,
		pricing:    pricing.New(log, config.Pricing, broker, id, glp, cfg.Price),
		funding:    fundingEng,
		liquidity:  liquidity.New(log, config.Liquidity, broker, id, glp),
		positions:  positions.New(log, config.Positions, broker, id, gp, fundingEng),
		riskBuffer: riskbuffer.New(log, config.RiskBuffer, broker, id),
	}
	m.pushParams()
	return m
}

func (m *Market) pushParams() {
	m.funding.UpdateParams(m.cfg.Base.InterestRate, m.cfg.Base.MaxFundingRate, m.cfg.Price.MaxPriceImpactLiquidity)
	m.liquidity.UpdateParams(m.cfg.Base.MinMarginPerLiquidityPosition,
		m.cfg.Base.MaxRiskRatePerLiquidityPosition,
		m.cfg.Base.MaxLeveragePerLiquidityPosition,
		m.cfg.Base.LiquidationExecutionFee)
	m.positions.UpdateParams(m.cfg.Base, m.cfg.FeeRate)
}

// enter serializes operations on the market and rejects re-entry from a
// callback reaching back into the engine.
func (m *Market) enter() error {
	m.mu.Lock()
	if m.inProgress {
		m.mu.Unlock()
		return errors.Wrapf(types.ErrReentrantCall, "market %s", m.id)
	}
	m.inProgress = true
	m.mu.Unlock()
	return nil
}

func (m *Market) exit() {
	m.mu.Lock()
	m.inProgress = false
	m.mu.Unlock()
}

// accrueFunding folds the elapsed time into the funding window before
// any state-changing operation, so the settled rate never includes the
// operation's own effect.
func (m *Market) accrueFunding(ctx context.Context, now time.Time, maxPriceX96 *num.Uint) {
	unreceived := m.funding.Accrue(ctx, now, m.pricing.PremiumRateX96(), maxPriceX96)
	m.riskBuffer.Settle(unreceived)
}

// tradeIndexPrice picks the index bound adverse to the trader for a pool
// move in the given direction: the pool moves short when a trader buys,
// who then trades against the upper bound.
func tradeIndexPrice(poolMove types.Side, minP, maxP *num.Uint) *num.Uint {
	if poolMove == types.SideShort {
		return maxP
	}
	return minP
}

// valuationIndexPrice picks the index bound adverse to an open position
// on the given side.
func valuationIndexPrice(side types.Side, minP, maxP *num.Uint) *num.Uint {
	if side == types.SideLong {
		return minP
	}
	return maxP
}

func (m *Market) increasePosition(
	ctx context.Context,
	col *collateral.Engine,
	referral Referral,
	rewards RewardSink,
	account string,
	side types.Side,
	marginDelta, sizeDelta *num.Uint,
	now time.Time,
	minP, maxP *num.Uint,
) (*positions.TradeOutcome, error) {
	m.accrueFunding(ctx, now, maxP)

	if !sizeDelta.IsZero() && m.glp.Liquidity.IsZero() {
		return nil, errors.Wrapf(types.ErrInsufficientGlobalLiquidity, "market %s", m.id)
	}
	if !marginDelta.IsZero() && !col.CanDebit(account, marginDelta) {
		return nil, errors.Wrapf(types.ErrInsufficientBalance, "account %s", account)
	}

	token, _ := referral.ReferralTokens(account)
	poolMove := side.Flip()
	tradePrice := tradeIndexPrice(poolMove, minP, maxP)

	var quote *pricing.TradeResult
	execPrice := tradePrice
	if !sizeDelta.IsZero() {
		var err error
		quote, err = m.pricing.Quote(tradePrice, poolMove, sizeDelta, false)
		if err != nil {
			return nil, err
		}
		execPrice = quote.TradePriceX96
	}

	outcome, err := m.positions.Increase(ctx, account, side, marginDelta, sizeDelta,
		execPrice, valuationIndexPrice(side, minP, maxP), token != 0)
	if err != nil {
		return nil, err
	}

	if !marginDelta.IsZero() {
		if err := col.Debit(account, marginDelta); err != nil {
			return nil, err
		}
	}
	if quote != nil {
		m.pricing.Apply(ctx, quote)
		m.riskBuffer.Settle(quote.RealizedPnL)
	}
	m.routeFees(col, referral, account, outcome.Fee)
	rewards.OnPositionChanged(m.id, account, num.IntFromUint(sizeDelta, true))
	return outcome, nil
}

func (m *Market) decreasePosition(
	ctx context.Context,
	col *collateral.Engine,
	referral Referral,
	rewards RewardSink,
	account string,
	side types.Side,
	marginDelta, sizeDelta *num.Uint,
	receiver string,
	now time.Time,
	minP, maxP *num.Uint,
) (*positions.TradeOutcome, error) {
	m.accrueFunding(ctx, now, maxP)

	token, _ := referral.ReferralTokens(account)
	tradePrice := tradeIndexPrice(side, minP, maxP)

	var quote *pricing.TradeResult
	execPrice := tradePrice
	if !sizeDelta.IsZero() {
		var err error
		quote, err = m.pricing.Quote(tradePrice, side, sizeDelta, false)
		if err != nil {
			return nil, err
		}
		execPrice = quote.TradePriceX96
	}

	outcome, err := m.positions.Decrease(ctx, account, side, marginDelta, sizeDelta,
		execPrice, valuationIndexPrice(side, minP, maxP), token != 0, receiver)
	if err != nil {
		return nil, err
	}

	if quote != nil {
		m.pricing.Apply(ctx, quote)
		m.riskBuffer.Settle(quote.RealizedPnL)
	}
	if !outcome.Payout.IsZero() {
		col.Credit(receiver, outcome.Payout)
	}
	m.routeFees(col, referral, account, outcome.Fee)
	rewards.OnPositionChanged(m.id, account, num.IntFromUint(sizeDelta, false))
	return outcome, nil
}

func (m *Market) liquidatePosition(
	ctx context.Context,
	col *collateral.Engine,
	referral Referral,
	rewards RewardSink,
	account string,
	side types.Side,
	feeReceiver string,
	now time.Time,
	minP, maxP *num.Uint,
) (*positions.LiquidationOutcome, error) {
	m.accrueFunding(ctx, now, maxP)

	p, ok := m.positions.Position(account, side)
	if !ok {
		return nil, errors.Wrapf(types.ErrPositionNotFound, "%s %s", account, side)
	}
	token, _ := referral.ReferralTokens(account)

	quote, err := m.pricing.Quote(tradeIndexPrice(side, minP, maxP), side, p.Size, true)
	if err != nil {
		return nil, err
	}
	outcome, err := m.positions.Liquidate(ctx, account, side,
		valuationIndexPrice(side, minP, maxP), token != 0, feeReceiver)
	if err != nil {
		return nil, err
	}

	m.pricing.Apply(ctx, quote)
	m.riskBuffer.Settle(quote.RealizedPnL)
	m.riskBuffer.Settle(outcome.RiskBufferDelta)
	col.Credit(feeReceiver, outcome.ExecutionFee)
	m.routeFees(col, referral, account, outcome.Fee)
	rewards.OnPositionChanged(m.id, account, num.IntFromUint(outcome.Size, false))
	return outcome, nil
}

// routeFees distributes one trading fee: the liquidity portion accrues
// to LPs, protocol and referral portions to their collection pots, and
// the unassigned remainder to the risk buffer fund.
func (m *Market) routeFees(col *collateral.Engine, referral Referral, account string, fee *positions.FeeSplit) {
	if fee == nil || fee.TradingFee.IsZero() {
		return
	}
	m.liquidity.OnLiquidityFee(fee.LiquidityFee)
	col.AddProtocolFee(m.id, fee.ProtocolFee)
	if !fee.ReferralFee.IsZero() || !fee.ReferralParentFee.IsZero() {
		token, parent := referral.ReferralTokens(account)
		col.AddReferralFee(token, fee.ReferralFee)
		col.AddReferralFee(parent, fee.ReferralParentFee)
	}
	m.riskBuffer.Settle(num.IntFromUint(fee.Remainder, true))
}

func (m *Market) openLiquidityPosition(
	ctx context.Context,
	col *collateral.Engine,
	rewards RewardSink,
	account string,
	margin, liquidityDelta *num.Uint,
	now time.Time,
	minP, maxP *num.Uint,
) (uint64, error) {
	m.accrueFunding(ctx, now, maxP)

	if !col.CanDebit(account, margin) {
		return 0, errors.Wrapf(types.ErrInsufficientBalance, "account %s", account)
	}
	id, err := m.liquidity.Open(ctx, account, margin, liquidityDelta, minP, maxP, now)
	if err != nil {
		return 0, err
	}
	if err := col.Debit(account, margin); err != nil {
		return 0, err
	}
	m.pricing.OnLiquidityChanged(ctx, maxP)
	rewards.OnLiquidityPositionChanged(m.id, account, num.IntFromUint(liquidityDelta, true))
	return id, nil
}

func (m *Market) closeLiquidityPosition(
	ctx context.Context,
	col *collateral.Engine,
	rewards RewardSink,
	id uint64,
	account, receiver string,
	now time.Time,
	minP, maxP *num.Uint,
) error {
	m.accrueFunding(ctx, now, maxP)

	p, ok := m.liquidity.Position(id)
	if !ok {
		return errors.Wrapf(types.ErrLiquidityPositionNotFound, "id %d", id)
	}
	res, err := m.liquidity.Close(ctx, id, account, minP, maxP, now)
	if err != nil {
		return err
	}
	col.Credit(receiver, res.Payout)
	m.riskBuffer.Settle(num.IntFromUint(res.LossShare, true))
	m.pricing.OnLiquidityChanged(ctx, maxP)
	rewards.OnLiquidityPositionChanged(m.id, account, num.IntFromUint(p.Liquidity, false))
	return nil
}

func (m *Market) adjustLiquidityPositionMargin(
	ctx context.Context,
	col *collateral.Engine,
	id uint64,
	account string,
	marginDelta *num.Int,
	receiver string,
	now time.Time,
	minP, maxP *num.Uint,
) error {
	m.accrueFunding(ctx, now, maxP)

	if marginDelta.IsPositive() && !col.CanDebit(account, marginDelta.Abs()) {
		return errors.Wrapf(types.ErrInsufficientBalance, "account %s", account)
	}
	if err := m.liquidity.AdjustMargin(ctx, id, account, marginDelta, minP, maxP, now); err != nil {
		return err
	}
	if marginDelta.IsPositive() {
		return col.Debit(account, marginDelta.Abs())
	}
	if marginDelta.IsNegative() {
		col.Credit(receiver, marginDelta.Abs())
	}
	return nil
}

func (m *Market) liquidateLiquidityPosition(
	ctx context.Context,
	col *collateral.Engine,
	rewards RewardSink,
	id uint64,
	feeReceiver string,
	now time.Time,
	minP, maxP *num.Uint,
) error {
	m.accrueFunding(ctx, now, maxP)

	p, ok := m.liquidity.Position(id)
	if !ok {
		return errors.Wrapf(types.ErrLiquidityPositionNotFound, "id %d", id)
	}
	res, err := m.liquidity.Liquidate(ctx, id, feeReceiver, minP, maxP, now)
	if err != nil {
		return err
	}
	col.Credit(feeReceiver, res.ExecutionFee)
	m.riskBuffer.Settle(num.IntFromUint(res.Remainder, true))
	m.pricing.OnLiquidityChanged(ctx, maxP)
	rewards.OnLiquidityPositionChanged(m.id, res.Account, num.IntFromUint(p.Liquidity, false))
	return nil
}

func (m *Market) increaseRiskBufferFundPosition(
	ctx context.Context,
	col *collateral.Engine,
	rewards RewardSink,
	account string,
	liquidityDelta *num.Uint,
	now time.Time,
	maxP *num.Uint,
) error {
	m.accrueFunding(ctx, now, maxP)

	if !col.CanDebit(account, liquidityDelta) {
		return errors.Wrapf(types.ErrInsufficientBalance, "account %s", account)
	}
	if err := m.riskBuffer.Increase(ctx, account, liquidityDelta, now); err != nil {
		return err
	}
	if err := col.Debit(account, liquidityDelta); err != nil {
		return err
	}
	p, _ := m.riskBuffer.Position(account)
	rewards.OnRiskBufferFundPositionChanged(m.id, account, p.Liquidity)
	return nil
}

func (m *Market) decreaseRiskBufferFundPosition(
	ctx context.Context,
	col *collateral.Engine,
	rewards RewardSink,
	account string,
	liquidityDelta *num.Uint,
	receiver string,
	now time.Time,
	maxP *num.Uint,
) error {
	m.accrueFunding(ctx, now, maxP)

	if err := m.riskBuffer.Decrease(ctx, account, liquidityDelta, now); err != nil {
		return err
	}
	col.Credit(receiver, liquidityDelta)
	after := num.UintZero()
	if p, ok := m.riskBuffer.Position(account); ok {
		after = p.Liquidity
	}
	rewards.OnRiskBufferFundPositionChanged(m.id, account, after)
	return nil
}

func (m *Market) updateConfig(ctx context.Context, cfg *types.MarketConfig, maxP *num.Uint) {
	m.cfg = cfg.Clone()
	m.pushParams()
	m.pricing.OnPriceConfigChanged(ctx, m.cfg.Price, maxP)
}
