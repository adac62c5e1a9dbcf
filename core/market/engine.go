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
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"code.stratumtrade.io/stratum/core/collateral"
	"code.stratumtrade.io/stratum/core/events"
	"code.stratumtrade.io/stratum/core/positions"
	"code.stratumtrade.io/stratum/core/types"
	"code.stratumtrade.io/stratum/libs/num"
	"code.stratumtrade.io/stratum/logging"
)

// Engine is the top level market engine: it owns every market's engine
// bundle, gates entry points by caller role, and routes settlement flows
// through the collateral escrow. The router submits user intents, the
// governor manages configuration and fund surplus, and registered
// liquidators run forced unwinds.
type Engine struct {
	Config
	log      *logging.Logger
	broker   Broker
	ts       TimeService
	feed     PriceFeed
	rewards  RewardSink
	referral Referral
	col      *collateral.Engine

	mu      sync.RWMutex
	markets map[string]*Market

	router      string
	governor    string
	liquidators map[string]struct{}
}

// New instantiates the market engine.
func New(
	log *logging.Logger,
	config Config,
	broker Broker,
	ts TimeService,
	feed PriceFeed,
	rewards RewardSink,
	referral Referral,
	col *collateral.Engine,
	router, governor string,
) *Engine {
	log = log.Named(namedLogger)
	log.SetLevel(config.Level.Get())

	return &Engine{
		Config:      config,
		log:         log,
		broker:      broker,
		ts:          ts,
		feed:        feed,
		rewards:     rewards,
		referral:    referral,
		col:         col,
		markets:     map[string]*Market{},
		router:      router,
		governor:    governor,
		liquidators: map[string]struct{}{},
	}
}

func (e *Engine) requireRouter(caller string) error {
	if caller != e.router {
		return errors.Wrapf(types.ErrCallerNotRouter, "caller %s", caller)
	}
	return nil
}

func (e *Engine) requireGovernor(caller string) error {
	if caller != e.governor {
		return errors.Wrapf(types.ErrCallerNotGovernor, "caller %s", caller)
	}
	return nil
}

func (e *Engine) requireLiquidator(caller string) error {
	if _, ok := e.liquidators[caller]; !ok {
		return errors.Wrapf(types.ErrCallerNotLiquidator, "caller %s", caller)
	}
	return nil
}

// RegisterLiquidator authorizes an account to run forced unwinds.
func (e *Engine) RegisterLiquidator(caller, account string) error {
	if err := e.requireGovernor(caller); err != nil {
		return err
	}
	e.mu.Lock()
	e.liquidators[account] = struct{}{}
	e.mu.Unlock()
	return nil
}

// UnregisterLiquidator revokes a liquidator.
func (e *Engine) UnregisterLiquidator(caller, account string) error {
	if err := e.requireGovernor(caller); err != nil {
		return err
	}
	e.mu.Lock()
	delete(e.liquidators, account)
	e.mu.Unlock()
	return nil
}

func (e *Engine) market(id string) (*Market, error) {
	e.mu.RLock()
	m, ok := e.markets[id]
	e.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(types.ErrMarketNotFound, "id %s", id)
	}
	return m, nil
}

func (e *Engine) prices(marketID string) (*num.Uint, *num.Uint, error) {
	minP, err := e.feed.GetMinPriceX96(marketID)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "min index price for market %s", marketID)
	}
	maxP, err := e.feed.GetMaxPriceX96(marketID)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "max index price for market %s", marketID)
	}
	return minP, maxP, nil
}

// CreateMarket registers a new market under the given id.
func (e *Engine) CreateMarket(ctx context.Context, caller, id string, cfg *types.MarketConfig) error {
	if err := e.requireGovernor(caller); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.markets[id]; ok {
		return errors.Wrapf(types.ErrMarketAlreadyExists, "id %s", id)
	}
	e.markets[id] = newMarket(e.log, e.Config, e.broker, id, cfg, e.ts.GetTimeNow())
	e.log.Info("market created", logging.MarketID(id))
	return nil
}

// UpdateMarketConfig atomically swaps a market's parameter tuple.
func (e *Engine) UpdateMarketConfig(ctx context.Context, caller, id string, cfg *types.MarketConfig) error {
	if err := e.requireGovernor(caller); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	m, err := e.market(id)
	if err != nil {
		return err
	}
	if err := m.enter(); err != nil {
		return err
	}
	defer m.exit()
	_, maxP, err := e.prices(id)
	if err != nil {
		return err
	}
	m.accrueFunding(ctx, e.ts.GetTimeNow(), maxP)
	m.updateConfig(ctx, cfg, maxP)
	e.log.Info("market config updated", logging.MarketID(id))
	return nil
}

// IncreasePosition opens or grows a trader position.
func (e *Engine) IncreasePosition(
	ctx context.Context,
	caller, marketID, account string,
	side types.Side,
	marginDelta, sizeDelta *num.Uint,
) (*positions.TradeOutcome, error) {
	if err := e.requireRouter(caller); err != nil {
		return nil, err
	}
	m, err := e.market(marketID)
	if err != nil {
		return nil, err
	}
	if err := m.enter(); err != nil {
		return nil, err
	}
	defer m.exit()
	minP, maxP, err := e.prices(marketID)
	if err != nil {
		return nil, err
	}
	return m.increasePosition(ctx, e.col, e.referral, e.rewards, account, side, marginDelta, sizeDelta,
		e.ts.GetTimeNow(), minP, maxP)
}

// DecreasePosition shrinks or closes a trader position, releasing margin
// to the receiver.
func (e *Engine) DecreasePosition(
	ctx context.Context,
	caller, marketID, account string,
	side types.Side,
	marginDelta, sizeDelta *num.Uint,
	receiver string,
) (*positions.TradeOutcome, error) {
	if err := e.requireRouter(caller); err != nil {
		return nil, err
	}
	m, err := e.market(marketID)
	if err != nil {
		return nil, err
	}
	if err := m.enter(); err != nil {
		return nil, err
	}
	defer m.exit()
	minP, maxP, err := e.prices(marketID)
	if err != nil {
		return nil, err
	}
	return m.decreasePosition(ctx, e.col, e.referral, e.rewards, account, side, marginDelta, sizeDelta,
		receiver, e.ts.GetTimeNow(), minP, maxP)
}

// LiquidatePosition force-unwinds an undercollateralized trader position.
func (e *Engine) LiquidatePosition(
	ctx context.Context,
	caller, marketID, account string,
	side types.Side,
	feeReceiver string,
) (*positions.LiquidationOutcome, error) {
	if err := e.requireLiquidator(caller); err != nil {
		return nil, err
	}
	m, err := e.market(marketID)
	if err != nil {
		return nil, err
	}
	if err := m.enter(); err != nil {
		return nil, err
	}
	defer m.exit()
	minP, maxP, err := e.prices(marketID)
	if err != nil {
		return nil, err
	}
	return m.liquidatePosition(ctx, e.col, e.referral, e.rewards, account, side, feeReceiver,
		e.ts.GetTimeNow(), minP, maxP)
}

// OpenLiquidityPosition books a new LP deposit and returns its id.
func (e *Engine) OpenLiquidityPosition(
	ctx context.Context,
	caller, marketID, account string,
	margin, liquidityDelta *num.Uint,
) (uint64, error) {
	if err := e.requireRouter(caller); err != nil {
		return 0, err
	}
	m, err := e.market(marketID)
	if err != nil {
		return 0, err
	}
	if err := m.enter(); err != nil {
		return 0, err
	}
	defer m.exit()
	minP, maxP, err := e.prices(marketID)
	if err != nil {
		return 0, err
	}
	return m.openLiquidityPosition(ctx, e.col, e.rewards, account, margin, liquidityDelta,
		e.ts.GetTimeNow(), minP, maxP)
}

// CloseLiquidityPosition settles an LP deposit back to the receiver.
func (e *Engine) CloseLiquidityPosition(
	ctx context.Context,
	caller, marketID string,
	positionID uint64,
	account, receiver string,
) error {
	if err := e.requireRouter(caller); err != nil {
		return err
	}
	m, err := e.market(marketID)
	if err != nil {
		return err
	}
	if err := m.enter(); err != nil {
		return err
	}
	defer m.exit()
	minP, maxP, err := e.prices(marketID)
	if err != nil {
		return err
	}
	return m.closeLiquidityPosition(ctx, e.col, e.rewards, positionID, account, receiver,
		e.ts.GetTimeNow(), minP, maxP)
}

// AdjustLiquidityPositionMargin moves margin in or out of an LP deposit.
func (e *Engine) AdjustLiquidityPositionMargin(
	ctx context.Context,
	caller, marketID string,
	positionID uint64,
	account string,
	marginDelta *num.Int,
	receiver string,
) error {
	if err := e.requireRouter(caller); err != nil {
		return err
	}
	m, err := e.market(marketID)
	if err != nil {
		return err
	}
	if err := m.enter(); err != nil {
		return err
	}
	defer m.exit()
	minP, maxP, err := e.prices(marketID)
	if err != nil {
		return err
	}
	return m.adjustLiquidityPositionMargin(ctx, e.col, positionID, account, marginDelta,
		receiver, e.ts.GetTimeNow(), minP, maxP)
}

// LiquidateLiquidityPosition force-closes an LP deposit past its risk
// rate bound.
func (e *Engine) LiquidateLiquidityPosition(
	ctx context.Context,
	caller, marketID string,
	positionID uint64,
	feeReceiver string,
) error {
	if err := e.requireLiquidator(caller); err != nil {
		return err
	}
	m, err := e.market(marketID)
	if err != nil {
		return err
	}
	if err := m.enter(); err != nil {
		return err
	}
	defer m.exit()
	minP, maxP, err := e.prices(marketID)
	if err != nil {
		return err
	}
	return m.liquidateLiquidityPosition(ctx, e.col, e.rewards, positionID, feeReceiver,
		e.ts.GetTimeNow(), minP, maxP)
}

// IncreaseRiskBufferFundPosition locks a deposit into a market's risk
// buffer fund.
func (e *Engine) IncreaseRiskBufferFundPosition(
	ctx context.Context,
	caller, marketID, account string,
	liquidityDelta *num.Uint,
) error {
	if err := e.requireRouter(caller); err != nil {
		return err
	}
	m, err := e.market(marketID)
	if err != nil {
		return err
	}
	if err := m.enter(); err != nil {
		return err
	}
	defer m.exit()
	_, maxP, err := e.prices(marketID)
	if err != nil {
		return err
	}
	return m.increaseRiskBufferFundPosition(ctx, e.col, e.rewards, account, liquidityDelta,
		e.ts.GetTimeNow(), maxP)
}

// DecreaseRiskBufferFundPosition releases a cooled-down deposit to the
// receiver.
func (e *Engine) DecreaseRiskBufferFundPosition(
	ctx context.Context,
	caller, marketID, account string,
	liquidityDelta *num.Uint,
	receiver string,
) error {
	if err := e.requireRouter(caller); err != nil {
		return err
	}
	m, err := e.market(marketID)
	if err != nil {
		return err
	}
	if err := m.enter(); err != nil {
		return err
	}
	defer m.exit()
	_, maxP, err := e.prices(marketID)
	if err != nil {
		return err
	}
	return m.decreaseRiskBufferFundPosition(ctx, e.col, e.rewards, account, liquidityDelta,
		receiver, e.ts.GetTimeNow(), maxP)
}

// GovUseRiskBufferFund draws fund surplus to a receiver by governance.
func (e *Engine) GovUseRiskBufferFund(ctx context.Context, caller, marketID, receiver string, amount *num.Uint) error {
	if err := e.requireGovernor(caller); err != nil {
		return err
	}
	m, err := e.market(marketID)
	if err != nil {
		return err
	}
	if err := m.enter(); err != nil {
		return err
	}
	defer m.exit()
	if err := m.riskBuffer.GovUse(ctx, receiver, amount); err != nil {
		return err
	}
	e.col.Credit(receiver, amount)
	return nil
}

// CollectProtocolFee drains a market's protocol fee pot to the receiver.
func (e *Engine) CollectProtocolFee(ctx context.Context, caller, marketID, receiver string) (*num.Uint, error) {
	if err := e.requireGovernor(caller); err != nil {
		return nil, err
	}
	if _, err := e.market(marketID); err != nil {
		return nil, err
	}
	amount := e.col.CollectProtocolFee(marketID, receiver)
	if !amount.IsZero() {
		e.broker.Send(events.NewProtocolFeeCollected(ctx, marketID, receiver, amount))
	}
	return amount, nil
}

// CollectReferralFee drains a referral token's fee pot to the receiver.
func (e *Engine) CollectReferralFee(ctx context.Context, caller, marketID string, token uint64, receiver string) (*num.Uint, error) {
	if err := e.requireRouter(caller); err != nil {
		return nil, err
	}
	amount := e.col.CollectReferralFee(token, receiver)
	if !amount.IsZero() {
		e.broker.Send(events.NewReferralFeeCollected(ctx, marketID, token, receiver, amount))
	}
	return amount, nil
}

// OnTick advances every market's funding clock.
func (e *Engine) OnTick(ctx context.Context, t time.Time) {
	e.mu.RLock()
	ids := make([]string, 0, len(e.markets))
	for id := range e.markets {
		ids = append(ids, id)
	}
	e.mu.RUnlock()
	sort.Strings(ids)

	for _, id := range ids {
		m, err := e.market(id)
		if err != nil {
			continue
		}
		if err := m.enter(); err != nil {
			continue
		}
		if _, maxP, perr := e.prices(id); perr != nil {
			e.log.Warn("skipping funding accrual, index price unavailable",
				logging.MarketID(id), logging.Error(perr))
		} else {
			m.accrueFunding(ctx, t, maxP)
		}
		m.exit()
	}
}

// SampleFundingRate advances one market's funding sampling to the
// current time, the keeper-driven counterpart of OnTick.
func (e *Engine) SampleFundingRate(ctx context.Context, marketID string) error {
	m, err := e.market(marketID)
	if err != nil {
		return err
	}
	if err := m.enter(); err != nil {
		return err
	}
	defer m.exit()
	_, maxP, err := e.prices(marketID)
	if err != nil {
		return err
	}
	m.accrueFunding(ctx, e.ts.GetTimeNow(), maxP)
	return nil
}

// MarketIDs lists the registered markets.
func (e *Engine) MarketIDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.markets))
	for id := range e.markets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MarketConfig returns a copy of a market's parameter tuple.
func (e *Engine) MarketConfig(marketID string) (*types.MarketConfig, error) {
	m, err := e.market(marketID)
	if err != nil {
		return nil, err
	}
	return m.cfg.Clone(), nil
}

// MarketPriceX96 returns the marginal trade price for a taker side.
func (e *Engine) MarketPriceX96(marketID string, side types.Side) (*num.Uint, error) {
	m, err := e.market(marketID)
	if err != nil {
		return nil, err
	}
	// a long taker moves the pool short and prices off the high index
	if side == types.SideLong {
		maxP, err := e.feed.GetMaxPriceX96(marketID)
		if err != nil {
			return nil, err
		}
		return m.pricing.MarketPriceX96(maxP, side), nil
	}
	minP, err := e.feed.GetMinPriceX96(marketID)
	if err != nil {
		return nil, err
	}
	return m.pricing.MarketPriceX96(minP, side), nil
}

// PriceState returns a copy of a market's realized curve state.
func (e *Engine) PriceState(marketID string) (*types.PriceState, error) {
	m, err := e.market(marketID)
	if err != nil {
		return nil, err
	}
	return m.pricing.State(), nil
}

// GlobalLiquidityPosition returns a copy of a market's pool position.
func (e *Engine) GlobalLiquidityPosition(marketID string) (*types.GlobalLiquidityPosition, error) {
	m, err := e.market(marketID)
	if err != nil {
		return nil, err
	}
	return &types.GlobalLiquidityPosition{
		Liquidity:                m.glp.Liquidity.Clone(),
		NetSize:                  m.glp.NetSize.Clone(),
		LiquidationBufferNetSize: m.glp.LiquidationBufferNetSize.Clone(),
		Side:                     m.glp.Side,
		EntryPriceX96:            m.glp.EntryPriceX96.Clone(),
		RealizedProfitGrowthX64:  m.glp.RealizedProfitGrowthX64.Clone(),
	}, nil
}

// GlobalPosition returns a copy of a market's aggregate trader exposure.
func (e *Engine) GlobalPosition(marketID string) (*types.GlobalPosition, error) {
	m, err := e.market(marketID)
	if err != nil {
		return nil, err
	}
	return &types.GlobalPosition{
		LongSize:                  m.gp.LongSize.Clone(),
		ShortSize:                 m.gp.ShortSize.Clone(),
		LongFundingRateGrowthX96:  m.gp.LongFundingRateGrowthX96.Clone(),
		ShortFundingRateGrowthX96: m.gp.ShortFundingRateGrowthX96.Clone(),
	}, nil
}

// FundingSample returns a copy of a market's open funding window.
func (e *Engine) FundingSample(marketID string) (*types.GlobalFundingRateSample, error) {
	m, err := e.market(marketID)
	if err != nil {
		return nil, err
	}
	return m.funding.Sample(), nil
}

// RiskBufferFund returns a market's fund balance and locked deposits.
func (e *Engine) RiskBufferFund(marketID string) (*num.Int, *num.Uint, error) {
	m, err := e.market(marketID)
	if err != nil {
		return nil, nil, err
	}
	return m.riskBuffer.Fund(), m.riskBuffer.Liquidity(), nil
}

// LiquidityPositions returns copies of a market's LP deposits.
func (e *Engine) LiquidityPositions(marketID string) ([]*types.LiquidityPosition, error) {
	m, err := e.market(marketID)
	if err != nil {
		return nil, err
	}
	return m.liquidity.Positions(), nil
}

// Positions returns copies of a market's trader positions.
func (e *Engine) Positions(marketID string) ([]*types.Position, error) {
	m, err := e.market(marketID)
	if err != nil {
		return nil, err
	}
	return m.positions.Positions(), nil
}

// Position returns a copy of one trader position.
func (e *Engine) Position(marketID, account string, side types.Side) (*types.Position, error) {
	m, err := e.market(marketID)
	if err != nil {
		return nil, err
	}
	p, ok := m.positions.Position(account, side)
	if !ok {
		return nil, errors.Wrapf(types.ErrPositionNotFound, "%s %s", account, side)
	}
	return p, nil
}
