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

package rewards

import (
	"sync"

	"code.stratumtrade.io/stratum/libs/num"
	"code.stratumtrade.io/stratum/logging"
)

type stakeKey struct {
	market  string
	account string
}

// Tracker follows the stake every account contributes to each market,
// LP deposits, open position sizes and risk buffer fund deposits alike,
// so an external reward program can weigh payouts by contributed stake.
type Tracker struct {
	Config
	log *logging.Logger

	mu         sync.RWMutex
	liquidity  map[stakeKey]*num.Uint
	position   map[stakeKey]*num.Uint
	riskBuffer map[stakeKey]*num.Uint
}

// NewTracker instantiates the reward stake tracker.
func NewTracker(log *logging.Logger, config Config) *Tracker {
	log = log.Named(namedLogger)
	log.SetLevel(config.Level.Get())

	return &Tracker{
		Config:     config,
		log:        log,
		liquidity:  map[stakeKey]*num.Uint{},
		position:   map[stakeKey]*num.Uint{},
		riskBuffer: map[stakeKey]*num.Uint{},
	}
}

// OnLiquidityPositionChanged implements the market engine's reward sink.
func (t *Tracker) OnLiquidityPositionChanged(marketID, account string, liquidityDelta *num.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fold(t.liquidity, stakeKey{marketID, account}, liquidityDelta)
}

// OnPositionChanged implements the market engine's reward sink for
// trader position size changes.
func (t *Tracker) OnPositionChanged(marketID, account string, sizeDelta *num.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fold(t.position, stakeKey{marketID, account}, sizeDelta)
}

// fold applies a signed delta to a tracked stake, clamping at zero and
// dropping emptied entries.
func fold(stakes map[stakeKey]*num.Uint, key stakeKey, delta *num.Int) {
	cur, ok := stakes[key]
	if !ok {
		cur = num.UintZero()
	}
	if delta.IsNegative() {
		cur.Sub(cur, num.Min(cur, delta.Abs()))
	} else {
		cur.Add(cur, delta.Abs())
	}
	if cur.IsZero() {
		delete(stakes, key)
		return
	}
	stakes[key] = cur
}

// OnRiskBufferFundPositionChanged implements the market engine's reward
// sink, the absolute deposit replaces the previous value.
func (t *Tracker) OnRiskBufferFundPositionChanged(marketID, account string, liquidityAfter *num.Uint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := stakeKey{marketID, account}
	if liquidityAfter.IsZero() {
		delete(t.riskBuffer, key)
		return
	}
	t.riskBuffer[key] = liquidityAfter.Clone()
}

// LiquidityStake returns the tracked LP stake of an account.
func (t *Tracker) LiquidityStake(marketID, account string) *num.Uint {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if cur, ok := t.liquidity[stakeKey{marketID, account}]; ok {
		return cur.Clone()
	}
	return num.UintZero()
}

// PositionStake returns the tracked open position size of an account.
func (t *Tracker) PositionStake(marketID, account string) *num.Uint {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if cur, ok := t.position[stakeKey{marketID, account}]; ok {
		return cur.Clone()
	}
	return num.UintZero()
}

// RiskBufferStake returns the tracked fund deposit of an account.
func (t *Tracker) RiskBufferStake(marketID, account string) *num.Uint {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if cur, ok := t.riskBuffer[stakeKey{marketID, account}]; ok {
		return cur.Clone()
	}
	return num.UintZero()
}
