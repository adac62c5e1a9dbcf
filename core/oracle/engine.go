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

package oracle

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"code.stratumtrade.io/stratum/libs/num"
	"code.stratumtrade.io/stratum/logging"
)

var (
	// ErrIndexPriceUnavailable is returned when no price was ever submitted
	// for a market.
	ErrIndexPriceUnavailable = errors.New("index price unavailable")
	// ErrIndexPriceStale is returned when the latest submission is older
	// than the configured maximum age.
	ErrIndexPriceStale = errors.New("index price stale")
	// ErrInvalidIndexPrice is returned on a zero or inverted price band.
	ErrInvalidIndexPrice = errors.New("invalid index price")
)

// TimeService provides the current engine time.
type TimeService interface {
	GetTimeNow() time.Time
}

type indexPrice struct {
	minX96 *num.Uint
	maxX96 *num.Uint
	at     time.Time
}

// Engine stores the latest index price band per market, as X96 fixed
// point values submitted by the price keeper.
type Engine struct {
	Config
	log *logging.Logger
	ts  TimeService

	mu     sync.RWMutex
	prices map[string]indexPrice
}

// New instantiates the oracle price store.
func New(log *logging.Logger, config Config, ts TimeService) *Engine {
	log = log.Named(namedLogger)
	log.SetLevel(config.Level.Get())

	return &Engine{
		Config: config,
		log:    log,
		ts:     ts,
		prices: map[string]indexPrice{},
	}
}

// SetIndexPriceX96 records the latest price band of a market. The band
// is [min, max] over the sampled venues, both as X96 values.
func (e *Engine) SetIndexPriceX96(marketID string, minX96, maxX96 *num.Uint) error {
	if minX96.IsZero() || minX96.GT(maxX96) {
		return errors.Wrapf(ErrInvalidIndexPrice, "market %s min %s max %s", marketID, minX96, maxX96)
	}
	e.mu.Lock()
	e.prices[marketID] = indexPrice{
		minX96: minX96.Clone(),
		maxX96: maxX96.Clone(),
		at:     e.ts.GetTimeNow(),
	}
	e.mu.Unlock()
	return nil
}

// GetMinPriceX96 implements the market engine's price feed.
func (e *Engine) GetMinPriceX96(marketID string) (*num.Uint, error) {
	p, err := e.price(marketID)
	if err != nil {
		return nil, err
	}
	return p.minX96.Clone(), nil
}

// GetMaxPriceX96 implements the market engine's price feed.
func (e *Engine) GetMaxPriceX96(marketID string) (*num.Uint, error) {
	p, err := e.price(marketID)
	if err != nil {
		return nil, err
	}
	return p.maxX96.Clone(), nil
}

func (e *Engine) price(marketID string) (indexPrice, error) {
	e.mu.RLock()
	p, ok := e.prices[marketID]
	e.mu.RUnlock()
	if !ok {
		return indexPrice{}, errors.Wrapf(ErrIndexPriceUnavailable, "market %s", marketID)
	}
	if age := e.ts.GetTimeNow().Sub(p.at); age > e.MaxPriceAge.Get() {
		return indexPrice{}, errors.Wrapf(ErrIndexPriceStale, "market %s age %s", marketID, age)
	}
	return p, nil
}
