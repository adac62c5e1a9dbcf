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
	"code.stratumtrade.io/stratum/config/encoding"
	"code.stratumtrade.io/stratum/core/funding"
	"code.stratumtrade.io/stratum/core/liquidity"
	"code.stratumtrade.io/stratum/core/positions"
	"code.stratumtrade.io/stratum/core/pricing"
	"code.stratumtrade.io/stratum/core/riskbuffer"
	"code.stratumtrade.io/stratum/logging"
)

const namedLogger = "market"

// Config is the configuration of the market engine and all the
// per-market engines it owns.
type Config struct {
	Level encoding.LogLevel `long:"log-level"`

	Pricing    pricing.Config
	Funding    funding.Config
	Liquidity  liquidity.Config
	Positions  positions.Config
	RiskBuffer riskbuffer.Config
}

// NewDefaultConfig creates an instance of the package specific
// configuration.
func NewDefaultConfig() Config {
	return Config{
		Level:      encoding.LogLevel{Level: logging.InfoLevel},
		Pricing:    pricing.NewDefaultConfig(),
		Funding:    funding.NewDefaultConfig(),
		Liquidity:  liquidity.NewDefaultConfig(),
		Positions:  positions.NewDefaultConfig(),
		RiskBuffer: riskbuffer.NewDefaultConfig(),
	}
}
