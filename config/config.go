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

package config

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"code.stratumtrade.io/stratum/api"
	"code.stratumtrade.io/stratum/core/broker"
	"code.stratumtrade.io/stratum/core/collateral"
	"code.stratumtrade.io/stratum/core/market"
	"code.stratumtrade.io/stratum/core/oracle"
	"code.stratumtrade.io/stratum/core/referral"
	"code.stratumtrade.io/stratum/core/rewards"
	"code.stratumtrade.io/stratum/metrics"
)

const configFileName = "config.toml"

// Config is the top level configuration of the node, one section per
// package.
type Config struct {
	API        api.Config
	Broker     broker.Config
	Collateral collateral.Config
	Market     market.Config
	Metrics    metrics.Config
	Oracle     oracle.Config
	Referral   referral.Config
	Rewards    rewards.Config

	// Router is the only account allowed to submit user intents.
	Router string `long:"router"`
	// Governor manages market configuration, liquidators and fund surplus.
	Governor string `long:"governor"`
}

// NewDefaultConfig returns the defaults of every package section.
func NewDefaultConfig() Config {
	return Config{
		API:        api.NewDefaultConfig(),
		Broker:     broker.NewDefaultConfig(),
		Collateral: collateral.NewDefaultConfig(),
		Market:     market.NewDefaultConfig(),
		Metrics:    metrics.NewDefaultConfig(),
		Oracle:     oracle.NewDefaultConfig(),
		Referral:   referral.NewDefaultConfig(),
		Rewards:    rewards.NewDefaultConfig(),
	}
}

// Read loads the configuration file found under path, which must have
// been written by Write or by hand in the same layout.
func Read(path string) (*Config, error) {
	buf, err := os.ReadFile(filepath.Join(path, configFileName))
	if err != nil {
		return nil, err
	}
	cfg := NewDefaultConfig()
	if _, err := toml.Decode(string(buf), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Write serializes the configuration under path, creating the directory
// when missing.
func Write(path string, cfg Config) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return err
	}
	buf := &bytes.Buffer{}
	if err := toml.NewEncoder(buf).Encode(cfg); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(path, configFileName), buf.Bytes(), 0o600)
}
