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

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"code.stratumtrade.io/stratum/api"
	"code.stratumtrade.io/stratum/config"
	"code.stratumtrade.io/stratum/core/broker"
	"code.stratumtrade.io/stratum/core/collateral"
	"code.stratumtrade.io/stratum/core/market"
	"code.stratumtrade.io/stratum/core/oracle"
	"code.stratumtrade.io/stratum/core/referral"
	"code.stratumtrade.io/stratum/core/rewards"
	"code.stratumtrade.io/stratum/core/stratumtime"
	"code.stratumtrade.io/stratum/logging"
	"code.stratumtrade.io/stratum/metrics"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a stratum node",
	Long:  "Run the market engine and serve its API until interrupted",
	RunE:  runStart,
}

func runStart(_ *cobra.Command, _ []string) error {
	log := logging.NewLoggerFromEnv(os.Getenv("STRATUM_ENV"))
	defer log.AtExit()

	cfg, err := config.Read(rootArgs.home)
	if err != nil {
		return err
	}

	ts := stratumtime.New()
	bkr := broker.New(log, cfg.Broker)
	col := collateral.New(log, cfg.Collateral)
	orc := oracle.New(log, cfg.Oracle, ts)
	ref := referral.New(log, cfg.Referral)
	rew := rewards.NewTracker(log, cfg.Rewards)

	engine := market.New(log, cfg.Market, bkr, ts, orc, rew, ref, col,
		cfg.Router, cfg.Governor)
	ts.NotifyOnTick(engine.OnTick)

	metrics.Start(cfg.Metrics)

	srv := api.New(log, cfg.API, engine, orc, ref)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				ts.SetTimeNow(ctx, t)
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("shutting down", logging.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("api server failed", logging.Error(err))
		return err
	}
	return srv.Stop()
}
