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

package metrics

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// Gauge ...
	Gauge instrument = iota
	// Counter ...
	Counter
	// Histogram ...
	Histogram
)

var (
	// ErrInstrumentNotSupported signals the specified instrument is not yet supported
	ErrInstrumentNotSupported = errors.New("instrument type unsupported")
	// ErrInstrumentTypeMismatch signal the type of the instrument is not expected
	ErrInstrumentTypeMismatch = errors.New("instrument is not of the expected type")
)

var (
	engineTime   *prometheus.CounterVec
	tradeCounter *prometheus.CounterVec
	// Liquidations are counted per market for traders and LPs separately
	liquidationCounter *prometheus.CounterVec
	fundingSettlements *prometheus.CounterVec
	positionGauge      *prometheus.GaugeVec
	liquidityGauge     *prometheus.GaugeVec
	// Call counters for each request type per API
	apiRequestCallCounter *prometheus.CounterVec
	// Total time counters for each request type per API
	apiRequestTimeCounter *prometheus.CounterVec
)

// abstract prometheus types
type instrument int

// combine all possible prometheus options + way to differentiate between regular or vector type
type instrumentOpts struct {
	opts    prometheus.Opts
	buckets []float64
	vectors []string
}

type mi struct {
	gaugeV     *prometheus.GaugeVec
	gauge      prometheus.Gauge
	counterV   *prometheus.CounterVec
	counter    prometheus.Counter
	histogramV *prometheus.HistogramVec
	histogram  prometheus.Histogram
}

// InstrumentOption - vararg for instrument options setting
type InstrumentOption func(o *instrumentOpts)

// Vectors - configuration used to create a vector of a given interface, slice of label names
func Vectors(labels ...string) InstrumentOption {
	return func(o *instrumentOpts) {
		o.vectors = labels
	}
}

// Help - set the help field on instrument
func Help(help string) InstrumentOption {
	return func(o *instrumentOpts) {
		o.opts.Help = help
	}
}

// Namespace - set namespace
func Namespace(ns string) InstrumentOption {
	return func(o *instrumentOpts) {
		o.opts.Namespace = ns
	}
}

// Buckets - specific to histogram type
func Buckets(b []float64) InstrumentOption {
	return func(o *instrumentOpts) {
		o.buckets = b
	}
}

// AddInstrument configure and register a new metrics instrument
func AddInstrument(t instrument, name string, opts ...InstrumentOption) (*mi, error) {
	var col prometheus.Collector
	ret := mi{}
	opt := instrumentOpts{
		opts: prometheus.Opts{
			Name: name,
		},
	}
	for _, o := range opts {
		o(&opt)
	}
	switch t {
	case Gauge:
		o := opt.gauge()
		if len(opt.vectors) == 0 {
			ret.gauge = prometheus.NewGauge(o)
			col = ret.gauge
		} else {
			ret.gaugeV = prometheus.NewGaugeVec(o, opt.vectors)
			col = ret.gaugeV
		}
	case Counter:
		o := opt.counter()
		if len(opt.vectors) == 0 {
			ret.counter = prometheus.NewCounter(o)
			col = ret.counter
		} else {
			ret.counterV = prometheus.NewCounterVec(o, opt.vectors)
			col = ret.counterV
		}
	case Histogram:
		o := opt.histogram()
		if len(opt.vectors) == 0 {
			ret.histogram = prometheus.NewHistogram(o)
			col = ret.histogram
		} else {
			ret.histogramV = prometheus.NewHistogramVec(o, opt.vectors)
			col = ret.histogramV
		}
	default:
		return nil, ErrInstrumentNotSupported
	}
	if err := prometheus.Register(col); err != nil {
		return nil, err
	}
	return &ret, nil
}

// Start enable metrics (given config)
func Start(conf Config) {
	if !conf.Enabled {
		return
	}
	if err := setupMetrics(); err != nil {
		panic("could not set up metrics")
	}
	http.Handle(conf.Path, promhttp.Handler())
	go func() {
		log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", conf.Port), nil))
	}()
}

func (i instrumentOpts) gauge() prometheus.GaugeOpts {
	return prometheus.GaugeOpts(i.opts)
}

func (i instrumentOpts) counter() prometheus.CounterOpts {
	return prometheus.CounterOpts(i.opts)
}

func (i instrumentOpts) histogram() prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Name:        i.opts.Name,
		Namespace:   i.opts.Namespace,
		Subsystem:   i.opts.Subsystem,
		ConstLabels: i.opts.ConstLabels,
		Help:        i.opts.Help,
		Buckets:     i.buckets,
	}
}

// Gauge returns a prometheus Gauge instrument
func (m mi) Gauge() (prometheus.Gauge, error) {
	if m.gauge == nil {
		return nil, ErrInstrumentTypeMismatch
	}
	return m.gauge, nil
}

// GaugeVec returns a prometheus GaugeVec instrument
func (m mi) GaugeVec() (*prometheus.GaugeVec, error) {
	if m.gaugeV == nil {
		return nil, ErrInstrumentTypeMismatch
	}
	return m.gaugeV, nil
}

// Counter returns a prometheus Counter instrument
func (m mi) Counter() (prometheus.Counter, error) {
	if m.counter == nil {
		return nil, ErrInstrumentTypeMismatch
	}
	return m.counter, nil
}

// CounterVec returns a prometheus CounterVec instrument
func (m mi) CounterVec() (*prometheus.CounterVec, error) {
	if m.counterV == nil {
		return nil, ErrInstrumentTypeMismatch
	}
	return m.counterV, nil
}

func (m mi) Histogram() (prometheus.Histogram, error) {
	if m.histogram == nil {
		return nil, ErrInstrumentTypeMismatch
	}
	return m.histogram, nil
}

func (m mi) HistogramVec() (*prometheus.HistogramVec, error) {
	if m.histogramV == nil {
		return nil, ErrInstrumentTypeMismatch
	}
	return m.histogramV, nil
}

func setupMetrics() error {
	h, err := AddInstrument(
		Counter,
		"engine_seconds_total",
		Namespace("stratum"),
		Vectors("market", "engine", "fn"),
	)
	if err != nil {
		return err
	}
	est, err := h.CounterVec()
	if err != nil {
		return err
	}
	engineTime = est

	h, err = AddInstrument(
		Counter,
		"trades_total",
		Namespace("stratum"),
		Vectors("market", "op", "valid"),
		Help("Number of position trades processed"),
	)
	if err != nil {
		return err
	}
	tc, err := h.CounterVec()
	if err != nil {
		return err
	}
	tradeCounter = tc

	h, err = AddInstrument(
		Counter,
		"liquidations_total",
		Namespace("stratum"),
		Vectors("market", "kind"),
		Help("Number of forced liquidations executed"),
	)
	if err != nil {
		return err
	}
	lc, err := h.CounterVec()
	if err != nil {
		return err
	}
	liquidationCounter = lc

	h, err = AddInstrument(
		Counter,
		"funding_settlements_total",
		Namespace("stratum"),
		Vectors("market"),
		Help("Number of hourly funding rate settlements"),
	)
	if err != nil {
		return err
	}
	fs, err := h.CounterVec()
	if err != nil {
		return err
	}
	fundingSettlements = fs

	h, err = AddInstrument(
		Gauge,
		"positions",
		Namespace("stratum"),
		Vectors("market", "side"),
		Help("Number of open trader positions"),
	)
	if err != nil {
		return err
	}
	pg, err := h.GaugeVec()
	if err != nil {
		return err
	}
	positionGauge = pg

	h, err = AddInstrument(
		Gauge,
		"liquidity_positions",
		Namespace("stratum"),
		Vectors("market"),
		Help("Number of open LP deposits"),
	)
	if err != nil {
		return err
	}
	lg, err := h.GaugeVec()
	if err != nil {
		return err
	}
	liquidityGauge = lg

	// Number of calls to each request type
	h, err = AddInstrument(
		Counter,
		"request_count_total",
		Namespace("stratum"),
		Vectors("apiType", "requestType"),
		Help("Count of API requests"),
	)
	if err != nil {
		return err
	}
	rc, err := h.CounterVec()
	if err != nil {
		return err
	}
	apiRequestCallCounter = rc

	// Total time for calls to each request type for each api type
	h, err = AddInstrument(
		Counter,
		"request_time_total",
		Namespace("stratum"),
		Vectors("apiType", "requestType"),
		Help("Total time spent in each API request"),
	)
	if err != nil {
		return err
	}
	rpac, err := h.CounterVec()
	if err != nil {
		return err
	}
	apiRequestTimeCounter = rpac

	return nil
}

// EngineTimeCounterAdd records the time spent in an engine call
func EngineTimeCounterAdd(start time.Time, labelValues ...string) {
	if engineTime == nil {
		return
	}
	engineTime.WithLabelValues(labelValues...).Add(time.Since(start).Seconds())
}

// TradeCounterInc increments the trade counter
func TradeCounterInc(labelValues ...string) {
	if tradeCounter == nil {
		return
	}
	tradeCounter.WithLabelValues(labelValues...).Inc()
}

// LiquidationCounterInc increments the liquidation counter
func LiquidationCounterInc(labelValues ...string) {
	if liquidationCounter == nil {
		return
	}
	liquidationCounter.WithLabelValues(labelValues...).Inc()
}

// FundingSettlementCounterInc increments the funding settlement counter
func FundingSettlementCounterInc(market string) {
	if fundingSettlements == nil {
		return
	}
	fundingSettlements.WithLabelValues(market).Inc()
}

// PositionGaugeAdd increments the open position gauge
func PositionGaugeAdd(n int, labelValues ...string) {
	if positionGauge == nil {
		return
	}
	positionGauge.WithLabelValues(labelValues...).Add(float64(n))
}

// LiquidityGaugeAdd increments the LP deposit gauge
func LiquidityGaugeAdd(n int, market string) {
	if liquidityGauge == nil {
		return
	}
	liquidityGauge.WithLabelValues(market).Add(float64(n))
}

// APIRequestAndTimeREST updates the metrics for REST API calls
func APIRequestAndTimeREST(request string, time float64) {
	if apiRequestCallCounter == nil || apiRequestTimeCounter == nil {
		return
	}
	apiRequestCallCounter.WithLabelValues("REST", request).Inc()
	apiRequestTimeCounter.WithLabelValues("REST", request).Add(time)
}

// StartAPIRequestAndTimeREST returns a deferrable that updates the REST metrics
func StartAPIRequestAndTimeREST(request string) func() {
	startTime := time.Now()
	return func() {
		APIRequestAndTimeREST(request, time.Since(startTime).Seconds())
	}
}
