package kpi

import (
	"context"
	"fmt"
	"math"

	"github.com/databokers/backoffice/pkg/config"
	"github.com/databokers/backoffice/pkg/logger"
)

// Calculator computes KPI values from accessor results. One method per
// metric code; all of them are pure given the accessor's answers, so
// recomputing an unchanged period yields identical values.
type Calculator struct {
	registry *Registry
	accessor DataAccessor
	cfg      config.EngineConfig
	logger   *logger.Logger
}

// NewCalculator creates a new Calculator
func NewCalculator(registry *Registry, accessor DataAccessor, cfg config.EngineConfig, log *logger.Logger) *Calculator {
	return &Calculator{
		registry: registry,
		accessor: accessor,
		cfg:      cfg,
		logger:   log.WithField("module", "calculator"),
	}
}

// Compute runs the calculator for a single metric code.
func (c *Calculator) Compute(ctx context.Context, code string, segment Segment, period Period) (Result, error) {
	def, err := c.registry.Get(code)
	if err != nil {
		return Result{}, err
	}

	switch def.Code {
	case MetricConversionRate:
		return c.conversionRate(ctx, segment, period)
	case MetricAvgTimeToSale:
		return c.avgTimeToSale(ctx, segment, period)
	case MetricTotalValuation:
		return c.totalValuation(ctx, segment)
	case MetricGrossCommission:
		return c.grossCommission(ctx, segment, period)
	case MetricNetCommission:
		return c.netCommission(ctx, segment, period)
	case MetricStockIndex:
		return c.stockIndex(ctx, segment)
	case MetricBrokerEfficiency:
		return c.brokerEfficiency(ctx, segment, period)
	case MetricTradeInSuccess:
		return c.tradeInSuccess(ctx, segment, period)
	case MetricROI:
		return c.roi(ctx, segment, period)
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownMetric, code)
	}
}

// ComputeAll runs every registered calculator in registry order. A
// single calculator's failure is recorded on its CodeResult and the
// remaining calculators still execute.
func (c *Calculator) ComputeAll(ctx context.Context, segment Segment, period Period) []CodeResult {
	defs := c.registry.All()
	results := make([]CodeResult, 0, len(defs))

	for _, def := range defs {
		result, err := c.Compute(ctx, def.Code, segment, period)
		if err != nil {
			c.logger.WithFields(map[string]interface{}{
				"metric":  def.Code,
				"segment": segment,
				"period":  period.String(),
				"error":   err.Error(),
			}).Warn("Calculator failed, continuing batch")
		}
		results = append(results, CodeResult{Code: def.Code, Result: result, Err: err})
	}

	return results
}

// conversionRate = sold / total * 100 over the period, 0 when nothing
// was published and capped at 100 when carried-over stock sells.
func (c *Calculator) conversionRate(ctx context.Context, segment Segment, period Period) (Result, error) {
	total, err := c.accessor.CountProperties(ctx, segment, period)
	if err != nil {
		return Result{}, fmt.Errorf("count properties: %w", err)
	}

	sold, err := c.accessor.CountProperties(ctx, segment, period, StateSold)
	if err != nil {
		return Result{}, fmt.Errorf("count sold: %w", err)
	}

	return Result{
		Value: ratio(float64(sold), float64(total)),
		Unit:  UnitPercent,
		Metadata: map[string]interface{}{
			"sold":  sold,
			"total": total,
		},
	}, nil
}

// avgTimeToSale is the mean days between creation and sale over
// properties sold in the period, floored to whole days.
func (c *Calculator) avgTimeToSale(ctx context.Context, segment Segment, period Period) (Result, error) {
	sales, err := c.accessor.ListSoldWithDates(ctx, segment, period)
	if err != nil {
		return Result{}, fmt.Errorf("list sold: %w", err)
	}

	if len(sales) == 0 {
		return Result{
			Value:    0,
			Unit:     UnitDays,
			Metadata: map[string]interface{}{"sold": 0},
		}, nil
	}

	var totalDays float64
	for _, s := range sales {
		totalDays += s.SoldAt.Sub(s.CreatedAt).Hours() / 24
	}

	return Result{
		Value: math.Floor(totalDays / float64(len(sales))),
		Unit:  UnitDays,
		Metadata: map[string]interface{}{
			"sold": len(sales),
		},
	}, nil
}

// totalValuation sums prices over the standing inventory (AVAILABLE
// and RESERVED), regardless of creation period.
func (c *Calculator) totalValuation(ctx context.Context, segment Segment) (Result, error) {
	valuation, err := c.accessor.StandingValuation(ctx, segment)
	if err != nil {
		return Result{}, fmt.Errorf("standing valuation: %w", err)
	}

	return Result{Value: valuation, Unit: UnitCurrency}, nil
}

func (c *Calculator) grossCommission(ctx context.Context, segment Segment, period Period) (Result, error) {
	gross, _, err := c.accessor.SumCommissions(ctx, segment, period)
	if err != nil {
		return Result{}, fmt.Errorf("sum commissions: %w", err)
	}

	return Result{Value: gross, Unit: UnitCurrency}, nil
}

// netCommission is gross commission minus each record's broker split.
func (c *Calculator) netCommission(ctx context.Context, segment Segment, period Period) (Result, error) {
	gross, net, err := c.accessor.SumCommissions(ctx, segment, period)
	if err != nil {
		return Result{}, fmt.Errorf("sum commissions: %w", err)
	}

	return Result{
		Value: net,
		Unit:  UnitCurrency,
		Metadata: map[string]interface{}{
			"gross": gross,
		},
	}, nil
}

// stockIndex = current stock / target stock * 100. The target comes
// from per-segment config with a default of 50; a non-positive target
// yields 0.
func (c *Calculator) stockIndex(ctx context.Context, segment Segment) (Result, error) {
	stock, err := c.accessor.CurrentStock(ctx, segment)
	if err != nil {
		return Result{}, fmt.Errorf("current stock: %w", err)
	}

	target := c.cfg.TargetStock(string(segment))

	var value float64
	if target > 0 {
		value = float64(stock) / float64(target) * 100
	}

	return Result{
		Value: value,
		Unit:  UnitIndex,
		Metadata: map[string]interface{}{
			"stock":  stock,
			"target": target,
		},
	}, nil
}

// brokerEfficiency averages per-broker sold/assigned ratios. Brokers
// with nothing assigned contribute 0.
func (c *Calculator) brokerEfficiency(ctx context.Context, segment Segment, period Period) (Result, error) {
	stats, err := c.accessor.BrokerStats(ctx, segment, period)
	if err != nil {
		return Result{}, fmt.Errorf("broker stats: %w", err)
	}

	if len(stats) == 0 {
		return Result{
			Value:    0,
			Unit:     UnitPercent,
			Metadata: map[string]interface{}{"brokers": 0},
		}, nil
	}

	var sum float64
	for _, s := range stats {
		sum += ratio(float64(s.SoldCount), float64(s.AssignedCount))
	}

	return Result{
		Value: sum / float64(len(stats)),
		Unit:  UnitPercent,
		Metadata: map[string]interface{}{
			"brokers": len(stats),
		},
	}, nil
}

func (c *Calculator) tradeInSuccess(ctx context.Context, segment Segment, period Period) (Result, error) {
	initiated, finalized, err := c.accessor.TradeInCounts(ctx, segment, period)
	if err != nil {
		return Result{}, fmt.Errorf("trade-in counts: %w", err)
	}

	return Result{
		Value: ratio(float64(finalized), float64(initiated)),
		Unit:  UnitPercent,
		Metadata: map[string]interface{}{
			"initiated": initiated,
			"finalized": finalized,
		},
	}, nil
}

// roi = (revenue - cost) / cost * 100. Unlike every other ratio, a
// zero cost basis does not collapse to 0: the result is flagged
// undefined so callers can distinguish "no cost basis" from
// "zero return".
func (c *Calculator) roi(ctx context.Context, segment Segment, period Period) (Result, error) {
	revenue, cost, err := c.accessor.RevenueAndCost(ctx, segment, period)
	if err != nil {
		return Result{}, fmt.Errorf("revenue and cost: %w", err)
	}

	if cost == 0 {
		return Result{
			Value: 0,
			Unit:  UnitPercent,
			Metadata: map[string]interface{}{
				"undefined": true,
				"revenue":   revenue,
				"cost":      cost,
			},
		}, nil
	}

	return Result{
		Value: (revenue - cost) / cost * 100,
		Unit:  UnitPercent,
		Metadata: map[string]interface{}{
			"revenue": revenue,
			"cost":    cost,
		},
	}, nil
}

// ratio returns num/den*100 bounded to [0, 100]. The numerator can
// outnumber the denominator when carried-over inventory sells inside
// the period (sales dated by sold_at against records dated by
// created_at), so the value is capped at the percent ceiling. The raw
// counts stay available in the result metadata. Never NaN.
func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	if num >= den {
		return 100
	}
	return num / den * 100
}
