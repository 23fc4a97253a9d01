package kpi

import "fmt"

// Metric codes. One calculator per code; the registry fixes the
// computation order for every cycle.
const (
	MetricConversionRate   = "conversion_rate"
	MetricAvgTimeToSale    = "avg_time_to_sale"
	MetricTotalValuation   = "total_valuation"
	MetricGrossCommission  = "gross_commission"
	MetricNetCommission    = "net_commission"
	MetricStockIndex       = "stock_index"
	MetricBrokerEfficiency = "broker_efficiency"
	MetricTradeInSuccess   = "trade_in_success"
	MetricROI              = "roi"
)

// Units used by metric definitions.
const (
	UnitPercent  = "%"
	UnitDays     = "days"
	UnitCurrency = "CLP"
	UnitIndex    = "index"
)

// MetricDefinition describes one KPI: code, display name, unit and
// optional alert thresholds. Immutable after registry construction.
type MetricDefinition struct {
	Code         string   `json:"code"`
	Name         string   `json:"name"`
	Unit         string   `json:"unit"`
	MinThreshold *float64 `json:"min_threshold,omitempty"`
	MaxThreshold *float64 `json:"max_threshold,omitempty"`
}

// Registry is the static metric catalog, loaded once at startup.
type Registry struct {
	order []string
	defs  map[string]MetricDefinition
}

// NewRegistry builds the default metric catalog in computation order.
func NewRegistry() *Registry {
	r := &Registry{defs: make(map[string]MetricDefinition)}

	r.add(MetricDefinition{
		Code:         MetricConversionRate,
		Name:         "Conversion rate",
		Unit:         UnitPercent,
		MinThreshold: ptr(10),
	})
	r.add(MetricDefinition{
		Code:         MetricAvgTimeToSale,
		Name:         "Average time to sale",
		Unit:         UnitDays,
		MaxThreshold: ptr(90),
	})
	r.add(MetricDefinition{
		Code: MetricTotalValuation,
		Name: "Total stock valuation",
		Unit: UnitCurrency,
	})
	r.add(MetricDefinition{
		Code: MetricGrossCommission,
		Name: "Gross commission",
		Unit: UnitCurrency,
	})
	r.add(MetricDefinition{
		Code: MetricNetCommission,
		Name: "Net commission",
		Unit: UnitCurrency,
	})
	r.add(MetricDefinition{
		Code:         MetricStockIndex,
		Name:         "Stock index",
		Unit:         UnitIndex,
		MinThreshold: ptr(60),
	})
	r.add(MetricDefinition{
		Code:         MetricBrokerEfficiency,
		Name:         "Broker efficiency",
		Unit:         UnitPercent,
		MinThreshold: ptr(15),
	})
	r.add(MetricDefinition{
		Code:         MetricTradeInSuccess,
		Name:         "Trade-in success rate",
		Unit:         UnitPercent,
		MinThreshold: ptr(25),
	})
	r.add(MetricDefinition{
		Code: MetricROI,
		Name: "ROI by business model",
		Unit: UnitPercent,
	})

	return r
}

func (r *Registry) add(def MetricDefinition) {
	r.order = append(r.order, def.Code)
	r.defs[def.Code] = def
}

// Get returns the definition for a code, ErrUnknownMetric otherwise.
func (r *Registry) Get(code string) (MetricDefinition, error) {
	def, ok := r.defs[code]
	if !ok {
		return MetricDefinition{}, fmt.Errorf("%w: %s", ErrUnknownMetric, code)
	}
	return def, nil
}

// All returns the definitions in registration order.
func (r *Registry) All() []MetricDefinition {
	defs := make([]MetricDefinition, 0, len(r.order))
	for _, code := range r.order {
		defs = append(defs, r.defs[code])
	}
	return defs
}

func ptr(v float64) *float64 {
	return &v
}
