package detector

// Detection is the structured outcome of evaluating a Condition
// against a series. Only the fields relevant to the condition's Kind
// are populated; the rest stay zero and are omitted from JSON.
type Detection struct {
	Kind      Kind   `json:"kind"`
	Pair      string `json:"pair,omitempty"`
	Triggered bool   `json:"triggered"`

	// Trend / long-term uptrend
	PercentChange float64 `json:"percent_change,omitempty"`
	OldRate       float64 `json:"old_rate,omitempty"`
	NewRate       float64 `json:"new_rate,omitempty"`
	StartDate     string  `json:"start_date,omitempty"`
	EndDate       string  `json:"end_date,omitempty"`

	// Historical extremes
	CurrentRate      float64 `json:"current_rate,omitempty"`
	MaxRate          float64 `json:"max_rate,omitempty"`
	MinRate          float64 `json:"min_rate,omitempty"`
	ProximityPercent float64 `json:"proximity_percent,omitempty"`
	LookbackYears    int     `json:"lookback_years,omitempty"`

	// Price level
	PriceHigh   float64     `json:"price_high,omitempty"`
	PriceLow    float64     `json:"price_low,omitempty"`
	TriggerType TriggerType `json:"trigger_type,omitempty"`

	// Volatility
	CurrentVolatility float64        `json:"current_volatility,omitempty"`
	AverageVolatility float64        `json:"average_volatility,omitempty"`
	VolatilityRatio   float64        `json:"volatility_ratio,omitempty"`
	VolatilityType    VolatilityType `json:"volatility_type,omitempty"`

	// Moving average crossover
	ShortMA     float64    `json:"short_ma,omitempty"`
	LongMA      float64    `json:"long_ma,omitempty"`
	SignalType  SignalType `json:"signal_type,omitempty"`
	ShortPeriod int        `json:"short_ma_period,omitempty"`
	LongPeriod  int        `json:"long_ma_period,omitempty"`

	// Regression evidence (long-term uptrend)
	Slope    float64 `json:"slope,omitempty"`
	RSquared float64 `json:"r_squared,omitempty"`
}

// TriggerType selects the price-level comparison.
type TriggerType string

const (
	CrossesAbove TriggerType = "crosses_above"
	CrossesBelow TriggerType = "crosses_below"
	Between      TriggerType = "between"
)

// VolatilityType selects which side of the volatility ratio triggers.
type VolatilityType string

const (
	VolatilityHigh VolatilityType = "high"
	VolatilityLow  VolatilityType = "low"
)

// SignalType selects the crossover direction.
type SignalType string

const (
	GoldenCross SignalType = "golden_cross"
	DeathCross  SignalType = "death_cross"
)
