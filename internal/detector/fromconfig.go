package detector

import (
	"encoding/json"

	"fxmonitor/internal/model"
)

// FromConfig builds a Condition from its persisted kind and JSON
// parameters. The returned condition is not yet validated; callers go
// through Evaluate or Validate as usual.
func FromConfig(kind Kind, params json.RawMessage) (Condition, error) {
	var c Condition
	switch kind {
	case KindTrend:
		c = &Trend{}
	case KindHistoricalHigh:
		c = &HistoricalHigh{}
	case KindHistoricalLow:
		c = &HistoricalLow{}
	case KindPriceLevel:
		c = &PriceLevel{}
	case KindVolatility:
		c = &Volatility{}
	case KindMACrossover:
		c = &MACrossover{}
	case KindLongTermUptrend:
		c = &LongTermUptrend{}
	default:
		return nil, &model.InvalidParameterError{Field: "kind", Reason: "unknown condition kind " + string(kind)}
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, c); err != nil {
			return nil, &model.InvalidParameterError{Field: "params", Reason: err.Error()}
		}
	}
	return deref(c), nil
}

// deref returns the condition by value so FromConfig output compares
// and marshals like a literal condition struct.
func deref(c Condition) Condition {
	switch v := c.(type) {
	case *Trend:
		return *v
	case *HistoricalHigh:
		return *v
	case *HistoricalLow:
		return *v
	case *PriceLevel:
		return *v
	case *Volatility:
		return *v
	case *MACrossover:
		return *v
	case *LongTermUptrend:
		return *v
	}
	return c
}
