package domain

import "math"

// DemandProfile is the demand and lead-time behaviour of one (location, item)
// pair, expressed per day.
type DemandProfile struct {
	AvgDailyUsage   float64 `json:"avg_daily_usage" yaml:"avg_daily_usage" db:"avg_daily_usage"`
	DemandStdDev    float64 `json:"demand_std_dev" yaml:"demand_std_dev" db:"demand_std_dev"`
	AvgLeadTimeDays float64 `json:"avg_lead_time_days" yaml:"avg_lead_time_days" db:"avg_lead_time_days"`
	LeadTimeStdDev  float64 `json:"lead_time_std_dev" yaml:"lead_time_std_dev" db:"lead_time_std_dev"`
}

// DemandModel supplies demand profiles. It stands in for whatever forecast
// provider the deployment uses.
type DemandModel interface {
	Demand(locationID, itemID string) (DemandProfile, bool)
}

// StaticDemand is a fixed lookup of demand profiles.
type StaticDemand map[PairKey]DemandProfile

func (s StaticDemand) Demand(locationID, itemID string) (DemandProfile, bool) {
	p, ok := s[PairKey{LocationID: locationID, ItemID: itemID}]
	return p, ok
}

// HistoricalDemand derives demand profiles from daily consumption series,
// e.g. ledger deltas. Lead times come from LeadTimes keyed by item.
type HistoricalDemand struct {
	DailyConsumption map[PairKey][]float64
	LeadTimes        map[string]LeadTime
}

// LeadTime is the replenishment lead time distribution for an item.
type LeadTime struct {
	AvgDays    float64 `json:"avg_days" yaml:"avg_days"`
	StdDevDays float64 `json:"std_dev_days" yaml:"std_dev_days"`
}

func (h HistoricalDemand) Demand(locationID, itemID string) (DemandProfile, bool) {
	series, ok := h.DailyConsumption[PairKey{LocationID: locationID, ItemID: itemID}]
	if !ok || len(series) == 0 {
		return DemandProfile{}, false
	}

	mean, std := meanStdDev(series)
	lt := h.LeadTimes[itemID]
	return DemandProfile{
		AvgDailyUsage:   mean,
		DemandStdDev:    std,
		AvgLeadTimeDays: lt.AvgDays,
		LeadTimeStdDev:  lt.StdDevDays,
	}, true
}

// meanStdDev returns the mean and sample standard deviation.
func meanStdDev(xs []float64) (float64, float64) {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	if len(xs) < 2 {
		return mean, 0
	}

	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(xs)-1))
}
