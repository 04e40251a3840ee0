// Package risk holds the demand and risk statistics behind every inventory
// position: service-level quantiles, safety stock, reorder point, days of
// cover and the status classification.
package risk

import (
	"math"

	"github.com/andresuchdata/supplyengine/internal/domain"
)

// Classification thresholds.
const (
	// CriticalDaysCover is the days of cover at or below which a position is
	// at stock-out risk regardless of its reorder point.
	CriticalDaysCover = 2.0
	// ExcessDaysCover is the days of cover above which stock counts as excess.
	ExcessDaysCover = 45.0
)

// Coefficients of Acklam's rational approximation to the normal quantile.
var (
	qa = [6]float64{-3.969683028665376e+01, 2.209460984245205e+02, -2.759285104469687e+02,
		1.383577518672690e+02, -3.066479806614716e+01, 2.506628277459239e+00}
	qb = [5]float64{-5.447609879822406e+01, 1.615858368580409e+02, -1.556989798598866e+02,
		6.680131188771972e+01, -1.328068155288572e+01}
	qc = [6]float64{-7.784894002430293e-03, -3.223964580411365e-01, -2.400758277161838e+00,
		-2.549732539343734e+00, 4.374664141464968e+00, 2.938163982698783e+00}
	qd = [4]float64{7.784695709041462e-03, 3.224671290700398e-01, 2.445134137142996e+00,
		3.754408661907416e+00}
)

const quantileLow = 0.02425

// ZScore maps a service level to the standard normal quantile. It is
// continuous and strictly increasing over (0,1).
func ZScore(serviceLevel float64) (float64, error) {
	if math.IsNaN(serviceLevel) || serviceLevel <= 0 || serviceLevel >= 1 {
		return 0, domain.NewDomainError("service_level", "must be in (0,1), got %v", serviceLevel)
	}

	p := serviceLevel
	switch {
	case p < quantileLow:
		q := math.Sqrt(-2 * math.Log(p))
		return (((((qc[0]*q+qc[1])*q+qc[2])*q+qc[3])*q+qc[4])*q + qc[5]) /
			((((qd[0]*q+qd[1])*q+qd[2])*q+qd[3])*q + 1), nil
	case p <= 1-quantileLow:
		q := p - 0.5
		r := q * q
		return (((((qa[0]*r+qa[1])*r+qa[2])*r+qa[3])*r+qa[4])*r + qa[5]) * q /
			(((((qb[0]*r+qb[1])*r+qb[2])*r+qb[3])*r+qb[4])*r + 1), nil
	default:
		q := math.Sqrt(-2 * math.Log(1-p))
		return -(((((qc[0]*q+qc[1])*q+qc[2])*q+qc[3])*q+qc[4])*q + qc[5]) /
			((((qd[0]*q+qd[1])*q+qd[2])*q+qd[3])*q + 1), nil
	}
}

// Inputs are the demand statistics behind one safety-stock computation.
type Inputs struct {
	ServiceLevel   float64
	AvgLeadTime    float64 // days, > 0
	DemandStdDev   float64 // units/day, >= 0
	LeadTimeStdDev float64 // days, >= 0
	AvgDailyUsage  float64 // units/day, >= 0
}

// FromProfile builds Inputs from a demand profile and a service level.
func FromProfile(p domain.DemandProfile, serviceLevel float64) Inputs {
	return Inputs{
		ServiceLevel:   serviceLevel,
		AvgLeadTime:    p.AvgLeadTimeDays,
		DemandStdDev:   p.DemandStdDev,
		LeadTimeStdDev: p.LeadTimeStdDev,
		AvgDailyUsage:  p.AvgDailyUsage,
	}
}

func (in Inputs) validate() error {
	if !(in.AvgLeadTime > 0) {
		return domain.NewDomainError("avg_lead_time", "must be > 0, got %v", in.AvgLeadTime)
	}
	if in.DemandStdDev < 0 || math.IsNaN(in.DemandStdDev) {
		return domain.NewDomainError("demand_std_dev", "must be >= 0, got %v", in.DemandStdDev)
	}
	if in.LeadTimeStdDev < 0 || math.IsNaN(in.LeadTimeStdDev) {
		return domain.NewDomainError("lead_time_std_dev", "must be >= 0, got %v", in.LeadTimeStdDev)
	}
	if in.AvgDailyUsage < 0 || math.IsNaN(in.AvgDailyUsage) {
		return domain.NewDomainError("avg_daily_usage", "must be >= 0, got %v", in.AvgDailyUsage)
	}
	return nil
}

// SafetyStock = z * sqrt(L*sd^2 + (d*sL)^2). Service levels below 0.5 give a
// negative z; the result is floored at zero.
func SafetyStock(in Inputs) (float64, error) {
	if err := in.validate(); err != nil {
		return 0, err
	}
	z, err := ZScore(in.ServiceLevel)
	if err != nil {
		return 0, err
	}

	variance := in.AvgLeadTime*in.DemandStdDev*in.DemandStdDev +
		math.Pow(in.AvgDailyUsage*in.LeadTimeStdDev, 2)
	ss := z * math.Sqrt(variance)
	return math.Max(0, ss), nil
}

// ReorderPoint = d * L + safetyStock.
func ReorderPoint(in Inputs, safetyStock float64) (float64, error) {
	if err := in.validate(); err != nil {
		return 0, err
	}
	if safetyStock < 0 {
		return 0, domain.NewDomainError("safety_stock", "must be >= 0, got %v", safetyStock)
	}
	return in.AvgDailyUsage*in.AvgLeadTime + safetyStock, nil
}

// DaysCover returns onHand / avgDailyUsage, or +Inf when nothing is consumed.
func DaysCover(onHand, avgDailyUsage float64) float64 {
	if avgDailyUsage <= 0 {
		return math.Inf(1)
	}
	return onHand / avgDailyUsage
}
