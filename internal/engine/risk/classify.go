package risk

import (
	"fmt"
	"math"
	"sort"

	"github.com/andresuchdata/supplyengine/internal/domain"
)

// Risk score bands. Each status occupies a disjoint band so sorting by score
// also sorts by severity.
const (
	bandStockout = 75.0
	bandLow      = 50.0
	bandExcess   = 25.0
	bandWidth    = 25.0
)

var badgeColors = map[domain.StatusCode]string{
	domain.StatusStockoutRisk: "red",
	domain.StatusLow:          "amber",
	domain.StatusExcess:       "blue",
	domain.StatusOK:           "green",
}

// Level is the stock picture classified by Classify.
type Level struct {
	OnHand       float64
	SafetyStock  float64
	ReorderPoint float64
	DaysCover    float64
	BulkCapacity float64 // 0 disables the capacity check
}

// Classify maps a stock level to a status. Rules are evaluated in order:
// STOCKOUT_RISK, LOW, EXCESS, OK.
func Classify(l Level) domain.PositionStatus {
	// Without demand nothing can run out.
	noDemand := math.IsInf(l.DaysCover, 1)

	switch {
	case !noDemand && (l.OnHand <= l.SafetyStock || l.DaysCover <= CriticalDaysCover):
		// Deeper below safety stock and fewer days left push the score up.
		severity := 1.0
		if l.SafetyStock > 0 {
			severity = 1 - clamp01(l.OnHand/l.SafetyStock)
		}
		severity = math.Max(severity, 1-clamp01(l.DaysCover/CriticalDaysCover))
		return status(domain.StatusStockoutRisk, bandStockout+bandWidth*severity,
			fmt.Sprintf("%.0f on hand against safety stock %.0f, %s of cover", l.OnHand, l.SafetyStock, formatDays(l.DaysCover)))

	case !noDemand && l.OnHand <= l.ReorderPoint:
		span := l.ReorderPoint - l.SafetyStock
		severity := 0.0
		if span > 0 {
			severity = clamp01((l.ReorderPoint - l.OnHand) / span)
		}
		return status(domain.StatusLow, bandLow+bandWidth*severity,
			fmt.Sprintf("%.0f on hand is at or below reorder point %.0f", l.OnHand, l.ReorderPoint))

	case (l.OnHand > 0 && l.DaysCover > ExcessDaysCover) || (l.BulkCapacity > 0 && l.OnHand > l.BulkCapacity):
		severity := 0.0
		if noDemand {
			severity = 1
		} else if l.DaysCover > ExcessDaysCover {
			severity = clamp01((l.DaysCover - ExcessDaysCover) / ExcessDaysCover)
		}
		if l.BulkCapacity > 0 && l.OnHand > l.BulkCapacity {
			severity = math.Max(severity, clamp01((l.OnHand-l.BulkCapacity)/l.BulkCapacity))
		}
		return status(domain.StatusExcess, bandExcess+bandWidth*severity,
			fmt.Sprintf("%s of cover exceeds %.0f days or bulk capacity", formatDays(l.DaysCover), ExcessDaysCover))
	}

	// Healthy stock scores higher the closer it sits to the reorder point.
	severity := 0.0
	if l.ReorderPoint > 0 && l.OnHand > 0 {
		severity = clamp01(l.ReorderPoint / l.OnHand)
	}
	return status(domain.StatusOK, bandWidth*severity*0.99,
		fmt.Sprintf("%.0f on hand above reorder point %.0f", l.OnHand, l.ReorderPoint))
}

func status(code domain.StatusCode, score float64, explanation string) domain.PositionStatus {
	return domain.PositionStatus{
		Code:        code,
		RiskScore:   math.Round(score*100) / 100,
		BadgeColor:  badgeColors[code],
		Explanation: explanation,
	}
}

// SortByRisk orders positions by risk score descending, then lower days of
// cover first, then location and item id.
func SortByRisk(positions []domain.InventoryPosition) {
	sort.SliceStable(positions, func(i, j int) bool {
		a, b := positions[i], positions[j]
		if a.Status.RiskScore != b.Status.RiskScore {
			return a.Status.RiskScore > b.Status.RiskScore
		}
		if a.DaysCover != b.DaysCover {
			return a.DaysCover < b.DaysCover
		}
		if a.LocationID != b.LocationID {
			return a.LocationID < b.LocationID
		}
		return a.Item.ID < b.Item.ID
	})
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

func formatDays(d float64) string {
	if math.IsInf(d, 1) {
		return "unbounded days"
	}
	return fmt.Sprintf("%.1f days", d)
}
