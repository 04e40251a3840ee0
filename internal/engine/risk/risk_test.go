package risk

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/supplyengine/internal/domain"
)

func TestZScore_KnownQuantiles(t *testing.T) {
	cases := []struct {
		level float64
		want  float64
	}{
		{0.5, 0},
		{0.80, 0.8416},
		{0.90, 1.2816},
		{0.95, 1.6449},
		{0.975, 1.9600},
		{0.99, 2.3263},
		{0.999, 3.0902},
		{0.01, -2.3263},
	}

	for _, tc := range cases {
		z, err := ZScore(tc.level)
		require.NoError(t, err)
		assert.InDelta(t, tc.want, z, 1e-3, "service level %v", tc.level)
	}
}

func TestZScore_OutsideDomain(t *testing.T) {
	for _, level := range []float64{0, 1, -0.1, 1.2, math.NaN()} {
		_, err := ZScore(level)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrDomain), "level %v", level)
	}
}

func TestZScore_MonotonicAcrossRegions(t *testing.T) {
	prev := math.Inf(-1)
	for sl := 0.001; sl < 1; sl += 0.001 {
		z, err := ZScore(sl)
		require.NoError(t, err)
		assert.Greater(t, z, prev, "service level %v", sl)
		prev = z
	}
}

func TestSafetyStock_Scenario(t *testing.T) {
	in := Inputs{
		ServiceLevel:   0.95,
		AvgLeadTime:    3,
		DemandStdDev:   5,
		LeadTimeStdDev: 1,
		AvgDailyUsage:  25,
	}

	ss, err := SafetyStock(in)
	require.NoError(t, err)
	// 1.6449 * sqrt(3*25 + 25^2)
	assert.InDelta(t, 1.6449*math.Sqrt(700), ss, 0.01)
	assert.Equal(t, 44.0, math.Round(ss))

	rop, err := ReorderPoint(in, math.Round(ss))
	require.NoError(t, err)
	assert.Equal(t, 75+math.Round(ss), rop)
}

func TestSafetyStock_MonotonicInServiceLevel(t *testing.T) {
	base := Inputs{AvgLeadTime: 4, DemandStdDev: 3, LeadTimeStdDev: 0.5, AvgDailyUsage: 12}

	prev := -1.0
	for sl := 0.50; sl < 0.999; sl += 0.0125 {
		in := base
		in.ServiceLevel = sl
		ss, err := SafetyStock(in)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, ss, prev, "service level %v", sl)
		prev = ss
	}
}

func TestSafetyStock_MonotonicInDeviations(t *testing.T) {
	base := Inputs{ServiceLevel: 0.9, AvgLeadTime: 2, AvgDailyUsage: 10}

	prev := -1.0
	for sd := 0.0; sd <= 10; sd += 0.5 {
		in := base
		in.DemandStdDev = sd
		in.LeadTimeStdDev = sd / 4
		ss, err := SafetyStock(in)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, ss, prev)
		assert.GreaterOrEqual(t, ss, 0.0)
		prev = ss
	}
}

func TestSafetyStock_LowServiceLevelFloorsAtZero(t *testing.T) {
	ss, err := SafetyStock(Inputs{ServiceLevel: 0.3, AvgLeadTime: 2, DemandStdDev: 4, AvgDailyUsage: 10})
	require.NoError(t, err)
	assert.Equal(t, 0.0, ss)
}

func TestReorderPoint_Identity(t *testing.T) {
	inputs := []Inputs{
		{ServiceLevel: 0.8, AvgLeadTime: 1, DemandStdDev: 0, LeadTimeStdDev: 0, AvgDailyUsage: 0},
		{ServiceLevel: 0.95, AvgLeadTime: 7, DemandStdDev: 2.5, LeadTimeStdDev: 1.5, AvgDailyUsage: 13.3},
		{ServiceLevel: 0.99, AvgLeadTime: 0.5, DemandStdDev: 40, LeadTimeStdDev: 0.1, AvgDailyUsage: 250},
	}

	for _, in := range inputs {
		ss, err := SafetyStock(in)
		require.NoError(t, err)
		rop, err := ReorderPoint(in, ss)
		require.NoError(t, err)
		assert.Equal(t, in.AvgDailyUsage*in.AvgLeadTime+ss, rop)
		assert.GreaterOrEqual(t, rop, ss)
	}
}

func TestSafetyStock_InvalidInputs(t *testing.T) {
	cases := []struct {
		name string
		in   Inputs
	}{
		{"zero lead time", Inputs{ServiceLevel: 0.9, AvgLeadTime: 0}},
		{"negative demand deviation", Inputs{ServiceLevel: 0.9, AvgLeadTime: 1, DemandStdDev: -1}},
		{"negative lead time deviation", Inputs{ServiceLevel: 0.9, AvgLeadTime: 1, LeadTimeStdDev: -1}},
		{"negative usage", Inputs{ServiceLevel: 0.9, AvgLeadTime: 1, AvgDailyUsage: -3}},
		{"service level out of range", Inputs{ServiceLevel: 1, AvgLeadTime: 1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := SafetyStock(tc.in)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrDomain)
		})
	}
}

func TestDaysCover(t *testing.T) {
	assert.Equal(t, 4.0, DaysCover(100, 25))
	assert.True(t, math.IsInf(DaysCover(100, 0), 1))
	assert.True(t, math.IsInf(DaysCover(0, 0), 1))
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name  string
		level Level
		want  domain.StatusCode
	}{
		{"below safety stock", Level{OnHand: 10, SafetyStock: 20, ReorderPoint: 50, DaysCover: 1.5}, domain.StatusStockoutRisk},
		{"critical cover", Level{OnHand: 30, SafetyStock: 10, ReorderPoint: 50, DaysCover: 2}, domain.StatusStockoutRisk},
		{"at reorder point", Level{OnHand: 50, SafetyStock: 10, ReorderPoint: 50, DaysCover: 5}, domain.StatusLow},
		{"healthy", Level{OnHand: 120, SafetyStock: 10, ReorderPoint: 50, DaysCover: 12}, domain.StatusOK},
		{"long cover", Level{OnHand: 1000, SafetyStock: 10, ReorderPoint: 50, DaysCover: 100}, domain.StatusExcess},
		{"over bulk capacity", Level{OnHand: 300, SafetyStock: 10, ReorderPoint: 50, DaysCover: 20, BulkCapacity: 200}, domain.StatusExcess},
		{"idle with stock", Level{OnHand: 30, DaysCover: math.Inf(1)}, domain.StatusExcess},
		{"idle and empty", Level{OnHand: 0, DaysCover: math.Inf(1)}, domain.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := Classify(tc.level)
			assert.Equal(t, tc.want, st.Code)
			assert.NotEmpty(t, st.BadgeColor)
			assert.NotEmpty(t, st.Explanation)
		})
	}
}

func TestClassify_ScoreBandsOrderBySeverity(t *testing.T) {
	stockout := Classify(Level{OnHand: 5, SafetyStock: 20, ReorderPoint: 60, DaysCover: 0.5})
	low := Classify(Level{OnHand: 40, SafetyStock: 20, ReorderPoint: 60, DaysCover: 4})
	excess := Classify(Level{OnHand: 900, SafetyStock: 20, ReorderPoint: 60, DaysCover: 90})
	ok := Classify(Level{OnHand: 120, SafetyStock: 20, ReorderPoint: 60, DaysCover: 12})

	assert.Greater(t, stockout.RiskScore, low.RiskScore)
	assert.Greater(t, low.RiskScore, excess.RiskScore)
	assert.Greater(t, excess.RiskScore, ok.RiskScore)
}

func TestSortByRisk_TieBreaksOnDaysCover(t *testing.T) {
	st := domain.PositionStatus{Code: domain.StatusLow, RiskScore: 60}
	positions := []domain.InventoryPosition{
		{LocationID: "b", Item: domain.Item{ID: "x"}, DaysCover: 5, Status: st},
		{LocationID: "a", Item: domain.Item{ID: "x"}, DaysCover: 3, Status: st},
		{LocationID: "c", Item: domain.Item{ID: "x"}, DaysCover: 1, Status: domain.PositionStatus{RiskScore: 90}},
		{LocationID: "a", Item: domain.Item{ID: "y"}, DaysCover: 3, Status: st},
	}

	SortByRisk(positions)

	got := make([]string, len(positions))
	for i, p := range positions {
		got[i] = p.Key().String()
	}
	assert.Equal(t, []string{"c|x", "a|x", "a|y", "b|x"}, got)
}
