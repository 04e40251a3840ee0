package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/supplyengine/internal/config"
	"github.com/andresuchdata/supplyengine/internal/domain"
	"github.com/andresuchdata/supplyengine/internal/metrics"
	"github.com/andresuchdata/supplyengine/internal/repository/memory"
	"github.com/andresuchdata/supplyengine/internal/service"
)

func fileConfig(path string) *config.Config {
	return &config.Config{
		Snapshot: config.SnapshotConfig{Source: "file", Path: path},
		Engine: config.EngineConfig{
			SpikeThreshold:        2,
			BaselineSmoothing:     0.2,
			RiskAversion:          0.5,
			DutyRate:              0.08,
			BestValueEpsilon:      0.01,
			RushSurchargePct:      25,
			ExpediteFactor:        0.5,
			MinExpediteHours:      4,
			ServiceLevel:          0.95,
			HoldingCostRate:       0.25,
			AutoTransferThreshold: 0.2,
		},
	}
}

func TestBuildFromFile(t *testing.T) {
	e, err := Build(context.Background(), fileConfig("../../fixtures/demo.yaml"), metrics.NewRecorder())
	require.NoError(t, err)
	defer e.Close()

	assert.IsType(t, &memory.Store{}, e.Ledger)
	assert.NotNil(t, e.Detector)

	positions, err := e.Service.Positions(context.Background(), service.PositionFilter{})
	require.NoError(t, err)
	assert.Len(t, positions, 13)
	assert.Equal(t, int64(1), e.Service.Policy().Version)
}

func TestBuildRejectsUnknownSource(t *testing.T) {
	cfg := fileConfig("")
	cfg.Snapshot.Source = "s3"
	_, err := Build(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, `unknown snapshot source "s3"`)
}

func TestBuildRejectsInvalidPolicy(t *testing.T) {
	cfg := fileConfig("../../fixtures/demo.yaml")
	cfg.Engine.ServiceLevel = 1.5
	_, err := Build(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "initial policy")
}

func TestBuildMissingFile(t *testing.T) {
	_, err := Build(context.Background(), fileConfig("does-not-exist.yaml"), nil)
	assert.Error(t, err)
}

func TestBuildWithBaselines(t *testing.T) {
	ctx := context.Background()
	e, err := Build(ctx, fileConfig("../../fixtures/demo.yaml"), nil,
		WithBaselines(map[domain.PairKey]float64{{LocationID: "downtown", ItemID: "milk"}: 5}))
	require.NoError(t, err)
	defer e.Close()

	res, err := e.Service.DetectSpikes(ctx)
	require.NoError(t, err)
	require.Len(t, res.Raised, 1)
	assert.Equal(t, "downtown", res.Raised[0].LocationID)
	assert.InDelta(t, 3.0, res.Raised[0].Multiplier, 1e-9)
}
