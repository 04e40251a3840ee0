package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/supplyengine/internal/domain"
)

const fixture = "../../fixtures/demo.yaml"

func run(t *testing.T, args ...string) ([]byte, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"engine", "--source", "file", "--snapshot", fixture}, args...))
	return out.Bytes(), err
}

func TestPositionsCommand(t *testing.T) {
	out, err := run(t, "positions", "--location", "downtown", "--item", "milk")
	require.NoError(t, err)

	var positions []map[string]any
	require.NoError(t, json.Unmarshal(out, &positions))
	require.Len(t, positions, 1)
	assert.Equal(t, 119.0, positions[0]["reorder_point"])
}

func TestRouteCommand(t *testing.T) {
	out, err := run(t, "route", "--from", "harbor", "--to", "uptown")
	require.NoError(t, err)

	var path struct {
		Routes []struct {
			ID string `json:"id"`
		} `json:"routes"`
	}
	require.NoError(t, json.Unmarshal(out, &path))
	require.Len(t, path.Routes, 2)
	assert.Equal(t, "r-hd", path.Routes[0].ID)
	assert.Equal(t, "r-du", path.Routes[1].ID)

	_, err = run(t, "route", "--from", "harbor", "--to", "moon")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEmergencyCommand(t *testing.T) {
	_, err := run(t, "emergency", "--location", "downtown", "--item", "milk")
	assert.ErrorContains(t, err, "no active spike")

	out, err := run(t, "--baseline", "downtown|milk=5",
		"emergency", "--location", "downtown", "--item", "milk", "--accept", "courier")
	require.NoError(t, err)

	var acc struct {
		Option  domain.EmergencyOption `json:"option"`
		OnOrder float64                `json:"on_order"`
	}
	require.NoError(t, json.Unmarshal(out, &acc))
	assert.Equal(t, domain.OptionCourier, acc.Option.Kind)
	assert.Equal(t, 360.0, acc.OnOrder)
}

func TestConsumeCommand(t *testing.T) {
	out, err := run(t, "--baseline", "downtown|milk=5",
		"consume", "--location", "downtown", "--item", "milk", "--quantity", "10", "--rate", "20")
	require.NoError(t, err)

	var got struct {
		Record domain.InventoryRecord `json:"record"`
		Pass   struct {
			Active []domain.SpikeSignal `json:"active"`
		} `json:"pass"`
	}
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, 20.0, got.Record.OnHand)
	require.Len(t, got.Record.Lots, 1)
	assert.Equal(t, 20.0, got.Record.Lots[0].Quantity)

	require.Len(t, got.Pass.Active, 1)
	sig := got.Pass.Active[0]
	assert.Equal(t, 4.0, sig.Multiplier)
	assert.Equal(t, 20.0, sig.OnHand)
	assert.Equal(t, time.Hour, sig.ShortageAt.Sub(sig.DetectedAt))

	_, err = run(t, "consume", "--location", "downtown", "--item", "milk", "--quantity", "500")
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestPolicyApplyCommand(t *testing.T) {
	out, err := run(t, "policy", "apply", "--service-level", "0.97", "--based-on", "1")
	require.NoError(t, err)

	var applied struct {
		Version int64                `json:"version"`
		Profile domain.PolicyProfile `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(out, &applied))
	assert.Equal(t, int64(2), applied.Version)
	assert.Equal(t, 0.97, applied.Profile.GlobalServiceLevel)

	_, err = run(t, "policy", "apply", "--service-level", "0.97", "--based-on", "4")
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
}

func TestReportExportCommand(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "report", "export", "--out", dir)
	require.NoError(t, err)

	var res struct {
		Objects []string `json:"objects"`
	}
	require.NoError(t, json.Unmarshal(out, &res))
	require.NotEmpty(t, res.Objects)
	for _, key := range res.Objects {
		_, err := os.Stat(filepath.Join(dir, filepath.FromSlash(key)))
		assert.NoError(t, err, key)
	}
}

func TestParseBaselines(t *testing.T) {
	got, err := parseBaselines([]string{"downtown|milk=5", " harbor|oat = 1.5"})
	require.NoError(t, err)
	assert.Equal(t, map[domain.PairKey]float64{
		{LocationID: "downtown", ItemID: "milk"}: 5,
		{LocationID: "harbor", ItemID: "oat"}:    1.5,
	}, got)

	for _, bad := range []string{"downtown=5", "downtown|milk", "downtown|milk=-1", "|milk=2"} {
		_, err := parseBaselines([]string{bad})
		assert.Error(t, err, bad)
	}
}
