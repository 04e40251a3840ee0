package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/supplyengine/internal/engine/spike"
)

// SignalLogger publishes spike transitions to the log.
type SignalLogger struct{}

var _ spike.SignalSink = SignalLogger{}

func (SignalLogger) Publish(_ context.Context, res spike.PassResult) error {
	for _, sig := range res.Raised {
		log.Warn().
			Str("signal_id", sig.ID).
			Str("location_id", sig.LocationID).
			Str("item_id", sig.ItemID).
			Float64("multiplier", sig.Multiplier).
			Time("shortage_at", sig.ShortageAt).
			Msg("demand spike raised")
	}
	for _, sig := range res.Resolved {
		log.Info().
			Str("signal_id", sig.ID).
			Str("location_id", sig.LocationID).
			Str("item_id", sig.ItemID).
			Msg("demand spike resolved")
	}
	return nil
}
