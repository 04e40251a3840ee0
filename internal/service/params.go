package service

import (
	"github.com/andresuchdata/supplyengine/internal/config"
	"github.com/andresuchdata/supplyengine/internal/domain"
	"github.com/andresuchdata/supplyengine/internal/engine/emergency"
	"github.com/andresuchdata/supplyengine/internal/engine/spike"
	"github.com/andresuchdata/supplyengine/internal/engine/vendor"
)

// VendorParams translates engine config into pricing constants.
func VendorParams(cfg config.EngineConfig) vendor.Params {
	return vendor.Params{
		RiskAversion:     cfg.RiskAversion,
		DutyRate:         cfg.DutyRate,
		HoldingCostRate:  cfg.HoldingCostRate,
		BestValueEpsilon: cfg.BestValueEpsilon,
		RushSurchargePct: cfg.RushSurchargePct,
		ExpediteFactor:   cfg.ExpediteFactor,
		MinExpediteHours: cfg.MinExpediteHours,
	}
}

func SpikeConfig(cfg config.EngineConfig) spike.Config {
	return spike.Config{
		Threshold: cfg.SpikeThreshold,
		Smoothing: cfg.BaselineSmoothing,
	}
}

func EmergencyConfig(cfg config.EngineConfig) emergency.Config {
	out := emergency.DefaultConfig()
	if cfg.CoverWindowHours > 0 {
		out.CoverWindowHours = cfg.CoverWindowHours
	}
	if cfg.LostSalesHorizonHours > 0 {
		out.LostSalesHorizonHours = cfg.LostSalesHorizonHours
	}
	return out
}

// PolicyProfile is the profile the registry starts from.
func PolicyProfile(cfg config.EngineConfig) domain.PolicyProfile {
	return domain.PolicyProfile{
		GlobalServiceLevel:    cfg.ServiceLevel,
		SafetyStockBufferPct:  cfg.SafetyStockBufferPct,
		HoldingCostRate:       cfg.HoldingCostRate,
		AutoTransferThreshold: cfg.AutoTransferThreshold,
	}
}
