package domain

// PolicyProfile is the global replenishment policy. It is a value: edits go
// through the With* methods, which return modified copies, and a draft only
// takes effect when applied through the policy registry.
type PolicyProfile struct {
	GlobalServiceLevel    float64              `json:"global_service_level" yaml:"global_service_level"`
	SafetyStockBufferPct  float64              `json:"safety_stock_buffer_pct" yaml:"safety_stock_buffer_pct"`
	HoldingCostRate       float64              `json:"holding_cost_rate" yaml:"holding_cost_rate"`
	AutoTransferThreshold float64              `json:"auto_transfer_threshold" yaml:"auto_transfer_threshold"`
	CategoryServiceLevels map[Category]float64 `json:"category_service_levels,omitempty" yaml:"category_service_levels,omitempty"`
}

// DefaultPolicy returns the out-of-the-box profile.
func DefaultPolicy() PolicyProfile {
	return PolicyProfile{
		GlobalServiceLevel:    0.95,
		SafetyStockBufferPct:  0,
		HoldingCostRate:       0.25,
		AutoTransferThreshold: 0.2,
	}
}

func (p PolicyProfile) Validate() error {
	if p.GlobalServiceLevel <= 0 || p.GlobalServiceLevel >= 1 {
		return NewDomainError("policy.global_service_level", "must be in (0,1), got %.4f", p.GlobalServiceLevel)
	}
	if p.SafetyStockBufferPct < 0 {
		return NewDomainError("policy.safety_stock_buffer_pct", "must be >= 0, got %.2f", p.SafetyStockBufferPct)
	}
	if p.HoldingCostRate < 0 {
		return NewDomainError("policy.holding_cost_rate", "must be >= 0, got %.4f", p.HoldingCostRate)
	}
	if p.AutoTransferThreshold < 0 || p.AutoTransferThreshold > 1 {
		return NewDomainError("policy.auto_transfer_threshold", "must be in [0,1], got %.4f", p.AutoTransferThreshold)
	}
	for c, sl := range p.CategoryServiceLevels {
		if !c.Valid() {
			return NewDomainError("policy.category_service_levels", "unknown category %q", c)
		}
		if sl <= 0 || sl >= 1 {
			return NewDomainError("policy.category_service_levels", "%s must be in (0,1), got %.4f", c, sl)
		}
	}
	return nil
}

// ServiceLevelFor returns the category override when set, else the global level.
func (p PolicyProfile) ServiceLevelFor(c Category) float64 {
	if sl, ok := p.CategoryServiceLevels[c]; ok {
		return sl
	}
	return p.GlobalServiceLevel
}

// Clone returns a copy that shares no maps with p.
func (p PolicyProfile) Clone() PolicyProfile {
	out := p
	if p.CategoryServiceLevels != nil {
		out.CategoryServiceLevels = make(map[Category]float64, len(p.CategoryServiceLevels))
		for k, v := range p.CategoryServiceLevels {
			out.CategoryServiceLevels[k] = v
		}
	}
	return out
}

func (p PolicyProfile) WithServiceLevel(sl float64) PolicyProfile {
	out := p.Clone()
	out.GlobalServiceLevel = sl
	return out
}

func (p PolicyProfile) WithBufferPct(pct float64) PolicyProfile {
	out := p.Clone()
	out.SafetyStockBufferPct = pct
	return out
}

func (p PolicyProfile) WithHoldingCostRate(rate float64) PolicyProfile {
	out := p.Clone()
	out.HoldingCostRate = rate
	return out
}

func (p PolicyProfile) WithAutoTransferThreshold(t float64) PolicyProfile {
	out := p.Clone()
	out.AutoTransferThreshold = t
	return out
}

func (p PolicyProfile) WithCategoryServiceLevel(c Category, sl float64) PolicyProfile {
	out := p.Clone()
	if out.CategoryServiceLevels == nil {
		out.CategoryServiceLevels = make(map[Category]float64)
	}
	out.CategoryServiceLevels[c] = sl
	return out
}
