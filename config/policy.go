package config

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// PolicyConfig is the single structured document holding every tunable of the
// policy engine, the scenario simulator, and the output contract. Unknown keys
// are rejected at load time so a typo can never silently fall back to a
// default.
type PolicyConfig struct {
	// Output contract
	RoundingDigits int `yaml:"rounding_digits"`

	// Policy engine thresholds
	UncertaintyHoldThreshold float64 `yaml:"uncertainty_hold_threshold"`
	HighUtilizationThreshold float64 `yaml:"high_utilization_threshold"`
	LowUtilizationThreshold  float64 `yaml:"low_utilization_threshold"`
	SurgeGain                float64 `yaml:"surge_gain"`
	DiscountGain             float64 `yaml:"discount_gain"`
	MaxSurgePct              float64 `yaml:"max_surge_pct"`
	MaxDiscountPct           float64 `yaml:"max_discount_pct"`
	CooldownWindowHours      float64 `yaml:"cooldown_window_hours"`
	RiskPctChangeThreshold   float64 `yaml:"risk_pct_change_threshold"`
	RiskUncertaintyThreshold float64 `yaml:"risk_uncertainty_threshold"`

	// Demand response
	ElasticityCoefficient float64            `yaml:"elasticity_coefficient"`
	SegmentElasticity     map[string]float64 `yaml:"segment_elasticity"`
	BasePrice             float64            `yaml:"base_price"`
	SegmentBasePrice      map[string]float64 `yaml:"segment_base_price"`

	// Aggressive strategy amplification
	AggressiveMultiplier     float64 `yaml:"aggressive_multiplier"`
	AggressiveMaxSurgePct    float64 `yaml:"aggressive_max_surge_pct"`
	AggressiveMaxDiscountPct float64 `yaml:"aggressive_max_discount_pct"`

	// Stress and customer risk
	StressUtilizationWeight float64 `yaml:"stress_utilization_weight"`
	StressLostDemandWeight  float64 `yaml:"stress_lost_demand_weight"`
	HighShockThreshold      float64 `yaml:"high_shock_threshold"`
	HighStressThreshold     float64 `yaml:"high_stress_threshold"`
}

// PolicyConfigError identifies the offending key of an invalid policy document
type PolicyConfigError struct {
	Key     string
	Message string
}

func (e *PolicyConfigError) Error() string {
	return fmt.Sprintf("policy config error [%s]: %s", e.Key, e.Message)
}

// DefaultPolicyConfig returns the built-in policy document
func DefaultPolicyConfig() *PolicyConfig {
	return &PolicyConfig{
		RoundingDigits: 4,

		UncertaintyHoldThreshold: 0.30,
		HighUtilizationThreshold: 0.85,
		LowUtilizationThreshold:  0.60,
		SurgeGain:                0.80,
		DiscountGain:             0.80,
		MaxSurgePct:              0.20,
		MaxDiscountPct:           0.25,
		CooldownWindowHours:      3,
		RiskPctChangeThreshold:   0.10,
		RiskUncertaintyThreshold: 0.20,

		ElasticityCoefficient: 0.50,
		SegmentElasticity: map[string]float64{
			"value":    1.25,
			"balanced": 0.80,
			"premium":  0.35,
		},
		BasePrice: 24.0,
		SegmentBasePrice: map[string]float64{
			"value":    18.0,
			"balanced": 24.0,
			"premium":  33.0,
		},

		AggressiveMultiplier:     1.40,
		AggressiveMaxSurgePct:    0.25,
		AggressiveMaxDiscountPct: 0.30,

		StressUtilizationWeight: 0.60,
		StressLostDemandWeight:  0.40,
		HighShockThreshold:      0.15,
		HighStressThreshold:     0.70,
	}
}

// LoadPolicyConfig loads the policy document from path, or the built-in
// defaults when path is empty. Any unknown key or invalid value aborts the
// run before the pipeline produces output.
func LoadPolicyConfig(path string) (*PolicyConfig, error) {
	if path == "" {
		return DefaultPolicyConfig(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy config %s: %w", path, err)
	}

	cfg, err := ParsePolicyConfig(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy config %s: %w", path, err)
	}
	return cfg, nil
}

// ParsePolicyConfig strictly decodes and validates a policy document
func ParsePolicyConfig(raw []byte) (*PolicyConfig, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)

	cfg := &PolicyConfig{}
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("invalid policy document: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast on a missing or incoherent option
func (c *PolicyConfig) Validate() error {
	if c.RoundingDigits < 0 || c.RoundingDigits > 12 {
		return &PolicyConfigError{Key: "rounding_digits", Message: "must be in [0, 12]"}
	}

	positive := []struct {
		key   string
		value float64
	}{
		{"uncertainty_hold_threshold", c.UncertaintyHoldThreshold},
		{"high_utilization_threshold", c.HighUtilizationThreshold},
		{"low_utilization_threshold", c.LowUtilizationThreshold},
		{"surge_gain", c.SurgeGain},
		{"discount_gain", c.DiscountGain},
		{"max_surge_pct", c.MaxSurgePct},
		{"max_discount_pct", c.MaxDiscountPct},
		{"cooldown_window_hours", c.CooldownWindowHours},
		{"risk_pct_change_threshold", c.RiskPctChangeThreshold},
		{"risk_uncertainty_threshold", c.RiskUncertaintyThreshold},
		{"elasticity_coefficient", c.ElasticityCoefficient},
		{"base_price", c.BasePrice},
		{"aggressive_max_surge_pct", c.AggressiveMaxSurgePct},
		{"aggressive_max_discount_pct", c.AggressiveMaxDiscountPct},
		{"stress_utilization_weight", c.StressUtilizationWeight},
		{"stress_lost_demand_weight", c.StressLostDemandWeight},
		{"high_shock_threshold", c.HighShockThreshold},
		{"high_stress_threshold", c.HighStressThreshold},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return &PolicyConfigError{Key: p.key, Message: "required and must be > 0"}
		}
	}

	if c.LowUtilizationThreshold >= c.HighUtilizationThreshold {
		return &PolicyConfigError{
			Key:     "low_utilization_threshold",
			Message: fmt.Sprintf("must be < high_utilization_threshold (%.2f)", c.HighUtilizationThreshold),
		}
	}
	if c.AggressiveMultiplier <= 1 {
		return &PolicyConfigError{Key: "aggressive_multiplier", Message: "must be > 1"}
	}
	if c.AggressiveMaxSurgePct < c.MaxSurgePct {
		return &PolicyConfigError{Key: "aggressive_max_surge_pct", Message: "aggressive band must be at least as wide as max_surge_pct"}
	}
	if c.AggressiveMaxDiscountPct < c.MaxDiscountPct {
		return &PolicyConfigError{Key: "aggressive_max_discount_pct", Message: "aggressive band must be at least as wide as max_discount_pct"}
	}
	// A hold forced by the uncertainty guardrail must always carry at least a
	// MEDIUM risk flag, which requires the risk threshold to sit at or below
	// the hold threshold.
	if c.RiskUncertaintyThreshold > c.UncertaintyHoldThreshold {
		return &PolicyConfigError{Key: "risk_uncertainty_threshold", Message: "must be <= uncertainty_hold_threshold"}
	}
	if math.Abs(c.StressUtilizationWeight+c.StressLostDemandWeight-1) > 1e-9 {
		return &PolicyConfigError{Key: "stress_utilization_weight", Message: "stress weights must sum to 1"}
	}
	for segment, e := range c.SegmentElasticity {
		if e <= 0 {
			return &PolicyConfigError{Key: "segment_elasticity." + segment, Message: "must be > 0"}
		}
	}
	for segment, p := range c.SegmentBasePrice {
		if p <= 0 {
			return &PolicyConfigError{Key: "segment_base_price." + segment, Message: "must be > 0"}
		}
	}

	return nil
}

// ElasticityFor returns the segment elasticity override or the global coefficient
func (c *PolicyConfig) ElasticityFor(segmentID string) float64 {
	if e, ok := c.SegmentElasticity[segmentID]; ok {
		return e
	}
	return c.ElasticityCoefficient
}

// BasePriceFor returns the segment base price override or the global base price
func (c *PolicyConfig) BasePriceFor(segmentID string) float64 {
	if p, ok := c.SegmentBasePrice[segmentID]; ok {
		return p
	}
	return c.BasePrice
}

// CooldownWindow returns the cooldown window as a duration
func (c *PolicyConfig) CooldownWindow() time.Duration {
	return time.Duration(c.CooldownWindowHours * float64(time.Hour))
}
