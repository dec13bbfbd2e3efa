package config

import (
	"strings"
	"testing"
)

func TestDefaultPolicyConfigIsValid(t *testing.T) {
	if err := DefaultPolicyConfig().Validate(); err != nil {
		t.Fatalf("default policy config must validate: %v", err)
	}
}

func TestParsePolicyConfigRejectsUnknownKeys(t *testing.T) {
	doc := `
rounding_digits: 4
uncertainty_hold_threshold: 0.3
surge_gainn: 0.8
`
	_, err := ParsePolicyConfig([]byte(doc))
	if err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
	if !strings.Contains(err.Error(), "surge_gainn") {
		t.Errorf("error should name the unknown key, got: %v", err)
	}
}

func TestParsePolicyConfigRejectsMissingThreshold(t *testing.T) {
	// A document without high_utilization_threshold leaves it at zero,
	// which validation must treat as missing.
	cfg := DefaultPolicyConfig()
	cfg.HighUtilizationThreshold = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected missing threshold to fail validation")
	}
	if !strings.Contains(err.Error(), "high_utilization_threshold") {
		t.Errorf("error should identify the offending key, got: %v", err)
	}
}

func TestValidateRejectsInvertedUtilizationBand(t *testing.T) {
	cfg := DefaultPolicyConfig()
	cfg.LowUtilizationThreshold = 0.90
	cfg.HighUtilizationThreshold = 0.85

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected low >= high utilization band to fail validation")
	}
}

func TestValidateRejectsNarrowAggressiveBand(t *testing.T) {
	cfg := DefaultPolicyConfig()
	cfg.AggressiveMaxSurgePct = cfg.MaxSurgePct / 2

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected aggressive band narrower than base band to fail validation")
	}
}

func TestValidateRejectsNonAmplifyingMultiplier(t *testing.T) {
	cfg := DefaultPolicyConfig()
	cfg.AggressiveMultiplier = 1.0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected multiplier <= 1 to fail validation")
	}
}

func TestValidateRejectsUnbalancedStressWeights(t *testing.T) {
	cfg := DefaultPolicyConfig()
	cfg.StressUtilizationWeight = 0.6
	cfg.StressLostDemandWeight = 0.6

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected stress weights not summing to 1 to fail validation")
	}
	if !strings.Contains(err.Error(), "stress_utilization_weight") {
		t.Errorf("error should identify the offending key, got: %v", err)
	}
}

func TestSegmentOverrides(t *testing.T) {
	cfg := DefaultPolicyConfig()

	if got := cfg.ElasticityFor("value"); got != 1.25 {
		t.Errorf("ElasticityFor(value) = %v, want 1.25", got)
	}
	if got := cfg.ElasticityFor("unknown-segment"); got != cfg.ElasticityCoefficient {
		t.Errorf("ElasticityFor(unknown) = %v, want global %v", got, cfg.ElasticityCoefficient)
	}
	if got := cfg.BasePriceFor("premium"); got != 33.0 {
		t.Errorf("BasePriceFor(premium) = %v, want 33.0", got)
	}
}

func TestParsePolicyConfigFullDocument(t *testing.T) {
	doc := `
rounding_digits: 6
uncertainty_hold_threshold: 0.42
high_utilization_threshold: 0.88
low_utilization_threshold: 0.55
surge_gain: 0.9
discount_gain: 0.7
max_surge_pct: 0.18
max_discount_pct: 0.22
cooldown_window_hours: 2
risk_pct_change_threshold: 0.12
risk_uncertainty_threshold: 0.25
elasticity_coefficient: 0.6
segment_elasticity:
  value: 1.1
base_price: 20.0
segment_base_price:
  value: 15.0
aggressive_multiplier: 1.3
aggressive_max_surge_pct: 0.24
aggressive_max_discount_pct: 0.28
stress_utilization_weight: 0.5
stress_lost_demand_weight: 0.5
high_shock_threshold: 0.2
high_stress_threshold: 0.65
`
	cfg, err := ParsePolicyConfig([]byte(doc))
	if err != nil {
		t.Fatalf("full document should parse: %v", err)
	}
	if cfg.RoundingDigits != 6 {
		t.Errorf("rounding_digits = %d, want 6", cfg.RoundingDigits)
	}
	if cfg.CooldownWindow().Hours() != 2 {
		t.Errorf("cooldown window = %v, want 2h", cfg.CooldownWindow())
	}
}
