package helpers

import "testing"

func TestRoundHalfUp(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		digits   int
		expected float64
	}{
		{"exact half rounds up", 0.12345, 4, 0.1235},
		{"below half rounds down", 0.12344, 4, 0.1234},
		{"negative half rounds away from zero", -0.12345, 4, -0.1235},
		{"zero stays zero", 0.0, 4, 0.0},
		{"revenue to cents", 1234.565, 2, 1234.57},
		{"no-op on already rounded", 104.0, 4, 104.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RoundHalfUp(tt.value, tt.digits)
			if got != tt.expected {
				t.Errorf("RoundHalfUp(%v, %d) = %v, want %v", tt.value, tt.digits, got, tt.expected)
			}
		})
	}
}

func TestRoundHalfUpDeterminism(t *testing.T) {
	// The rounding boundary is where float noise would leak into outputs;
	// the same input must always produce the same rounded value.
	value := 0.1 + 0.2
	first := RoundHalfUp(value, 6)
	for i := 0; i < 100; i++ {
		if got := RoundHalfUp(value, 6); got != first {
			t.Fatalf("rounding not stable: got %v, want %v", got, first)
		}
	}
	if first != 0.3 {
		t.Errorf("RoundHalfUp(0.1+0.2, 6) = %v, want 0.3", first)
	}
}

func TestRoundHalfUpString(t *testing.T) {
	if got := RoundHalfUpString(-0.08, 4); got != "-0.0800" {
		t.Errorf("RoundHalfUpString(-0.08, 4) = %q, want \"-0.0800\"", got)
	}
}
