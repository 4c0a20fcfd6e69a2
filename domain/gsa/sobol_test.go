package gsa

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZeroVariance(t *testing.T) {
	tests := []struct {
		name     string
		mean     float64
		variance float64
		want     bool
	}{
		{"exact zero", 7, 0, true},
		{"rounding noise", 1e3, 1e-30, true},
		{"tiny output", 3e-7, 1.7e-14, false},
		{"centered output", 0, 1e-20, false},
		{"unit output", 1, 1.5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ZeroVariance(tt.mean, tt.variance))
		})
	}
}
