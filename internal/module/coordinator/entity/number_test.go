package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareAmounts(t *testing.T) {
	tests := []struct {
		name string
		a    float64
		b    float64
		want int
	}{
		{"equal", 10.00, 10.00, 0},
		{"equal within epsilon", 9.98, 10.0 - 0.01 - 0.01, 0},
		{"float artifacts ignored", 0.1 + 0.2, 0.3, 0},
		{"less", 9.97, 9.98, -1},
		{"greater", 100.01, 100.00, 1},
		{"cent difference detected", 0.01, 0.02, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CompareAmounts(tt.a, tt.b))
		})
	}
}

func TestAmountsEqual(t *testing.T) {
	assert.True(t, AmountsEqual(50, 50))
	assert.True(t, AmountsEqual(0.3, 0.1+0.2))
	assert.False(t, AmountsEqual(50, 50.01))
}
