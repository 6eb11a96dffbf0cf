package oddsmath

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmericanToImpliedProbability(t *testing.T) {
	tests := []struct {
		name     string
		american int
		expected float64
		wantErr  bool
	}{
		{name: "standard juice", american: -110, expected: 0.5238},
		{name: "even money", american: 100, expected: 0.5},
		{name: "underdog", american: 150, expected: 0.4},
		{name: "favourite", american: -200, expected: 0.6667},
		{name: "zero", american: 0, wantErr: true},
		{name: "inside the 100 band", american: 50, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AmericanToImpliedProbability(tt.american)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, got, 0.0001)
		})
	}
}

func TestFairMoneylineProbabilities(t *testing.T) {
	home, away, err := FairMoneylineProbabilities(-110, -110)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, home, 1e-9)
	assert.InDelta(t, 0.5, away, 1e-9)

	home, away, err = FairMoneylineProbabilities(-200, 170)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, home+away, 1e-9)
	assert.Greater(t, home, away)

	_, _, err = FairMoneylineProbabilities(0, 100)
	assert.Error(t, err)
}

func TestRemoveVigRejectsNoVigMarket(t *testing.T) {
	_, _, err := RemoveVigMultiplicative(0.4, 0.5)
	assert.Error(t, err)
}

func TestProfitPerUnit(t *testing.T) {
	p, err := ProfitPerUnit(StandardPrice)
	require.NoError(t, err)
	assert.InDelta(t, 100.0/110.0, p, 1e-9)
}

func TestStandardROI(t *testing.T) {
	// 11 wins, 9 losses at -110: (10 - 9) / 20 = 0.05
	roi := StandardROI(11, 9)
	assert.InDelta(t, 0.05, roi.InexactFloat64(), 1e-12)

	assert.True(t, StandardROI(0, 0).IsZero())
	assert.True(t, StandardROI(0, 4).Equal(decimal.NewFromInt(-1)))
}
