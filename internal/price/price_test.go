package price

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rekohub/storefront-scraper/internal/models"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected models.PriceSpec
	}{
		{
			name:     "bare integer is cents",
			input:    "300",
			expected: models.PriceSpec{AmountCents: 300, Unit: models.UnitOrder},
		},
		{
			name:     "dollar decimal",
			input:    "$3.00",
			expected: models.PriceSpec{AmountCents: 300, Unit: models.UnitOrder},
		},
		{
			name:     "decimal without symbol",
			input:    "12.5",
			expected: models.PriceSpec{AmountCents: 1250, Unit: models.UnitOrder},
		},
		{
			name:     "each suffix",
			input:    "$3.00 ea",
			expected: models.PriceSpec{AmountCents: 300, Unit: models.UnitEach, Approximate: true},
		},
		{
			name:     "per pound",
			input:    "3 per pound",
			expected: models.PriceSpec{AmountCents: 300, Unit: models.UnitPound, Approximate: true},
		},
		{
			name:     "slash kilogram",
			input:    "12.50/kg",
			expected: models.PriceSpec{AmountCents: 1250, Unit: models.UnitKilogram, Approximate: true},
		},
		{
			name:     "trailing ounce token",
			input:    "4.25 oz",
			expected: models.PriceSpec{AmountCents: 425, Unit: models.UnitOunce, Approximate: true},
		},
		{
			name:     "per gram",
			input:    "0.99 per gram",
			expected: models.PriceSpec{AmountCents: 99, Unit: models.UnitGram, Approximate: true},
		},
		{
			name:     "plural pounds with slash",
			input:    "$2.49/lbs",
			expected: models.PriceSpec{AmountCents: 249, Unit: models.UnitPound, Approximate: true},
		},
		{
			name:     "thousands separator",
			input:    "$1,299.00",
			expected: models.PriceSpec{AmountCents: 129900, Unit: models.UnitOrder},
		},
		{
			name:     "rupee prefix",
			input:    "Rs. 450",
			expected: models.PriceSpec{AmountCents: 450, Unit: models.UnitOrder},
		},
		{
			name:     "empty input",
			input:    "",
			expected: models.ZeroPrice(),
		},
		{
			name:     "whitespace only",
			input:    "   ",
			expected: models.ZeroPrice(),
		},
		{
			name:     "garbage input",
			input:    "call for price",
			expected: models.ZeroPrice(),
		},
		{
			name:     "negative amount rejected",
			input:    "-3.00",
			expected: models.ZeroPrice(),
		},
		{
			name:     "too many decimal places",
			input:    "3.001",
			expected: models.ZeroPrice(),
		},
		{
			name:     "unknown unit token",
			input:    "3.00 per box",
			expected: models.ZeroPrice(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	// An already-canonical integer cents value round-trips unchanged.
	first := Normalize("300")
	second := Normalize("300")
	assert.Equal(t, first, second)
	assert.Equal(t, int64(300), second.AmountCents)
	assert.Equal(t, models.UnitOrder, second.Unit)
	assert.False(t, second.Approximate)
}

func TestNormalizeWithHint(t *testing.T) {
	exact := false
	approx := true

	t.Run("override clears auto-detected flag", func(t *testing.T) {
		spec := NormalizeWithHint("3 per pound", &exact)
		assert.Equal(t, models.UnitPound, spec.Unit)
		assert.False(t, spec.Approximate)
	})

	t.Run("override sets flag on order price", func(t *testing.T) {
		spec := NormalizeWithHint("$3.00", &approx)
		assert.Equal(t, models.UnitOrder, spec.Unit)
		assert.True(t, spec.Approximate)
	})

	t.Run("nil hint keeps auto-detection", func(t *testing.T) {
		spec := NormalizeWithHint("$3.00 ea", nil)
		assert.True(t, spec.Approximate)
	})
}
