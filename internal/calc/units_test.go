package calc

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromChainFormat(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		decimals int32
		expected string
	}{
		{name: "18 decimals", raw: "1500000000000000000", decimals: 18, expected: "1.5"},
		{name: "6 decimals", raw: "2500000", decimals: 6, expected: "2.5"},
		{name: "zero decimals", raw: "42", decimals: 0, expected: "42"},
		{name: "dust", raw: "1", decimals: 18, expected: "0.000000000000000001"},
		{name: "negative", raw: "-3000000", decimals: 6, expected: "-3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FromChainFormat(decimal.RequireFromString(tt.raw), tt.decimals)
			expected := decimal.RequireFromString(tt.expected)
			assert.True(t, expected.Equal(result), "expected %s, got %s", expected, result)
		})
	}
}

func TestFromSpecialChainFormat(t *testing.T) {
	raw := decimal.RequireFromString("123456789000000000000000000")
	for _, decimals := range []int32{0, 6, 8, 18} {
		special := FromSpecialChainFormat(raw, decimals)
		expected := FromChainFormat(raw, decimals).Div(decimal.New(1, ExtendedDecimals))
		assert.True(t, expected.Equal(special), "decimals %d: expected %s, got %s", decimals, expected, special)
	}
}

func TestChainFormatRoundTrip(t *testing.T) {
	for _, raw := range []string{"1", "7", "999999999999999999999", "1000000"} {
		for _, decimals := range []int32{0, 6, 18} {
			original := decimal.RequireFromString(raw)
			back := ToChainFormat(FromChainFormat(original, decimals), decimals)
			assert.True(t, original.Equal(back), "raw %s decimals %d: got %s", raw, decimals, back)
		}
	}
}

func TestDecValue(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{in: "0.001000000000000000", expected: "0.001"},
		{in: "1000000000000000", expected: "0.001"},
		{in: "", expected: "0"},
		{in: "-0.000100000000000000", expected: "-0.0001"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := DecValue(tt.in)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.expected).Equal(d), "got %s", d)
		})
	}
}

func TestExtendedValue(t *testing.T) {
	lcd, err := ExtendedValue("2.500000000000000000")
	require.NoError(t, err)
	raw, err := ExtendedValue("2500000000000000000")
	require.NoError(t, err)

	assert.True(t, lcd.Equal(raw))
	assert.True(t, decimal.RequireFromString("2.5").Equal(StripSpecialFormat(raw)))
}

func TestParseDec_Invalid(t *testing.T) {
	_, err := ParseDec("12abc")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid decimal")
}

func TestValidateDecimals(t *testing.T) {
	assert.NoError(t, ValidateDecimals(18))
	assert.Error(t, ValidateDecimals(-1))
	assert.Error(t, ValidateDecimals(40))
}
