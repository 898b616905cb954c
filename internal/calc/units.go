package calc

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ExtendedDecimals is the exponent of the chain's extended fixed-point encoding
// (cosmos LegacyDec), applied on top of a token's own decimals.
const ExtendedDecimals = 18

// FromChainFormat converts a raw integer amount into token units: raw × 10^-decimals.
func FromChainFormat(raw decimal.Decimal, decimals int32) decimal.Decimal {
	return raw.Shift(-decimals)
}

// FromSpecialChainFormat converts an amount carried in the extended encoding:
// raw × 10^-(decimals+18).
func FromSpecialChainFormat(raw decimal.Decimal, decimals int32) decimal.Decimal {
	return raw.Shift(-decimals - ExtendedDecimals)
}

// ToChainFormat is the inverse of FromChainFormat.
func ToChainFormat(value decimal.Decimal, decimals int32) decimal.Decimal {
	return value.Shift(decimals)
}

// StripSpecialFormat removes the 10^18 factor of the extended encoding.
func StripSpecialFormat(raw decimal.Decimal) decimal.Decimal {
	return raw.Shift(-ExtendedDecimals)
}

// ToSpecialFormat applies the 10^18 factor of the extended encoding.
func ToSpecialFormat(value decimal.Decimal) decimal.Decimal {
	return value.Shift(ExtendedDecimals)
}

// ParseDec parses a numeric string as found in chain and indexer payloads.
// Empty strings parse as zero.
func ParseDec(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return d, nil
}

// DecValue decodes a LegacyDec field into its value. The LCD gateway prints
// LegacyDec with a decimal point ("0.001000000000000000"); the raw gRPC
// encoding is the integer scaled by 10^18.
func DecValue(s string) (decimal.Decimal, error) {
	d, err := ParseDec(s)
	if err != nil {
		return decimal.Zero, err
	}
	if isRawDec(s) {
		return StripSpecialFormat(d), nil
	}
	return d, nil
}

// ExtendedValue decodes a LegacyDec field and keeps it in the extended
// encoding (integer scaled by 10^18), whatever representation it arrived in.
func ExtendedValue(s string) (decimal.Decimal, error) {
	d, err := ParseDec(s)
	if err != nil {
		return decimal.Zero, err
	}
	if isRawDec(s) {
		return d, nil
	}
	return ToSpecialFormat(d), nil
}

func isRawDec(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && !strings.ContainsAny(s, ".eE")
}

// ValidateDecimals rejects precisions no token on the chain can carry.
func ValidateDecimals(decimals int32) error {
	if decimals < 0 || decimals > 36 {
		return fmt.Errorf("invalid token decimals %d", decimals)
	}
	return nil
}
