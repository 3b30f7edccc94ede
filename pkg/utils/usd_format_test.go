package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{0, "$0"},
		{999, "$999"},
		{1000, "$1,000"},
		{1234567.8, "$1,234,568"},
		{123456789012, "$123,456,789,012"},
		{-42, "-$42"},
		{-1234.4, "-$1,234"},
		{math.NaN(), "$0"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatUSD(tt.input))
		})
	}
}

func TestFormatUSDCompact(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{500, "$500"},
		{1500, "$1.5K"},
		{2300000, "$2.3M"},
		{2300000000, "$2.3B"},
		{1e12, "$1T"},
		{-1500, "-$1.5K"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatUSDCompact(tt.input))
		})
	}
}

func TestFormatCount(t *testing.T) {
	assert.Equal(t, "0", FormatCount(0))
	assert.Equal(t, "250", FormatCount(250))
	assert.Equal(t, "1,234", FormatCount(1234))
	assert.Equal(t, "1,000,000", FormatCount(1000000))
	assert.Equal(t, "-12,345", FormatCount(-12345))
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "3.00%", FormatPercent(3))
	assert.Equal(t, "-1.23%", FormatPercent(-1.234))
	assert.Equal(t, "0.00%", FormatPercent(0))
	assert.Equal(t, "0.00%", FormatPercent(math.Inf(1)))
}

func TestFormatPct(t *testing.T) {
	assert.Equal(t, "+2.45%", FormatPct(2.45))
	assert.Equal(t, "-1.23%", FormatPct(-1.23))
	assert.Equal(t, "+0.00%", FormatPct(0))
}
