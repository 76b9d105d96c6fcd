package amount

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"100", "100", true},
		{" 85.50 ", "85.5", true},
		{"1,234.56", "1234.56", true},
		{"-12,345,678", "-12345678", true},
		{"15%", "15", true},
		{"", "0", false},
		{"n/a", "0", false},
		{"1,23", "0", false},
		{"12 000", "0", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, ok := Parse(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, d.String())
		})
	}
}

func TestToleranceBoundary(t *testing.T) {
	tol := DefaultTolerance

	eq, numeric, _ := Compare("100", "101", tol)
	assert.True(t, numeric)
	assert.True(t, eq, "difference of exactly 1.0 is equal")

	eq, _, delta := Compare("100", "101.0000001", tol)
	assert.False(t, eq, "difference of 1.0000001 is not equal")
	assert.Equal(t, "-1.0000001", delta.String())

	_, numeric, _ = Compare("100", "abc", tol)
	assert.False(t, numeric)

	assert.True(t, Within(decimal.NewFromFloat(2.5), decimal.NewFromFloat(1.5), tol))
}

func TestSum(t *testing.T) {
	total, any := Sum("1,000", "", "250")
	assert.True(t, any)
	assert.Equal(t, "1250", Format(total))

	_, any = Sum("", " ")
	assert.False(t, any)
}
