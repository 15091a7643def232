package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "$0.00"},
		{999.5, "$999.50"},
		{100000, "$100,000.00"},
		{1234567.891, "$1,234,567.89"},
		{-2500.25, "-$2,500.25"},
		{9.999, "$10.00"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatMoney(tt.in))
		})
	}
}

func TestFormatPct(t *testing.T) {
	assert.Equal(t, "+12.34%", formatPct(0.1234))
	assert.Equal(t, "-5.00%", formatPct(-0.05))
	assert.Equal(t, "+0.00%", formatPct(0))
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "12", formatNumber(12))
	assert.Equal(t, "1,000", formatNumber(1000))
	assert.Equal(t, "12,345,678", formatNumber(12345678))
	assert.Equal(t, "-4,200", formatNumber(-4200))
}

func TestPrinter_Table(t *testing.T) {
	var buf bytes.Buffer
	p := printer{w: &buf}

	p.TableHeader([]string{"A", "B"}, []int{3, 2})
	p.TableRow([]string{"x", "y"}, []int{3, 2})

	assert.Equal(t, "A    B \n───────\nx    y \n", buf.String())
}
