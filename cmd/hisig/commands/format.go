package commands

import (
	"fmt"
	"io"
	"strings"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

const separatorWidth = 59

// printer writes console reports to one writer (stdout, or a buffer in tests)
type printer struct {
	w io.Writer
}

// Separator prints a visual separator
func (p printer) Separator() {
	fmt.Fprintln(p.w, strings.Repeat("─", separatorWidth))
}

// DoubleSeparator prints a double-line separator
func (p printer) DoubleSeparator() {
	fmt.Fprintln(p.w, strings.Repeat("═", separatorWidth))
}

// Header prints a boxed section title
func (p printer) Header(title string) {
	fmt.Fprintln(p.w)
	p.DoubleSeparator()
	fmt.Fprintf(p.w, "  %s\n", title)
	p.Separator()
}

// Warning prints a warning message
func (p printer) Warning(message string) {
	fmt.Fprintf(p.w, "⚠️  %s\n", message)
}

// Success prints a success message
func (p printer) Success(message string) {
	fmt.Fprintf(p.w, "✅ %s\n", message)
}

// KeyValue prints key-value pairs
func (p printer) KeyValue(key string, value string, keyWidth int) {
	fmt.Fprintf(p.w, "   %-*s : %s\n", keyWidth, key, value)
}

// TableHeader prints a table header
func (p printer) TableHeader(columns []string, widths []int) {
	p.TableRow(columns, widths)

	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Fprintln(p.w, strings.Repeat("─", totalWidth))
}

// TableRow prints a table row
func (p printer) TableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Fprintf(p.w, "%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Fprint(p.w, "  ")
		}
	}
	fmt.Fprintln(p.w)
}

// formatPct renders a ratio as a signed percentage (0.1234 → +12.34%)
func formatPct(v float64) string {
	return fmt.Sprintf("%+.2f%%", v*100)
}

// formatMoney renders a dollar amount with thousands separators
func formatMoney(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	whole := int64(v)
	cents := int64((v-float64(whole))*100 + 0.5)
	if cents == 100 {
		whole++
		cents = 0
	}
	return fmt.Sprintf("%s$%s.%02d", sign, formatNumber(whole), cents)
}

// formatNumber formats an integer with thousand separators
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
