package dashboard

import "testing"

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1234.56, "$1,234.56"},
		{24000, "$24,000.00"},
		{0.004, "$0.00"},
		{-0.004, "$0.00"},
		{-5.5, "-$5.50"},
	}
	for _, tt := range tests {
		if got := FormatCurrency(tt.in); got != tt.want {
			t.Errorf("FormatCurrency(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatMarketCap(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "N/A"},
		{1.6e12, "$1.60T"},
		{503e9, "$503.00B"},
		{25e6, "$25.00M"},
		{500000, "$500000"},
	}
	for _, tt := range tests {
		if got := FormatMarketCap(tt.in); got != tt.want {
			t.Errorf("FormatMarketCap(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatPercent(t *testing.T) {
	if got := FormatPercent(0.25); got != "+0.25%" {
		t.Errorf("FormatPercent(0.25) = %q", got)
	}
	if got := FormatPercent(-1.5); got != "-1.50%" {
		t.Errorf("FormatPercent(-1.5) = %q", got)
	}
	if got := FormatPercent(0); got != "+0.00%" {
		t.Errorf("FormatPercent(0) = %q", got)
	}
	if Tone(-0.1) != -1 || Tone(0) != 0 || Tone(3) != 1 {
		t.Error("Tone sign mismatch")
	}
}
