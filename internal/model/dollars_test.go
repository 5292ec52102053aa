package model

import (
	"testing"

	"github.com/guregu/null/v6"
)

func TestCentsToDollars(t *testing.T) {
	tests := []struct {
		name  string
		input null.Int
		want  null.Float
	}{
		{"52 cents", null.IntFrom(52), null.FloatFrom(0.52)},
		{"zero", null.IntFrom(0), null.FloatFrom(0)},
		{"full dollar", null.IntFrom(100), null.FloatFrom(1)},
		{"one cent", null.IntFrom(1), null.FloatFrom(0.01)},
		{"null", null.Int{}, null.Float{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CentsToDollars(tt.input)
			if got.Valid != tt.want.Valid || got.Float64 != tt.want.Float64 {
				t.Errorf("CentsToDollars(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestPeriodDollars(t *testing.T) {
	p := CandlestickPeriod{
		PriceClose:  null.IntFrom(53),
		YesBidClose: null.IntFrom(51),
		YesAskClose: null.IntFrom(54),
		MidCents:    null.FloatFrom(52.5),
		SpreadCents: null.FloatFrom(3),
	}

	d := p.Dollars()

	if d.PriceClose.Float64 != 0.53 {
		t.Errorf("PriceClose = %v, want 0.53", d.PriceClose.Float64)
	}
	if d.Mid.Float64 != 0.525 {
		t.Errorf("Mid = %v, want 0.525", d.Mid.Float64)
	}
	if d.Spread.Float64 != 0.03 {
		t.Errorf("Spread = %v, want 0.03", d.Spread.Float64)
	}
	if d.PriceOpen.Valid {
		t.Error("PriceOpen should stay null")
	}
	if d.YesAskOpen.Valid {
		t.Error("YesAskOpen should stay null")
	}
}
