package model

import (
	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PeriodDollars mirrors every cent-valued field of a CandlestickPeriod in dollars.
type PeriodDollars struct {
	PriceOpen     null.Float
	PriceHigh     null.Float
	PriceLow      null.Float
	PriceClose    null.Float
	PriceMean     null.Float
	PricePrevious null.Float

	YesBidOpen  null.Float
	YesBidHigh  null.Float
	YesBidLow   null.Float
	YesBidClose null.Float

	YesAskOpen  null.Float
	YesAskHigh  null.Float
	YesAskLow   null.Float
	YesAskClose null.Float

	Mid    null.Float
	Spread null.Float
}

// Dollars converts the period's cent fields. Null stays null.
func (p CandlestickPeriod) Dollars() PeriodDollars {
	return PeriodDollars{
		PriceOpen:     CentsToDollars(p.PriceOpen),
		PriceHigh:     CentsToDollars(p.PriceHigh),
		PriceLow:      CentsToDollars(p.PriceLow),
		PriceClose:    CentsToDollars(p.PriceClose),
		PriceMean:     CentsToDollars(p.PriceMean),
		PricePrevious: CentsToDollars(p.PricePrevious),
		YesBidOpen:    CentsToDollars(p.YesBidOpen),
		YesBidHigh:    CentsToDollars(p.YesBidHigh),
		YesBidLow:     CentsToDollars(p.YesBidLow),
		YesBidClose:   CentsToDollars(p.YesBidClose),
		YesAskOpen:    CentsToDollars(p.YesAskOpen),
		YesAskHigh:    CentsToDollars(p.YesAskHigh),
		YesAskLow:     CentsToDollars(p.YesAskLow),
		YesAskClose:   CentsToDollars(p.YesAskClose),
		Mid:           FractionalCentsToDollars(p.MidCents),
		Spread:        FractionalCentsToDollars(p.SpreadCents),
	}
}

// CentsToDollars converts integer cents to dollars: 52 -> 0.52.
func CentsToDollars(cents null.Int) null.Float {
	if !cents.Valid {
		return null.Float{}
	}
	return null.FloatFrom(decimal.NewFromInt(cents.Int64).Div(hundred).InexactFloat64())
}

// FractionalCentsToDollars converts fractional cents to dollars: 52.5 -> 0.525.
func FractionalCentsToDollars(cents null.Float) null.Float {
	if !cents.Valid {
		return null.Float{}
	}
	return null.FloatFrom(decimal.NewFromFloat(cents.Float64).Div(hundred).InexactFloat64())
}
