// Package moneypkg converts minor currency units into human readable amounts.
package moneypkg

import (
	"github.com/shopspring/decimal"
)

// minorExponent is the number of minor unit digits of every supported currency.
const minorExponent = 2

// ToMajor converts an amount in minor units to a decimal in major units.
func ToMajor(minor int64) decimal.Decimal {
	return decimal.New(minor, -minorExponent)
}

// Format renders an amount in minor units as "<CUR> <major>", e.g. "NGN 500.00".
func Format(minor int64, currency string) string {
	return currency + " " + ToMajor(minor).StringFixed(minorExponent)
}
