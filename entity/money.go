package entity

import (
	"fmt"
	"strconv"
	"strings"
)

// Cents parses the decimal amount into minor units. Amounts are carried as
// strings end to end so nothing is lost to float rounding; gateways that
// want integers convert here.
func (m Money) Cents() (int64, error) {
	amount := strings.TrimSpace(m.Amount)
	if amount == "" {
		return 0, fmt.Errorf("empty amount")
	}

	whole, frac, _ := strings.Cut(amount, ".")

	negative := strings.HasPrefix(whole, "-")
	whole = strings.TrimPrefix(whole, "-")
	if whole == "" {
		whole = "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing amount %q: %w", m.Amount, err)
	}

	switch len(frac) {
	case 0:
		frac = "00"
	case 1:
		frac += "0"
	case 2:
	default:
		return 0, fmt.Errorf("amount %q has more than two decimal places", m.Amount)
	}

	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing amount %q: %w", m.Amount, err)
	}

	total := units*100 + cents
	if negative {
		total = -total
	}
	return total, nil
}

// Equal compares monetary value, so "100" and "100.00" match.
func (m Money) Equal(other Money) bool {
	if !strings.EqualFold(m.Currency, other.Currency) {
		return false
	}
	a, err := m.Cents()
	if err != nil {
		return false
	}
	b, err := other.Cents()
	if err != nil {
		return false
	}
	return a == b
}
