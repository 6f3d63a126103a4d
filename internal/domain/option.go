package domain

import (
	"fmt"
	"strings"

	"rotation-engine/internal/dates"
)

// OptionType is the right of an option leg.
type OptionType string

// Option type constants
const (
	OptionCall OptionType = "call"
	OptionPut  OptionType = "put"
)

// ParseOptionType accepts call/put in any case, plus the C/P shorthand.
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c":
		return OptionCall, nil
	case "put", "p":
		return OptionPut, nil
	default:
		return "", fmt.Errorf("unknown option type %q", s)
	}
}

// Valid reports whether t is call or put.
func (t OptionType) Valid() bool {
	return t == OptionCall || t == OptionPut
}

// TradeLeg is one option position component. Legs are immutable once the
// trade is opened; a roll produces a new Trade with new legs.
type TradeLeg struct {
	Strike              float64    // positive strike price
	Expiry              dates.Date // expiration day
	OptionType          OptionType // call | put
	Quantity            int        // signed: >0 long, <0 short
	DaysToExpiryAtEntry int        // informational, set at entry
}

// DTE returns calendar days from date to the leg's expiry.
func (l TradeLeg) DTE(date dates.Date) int {
	return date.DaysUntil(l.Expiry)
}

// Validate checks leg invariants against the trade's entry date.
func (l TradeLeg) Validate(entryDate dates.Date) error {
	if l.Quantity == 0 {
		return fmt.Errorf("leg quantity must be non-zero")
	}
	if !(l.Strike > 0) {
		return fmt.Errorf("leg strike must be positive, got %v", l.Strike)
	}
	if !l.OptionType.Valid() {
		return fmt.Errorf("leg option type %q is not call or put", l.OptionType)
	}
	if l.Expiry.IsZero() {
		return fmt.Errorf("leg expiry is not set")
	}
	if l.Expiry.Before(entryDate) {
		return fmt.Errorf("leg expiry %s is before entry date %s", l.Expiry, entryDate)
	}
	return nil
}

// String renders the leg as e.g. "+1 450C 2024-02-16".
func (l TradeLeg) String() string {
	right := "C"
	if l.OptionType == OptionPut {
		right = "P"
	}
	return fmt.Sprintf("%+d %g%s %s", l.Quantity, l.Strike, right, l.Expiry)
}
