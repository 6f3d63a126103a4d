package postgres

import (
	"encoding/json"
	"fmt"

	"rotation-engine/internal/dates"
	"rotation-engine/internal/domain"
)

// legJSON is the jsonb shape of one trade leg.
type legJSON struct {
	Strike              float64           `json:"strike"`
	Expiry              dates.Date        `json:"expiry"`
	OptionType          domain.OptionType `json:"option_type"`
	Quantity            int               `json:"quantity"`
	DaysToExpiryAtEntry int               `json:"dte_at_entry"`
}

// pathJSON is the jsonb shape of one daily mark.
type pathJSON struct {
	Day              int                `json:"day"`
	Date             dates.Date         `json:"date"`
	UnrealizedPnL    float64            `json:"unrealized_pnl"`
	DTERemaining     int                `json:"dte_remaining"`
	LegMarks         []float64          `json:"leg_marks"`
	MarketConditions map[string]float64 `json:"market_conditions,omitempty"`
}

func encodeLegs(legs []domain.TradeLeg) ([]byte, error) {
	out := make([]legJSON, len(legs))
	for i, l := range legs {
		out[i] = legJSON{
			Strike:              l.Strike,
			Expiry:              l.Expiry,
			OptionType:          l.OptionType,
			Quantity:            l.Quantity,
			DaysToExpiryAtEntry: l.DaysToExpiryAtEntry,
		}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode legs: %w", err)
	}
	return b, nil
}

func decodeLegs(b []byte) ([]domain.TradeLeg, error) {
	var in []legJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return nil, fmt.Errorf("decode legs: %w", err)
	}
	legs := make([]domain.TradeLeg, len(in))
	for i, l := range in {
		legs[i] = domain.TradeLeg{
			Strike:              l.Strike,
			Expiry:              l.Expiry,
			OptionType:          l.OptionType,
			Quantity:            l.Quantity,
			DaysToExpiryAtEntry: l.DaysToExpiryAtEntry,
		}
	}
	return legs, nil
}

func encodePath(path []domain.DailyMarkSnapshot) ([]byte, error) {
	out := make([]pathJSON, len(path))
	for i, s := range path {
		out[i] = pathJSON{
			Day:              s.Day,
			Date:             s.Date,
			UnrealizedPnL:    s.UnrealizedPnL,
			DTERemaining:     s.DTERemaining,
			LegMarks:         s.LegMarks,
			MarketConditions: s.MarketConditions,
		}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode path: %w", err)
	}
	return b, nil
}

func decodePath(b []byte) ([]domain.DailyMarkSnapshot, error) {
	var in []pathJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return nil, fmt.Errorf("decode path: %w", err)
	}
	if len(in) == 0 {
		return nil, nil
	}
	path := make([]domain.DailyMarkSnapshot, len(in))
	for i, s := range in {
		path[i] = domain.DailyMarkSnapshot{
			Day:              s.Day,
			Date:             s.Date,
			UnrealizedPnL:    s.UnrealizedPnL,
			DTERemaining:     s.DTERemaining,
			LegMarks:         s.LegMarks,
			MarketConditions: s.MarketConditions,
		}
	}
	return path, nil
}
