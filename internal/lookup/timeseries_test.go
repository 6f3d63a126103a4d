package lookup

import (
	"errors"
	"testing"

	"rotation-engine/internal/dates"
	"rotation-engine/internal/domain"
)

func makeQuotes(start dates.Date, mids ...float64) []*domain.OptionQuote {
	quotes := make([]*domain.OptionQuote, len(mids))
	for i, m := range mids {
		quotes[i] = &domain.OptionQuote{
			Symbol:     "SPY",
			Date:       start.AddDays(i * 2), // every other day
			Expiry:     start.AddDays(30),
			Strike:     450,
			OptionType: domain.OptionCall,
			Mid:        m,
		}
	}
	return quotes
}

func TestQuoteAt_ExactMatch(t *testing.T) {
	start := dates.MustParse("2024-01-02")
	quotes := makeQuotes(start, 5.0, 5.5, 6.0)

	tests := []struct {
		name    string
		target  dates.Date
		wantMid float64
		wantErr error
	}{
		{"first", start, 5.0, nil},
		{"middle", start.AddDays(2), 5.5, nil},
		{"last", start.AddDays(4), 6.0, nil},
		{"gap day is not carried forward", start.AddDays(1), 0, ErrNoQuote},
		{"before series", start.AddDays(-1), 0, ErrNoQuote},
		{"after series", start.AddDays(10), 0, ErrNoQuote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := QuoteAt(tt.target, quotes)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("QuoteAt() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && q.Mid != tt.wantMid {
				t.Errorf("QuoteAt() mid = %v, want %v", q.Mid, tt.wantMid)
			}
		})
	}
}

func TestQuoteAt_Empty(t *testing.T) {
	if _, err := QuoteAt(dates.MustParse("2024-01-02"), nil); !errors.Is(err, ErrNoQuote) {
		t.Errorf("expected ErrNoQuote, got %v", err)
	}
}

func TestKeyOf_MatchesQuoteKey(t *testing.T) {
	expiry := dates.MustParse("2024-02-16")
	leg := domain.TradeLeg{Strike: 452.5, Expiry: expiry, OptionType: domain.OptionPut, Quantity: -1}
	quote := &domain.OptionQuote{Strike: 452.50000000001, Expiry: expiry, OptionType: domain.OptionPut}

	if KeyOf(leg) != KeyOfQuote(quote) {
		t.Errorf("keys differ: %+v vs %+v", KeyOf(leg), KeyOfQuote(quote))
	}
}

func TestCloseAt(t *testing.T) {
	start := dates.MustParse("2024-01-02")
	rows := []*domain.MarketRow{
		{Date: start, Close: 100},
		{Date: start.AddDays(1), Close: 101},
		{Date: start.AddDays(4), Close: 104},
	}

	tests := []struct {
		name   string
		target dates.Date
		want   float64
	}{
		{"exact", start.AddDays(1), 101},
		{"weekend uses prior close", start.AddDays(3), 101},
		{"before first uses first", start.AddDays(-5), 100},
		{"after last uses last", start.AddDays(30), 104},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CloseAt(tt.target, rows)
			if err != nil {
				t.Fatalf("CloseAt() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("CloseAt() = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := CloseAt(start, nil); !errors.Is(err, ErrNoPriceData) {
		t.Errorf("expected ErrNoPriceData, got %v", err)
	}
}
