package pricing

import (
	"errors"
	"math"
	"testing"

	"rotation-engine/internal/dates"
	"rotation-engine/internal/domain"
	"rotation-engine/internal/lookup"
)

var (
	day0   = dates.MustParse("2024-01-02")
	expiry = dates.MustParse("2024-02-16")
)

func callLeg() domain.TradeLeg {
	return domain.TradeLeg{Strike: 450, Expiry: expiry, OptionType: domain.OptionCall, Quantity: 1}
}

func putLeg() domain.TradeLeg {
	return domain.TradeLeg{Strike: 450, Expiry: expiry, OptionType: domain.OptionPut, Quantity: 1}
}

func row(date dates.Date, px float64) *domain.MarketRow {
	return &domain.MarketRow{Symbol: "SPY", Date: date, Open: px, High: px, Low: px, Close: px, Volume: 1e6}
}

func TestToyPrice(t *testing.T) {
	tests := []struct {
		name string
		leg  domain.TradeLeg
		date dates.Date
		spot float64
		want float64
	}{
		{
			name: "expiry day call is intrinsic",
			leg:  callLeg(),
			date: expiry,
			spot: 460,
			want: 10,
		},
		{
			name: "expiry day OTM put is zero",
			leg:  putLeg(),
			date: expiry,
			spot: 460,
			want: 0,
		},
		{
			name: "after expiry stays intrinsic",
			leg:  putLeg(),
			date: expiry.AddDays(3),
			spot: 440,
			want: 10,
		},
		{
			name: "ATM with 365 days",
			leg:  domain.TradeLeg{Strike: 100, Expiry: day0.AddDays(365), OptionType: domain.OptionCall, Quantity: 1},
			date: day0,
			spot: 100,
			want: 0.4 * 100 * 0.2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToyPrice(tt.leg, tt.date, tt.spot, 0.2)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ToyPrice() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToyPrice_DecaysWithTime(t *testing.T) {
	leg := callLeg()
	prev := math.Inf(1)
	for d := day0; !d.After(expiry); d = d.AddDays(1) {
		p := ToyPrice(leg, d, 450, 0.2)
		if p > prev {
			t.Fatalf("toy price increased on %s: %v > %v", d, p, prev)
		}
		prev = p
	}
}

func TestToyPrice_Deterministic(t *testing.T) {
	a := ToyPrice(callLeg(), day0, 451.37, 0.2)
	b := ToyPrice(callLeg(), day0, 451.37, 0.2)
	if math.Float64bits(a) != math.Float64bits(b) {
		t.Errorf("toy price not bit-identical: %v vs %v", a, b)
	}
}

func TestChainPricer_Quote(t *testing.T) {
	quotes := []*domain.OptionQuote{
		{Date: day0.AddDays(1), Expiry: expiry, Strike: 450, OptionType: domain.OptionCall, Mid: 6.1},
		{Date: day0, Expiry: expiry, Strike: 450, OptionType: domain.OptionCall, Mid: 5.9},
		{Date: day0, Expiry: expiry, Strike: 450, OptionType: domain.OptionPut, Bid: 4.0, Ask: 4.4},
		{Date: day0.AddDays(2), Expiry: expiry, Strike: 450, OptionType: domain.OptionCall, Mid: math.NaN()},
	}
	c := NewChainPricer(quotes)

	if c.Contracts() != 2 {
		t.Fatalf("Contracts() = %d, want 2", c.Contracts())
	}

	got, err := c.Quote(callLeg(), day0)
	if err != nil || got != 5.9 {
		t.Errorf("Quote(call, day0) = %v, %v; want 5.9", got, err)
	}

	got, err = c.Quote(putLeg(), day0)
	if err != nil || math.Abs(got-4.2) > 1e-12 {
		t.Errorf("Quote(put, day0) = %v, %v; want bid/ask mid 4.2", got, err)
	}

	if _, err := c.Quote(callLeg(), day0.AddDays(2)); !errors.Is(err, lookup.ErrNoQuote) {
		t.Errorf("NaN mid should be no quote, got %v", err)
	}

	if _, err := c.Quote(putLeg(), day0.AddDays(1)); !errors.Is(err, lookup.ErrNoQuote) {
		t.Errorf("missing day should be no quote, got %v", err)
	}
}

func TestAdapter_ChainFirst(t *testing.T) {
	chain := NewChainPricer([]*domain.OptionQuote{
		{Date: day0, Expiry: expiry, Strike: 450, OptionType: domain.OptionCall, Mid: 5.9},
	})
	a := NewAdapter(chain, domain.SimulationConfig{AllowToyPricing: true})

	price, toy, err := a.PriceLeg(callLeg(), day0, row(day0, 450))
	if err != nil {
		t.Fatalf("PriceLeg() error: %v", err)
	}
	if toy || price != 5.9 {
		t.Errorf("PriceLeg() = %v toy=%v, want chain price 5.9", price, toy)
	}

	price, toy, err = a.PriceLeg(putLeg(), day0, row(day0, 450))
	if err != nil {
		t.Fatalf("PriceLeg() fallback error: %v", err)
	}
	if !toy {
		t.Error("expected toy fallback for put leg")
	}
	if want := ToyPrice(putLeg(), day0, 450, domain.DefaultToyVolatility); price != want {
		t.Errorf("fallback price = %v, want %v", price, want)
	}
}

func TestAdapter_ToyDisabled(t *testing.T) {
	a := NewAdapter(NewChainPricer(nil), domain.SimulationConfig{})

	_, _, err := a.PriceLeg(callLeg(), day0, row(day0, 450))
	if !errors.Is(err, ErrPricingUnavailable) {
		t.Fatalf("expected ErrPricingUnavailable, got %v", err)
	}

	var ue *UnavailableError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *UnavailableError, got %T", err)
	}
	if ue.Date != day0 {
		t.Errorf("error date = %s, want %s", ue.Date, day0)
	}
}

func TestAdapter_ToyNeedsSpot(t *testing.T) {
	a := NewAdapter(nil, domain.SimulationConfig{AllowToyPricing: true})

	_, _, err := a.PriceLeg(callLeg(), day0, row(day0, math.NaN()))
	var de *domain.DataError
	if !errors.As(err, &de) {
		t.Fatalf("expected *domain.DataError, got %v", err)
	}
	if de.Field != domain.ColumnClose {
		t.Errorf("DataError field = %q, want close", de.Field)
	}
}
