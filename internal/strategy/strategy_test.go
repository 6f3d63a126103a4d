package strategy

import (
	"errors"
	"math"
	"testing"
	"time"

	"rotation-engine/internal/dates"
	"rotation-engine/internal/domain"
)

func marketRow(date string, px float64, regime string, features map[string]float64) *domain.MarketRow {
	return &domain.MarketRow{
		Symbol:   "SPY",
		Date:     dates.MustParse(date),
		Open:     px,
		High:     px,
		Low:      px,
		Close:    px,
		Volume:   1e6,
		Regime:   regime,
		Features: features,
	}
}

func TestExpiryFor(t *testing.T) {
	tests := []struct {
		date string
		dte  int
		want string
	}{
		{"2024-01-02", 30, "2024-02-02"}, // Thu Feb 1 -> Fri Feb 2
		{"2024-01-05", 7, "2024-01-12"},  // lands on Friday
		{"2024-01-06", 1, "2024-01-12"},  // Sunday -> next Friday
	}

	for _, tt := range tests {
		got := ExpiryFor(dates.MustParse(tt.date), tt.dte)
		if got.String() != tt.want {
			t.Errorf("ExpiryFor(%s, %d) = %s, want %s", tt.date, tt.dte, got, tt.want)
		}
		if got.Weekday() != time.Friday {
			t.Errorf("ExpiryFor(%s, %d) is a %s", tt.date, tt.dte, got.Weekday())
		}
	}
}

func TestTemplate_Construct(t *testing.T) {
	row := marketRow("2024-01-02", 451.3, "", nil)

	tests := []struct {
		structure string
		want      []domain.TradeLeg // strikes on the 5-wide grid
	}{
		{domain.StructureLongStraddle, []domain.TradeLeg{
			{Strike: 450, OptionType: domain.OptionCall, Quantity: 2},
			{Strike: 450, OptionType: domain.OptionPut, Quantity: 2},
		}},
		{domain.StructureShortStrangle, []domain.TradeLeg{
			{Strike: 475, OptionType: domain.OptionCall, Quantity: -2},
			{Strike: 430, OptionType: domain.OptionPut, Quantity: -2},
		}},
		{domain.StructureLongCall, []domain.TradeLeg{
			{Strike: 475, OptionType: domain.OptionCall, Quantity: 2},
		}},
		{domain.StructureLongPut, []domain.TradeLeg{
			{Strike: 430, OptionType: domain.OptionPut, Quantity: 2},
		}},
		{domain.StructureCallDebitSpread, []domain.TradeLeg{
			{Strike: 450, OptionType: domain.OptionCall, Quantity: 2},
			{Strike: 475, OptionType: domain.OptionCall, Quantity: -2},
		}},
		{domain.StructurePutCreditSpread, []domain.TradeLeg{
			{Strike: 450, OptionType: domain.OptionPut, Quantity: -2},
			{Strike: 430, OptionType: domain.OptionPut, Quantity: 2},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.structure, func(t *testing.T) {
			p, err := FromConfig(domain.ProfileConfig{
				Name:         "p",
				Structure:    tt.structure,
				TargetDTE:    30,
				StrikeOffset: 0.05,
				StrikeStep:   5,
				Quantity:     2,
			})
			if err != nil {
				t.Fatalf("FromConfig failed: %v", err)
			}

			trade, err := p.Construct(row, "p_20240102_0001")
			if err != nil {
				t.Fatalf("Construct failed: %v", err)
			}
			if trade.TradeID != "p_20240102_0001" || trade.ProfileName != "p" || trade.EntryDate != row.Date {
				t.Errorf("unexpected trade header: %+v", trade)
			}
			if trade.EntryPrices != nil {
				t.Error("template must leave EntryPrices for the simulator")
			}
			if len(trade.Legs) != len(tt.want) {
				t.Fatalf("got %d legs, want %d", len(trade.Legs), len(tt.want))
			}

			expiry := dates.MustParse("2024-02-02")
			for i, leg := range trade.Legs {
				w := tt.want[i]
				if leg.Strike != w.Strike || leg.OptionType != w.OptionType || leg.Quantity != w.Quantity {
					t.Errorf("leg %d = %s, want %+d %g %s", i, leg, w.Quantity, w.Strike, w.OptionType)
				}
				if leg.Expiry != expiry || leg.DaysToExpiryAtEntry != 31 {
					t.Errorf("leg %d expiry = %s (%d DTE), want %s (31 DTE)", i, leg.Expiry, leg.DaysToExpiryAtEntry, expiry)
				}
			}
			if err := trade.Validate(); err != nil {
				t.Errorf("constructed trade invalid: %v", err)
			}
		})
	}
}

func TestTemplate_ConstructDegenerate(t *testing.T) {
	p, err := FromConfig(domain.ProfileConfig{
		Name:         "narrow",
		Structure:    domain.StructureCallDebitSpread,
		TargetDTE:    30,
		StrikeOffset: 0.001,
		StrikeStep:   5,
	})
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}

	_, err = p.Construct(marketRow("2024-01-02", 450, "", nil), "narrow_20240102_0001")
	if !errors.Is(err, ErrDegenerateStrikes) {
		t.Errorf("expected ErrDegenerateStrikes, got %v", err)
	}
}

func TestTemplate_ConstructNeedsSpot(t *testing.T) {
	p, _ := FromConfig(domain.ProfileConfig{Name: "p", Structure: domain.StructureLongCall, TargetDTE: 30})

	_, err := p.Construct(marketRow("2024-01-02", math.NaN(), "", nil), "id")
	var de *domain.DataError
	if !errors.As(err, &de) {
		t.Errorf("expected *domain.DataError, got %v", err)
	}
}

func TestTemplate_ShouldEnter(t *testing.T) {
	p, err := FromConfig(domain.ProfileConfig{
		Name:      "vol",
		Structure: domain.StructureLongStraddle,
		TargetDTE: 30,
		Entry: &domain.RuleConfig{
			Column:    "rv20",
			Op:        domain.OpLT,
			Threshold: 0.15,
			Regimes:   []string{"calm", "trend_up"},
		},
	})
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}

	tests := []struct {
		name    string
		row     *domain.MarketRow
		current *domain.Trade
		want    bool
	}{
		{"matches", marketRow("2024-01-02", 450, "calm", map[string]float64{"rv20": 0.10}), nil, true},
		{"threshold is strict", marketRow("2024-01-02", 450, "calm", map[string]float64{"rv20": 0.15}), nil, false},
		{"wrong regime", marketRow("2024-01-02", 450, "crash", map[string]float64{"rv20": 0.10}), nil, false},
		{"missing column", marketRow("2024-01-02", 450, "calm", nil), nil, false},
		{"NaN column", marketRow("2024-01-02", 450, "calm", map[string]float64{"rv20": math.NaN()}), nil, false},
		{"already open", marketRow("2024-01-02", 450, "calm", map[string]float64{"rv20": 0.10}), &domain.Trade{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.ShouldEnter(tt.row, tt.current); got != tt.want {
				t.Errorf("ShouldEnter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTemplate_ConditionExit(t *testing.T) {
	p, err := FromConfig(domain.ProfileConfig{
		Name:          "trend",
		Structure:     domain.StructureLongCall,
		TargetDTE:     30,
		ConditionExit: &domain.RuleConfig{Column: "ma_slope", Op: domain.OpLTE, Threshold: 0},
	})
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}

	cond := p.ConditionExit()
	if cond == nil {
		t.Fatal("ConditionExit() = nil")
	}
	if !cond(marketRow("2024-01-02", 450, "", map[string]float64{"ma_slope": -0.2})) {
		t.Error("expected condition to fire on negative slope")
	}
	if cond(marketRow("2024-01-02", 450, "", map[string]float64{"ma_slope": 0.2})) {
		t.Error("condition fired on positive slope")
	}

	plain, _ := FromConfig(domain.ProfileConfig{Name: "plain", Structure: domain.StructureLongCall, TargetDTE: 30})
	if plain.ConditionExit() != nil {
		t.Error("profile without condition rule should return nil")
	}
}

func TestRule_RegimeOnly(t *testing.T) {
	r, err := NewRule(domain.RuleConfig{Regimes: []string{"calm"}})
	if err != nil {
		t.Fatalf("NewRule failed: %v", err)
	}
	if !r.Match(marketRow("2024-01-02", 450, "calm", nil)) {
		t.Error("regime-only rule should match calm")
	}
	if r.Match(marketRow("2024-01-02", 450, "storm", nil)) {
		t.Error("regime-only rule matched storm")
	}
}

func TestFuncProfile_SingleOpenTrade(t *testing.T) {
	calls := 0
	p := &FuncProfile{
		ProfileName: "f",
		Entry: func(*domain.MarketRow, *domain.Trade) bool {
			calls++
			return true
		},
	}

	if !p.ShouldEnter(&domain.MarketRow{}, nil) {
		t.Error("expected entry when flat")
	}
	if p.ShouldEnter(&domain.MarketRow{}, &domain.Trade{}) {
		t.Error("FuncProfile entered while a trade was open")
	}
	if calls != 1 {
		t.Errorf("Entry called %d times, want 1", calls)
	}

	if _, err := p.Construct(&domain.MarketRow{}, "f_1"); !errors.Is(err, ErrMissingConstructor) {
		t.Errorf("expected ErrMissingConstructor, got %v", err)
	}
}

func TestStructureOf(t *testing.T) {
	tmpl := NewTemplate("s", domain.StructureLongStraddle, 30, 0, 1, 1, nil, nil)
	if got := StructureOf(tmpl); got != domain.StructureLongStraddle {
		t.Errorf("StructureOf(template) = %q, want %q", got, domain.StructureLongStraddle)
	}
	if got := StructureOf(&FuncProfile{ProfileName: "f"}); got != StructureCustom {
		t.Errorf("StructureOf(func profile) = %q, want %q", got, StructureCustom)
	}
}
