package domain

// ProfileConfig represents profile configuration parameters.
type ProfileConfig struct {
	Name      string // profile name, used as trade id prefix
	Structure string // one of the Structure* constants

	TargetDTE    int     // calendar days to the target expiry
	StrikeOffset float64 // wing distance as a fraction of spot (0.05 = 5%)
	StrikeStep   float64 // strike grid, default 1
	Quantity     int     // contracts per leg unit, default 1

	// Entry signal; nil enters whenever flat.
	Entry *RuleConfig

	// Condition exit; nil disables rule 6.
	ConditionExit *RuleConfig
}

// RuleConfig is a single-column threshold test, optionally restricted
// to a set of regime labels.
type RuleConfig struct {
	Column    string   // feature or OHLCV column
	Op        string   // "gt" | "gte" | "lt" | "lte"
	Threshold float64  // compared against the column value
	Regimes   []string // allowed regimes; empty = any
}

// Structure constants
const (
	StructureLongStraddle    = "long_straddle"
	StructureShortStrangle   = "short_strangle"
	StructureLongCall        = "long_call"
	StructureLongPut         = "long_put"
	StructureCallDebitSpread = "call_debit_spread"
	StructurePutCreditSpread = "put_credit_spread"
)

// Rule operator constants
const (
	OpGT  = "gt"
	OpGTE = "gte"
	OpLT  = "lt"
	OpLTE = "lte"
)
