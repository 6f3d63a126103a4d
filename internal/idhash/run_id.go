package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strconv"

	"github.com/google/uuid"

	"rotation-engine/internal/domain"
)

// runNamespace scopes run UUIDs generated by this module.
var runNamespace = uuid.MustParse("6f1c2a8e-3d4b-5e6f-8a9b-0c1d2e3f4a5b")

// ComputeRunDigest hashes the daily_results and trade_summary tables of a run.
// Two runs with byte-identical tables produce the same digest.
// Returns hex-encoded SHA256 (64 characters).
func ComputeRunDigest(res *domain.RunResult) string {
	h := sha256.New()
	fmt.Fprintf(h, "profile|%s\n", res.ProfileName)

	for _, d := range res.DailyResults {
		fmt.Fprintf(h, "d|%s|%s|%s|%s|%s|%t|%t|%t|%s\n",
			d.Date,
			ftoa(d.RealizedPnL), ftoa(d.UnrealizedPnL), ftoa(d.TotalPnL), ftoa(d.DailyPnL),
			d.TradeOpen, d.TradeOpened, d.TradeClosed, d.OpenTradeID,
		)
	}
	for _, s := range res.TradeSummary {
		writeSummary(h, s)
	}

	sum := h.Sum(nil)
	return hex.EncodeToString(sum)
}

// ComputeRunID derives a deterministic UUID (v5) from a run digest.
func ComputeRunID(digest string) string {
	return uuid.NewSHA1(runNamespace, []byte(digest)).String()
}

func writeSummary(h hash.Hash, s domain.TradeSummary) {
	fmt.Fprintf(h, "t|%s|%s|%s|%s|%s|%s|%s|%d|%s|%d|%s|%d\n",
		s.TradeID, s.ProfileName, s.EntryDate, s.ExitDate,
		ftoa(s.EntryCost), ftoa(s.RealizedPnL), ftoa(s.ReturnPct),
		s.DaysHeld, s.ExitReason, s.LegCount, ftoa(s.PeakPnL), s.DaysToPeak,
	)
}

// ftoa formats with the shortest exact representation so the digest
// changes on any bit difference.
func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
