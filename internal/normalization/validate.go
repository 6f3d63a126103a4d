package normalization

import (
	"math"

	"rotation-engine/internal/domain"
)

// Field names used in DataError for non-price problems.
const (
	FieldDate = "date"
)

// ValidateRows checks the feature table before a run:
//   - dates set and strictly increasing
//   - open/high/low/close finite and > 0
//   - volume finite and >= 0
//
// Returns the first offending row as *domain.DataError. Indicator
// features are not checked; NaN features are treated as missing.
func ValidateRows(rows []*domain.MarketRow) error {
	for i, row := range rows {
		if row == nil {
			return &domain.DataError{Field: FieldDate, Reason: "nil row"}
		}
		if row.Date.IsZero() {
			return &domain.DataError{Field: FieldDate, Reason: "date is not set"}
		}
		if i > 0 && !rows[i-1].Date.Before(row.Date) {
			if rows[i-1].Date == row.Date {
				return &domain.DataError{Date: row.Date, Field: FieldDate, Reason: "duplicate date"}
			}
			return &domain.DataError{Date: row.Date, Field: FieldDate, Reason: "dates are not increasing (previous " + rows[i-1].Date.String() + ")"}
		}

		prices := []struct {
			field string
			v     float64
		}{
			{domain.ColumnOpen, row.Open},
			{domain.ColumnHigh, row.High},
			{domain.ColumnLow, row.Low},
			{domain.ColumnClose, row.Close},
		}
		for _, p := range prices {
			if math.IsNaN(p.v) {
				return &domain.DataError{Date: row.Date, Field: p.field, Reason: "NaN price"}
			}
			if math.IsInf(p.v, 0) || p.v <= 0 {
				return &domain.DataError{Date: row.Date, Field: p.field, Reason: "price must be finite and positive"}
			}
		}

		if math.IsNaN(row.Volume) || math.IsInf(row.Volume, 0) || row.Volume < 0 {
			return &domain.DataError{Date: row.Date, Field: domain.ColumnVolume, Reason: "volume must be finite and non-negative"}
		}
	}
	return nil
}
