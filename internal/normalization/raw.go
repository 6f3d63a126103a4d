package normalization

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"rotation-engine/internal/dates"
	"rotation-engine/internal/domain"
)

// Errors returned by raw row ingestion.
var (
	ErrMissingColumn = errors.New("missing required column")
	ErrEmptyInput    = errors.New("no rows in input")
)

// RawRow is a feature row as supplied by an external loader, before its
// date has been normalized. Date may be any value dates.Normalize accepts.
type RawRow struct {
	Date     any
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Regime   string
	Features map[string]float64
}

// FromRaw normalizes dates at the boundary and validates. Rows must
// already be in increasing date order; out-of-order input is rejected
// with *domain.DataError rather than reordered.
func FromRaw(symbol string, raw []RawRow) ([]*domain.MarketRow, error) {
	rows := make([]*domain.MarketRow, 0, len(raw))
	for i, r := range raw {
		d, err := dates.Normalize(r.Date)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		rows = append(rows, &domain.MarketRow{
			Symbol:   symbol,
			Date:     d,
			Open:     r.Open,
			High:     r.High,
			Low:      r.Low,
			Close:    r.Close,
			Volume:   r.Volume,
			Regime:   r.Regime,
			Features: r.Features,
		})
	}

	if err := ValidateRows(rows); err != nil {
		return nil, err
	}
	return rows, nil
}

var requiredColumns = []string{FieldDate, domain.ColumnOpen, domain.ColumnHigh, domain.ColumnLow, domain.ColumnClose, domain.ColumnVolume}

// ReadCSV reads a feature table with a header row. date and OHLCV columns
// are required; an optional "regime" column is kept as the regime label and
// every other column becomes a feature. Empty cells parse as NaN.
func ReadCSV(r io.Reader, symbol string) ([]*domain.MarketRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	var raw []RawRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		rr := RawRow{Date: rec[idx[FieldDate]], Features: map[string]float64{}}
		for name, i := range idx {
			cell := strings.TrimSpace(rec[i])
			switch name {
			case FieldDate:
				continue
			case "regime":
				rr.Regime = cell
				continue
			}

			v, err := parseCell(cell)
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, name, err)
			}
			switch name {
			case domain.ColumnOpen:
				rr.Open = v
			case domain.ColumnHigh:
				rr.High = v
			case domain.ColumnLow:
				rr.Low = v
			case domain.ColumnClose:
				rr.Close = v
			case domain.ColumnVolume:
				rr.Volume = v
			default:
				rr.Features[name] = v
			}
		}
		raw = append(raw, rr)
	}

	if len(raw) == 0 {
		return nil, ErrEmptyInput
	}
	return FromRaw(symbol, raw)
}

func parseCell(cell string) (float64, error) {
	if cell == "" || strings.EqualFold(cell, "nan") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(cell, 64)
}
