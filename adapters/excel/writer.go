package excel

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"loostaar/domain/loo"
)

const (
	resultSheet   = "LOO"
	warningsSheet = "Warnings"
	runSheet      = "Run"
	freqSheet     = "Frequencies"
)

// FormatFloat renders a value for a result file, NA when missing
func FormatFloat(v *float64) string {
	if v == nil {
		return NA
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func record(r loo.Row) []string {
	return []string{
		r.VariantID.String(),
		strconv.FormatFloat(r.BaselinePValue, 'g', -1, 64),
		FormatFloat(r.LOOPValue),
		FormatFloat(r.DeltaLog10P),
	}
}

// WriteCSV writes the result table in column order with NA for missing values
func WriteCSV(w io.Writer, t *loo.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(loo.Columns); err != nil {
		return err
	}
	for _, r := range t.Rows {
		if err := cw.Write(record(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes a workbook with the result table, its warnings and the run
// parameters on separate sheets
func WriteXLSX(w io.Writer, t *loo.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), resultSheet); err != nil {
		return err
	}
	if err := setRow(f, resultSheet, 1, toCells(loo.Columns)); err != nil {
		return err
	}
	for i, r := range t.Rows {
		cells := []interface{}{r.VariantID.String(), r.BaselinePValue, NA, NA}
		if r.LOOPValue != nil {
			cells[2] = *r.LOOPValue
		}
		if r.DeltaLog10P != nil {
			cells[3] = *r.DeltaLog10P
		}
		if err := setRow(f, resultSheet, i+2, cells); err != nil {
			return err
		}
	}

	if len(t.Warnings) > 0 {
		if _, err := f.NewSheet(warningsSheet); err != nil {
			return err
		}
		if err := setRow(f, warningsSheet, 1, []interface{}{"VariantID", "Kind", "Message"}); err != nil {
			return err
		}
		for i, warn := range t.Warnings {
			id := warn.VariantID.String()
			if warn.Baseline() {
				id = "(baseline)"
			}
			if err := setRow(f, warningsSheet, i+2, []interface{}{id, string(warn.Kind), warn.Message}); err != nil {
				return err
			}
		}
	}

	if len(t.Frequencies) > 0 {
		if _, err := f.NewSheet(freqSheet); err != nil {
			return err
		}
		if err := setRow(f, freqSheet, 1, []interface{}{"VariantID", "MAF", "RareVariantsWithout"}); err != nil {
			return err
		}
		for i, fr := range t.Frequencies {
			if err := setRow(f, freqSheet, i+2, []interface{}{fr.VariantID.String(), fr.MAF, fr.RareVariantsWithout}); err != nil {
				return err
			}
		}
	}

	if _, err := f.NewSheet(runSheet); err != nil {
		return err
	}
	p := t.Parameters
	meta := [][]interface{}{
		{"RunID", t.RunID.String()},
		{"Label", t.Label},
		{"NullModel", t.NullModel},
		{"Fingerprint", string(t.Fingerprint)},
		{"Samples", t.NumSamples},
		{"MAFCutoff", p.MAFCutoff},
		{"RareVariantThreshold", p.RareVariantThreshold},
		{"RareVariants", t.RareVariants},
		{"OmnibusPolicy", p.OmnibusPolicy},
		{"Concurrency", p.Concurrency},
	}
	for i, cells := range meta {
		if err := setRow(f, runSheet, i+1, cells); err != nil {
			return err
		}
	}

	return f.Write(w)
}

// WriteFile picks the format from the file extension (.csv or .xlsx)
func WriteFile(path string, t *loo.Table) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer out.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		err = WriteCSV(out, t)
	case ".xlsx":
		err = WriteXLSX(out, t)
	default:
		return fmt.Errorf("unsupported output format %q (want .csv or .xlsx)", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return out.Close()
}

func setRow(f *excelize.File, sheet string, row int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &cells)
}

func toCells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
