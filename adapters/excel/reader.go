package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"loostaar/domain/core"
	"loostaar/domain/genotype"
	"loostaar/domain/loo"
	"loostaar/internal"
	"loostaar/ports"
)

// DataReader handles reading Excel and CSV files
type DataReader struct {
	config   ExcelConfig
	fileType string // "xlsx" or "csv"
	logger   *internal.Logger
}

// NewDataReader creates a reader that handles both Excel and CSV files
func NewDataReader(config ExcelConfig) *DataReader {
	fileType := "xlsx"
	if strings.ToLower(filepath.Ext(config.FilePath)) == ".csv" {
		fileType = "csv"
	}
	return &DataReader{
		config:   config,
		fileType: fileType,
		logger:   internal.DefaultLogger.With("excel"),
	}
}

// ReadData reads the file into header-keyed rows
func (r *DataReader) ReadData() (*SheetData, error) {
	if _, err := os.Stat(r.config.FilePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.config.FilePath)
	}

	start := time.Now()
	var rows [][]string
	var err error
	switch r.fileType {
	case "csv":
		rows, err = r.readCSVRows()
	default:
		rows, err = r.readExcelRows()
	}
	if err != nil {
		return nil, err
	}
	r.logger.Debug("%s read in %.2fms (%d rows)", r.config.FilePath, float64(time.Since(start).Nanoseconds())/1e6, len(rows))

	if len(rows) < 2 {
		return nil, core.NewInvalidInputError("%s must have a header row and at least one data row", r.config.FilePath)
	}
	return processRows(rows), nil
}

func (r *DataReader) readExcelRows() ([][]string, error) {
	f, err := excelize.OpenFile(r.config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := r.config.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

func (r *DataReader) readCSVRows() ([][]string, error) {
	file, err := os.Open(r.config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

// processRows converts raw string rows into SheetData. Short rows, which
// excelize produces for trailing blanks, are padded with empty cells.
func processRows(rows [][]string) *SheetData {
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	data := make([]RawRowData, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		rowData := make(RawRowData, len(headers))
		for j, h := range headers {
			if j < len(row) {
				rowData[h] = strings.TrimSpace(row[j])
			} else {
				rowData[h] = ""
			}
		}
		data = append(data, rowData)
	}
	return &SheetData{Headers: headers, Rows: data}
}

// DetectSampleColumn finds the column holding sample identifiers. It returns
// false when every column should be read as a variant.
func (r *DataReader) DetectSampleColumn(data *SheetData) (string, bool) {
	if r.config.SampleColumn != "" {
		return data.Column(r.config.SampleColumn)
	}
	return data.Column(sampleColumns...)
}

// ReadMatrix reads a samples × variants dosage matrix. Each non-sample
// column is a variant named by its header. Missing genotypes are rejected.
func (r *DataReader) ReadMatrix(ctx context.Context) (*genotype.Matrix, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := r.ReadData()
	if err != nil {
		return nil, err
	}

	sampleCol, hasSamples := r.DetectSampleColumn(data)
	var variants []core.VariantID
	for _, h := range data.Headers {
		if hasSamples && h == sampleCol {
			continue
		}
		variants = append(variants, core.VariantID(h))
	}

	rows := make([][]float64, len(data.Rows))
	var samples []core.SampleID
	for i, raw := range data.Rows {
		if hasSamples {
			samples = append(samples, core.SampleID(raw[sampleCol]))
		}
		rows[i] = make([]float64, len(variants))
		for j, v := range variants {
			cell := raw[string(v)]
			if cell == "" || strings.EqualFold(cell, NA) {
				return nil, core.NewInvalidInputError("missing genotype at row %d, variant %s", i+2, v)
			}
			f, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, core.NewInvalidInputError("non-numeric genotype %q at row %d, variant %s", cell, i+2, v)
			}
			rows[i][j] = f
		}
	}

	m := genotype.NewMatrix(variants, rows)
	if hasSamples {
		m = m.WithSamples(samples)
	}
	r.logger.Info("loaded %d samples × %d variants from %s", m.NumSamples(), m.NumVariants(), filepath.Base(r.config.FilePath))
	return m, nil
}

// ReadPositions reads a variant-to-position map from VariantID and Position
// columns. Rows with a blank or NA position are skipped.
func (r *DataReader) ReadPositions(ctx context.Context) (genotype.Positions, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := r.ReadData()
	if err != nil {
		return nil, err
	}
	return positionsFrom(data)
}

func positionsFrom(data *SheetData) (genotype.Positions, error) {
	idCol, ok := data.Column("VariantID", "variant_id", "variant")
	if !ok {
		return nil, core.NewInvalidInputError("no VariantID column")
	}
	posCol, ok := data.Column("Position", "pos", "bp")
	if !ok {
		return genotype.Positions{}, nil
	}

	positions := make(genotype.Positions, len(data.Rows))
	for i, raw := range data.Rows {
		cell := raw[posCol]
		if cell == "" || strings.EqualFold(cell, NA) {
			continue
		}
		pos, err := strconv.ParseFloat(cell, 64)
		if err != nil || math.IsNaN(pos) || math.IsInf(pos, 0) {
			return nil, core.NewInvalidInputError("invalid position %q at row %d", cell, i+2)
		}
		positions[core.VariantID(raw[idCol])] = pos
	}
	return positions, nil
}

// ReadTable reads a result table written by WriteCSV or WriteXLSX, with an
// optional Position column.
func (r *DataReader) ReadTable(ctx context.Context) (*loo.Table, genotype.Positions, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	data, err := r.ReadData()
	if err != nil {
		return nil, nil, err
	}
	cols := make(map[string]string, len(loo.Columns))
	for _, col := range loo.Columns {
		h, ok := data.Column(col)
		if !ok {
			return nil, nil, core.NewInvalidInputError("result table is missing column %s", col)
		}
		cols[col] = h
	}

	t := &loo.Table{Rows: make([]loo.Row, 0, len(data.Rows))}
	for i, raw := range data.Rows {
		baseline, err := parseFloat(raw[cols["BaselinePValue"]])
		if err != nil || baseline == nil {
			return nil, nil, core.NewInvalidInputError("invalid BaselinePValue at row %d", i+2)
		}
		looP, err := parseFloat(raw[cols["LOOPValue"]])
		if err != nil {
			return nil, nil, core.NewInvalidInputError("invalid LOOPValue at row %d: %v", i+2, err)
		}
		delta, err := parseFloat(raw[cols["DeltaLog10P"]])
		if err != nil {
			return nil, nil, core.NewInvalidInputError("invalid DeltaLog10P at row %d: %v", i+2, err)
		}
		t.Rows = append(t.Rows, loo.Row{
			VariantID:      core.VariantID(raw[cols["VariantID"]]),
			BaselinePValue: *baseline,
			LOOPValue:      looP,
			DeltaLog10P:    delta,
		})
	}
	if len(t.Rows) > 0 {
		t.BaselinePValue = t.Rows[0].BaselinePValue
	}

	positions, err := positionsFrom(data)
	if err != nil {
		return nil, nil, err
	}
	if len(positions) > 0 {
		t.Positions = positions
	}
	return t, positions, nil
}

// parseFloat returns nil for NA or blank cells
func parseFloat(cell string) (*float64, error) {
	if cell == "" || strings.EqualFold(cell, NA) {
		return nil, nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), b)
}

// Ensure DataReader implements the source ports
var (
	_ ports.GenotypeSource = (*DataReader)(nil)
	_ ports.PositionSource = (*DataReader)(nil)
)
