package excel

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"loostaar/domain/core"
	"loostaar/domain/loo"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func exampleTable() *loo.Table {
	baseline := 0.005431518
	return &loo.Table{
		RunID:          core.NewRunID(),
		BaselinePValue: baseline,
		Rows: loo.Assemble([]loo.Row{
			loo.NewRow("var1", baseline, loo.Float(0.107018465)),
			loo.NewRow("var2", baseline, nil),
			loo.NewRow("var3", baseline, loo.Float(0.00268127)),
		}),
		Warnings: []loo.Warning{
			{VariantID: "var2", VariantIndex: 1, Kind: loo.WarningTestFailed, Message: "boom"},
		},
	}
}

func TestReadMatrix_WithSampleColumn(t *testing.T) {
	path := writeFile(t, "geno.csv", "sample_id,rs1,rs2,rs3\ns1,0,1,0\ns2,2,0,0.5\n\ns3,0,0,1\n")

	m, err := NewDataReader(DefaultExcelConfig(path)).ReadMatrix(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []core.VariantID{"rs1", "rs2", "rs3"}, m.VariantIDs)
	assert.Equal(t, []core.SampleID{"s1", "s2", "s3"}, m.SampleIDs)
	assert.Equal(t, []float64{2, 0, 0.5}, m.Data[1])
	assert.NoError(t, m.Validate())
}

func TestReadMatrix_AllVariantColumns(t *testing.T) {
	path := writeFile(t, "geno.csv", "rs1,rs2\n0,1\n1,0\n")

	m, err := NewDataReader(DefaultExcelConfig(path)).ReadMatrix(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, m.NumVariants())
	assert.Empty(t, m.SampleIDs)
}

func TestReadMatrix_RejectsBadCells(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing", "sample_id,rs1\ns1,NA\ns2,1\n"},
		{"blank", "sample_id,rs1,rs2\ns1,,1\ns2,1,0\n"},
		{"text", "sample_id,rs1\ns1,het\ns2,1\n"},
		{"header only", "sample_id,rs1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "geno.csv", tt.content)
			_, err := NewDataReader(DefaultExcelConfig(path)).ReadMatrix(context.Background())
			assert.True(t, errors.Is(err, core.ErrInvalidInput), "got %v", err)
		})
	}
}

func TestReadMatrix_FileNotFound(t *testing.T) {
	_, err := NewDataReader(DefaultExcelConfig("/nonexistent/geno.csv")).ReadMatrix(context.Background())
	assert.Error(t, err)
}

func TestWriteCSV_UsesNA(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, exampleTable()))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 4)
	assert.Equal(t, "VariantID,BaselinePValue,LOOPValue,DeltaLog10P", string(lines[0]))
	assert.Equal(t, "var2,0.005431518,NA,NA", string(lines[2]))
}

func TestResultTable_CSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loo.csv")
	want := exampleTable()
	require.NoError(t, WriteFile(path, want))

	got, positions, err := NewDataReader(DefaultExcelConfig(path)).ReadTable(context.Background())
	require.NoError(t, err)

	assert.Empty(t, positions)
	assert.Equal(t, want.BaselinePValue, got.BaselinePValue)
	assert.Equal(t, want.Rows, got.Rows)
}

func TestResultTable_XLSXRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loo.xlsx")
	want := exampleTable()
	require.NoError(t, WriteFile(path, want))

	got, _, err := NewDataReader(DefaultExcelConfig(path)).ReadTable(context.Background())
	require.NoError(t, err)
	require.Len(t, got.Rows, 3)
	assert.Equal(t, want.Rows[1], got.Rows[1])
	assert.InDelta(t, *want.Rows[0].DeltaLog10P, *got.Rows[0].DeltaLog10P, 1e-12)
}

func TestWriteXLSX_FrequencySheets(t *testing.T) {
	tbl := exampleTable()
	tbl.RareVariants = 3
	tbl.Frequencies = []loo.VariantFrequency{
		{VariantID: "var1", MAF: 0.002, RareVariantsWithout: 2},
		{VariantID: "var2", MAF: 0.0015, RareVariantsWithout: 2},
		{VariantID: "var3", MAF: 0.003, RareVariantsWithout: 2},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, tbl))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(freqSheet, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"VariantID", "MAF", "RareVariantsWithout"}, rows[0])
	assert.Equal(t, []string{"var2", "0.0015", "2"}, rows[2])

	meta, err := f.GetRows(runSheet)
	require.NoError(t, err)
	assert.Contains(t, meta, []string{"RareVariants", "3"})
}

func TestReadTable_WithPositions(t *testing.T) {
	path := writeFile(t, "loo.csv", `VariantID,BaselinePValue,LOOPValue,DeltaLog10P,Position
var1,0.005,0.1,-1.30103,1000
var2,0.005,NA,NA,NA
var3,0.005,0.001,0.69897,1500
`)

	table, positions, err := NewDataReader(DefaultExcelConfig(path)).ReadTable(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, table.MissingCount())
	assert.Equal(t, loo.RoleDriver, table.Rows[0].Role())
	assert.Equal(t, 1500.0, positions["var3"])
	assert.Equal(t, []core.VariantID{"var2"}, positions.Missing(table.VariantIDs()))
}

func TestReadTable_MissingColumn(t *testing.T) {
	path := writeFile(t, "loo.csv", "VariantID,BaselinePValue\nvar1,0.005\n")
	_, _, err := NewDataReader(DefaultExcelConfig(path)).ReadTable(context.Background())
	assert.True(t, errors.Is(err, core.ErrInvalidInput))
}

func TestWriteFile_UnknownExtension(t *testing.T) {
	err := WriteFile(filepath.Join(t.TempDir(), "loo.json"), exampleTable())
	assert.Error(t, err)
}
