package excel

// NA is written for, and read as, a missing value
const NA = "NA"

// ExcelConfig holds configuration for a genotype or result file
type ExcelConfig struct {
	FilePath string `json:"file_path"`
	// Sheet defaults to the first sheet of a workbook
	Sheet string `json:"sheet"`
	// SampleColumn overrides sample column detection
	SampleColumn string `json:"sample_column"`
}

// DefaultExcelConfig returns sensible defaults for a file path
func DefaultExcelConfig(filePath string) ExcelConfig {
	return ExcelConfig{FilePath: filePath}
}

// Common sample identifier headers, checked in order
var sampleColumns = []string{"sample_id", "sample", "iid", "id"}
