package excel

// RawRowData represents a row of raw sheet data as header-to-cell pairs
type RawRowData map[string]string

// SheetData represents a complete sheet or CSV file
type SheetData struct {
	Headers []string     // Column headers
	Rows    []RawRowData // Data rows
}

// Column returns the header matching one of names, case-insensitively
func (d *SheetData) Column(names ...string) (string, bool) {
	for _, name := range names {
		for _, h := range d.Headers {
			if equalFold(h, name) {
				return h, true
			}
		}
	}
	return "", false
}
