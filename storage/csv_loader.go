package storage

import (
	"encoding/csv"
	"fmt"
	"os"
)

// ReadExport reads one downloaded DLD CSV export and returns its header
// row and data rows. Rows are returned raw; typing and validation belong
// to the cleaner.
func ReadExport(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("csv: open export %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // exports occasionally pad trailing columns

	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("csv: read header of %q: %w", path, err)
	}

	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("csv: read rows of %q: %w", path, err)
	}
	return header, rows, nil
}
