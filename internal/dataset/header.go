package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var ErrMalformedHeader = errors.New("malformed header")

// ReadHeader returns the column names from the first record of a delimited-text
// file. Only the header row is parsed.
func ReadHeader(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	record, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s is empty: %w", path, ErrMalformedHeader)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", path, err, ErrMalformedHeader)
	}

	columns := make([]string, 0, len(record))
	seen := make(map[string]struct{}, len(record))
	for i, raw := range record {
		if i == 0 {
			raw = strings.TrimPrefix(raw, "\ufeff")
		}
		column := strings.TrimSpace(raw)
		if column == "" {
			return nil, fmt.Errorf("%s: column %d has no name: %w", path, i+1, ErrMalformedHeader)
		}
		if _, ok := seen[column]; ok {
			return nil, fmt.Errorf("%s: duplicate column %q: %w", path, column, ErrMalformedHeader)
		}
		seen[column] = struct{}{}
		columns = append(columns, column)
	}
	return columns, nil
}

// MissingColumns returns the required columns absent from the union of headers,
// in the order they were required.
func MissingColumns(required []string, headers ...[]string) []string {
	present := map[string]struct{}{}
	for _, header := range headers {
		for _, column := range header {
			present[column] = struct{}{}
		}
	}
	var missing []string
	for _, column := range required {
		if _, ok := present[column]; !ok {
			missing = append(missing, column)
		}
	}
	return missing
}
