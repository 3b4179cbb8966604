// Package report handles CSV report files: discovery, reading, writing,
// and the end-to-end enrichment workflows over the report directory tree.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"

	"github.com/joshsymonds/accesslens/internal/models"
)

// ReadCSV reads a report file into records, returning the header in file
// order alongside them. Empty cells become empty strings, never missing
// keys, so merges behave uniformly.
func ReadCSV(path string) ([]string, []models.Record, error) {
	file, err := os.Open(path) //nolint:gosec // Paths come from validated report directories
	if err != nil {
		return nil, nil, fmt.Errorf("opening report %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parsing report %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	header := rows[0]
	recs := make([]models.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(models.Record, len(header))
		for i, column := range header {
			if i < len(row) {
				rec[column] = row[i]
			} else {
				rec[column] = ""
			}
		}
		recs = append(recs, rec)
	}
	return header, recs, nil
}

// WriteCSV writes records to path using the given column order. Columns a
// record lacks are written empty; record keys outside columns are dropped.
func WriteCSV(path string, columns []string, recs []models.Record) error {
	file, err := os.Create(path) //nolint:gosec // Paths come from validated report directories
	if err != nil {
		return fmt.Errorf("creating report %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	writer := csv.NewWriter(file)
	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("writing header to %s: %w", path, err)
	}
	row := make([]string, len(columns))
	for _, rec := range recs {
		for i, column := range columns {
			row[i] = rec[column]
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing record to %s: %w", path, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flushing report %s: %w", path, err)
	}
	return nil
}

// OutputColumns builds the output column order for an enriched report:
// configured identity columns first, then the input header, then the
// enrichment columns, deduplicated in first-seen order. Any record key not
// covered yet is appended sorted, so nothing silently disappears.
func OutputColumns(identityColumns, inputHeader []string, recs []models.Record) []string {
	ordered := make([]string, 0, len(identityColumns)+len(inputHeader)+12)
	seen := make(map[string]bool)
	appendColumn := func(column string) {
		if column == "" || seen[column] {
			return
		}
		seen[column] = true
		ordered = append(ordered, column)
	}

	for _, column := range identityColumns {
		appendColumn(column)
	}
	for _, column := range inputHeader {
		appendColumn(column)
	}
	for _, column := range []string{
		models.ColumnAccountInternalID,
		models.ColumnAccountDisplayName,
		models.ColumnAccountSourceInternalID,
		models.ColumnAccountSourceName,
		models.ColumnDirectEntitlementID,
		models.ColumnDirectEntitlementName,
		models.ColumnDirectEntitlementAttribute,
		models.ColumnDirectEntitlementValue,
		models.ColumnAccessPath,
	} {
		appendColumn(column)
	}

	var stragglers []string
	for _, rec := range recs {
		for key := range rec {
			if !seen[key] {
				seen[key] = true
				stragglers = append(stragglers, key)
			}
		}
	}
	sort.Strings(stragglers)
	return append(ordered, stragglers...)
}
