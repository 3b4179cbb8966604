// Package models contains data structures for AccessLens report enrichment.
package models

// Well-known report columns. Input reports are free-form CSV, but the
// pipeline treats these columns as typed keys.
const (
	ColumnAccountID               = "AccountId"
	ColumnAccountInternalID       = "AccountInternalID"
	ColumnAccountDisplayName      = "AccountDisplayName"
	ColumnAccountSourceInternalID = "AccountSourceInternalID"
	ColumnAccountSourceName       = "AccountSourceName"
	ColumnAccountSourceType       = "AccountSourceType"
	ColumnService                 = "Service"
	ColumnResourceType            = "ResourceType"
	ColumnResourceID              = "ResourceId"
	ColumnAccessLevel             = "AccessLevel"
	ColumnAccessPath              = "AccessPath"
	ColumnError                   = "Error"
)

// Record represents one CSV report row as a column-name to value mapping.
type Record map[string]string

// Clone returns a copy of the record.
func (r Record) Clone() Record {
	clone := make(Record, len(r))
	for k, v := range r {
		clone[k] = v
	}
	return clone
}

// MergeRecords performs a shallow union of the given records, in order.
// Later records win on key collision. This ordering is a documented
// contract: the orchestrator merges identity attributes, then the report
// record, then account attributes.
func MergeRecords(parts ...Record) Record {
	merged := make(Record)
	for _, part := range parts {
		for k, v := range part {
			merged[k] = v
		}
	}
	return merged
}

// ErrorRecord builds the single-row degenerate result set used when a
// report search produces nothing or the inputs were invalid. Consumers
// distinguish it from real rows by the presence of the Error column.
func ErrorRecord(message string) []Record {
	if message == "" {
		message = "No results found"
	}
	return []Record{{ColumnError: message}}
}
