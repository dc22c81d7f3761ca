package models

import "github.com/google/uuid"

// RowError is a failure (or warning) attributed to one data row of an import file.
// Row is 1-based and excludes the header line.
type RowError struct {
	Row     int       `json:"row"`
	Error   ErrorKind `json:"error"`
	Message string    `json:"message,omitempty"`
}

// ImportBatchResult is the outcome of a single CSV batch.
type ImportBatchResult struct {
	Success       bool                 `json:"success"`
	ImportedCount int                  `json:"imported_count"`
	SkippedCount  int                  `json:"skipped_count"`
	Errors        []RowError           `json:"errors"`
	Warnings      []RowError           `json:"warnings,omitempty"`
	DebtIDMapping map[string]uuid.UUID `json:"debt_id_mapping,omitempty"`
}

// AddError records a skipped row.
func (r *ImportBatchResult) AddError(row int, err error) {
	r.SkippedCount++
	kind := KindOf(err)
	if kind == "" {
		kind = KindPersistenceFailure
	}
	r.Errors = append(r.Errors, RowError{Row: row, Error: kind, Message: MessageOf(err)})
}

// AddWarning records a row that was accepted with a silently defaulted value.
func (r *ImportBatchResult) AddWarning(row int, kind ErrorKind, message string) {
	r.Warnings = append(r.Warnings, RowError{Row: row, Error: kind, Message: message})
}

// Preview returns at most limit errors and the count of the ones left out.
func (r *ImportBatchResult) Preview(limit int) (shown []RowError, more int) {
	if len(r.Errors) <= limit {
		return r.Errors, 0
	}
	return r.Errors[:limit], len(r.Errors) - limit
}
