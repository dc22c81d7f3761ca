package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/models"
)

var (
	debtRequired      = []string{"borrowerName", "amount", "interestRate", "lentDate"}
	repaymentRequired = []string{"debtId", "amount", "repaymentDate"}
)

// ErrEmptyFile is returned when a CSV has no header line.
var ErrEmptyFile = errors.New("csv file is empty")

// table is a parsed CSV with its header index.
type table struct {
	columns map[string]int
	rows    [][]string
}

// readTable reads the whole CSV. Any grammar error, or a missing required column, is fatal to the batch.
func readTable(r io.Reader, required []string) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("unreadable csv: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}

	t := &table{columns: make(map[string]int), rows: records[1:]}
	for i, name := range records[0] {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := t.columns[name]; !dup {
			t.columns[name] = i
		}
	}
	var missing []string
	for _, col := range required {
		if _, ok := t.columns[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, models.Invalid(models.KindMissingRequiredField, "missing required columns: %s", strings.Join(missing, ", "))
	}
	return t, nil
}

// record returns the 1-based data row n.
func (t *table) record(n int) record {
	return record{table: t, fields: t.rows[n-1], row: n}
}

type record struct {
	table  *table
	fields []string
	row    int
}

// get returns the trimmed value of column, or "" when absent.
func (r record) get(column string) string {
	i, ok := r.table.columns[column]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

func (r record) require(columns ...string) error {
	for _, c := range columns {
		if r.get(c) == "" {
			return models.Invalid(models.KindMissingRequiredField, "%s is required", c)
		}
	}
	return nil
}

func (r record) localID() string { return strconv.Itoa(r.row) }
