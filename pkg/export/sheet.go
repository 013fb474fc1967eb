package export

import "errors"

// ErrNoColumns is returned when a sheet has nothing to render.
var ErrNoColumns = errors.New("export: sheet has no columns")

// Column describes one field of a sheet. Width is in millimetres and only
// affects PDF output; zero means share the remaining page width.
type Column struct {
	Key   string
	Label string
	Width float64
}

// Sheet is a titled table with optional summary lines printed above it.
type Sheet struct {
	Title   string
	Summary []string
	Columns []Column
	Rows    []map[string]string
}

func (s Sheet) labels() []string {
	out := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		out[i] = col.Label
		if out[i] == "" {
			out[i] = col.Key
		}
	}
	return out
}

func (s Sheet) record(row map[string]string) []string {
	out := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		out[i] = row[col.Key]
	}
	return out
}
