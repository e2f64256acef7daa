package reference

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrMissingColumn = errors.New("reference table is missing a required column")

// Entry is one row of the reference table.
type Entry struct {
	Symbol   string `json:"symbol"`
	Industry string `json:"industry"`
	Sector   string `json:"sector"`
}

// Table is the loaded ticker lookup. Entries keep file order.
type Table struct {
	entries []Entry
	index   map[string]int
}

func NewTable(entries []Entry) *Table {
	t := &Table{index: make(map[string]int, len(entries))}
	for _, e := range entries {
		t.add(e)
	}
	return t
}

func (t *Table) add(e Entry) {
	e.Symbol = normalize(e.Symbol)
	if e.Symbol == "" {
		return
	}
	if i, ok := t.index[e.Symbol]; ok {
		t.entries[i] = e
		return
	}
	t.index[e.Symbol] = len(t.entries)
	t.entries = append(t.entries, e)
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

func (t *Table) Get(symbol string) (Entry, bool) {
	if t == nil {
		return Entry{}, false
	}
	i, ok := t.index[normalize(symbol)]
	if !ok {
		return Entry{}, false
	}
	return t.entries[i], true
}

// Entries returns a copy of the rows in file order.
func (t *Table) Entries() []Entry {
	if t == nil {
		return nil
	}
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func cleanLabel(v string) string {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, "NA") {
		return ""
	}
	return v
}

func findColumn(header []string, names ...string) int {
	for _, name := range names {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i
			}
		}
	}
	return -1
}

// ParseTable reads a comma separated reference file with a header row. The
// symbol column is "stock name" or "symbol", the industry column is "basic
// industry" or "industry" and the sector column is "sector", falling back to
// the last column.
func ParseTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read reference header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	symbolIdx := findColumn(header, "stock name", "symbol")
	if symbolIdx < 0 {
		return nil, fmt.Errorf("%w: symbol", ErrMissingColumn)
	}
	industryIdx := findColumn(header, "basic industry", "industry")
	sectorIdx := findColumn(header, "sector")
	if sectorIdx < 0 {
		sectorIdx = len(header) - 1
	}
	if industryIdx < 0 && sectorIdx == symbolIdx {
		return nil, fmt.Errorf("%w: industry or sector", ErrMissingColumn)
	}

	col := func(row []string, i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return row[i]
	}

	t := NewTable(nil)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read reference row: %w", err)
		}
		t.add(Entry{
			Symbol:   col(row, symbolIdx),
			Industry: cleanLabel(col(row, industryIdx)),
			Sector:   cleanLabel(col(row, sectorIdx)),
		})
	}
	return t, nil
}
