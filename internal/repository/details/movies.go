// Package details loads the denormalized movie and user description tables.
// These are produced upstream and read-only here: the movie rows double as
// the writer's text source and as index payloads.
package details

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/cinevec/cinevec/internal/domain"
)

// Movies is an in-memory, id-keyed view of the movie description table.
type Movies struct {
	ordered []domain.MovieDetail
	byID    map[int64]int
}

// LoadMovies reads a CSV with id and text columns, preserving row order.
func LoadMovies(path string) (*Movies, error) {
	m := &Movies{byID: make(map[int64]int)}
	err := readTable(path, func(row map[string]string) error {
		id, err := strconv.ParseInt(row["id"], 10, 64)
		if err != nil {
			return fmt.Errorf("parse movie id %q: %w", row["id"], err)
		}
		m.byID[id] = len(m.ordered)
		m.ordered = append(m.ordered, domain.MovieDetail{ID: id, Text: row["text"]})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Get returns the detail row for a movie id.
func (m *Movies) Get(id int64) (domain.MovieDetail, bool) {
	i, ok := m.byID[id]
	if !ok {
		return domain.MovieDetail{}, false
	}
	return m.ordered[i], true
}

// All returns rows in table order.
func (m *Movies) All() []domain.MovieDetail { return m.ordered }

// TextRecords returns the rows as the writer's embedding source, in table order.
func (m *Movies) TextRecords() []domain.TextRecord {
	recs := make([]domain.TextRecord, len(m.ordered))
	for i, d := range m.ordered {
		recs[i] = domain.TextRecord{ID: d.ID, Text: d.Text}
	}
	return recs
}

// readTable streams CSV rows as header-keyed maps.
func readTable(path string, fn func(row map[string]string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open table %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("read header of %s: %w", path, err)
	}

	for {
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read row of %s: %w", path, err)
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}
