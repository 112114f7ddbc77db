// Package embstore is the durable append-only embedding store: a CSV file
// with columns id,vector where vector is serialized as a JSON array. The
// writer usecase is the only mutator; readers take a point-in-time Snapshot
// after a batch has finished.
package embstore

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/cinevec/cinevec/internal/domain"
)

const header = "id,vector"

// Store is a single-writer append-only embedding file. An absent file is an
// empty store, not an error.
type Store struct {
	path       string
	mu         sync.Mutex
	repairOnce sync.Once
}

// Open creates a handle for the store file. The file is not created until the
// first append.
func Open(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// IDs returns the set of ids already present in durable state.
func (s *Store) IDs() (map[int64]struct{}, error) {
	ids := make(map[int64]struct{})
	err := s.scan(func(rec domain.EmbeddingRecord) {
		ids[rec.ID] = struct{}{}
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Len returns the number of durable records.
func (s *Store) Len() (int, error) {
	n := 0
	if err := s.scan(func(domain.EmbeddingRecord) { n++ }); err != nil {
		return 0, err
	}
	return n, nil
}

// Append durably writes one record: the encoded line goes to disk in a single
// write followed by fsync, so a crash can only tear the trailing line, which
// the next open repairs. The caller guarantees id uniqueness.
func (s *Store) Append(rec domain.EmbeddingRecord) error {
	line, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repair(); err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open store %s: %w", s.path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat store %s: %w", s.path, err)
	}
	if st.Size() == 0 {
		line = append([]byte(header+"\n"), line...)
	}

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("append to store %s: %w", s.path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync store %s: %w", s.path, err)
	}
	return nil
}

// Load reads the whole store into an immutable snapshot in append order.
func (s *Store) Load() (*Snapshot, error) {
	sn := &Snapshot{byID: make(map[int64]int)}
	err := s.scan(func(rec domain.EmbeddingRecord) {
		sn.byID[rec.ID] = len(sn.records)
		sn.records = append(sn.records, rec)
	})
	if err != nil {
		return nil, err
	}
	return sn, nil
}

// scan streams durable records in file order. The tail is repaired first so
// that what scan reports durable is exactly what a later append preserves.
func (s *Store) scan(fn func(domain.EmbeddingRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repair(); err != nil {
		return err
	}

	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open store %s: %w", s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 2

	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return nil
		}
		if first {
			first = false
			if row[0] == "id" && row[1] == "vector" {
				continue
			}
		}

		rec, err := decodeRecord(row)
		if err != nil {
			return nil
		}
		fn(rec)
	}
}

// repair fixes the tail left by a crashed append, at most once per Store.
// Callers must hold s.mu.
func (s *Store) repair() error {
	var err error
	s.repairOnce.Do(func() { err = repairTornTail(s.path) })
	return err
}

// repairTornTail reconciles a file that does not end in '\n'. A crash during
// an append either lost part of the line or only the trailing newline. A
// fragment that still decodes as a full record is completed with the missing
// newline so the data survives; anything else is cut back to the last
// complete line.
func repairTornTail(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read store %s: %w", path, err)
	}
	if len(data) == 0 || data[len(data)-1] == '\n' {
		return nil
	}
	keep := int64(bytes.LastIndexByte(data, '\n') + 1)

	if tailDecodes(data[keep:]) {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open store %s: %w", path, err)
		}
		defer f.Close()
		if _, err := f.Write([]byte{'\n'}); err != nil {
			return fmt.Errorf("complete tail of %s: %w", path, err)
		}
		if err := f.Sync(); err != nil {
			return fmt.Errorf("sync store %s: %w", path, err)
		}
		return nil
	}

	if err := os.Truncate(path, keep); err != nil {
		return fmt.Errorf("truncate torn tail of %s: %w", path, err)
	}
	return nil
}

func tailDecodes(tail []byte) bool {
	r := csv.NewReader(bytes.NewReader(tail))
	r.FieldsPerRecord = 2
	row, err := r.Read()
	if err != nil {
		return false
	}
	if _, err := r.Read(); err != io.EOF {
		return false
	}
	_, err = decodeRecord(row)
	return err == nil
}

func encodeRecord(rec domain.EmbeddingRecord) ([]byte, error) {
	vec, err := json.Marshal(rec.Vector)
	if err != nil {
		return nil, fmt.Errorf("marshal vector for id %d: %w", rec.ID, err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{strconv.FormatInt(rec.ID, 10), string(vec)}); err != nil {
		return nil, fmt.Errorf("encode record for id %d: %w", rec.ID, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode record for id %d: %w", rec.ID, err)
	}
	return buf.Bytes(), nil
}

func decodeRecord(row []string) (domain.EmbeddingRecord, error) {
	id, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return domain.EmbeddingRecord{}, fmt.Errorf("parse id %q: %w", row[0], err)
	}
	var vec []float32
	if err := json.Unmarshal([]byte(row[1]), &vec); err != nil {
		return domain.EmbeddingRecord{}, fmt.Errorf("parse vector for id %d: %w", id, err)
	}
	return domain.EmbeddingRecord{ID: id, Vector: vec}, nil
}

// Snapshot is an immutable point-in-time view of a store.
type Snapshot struct {
	records []domain.EmbeddingRecord
	byID    map[int64]int
}

// Len returns the number of records.
func (sn *Snapshot) Len() int { return len(sn.records) }

// Records returns records in append order.
func (sn *Snapshot) Records() []domain.EmbeddingRecord { return sn.records }

// Vector returns the stored vector for an id.
func (sn *Snapshot) Vector(id int64) ([]float32, bool) {
	i, ok := sn.byID[id]
	if !ok {
		return nil, false
	}
	return sn.records[i].Vector, true
}

// Dim returns the vector dimensionality, 0 for an empty snapshot.
func (sn *Snapshot) Dim() int {
	if len(sn.records) == 0 {
		return 0
	}
	return len(sn.records[0].Vector)
}
