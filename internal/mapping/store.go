package mapping

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	// ErrRowOutOfRange is returned when an edit targets a row that does not exist
	ErrRowOutOfRange = errors.New("mapping row out of range")

	// ErrCCOutOfRange is returned when an edit carries a controller number outside 0..127
	ErrCCOutOfRange = errors.New("controller number out of range")
)

// Fields holds the edited text of a table row
type Fields struct {
	Name        string
	CC          int
	OSCAddress  string
	Min         string
	Max         string
	ControlType string
}

// Store is the ordered mapping table. Order is insertion order and is also
// the order in which mappings sharing a CC are sent.
type Store struct {
	mu       sync.RWMutex
	mappings []Mapping
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		mappings: []Mapping{},
	}
}

// Add appends a mapping to the end of the table and returns it with its ID set
func (s *Store) Add(m Mapping) Mapping {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.mappings = append(s.mappings, m)
	return m
}

// RemoveAt removes the given rows. Rows are handled highest first so earlier
// removals never shift rows still waiting to be removed. Duplicate and
// out-of-range rows are ignored. Returns the number of rows removed.
func (s *Store) RemoveAt(rows ...int) int {
	unique := make(map[int]struct{}, len(rows))
	ordered := make([]int, 0, len(rows))
	for _, r := range rows {
		if _, seen := unique[r]; seen {
			continue
		}
		unique[r] = struct{}{}
		ordered = append(ordered, r)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ordered)))

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, r := range ordered {
		if r < 0 || r >= len(s.mappings) {
			continue
		}
		s.mappings = append(s.mappings[:r], s.mappings[r+1:]...)
		removed++
	}
	return removed
}

// Remove removes a mapping by ID
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.mappings {
		if s.mappings[i].ID == id {
			s.mappings = append(s.mappings[:i], s.mappings[i+1:]...)
			return true
		}
	}
	return false
}

// Replace overwrites a row from edited fields. If Min or Max is not a
// number the row gets the range (0, 1) instead; that is not an error.
func (s *Store) Replace(row int, f Fields) error {
	if f.CC < 0 || f.CC > MaxValue {
		return errors.Wrapf(ErrCCOutOfRange, "cc %d", f.CC)
	}

	min, max, ok := parseRange(f.Min, f.Max)
	if !ok {
		min, max = 0, 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if row < 0 || row >= len(s.mappings) {
		return errors.Wrapf(ErrRowOutOfRange, "row %d", row)
	}

	s.mappings[row] = Mapping{
		ID:          s.mappings[row].ID,
		CC:          f.CC,
		OSCAddress:  f.OSCAddress,
		Min:         min,
		Max:         max,
		Name:        f.Name,
		ControlType: ParseControlType(f.ControlType),
	}
	return nil
}

func parseRange(minText, maxText string) (float64, float64, bool) {
	min, err := strconv.ParseFloat(strings.TrimSpace(minText), 64)
	if err != nil {
		return 0, 0, false
	}
	max, err := strconv.ParseFloat(strings.TrimSpace(maxText), 64)
	if err != nil {
		return 0, 0, false
	}
	if !finite(min) || !finite(max) {
		return 0, 0, false
	}
	return min, max, true
}

// ReplaceAll swaps the whole table, assigning IDs where missing
func (s *Store) ReplaceAll(ms []Mapping) {
	table := make([]Mapping, len(ms))
	for i, m := range ms {
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		table[i] = m
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.mappings = table
}

// All returns a copy of the table
func (s *Store) All() []Mapping {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Mapping, len(s.mappings))
	copy(out, s.mappings)
	return out
}

// At returns the mapping at a row
func (s *Store) At(row int) (Mapping, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if row < 0 || row >= len(s.mappings) {
		return Mapping{}, false
	}
	return s.mappings[row], true
}

// Len returns the number of rows
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.mappings)
}

// Matching returns every mapping bound to cc, in table order
func (s *Store) Matching(cc int) []Mapping {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Mapping
	for _, m := range s.mappings {
		if m.CC == cc {
			out = append(out, m)
		}
	}
	return out
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
