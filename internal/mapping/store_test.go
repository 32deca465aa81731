package mapping

import (
	"fmt"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fillStore(t *testing.T, n int) (*Store, []Mapping) {
	t.Helper()
	s := NewStore()
	added := make([]Mapping, 0, n)
	for i := 0; i < n; i++ {
		m := New(i, fmt.Sprintf("/bus/%d/mix/fader", i+1), ControlTypeFader)
		m.Name = fmt.Sprintf("row%d", i)
		added = append(added, s.Add(m))
	}
	return s, added
}

func TestAddAppendsAndAllowsDuplicateCC(t *testing.T) {
	s := NewStore()
	a := s.Add(Mapping{CC: 5, OSCAddress: "/ch/01/mix/01/level"})
	b := s.Add(Mapping{CC: 5, OSCAddress: "/bus/1/mix/fader"})

	require.Equal(t, 2, s.Len())
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)

	all := s.All()
	assert.Equal(t, "/ch/01/mix/01/level", all[0].OSCAddress)
	assert.Equal(t, "/bus/1/mix/fader", all[1].OSCAddress)
}

func TestAddKeepsExistingID(t *testing.T) {
	s := NewStore()
	got := s.Add(Mapping{ID: "fixed", CC: 1})
	assert.Equal(t, "fixed", got.ID)
}

func TestRemoveAtDescendingKeepsSurvivorsInOrder(t *testing.T) {
	s, added := fillStore(t, 5)

	removed := s.RemoveAt(0, 2, 4)
	assert.Equal(t, 3, removed)

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, added[1].ID, all[0].ID)
	assert.Equal(t, added[3].ID, all[1].ID)
}

func TestRemoveAtAnyInputOrder(t *testing.T) {
	s, added := fillStore(t, 5)

	s.RemoveAt(4, 0, 2)

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, added[1].ID, all[0].ID)
	assert.Equal(t, added[3].ID, all[1].ID)
}

func TestRemoveAtIgnoresDuplicatesAndOutOfRange(t *testing.T) {
	s, added := fillStore(t, 3)

	removed := s.RemoveAt(1, 1, 7, -1)
	assert.Equal(t, 1, removed)

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, added[0].ID, all[0].ID)
	assert.Equal(t, added[2].ID, all[1].ID)

	assert.Equal(t, 0, s.RemoveAt())
}

func TestRemoveByID(t *testing.T) {
	s, added := fillStore(t, 3)

	assert.True(t, s.Remove(added[1].ID))
	assert.False(t, s.Remove(added[1].ID))
	assert.Equal(t, 2, s.Len())
}

func TestReplace(t *testing.T) {
	s, added := fillStore(t, 2)

	err := s.Replace(1, Fields{
		Name:        "Bus 3",
		CC:          20,
		OSCAddress:  "/bus/3/mix/fader",
		Min:         " 0.5 ",
		Max:         "-2",
		ControlType: "button",
	})
	require.NoError(t, err)

	got, ok := s.At(1)
	require.True(t, ok)
	assert.Equal(t, added[1].ID, got.ID)
	assert.Equal(t, Mapping{
		ID:          added[1].ID,
		CC:          20,
		OSCAddress:  "/bus/3/mix/fader",
		Min:         0.5,
		Max:         -2,
		Name:        "Bus 3",
		ControlType: ControlTypeButton,
	}, got)
}

func TestReplaceFallsBackToUnitRange(t *testing.T) {
	tests := []struct {
		name     string
		min, max string
	}{
		{"bad min", "abc", "10"},
		{"bad max", "3", "ten"},
		{"both empty", "", ""},
		{"infinite max", "0", "inf"},
		{"infinite min", "-Inf", "1"},
		{"nan", "NaN", "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := fillStore(t, 1)
			err := s.Replace(0, Fields{CC: 1, OSCAddress: "/bus/1/mix/fader", Min: tt.min, Max: tt.max})
			require.NoError(t, err)

			got, _ := s.At(0)
			assert.Equal(t, 0.0, got.Min)
			assert.Equal(t, 1.0, got.Max)
			assert.Equal(t, ControlTypeFader, got.ControlType)
		})
	}
}

func TestReplaceErrors(t *testing.T) {
	s, _ := fillStore(t, 1)

	err := s.Replace(3, Fields{CC: 1, Min: "0", Max: "1"})
	assert.True(t, errors.Is(err, ErrRowOutOfRange))

	err = s.Replace(0, Fields{CC: 128, Min: "0", Max: "1"})
	assert.True(t, errors.Is(err, ErrCCOutOfRange))

	got, _ := s.At(0)
	assert.Equal(t, "row0", got.Name)
}

func TestMatchingReturnsEveryMappingInOrder(t *testing.T) {
	s := NewStore()
	s.Add(Mapping{CC: 5, OSCAddress: "/a"})
	s.Add(Mapping{CC: 6, OSCAddress: "/b"})
	s.Add(Mapping{CC: 5, OSCAddress: "/c"})

	got := s.Matching(5)
	require.Len(t, got, 2)
	assert.Equal(t, "/a", got[0].OSCAddress)
	assert.Equal(t, "/c", got[1].OSCAddress)

	assert.Empty(t, s.Matching(99))
}

func TestReplaceAllAssignsIDs(t *testing.T) {
	s, _ := fillStore(t, 3)

	s.ReplaceAll([]Mapping{{CC: 9, OSCAddress: "/x"}})

	all := s.All()
	require.Len(t, all, 1)
	assert.NotEmpty(t, all[0].ID)
	assert.Equal(t, 9, all[0].CC)
}

func TestAllReturnsCopy(t *testing.T) {
	s, _ := fillStore(t, 1)

	all := s.All()
	all[0].Name = "changed"

	got, _ := s.At(0)
	assert.Equal(t, "row0", got.Name)
}

func TestConcurrentEditAndLookup(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			s.Add(Mapping{CC: i % 4})
			if i%3 == 0 {
				s.RemoveAt(0)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			for _, m := range s.Matching(i % 4) {
				assert.Equal(t, i%4, m.CC)
			}
		}
	}()
	wg.Wait()
}
