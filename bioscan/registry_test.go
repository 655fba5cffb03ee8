package bioscan

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAddCleansAndTrims(t *testing.T) {
	r := NewRegistry()
	entry, err := r.Add("  CCR5 ", ">hdr\nmdyqvssp iyd\n")
	require.NoError(t, err)
	assert.Equal(t, ReceptorEntry{Name: "CCR5", Sequence: "MDYQVSSPIYD"}, entry)

	got, err := r.Get("CCR5")
	require.NoError(t, err)
	assert.Equal(t, entry, got)
}

func TestRegistryRejectsInvalidEntries(t *testing.T) {
	r := NewRegistry()

	_, err := r.Add("", "MKVLLPAAAAAA")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = r.Add("   ", "MKVLLPAAAAAA")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = r.Add("X", "MKV")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = r.Add("Ten", "MKVLLPAAAA")
	assert.ErrorIs(t, err, ErrValidation)

	assert.Equal(t, 0, r.Len())
}

func TestRegistryOverwritesDuplicateNames(t *testing.T) {
	r := NewRegistry()
	_, err := r.Add("R1", "AAAAAAAAAAAA")
	require.NoError(t, err)
	_, err = r.Add("R1", "CCCCCCCCCCCC")
	require.NoError(t, err)

	assert.Equal(t, 1, r.Len())
	got, err := r.Get("R1")
	require.NoError(t, err)
	assert.Equal(t, "CCCCCCCCCCCC", got.Sequence)
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRegistryAllSortedSnapshot(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"NTCP", "ACE2", "CD4"} {
		_, err := r.Add(name, "MKVLLPAAAAAAA")
		require.NoError(t, err)
	}
	all := r.All()
	assert.Equal(t, []string{"ACE2", "CD4", "NTCP"}, r.Names())

	all[0].Name = "mutated"
	assert.Equal(t, "ACE2", r.All()[0].Name)
}

func TestRegistryAddAllIsAtomic(t *testing.T) {
	r := NewRegistry()
	err := r.AddAll([]ReceptorEntry{
		{Name: "good", Sequence: "MKVLLPAAAAAAA"},
		{Name: "bad", Sequence: "MKV"},
	})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "entry 2")
	assert.Equal(t, 0, r.Len())
}

func TestSeededRegistryHoldsDefaults(t *testing.T) {
	r, err := NewSeededRegistry(DefaultReceptors())
	require.NoError(t, err)
	assert.Equal(t, []string{"Receptor ACE2", "Receptor CCR5", "Receptor CD4", "Receptor NTCP", "Receptor Sialic"}, r.Names())
	for _, e := range r.All() {
		assert.True(t, ValidSequence(e.Sequence), e.Name)
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.Add(fmt.Sprintf("R%02d", i), "MKVLLPAAAAAAA")
			assert.NoError(t, err)
			_ = r.All()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 16, r.Len())
}
