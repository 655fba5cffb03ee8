package bioscan

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry is the in-memory set of named reference sequences. Names are unique;
// adding an existing name replaces its sequence.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]string
	metrics *Metrics
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]string)}
}

// NewSeededRegistry constructs a registry holding seeds, validated like any other entry.
func NewSeededRegistry(seeds []ReceptorEntry) (*Registry, error) {
	r := NewRegistry()
	if err := r.AddAll(seeds); err != nil {
		return nil, fmt.Errorf("seed registry: %w", err)
	}
	return r, nil
}

// Instrument reports the registry size to m.
func (r *Registry) Instrument(m *Metrics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = m
	m.setRegistrySize(len(r.entries))
}

// Add cleans rawSequence and stores it under the trimmed name.
func (r *Registry) Add(name, rawSequence string) (ReceptorEntry, error) {
	entry, err := prepareEntry(name, rawSequence)
	if err != nil {
		return ReceptorEntry{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.Name] = entry.Sequence
	r.metrics.setRegistrySize(len(r.entries))
	return entry, nil
}

// AddAll registers every entry or none: the batch is validated before any write.
func (r *Registry) AddAll(entries []ReceptorEntry) error {
	prepared := make([]ReceptorEntry, 0, len(entries))
	for i, e := range entries {
		p, err := prepareEntry(e.Name, e.Sequence)
		if err != nil {
			return fmt.Errorf("entry %d (%q): %w", i+1, e.Name, err)
		}
		prepared = append(prepared, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range prepared {
		r.entries[p.Name] = p.Sequence
	}
	r.metrics.setRegistrySize(len(r.entries))
	return nil
}

func prepareEntry(name, rawSequence string) (ReceptorEntry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ReceptorEntry{}, validationErrorf("receptor name is empty")
	}
	seq := NormalizeSequence(rawSequence)
	if !ValidSequence(seq) {
		return ReceptorEntry{}, validationErrorf("receptor %q sequence has %d residues, need more than %d", name, len(seq), MinSequenceLength)
	}
	return ReceptorEntry{Name: name, Sequence: seq}, nil
}

// Get returns the entry registered under name.
func (r *Registry) Get(name string) (ReceptorEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seq, ok := r.entries[name]
	if !ok {
		return ReceptorEntry{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return ReceptorEntry{Name: name, Sequence: seq}, nil
}

// All returns a snapshot of every entry sorted by name.
func (r *Registry) All() []ReceptorEntry {
	r.mu.RLock()
	out := make([]ReceptorEntry, 0, len(r.entries))
	for name, seq := range r.entries {
		out = append(out, ReceptorEntry{Name: name, Sequence: seq})
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

// Names returns the sorted receptor names.
func (r *Registry) Names() []string {
	all := r.All()
	names := make([]string, len(all))
	for i, e := range all {
		names[i] = e.Name
	}
	return names
}

// Len returns the number of registered receptors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
