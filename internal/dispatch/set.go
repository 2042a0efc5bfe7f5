package dispatch

import (
	"fmt"
	"sync"

	"horse.fit/glossian/internal/db"
	"horse.fit/glossian/internal/surface"
)

// Set holds one Dispatcher per kind. Kinds never share generation counters.
type Set struct {
	dispatchers map[db.Kind]*Dispatcher
}

// NewSet builds a dispatcher for each kind from base, overriding only Kind.
func NewSet(base Options, kinds []db.Kind) (*Set, error) {
	set := &Set{dispatchers: make(map[db.Kind]*Dispatcher, len(kinds))}
	for _, kind := range kinds {
		opts := base
		opts.Kind = kind
		d, err := New(opts)
		if err != nil {
			set.Close()
			return nil, fmt.Errorf("build %s dispatcher: %w", kind, err)
		}
		set.dispatchers[kind] = d
	}
	return set, nil
}

func (s *Set) Get(kind db.Kind) (*Dispatcher, error) {
	d, ok := s.dispatchers[kind]
	if !ok {
		return nil, fmt.Errorf("no dispatcher for kind %q", kind)
	}
	return d, nil
}

// SubmitWork routes a surface work item to the dispatcher of its kind.
func (s *Set) SubmitWork(item surface.WorkItem) bool {
	d, ok := s.dispatchers[item.Kind]
	if !ok {
		return false
	}
	return d.Submit(Request{Text: item.Text, Sender: item.Sender}, item.Target)
}

// Close closes every dispatcher concurrently and waits for all of them.
func (s *Set) Close() {
	var wg sync.WaitGroup
	for _, d := range s.dispatchers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Close()
		}()
	}
	wg.Wait()
}

var _ surface.Sink = (*Set)(nil)
