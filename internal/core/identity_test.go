package core

import (
	"sort"
	"sync"
	"testing"

	"containercore/pkg/domain"
)

func TestULIDGeneratorUniqueAndSortable(t *testing.T) {
	gen := NewULIDGenerator()
	const n = 1000
	ids := make([]string, n)
	for i := range ids {
		ids[i] = gen.NextID()
	}

	seen := make(map[string]struct{}, n)
	for _, id := range ids {
		if len(id) != 26 {
			t.Fatalf("unexpected id length %q", id)
		}
		if domain.IsPlaceholder(id) {
			t.Fatalf("generated id in placeholder namespace: %q", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}

	if !sort.StringsAreSorted(ids) {
		t.Fatal("ids not monotonically sortable in issue order")
	}
}

func TestULIDGeneratorConcurrent(t *testing.T) {
	gen := NewULIDGenerator()
	const workers, per = 8, 200

	var mu sync.Mutex
	seen := make(map[string]struct{}, workers*per)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]string, per)
			for i := range local {
				local[i] = gen.NextID()
			}
			mu.Lock()
			for _, id := range local {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != workers*per {
		t.Fatalf("expected %d unique ids, got %d", workers*per, len(seen))
	}
}
