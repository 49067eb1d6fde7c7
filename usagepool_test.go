// Copyright 2026 The routecore Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package routecore

import (
	"errors"
	"sync"
	"testing"
)

type mockDestructor struct {
	value     string
	destroyed bool
	err       error
}

func (m *mockDestructor) Destruct() error {
	m.destroyed = true
	return m.err
}

func TestUsagePoolLoadOrNew(t *testing.T) {
	pool := NewUsagePool[string, *mockDestructor]()

	val, loaded, err := pool.LoadOrNew("k", func() (*mockDestructor, error) {
		return &mockDestructor{value: "v"}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded {
		t.Error("loaded true for new value")
	}
	if val.value != "v" {
		t.Errorf("value = %q", val.value)
	}

	val2, loaded2, err := pool.LoadOrNew("k", func() (*mockDestructor, error) {
		t.Error("constructor called for existing value")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !loaded2 || val2 != val {
		t.Error("second load did not return the existing value")
	}

	if refs, ok := pool.References("k"); !ok || refs != 2 {
		t.Errorf("references = %d (ok=%v), want 2", refs, ok)
	}
}

func TestUsagePoolConstructorError(t *testing.T) {
	pool := NewUsagePool[string, *mockDestructor]()
	wantErr := errors.New("constructor failed")

	_, loaded, err := pool.LoadOrNew("k", func() (*mockDestructor, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want constructor error", err)
	}
	if loaded {
		t.Error("loaded true for failed construction")
	}
	if _, ok := pool.References("k"); ok {
		t.Error("key present after constructor failure")
	}
}

func TestUsagePoolDeleteDestructsAtZero(t *testing.T) {
	pool := NewUsagePool[string, *mockDestructor]()
	val := &mockDestructor{value: "v"}

	pool.LoadOrStore("k", val)
	pool.LoadOrStore("k", val)

	deleted, err := pool.Delete("k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted || val.destroyed {
		t.Fatal("destroyed with a usage outstanding")
	}

	deleted, err = pool.Delete("k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deleted || !val.destroyed {
		t.Fatal("not destroyed at zero usages")
	}
	if _, ok := pool.References("k"); ok {
		t.Error("key present after destruction")
	}
}

func TestUsagePoolDeleteMissingKey(t *testing.T) {
	pool := NewUsagePool[string, *mockDestructor]()
	deleted, err := pool.Delete("absent")
	if err != nil || deleted {
		t.Fatalf("Delete(absent) = (%v, %v), want (false, nil)", deleted, err)
	}
}

func TestUsagePoolDestructorError(t *testing.T) {
	pool := NewUsagePool[string, *mockDestructor]()
	wantErr := errors.New("destructor failed")
	val := &mockDestructor{err: wantErr}

	pool.LoadOrStore("k", val)
	deleted, err := pool.Delete("k")
	if !deleted {
		t.Error("deleted = false at zero usages")
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want destructor error", err)
	}
	if !val.destroyed {
		t.Error("destructor not called despite error")
	}
}

func TestUsagePoolRange(t *testing.T) {
	pool := NewUsagePool[string, *mockDestructor]()
	for _, k := range []string{"a", "b", "c"} {
		pool.LoadOrStore(k, &mockDestructor{value: k})
	}

	found := make(map[string]string)
	pool.Range(func(k string, v *mockDestructor) bool {
		found[k] = v.value
		return true
	})
	if len(found) != 3 {
		t.Fatalf("ranged over %d values, want 3", len(found))
	}

	count := 0
	pool.Range(func(string, *mockDestructor) bool {
		count++
		return false
	})
	if count != 1 {
		t.Fatalf("early return ranged %d times, want 1", count)
	}
}

func TestUsagePoolConcurrentLoadOrNew(t *testing.T) {
	pool := NewUsagePool[string, *mockDestructor]()

	var mu sync.Mutex
	constructions := 0

	const goroutines = 50
	var wg sync.WaitGroup
	results := make([]*mockDestructor, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			val, _, err := pool.LoadOrNew("k", func() (*mockDestructor, error) {
				mu.Lock()
				constructions++
				mu.Unlock()
				return &mockDestructor{value: "shared"}, nil
			})
			if err != nil {
				t.Errorf("goroutine %d: %v", i, err)
				return
			}
			results[i] = val
		}(i)
	}
	wg.Wait()

	if constructions != 1 {
		t.Errorf("constructor ran %d times, want 1", constructions)
	}
	for i, v := range results {
		if v != results[0] {
			t.Errorf("goroutine %d saw a different value", i)
		}
	}
	if refs, _ := pool.References("k"); refs != goroutines {
		t.Errorf("references = %d, want %d", refs, goroutines)
	}
}
