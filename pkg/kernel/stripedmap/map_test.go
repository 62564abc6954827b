package stripedmap

import (
	"sync"
	"testing"
)

func TestStripedMapSetGetDelete(t *testing.T) {
	m := New[string, int]()
	m.Set("a", 1)
	if v, ok := m.Get("a"); !ok || v != 1 {
		t.Fatalf("Get got (%d,%v) want (1,true)", v, ok)
	}
	m.Delete("a")
	if _, ok := m.Get("a"); ok {
		t.Fatalf("Get succeeded after Delete")
	}
}

func TestStripedMapLen(t *testing.T) {
	m := New[string, int]()
	for i := 0; i < 10; i++ {
		m.Set(string(rune('a'+i)), i)
	}
	if got, want := m.Len(), 10; got != want {
		t.Fatalf("Len got %d want %d", got, want)
	}
}

func TestStripedMapConcurrentAccess(t *testing.T) {
	m := New[int, int]()
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Set(i, i*2)
		}(i)
	}
	wg.Wait()
	if got, want := m.Len(), 200; got != want {
		t.Fatalf("Len got %d want %d", got, want)
	}
	for i := 0; i < 200; i++ {
		if v, ok := m.Get(i); !ok || v != i*2 {
			t.Fatalf("Get(%d) got (%d,%v) want (%d,true)", i, v, ok, i*2)
		}
	}
}

func TestStripedMapRangeStopsEarly(t *testing.T) {
	m := New[int, int]()
	for i := 0; i < 5; i++ {
		m.Set(i, i)
	}
	seen := 0
	m.Range(func(k, v int) bool {
		seen++
		return false
	})
	if seen != 1 {
		t.Fatalf("Range with false-returning f should visit exactly 1 entry, saw %d", seen)
	}
}
