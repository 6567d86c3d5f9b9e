package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/opsdash/servicekpi/internal/report"
)

func TestStoreLifecycle(t *testing.T) {
	s := NewStore()
	if s.Len() != 0 {
		t.Fatalf("new store not empty: %d", s.Len())
	}

	s.Put(&report.Session{ID: "b"})
	s.Put(&report.Session{ID: "a"})

	sess, ok := s.Get("a")
	if !ok || sess.ID != "a" {
		t.Errorf("Get(a): got %v %v", sess, ok)
	}
	if _, ok := s.Get("missing"); ok {
		t.Error("Get(missing): expected not found")
	}

	ids := s.IDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("IDs: got %v, want sorted [a b]", ids)
	}

	if !s.Delete("a") {
		t.Error("Delete(a): expected true")
	}
	if s.Delete("a") {
		t.Error("Delete(a) twice: expected false")
	}
	if s.Len() != 1 {
		t.Errorf("Len after delete: got %d, want 1", s.Len())
	}
}

func TestStorePutReplaces(t *testing.T) {
	s := NewStore()
	first := &report.Session{ID: "x"}
	second := &report.Session{ID: "x"}
	s.Put(first)
	s.Put(second)
	if s.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", s.Len())
	}
	got, _ := s.Get("x")
	if got != second {
		t.Error("expected the later session to win")
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s-%d", i)
			s.Put(&report.Session{ID: id})
			s.Get(id)
			s.IDs()
		}(i)
	}
	wg.Wait()
	if s.Len() != 20 {
		t.Errorf("expected 20 sessions, got %d", s.Len())
	}
}
