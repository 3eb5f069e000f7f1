package tasks

import (
	"sync"
	"testing"
)

func TestBeginEnd(t *testing.T) {
	tr := New("test_begin_end")
	tr.Begin("x")
	if !tr.IsActive("x") {
		t.Fatal("expected x to be active after Begin")
	}
	tr.End("x")
	if tr.IsActive("x") {
		t.Fatal("expected x to be idle after End")
	}
}

func TestEndUnknownIsNoop(t *testing.T) {
	tr := New("test_end_unknown")
	var calls int
	tr.Observe(func(string, bool) { calls++ })

	tr.End("never-begun")
	if tr.IsActive("never-begun") || calls != 0 {
		t.Fatalf("expected no state change, observer calls=%d", calls)
	}
}

func TestBeginIsIdempotent(t *testing.T) {
	tr := New("test_idempotent")
	tr.Begin("x")
	tr.Begin("x")
	if got := tr.Active(); len(got) != 1 || got[0] != "x" {
		t.Fatalf("unexpected active set: %v", got)
	}
	tr.End("x")
	if tr.IsActive("x") {
		t.Fatal("single End should clear a re-marked id")
	}
}

func TestTryBegin(t *testing.T) {
	tr := New("test_try_begin")
	if !tr.TryBegin("x") {
		t.Fatal("expected first TryBegin to succeed")
	}
	if tr.TryBegin("x") {
		t.Fatal("expected second TryBegin to report already active")
	}
	if !tr.TryBegin("y") {
		t.Fatal("expected other id to be independent")
	}
}

func TestEntitiesAreIndependent(t *testing.T) {
	tr := New("test_independent")
	tr.Begin("a")
	tr.Begin("b")
	tr.End("a")
	if tr.IsActive("a") || !tr.IsActive("b") {
		t.Fatalf("unexpected state: a=%v b=%v", tr.IsActive("a"), tr.IsActive("b"))
	}
	if got := tr.Active(); len(got) != 1 || got[0] != "b" {
		t.Fatalf("unexpected active set: %v", got)
	}
}

func TestObserverSeesChangesInOrder(t *testing.T) {
	tr := New("test_observer")
	type change struct {
		id     string
		active bool
	}
	var got []change
	tr.Observe(func(id string, active bool) {
		if tr.IsActive(id) != active {
			t.Errorf("observer for %s ran before state was visible", id)
		}
		got = append(got, change{id, active})
	})

	tr.Begin("a")
	tr.Begin("b")
	tr.End("a")

	want := []change{{"a", true}, {"b", true}, {"a", false}}
	if len(got) != len(want) {
		t.Fatalf("expected %d changes, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("change %d: got %+v want %+v", i, got[i], want[i])
		}
	}
}

func TestConcurrentUse(t *testing.T) {
	tr := New("test_concurrent")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		id := string(rune('a' + i%26))
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Begin(id)
			_ = tr.IsActive(id)
			tr.End(id)
		}()
	}
	wg.Wait()
	if got := tr.Active(); len(got) != 0 {
		t.Fatalf("expected no active ids, got %v", got)
	}
}
