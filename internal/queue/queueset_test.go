package queue

import "testing"

func TestPushPopFIFOOrder(t *testing.T) {
	s := NewSet()
	if err := s.Push(Q1, 1); err != nil {
		t.Fatal(err)
	}
	if err := s.Push(Q1, 2); err != nil {
		t.Fatal(err)
	}
	if err := s.Push(Q1, 3); err != nil {
		t.Fatal(err)
	}

	for _, want := range []int{1, 2, 3} {
		h, p, ok := s.PopHighest()
		if !ok || h != want || p != Q1 {
			t.Fatalf("PopHighest() = %d, %d, %v; want %d, %d, true", h, p, ok, want, Q1)
		}
	}
	if !s.IsEmpty() {
		t.Fatal("expected empty set")
	}
}

func TestPopHighestPrefersLowerQueueNumber(t *testing.T) {
	s := NewSet()
	_ = s.Push(Q3, 30)
	_ = s.Push(Q2, 20)
	_ = s.Push(Q1, 10)

	h, p, ok := s.PopHighest()
	if !ok || h != 10 || p != Q1 {
		t.Fatalf("expected Q1 handle first, got %d, %d, %v", h, p, ok)
	}
	h, p, ok = s.PopHighest()
	if !ok || h != 20 || p != Q2 {
		t.Fatalf("expected Q2 handle second, got %d, %d, %v", h, p, ok)
	}
	h, p, ok = s.PopHighest()
	if !ok || h != 30 || p != Q3 {
		t.Fatalf("expected Q3 handle third, got %d, %d, %v", h, p, ok)
	}
}

func TestPopHighestOnEmptySet(t *testing.T) {
	s := NewSet()
	if _, _, ok := s.PopHighest(); ok {
		t.Fatal("expected PopHighest on empty set to report ok=false")
	}
}

func TestSnapshotDoesNotMutate(t *testing.T) {
	s := NewSet()
	_ = s.Push(Q1, 1)
	_ = s.Push(Q2, 2)

	snap := s.Snapshot()
	if len(snap.Q1) != 1 || len(snap.Q2) != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if s.IsEmpty() {
		t.Fatal("Snapshot must not drain the queues")
	}
	if s.Depth() != 2 {
		t.Fatalf("Depth() = %d, want 2", s.Depth())
	}
}

func TestPushInvalidPriority(t *testing.T) {
	s := NewSet()
	if err := s.Push(3, 1); err == nil {
		t.Fatal("expected error for invalid priority")
	}
}
