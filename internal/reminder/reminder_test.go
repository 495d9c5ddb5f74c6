package reminder

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func seqIDs() func() ID {
	n := 0
	return func() ID {
		n++
		return ID(fmt.Sprintf("r%d", n))
	}
}

func TestPhaseOffsetsAndMessages(t *testing.T) {
	t.Parallel()
	when := time.Date(2030, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		phase  Phase
		fireAt time.Time
		msg    string
	}{
		{Pre30, when.Add(-30 * time.Minute), "❗️in 30 minutes❗️\nTea"},
		{Pre5, when.Add(-5 * time.Minute), "❗️in 5 minutes❗️\nTea"},
		{Exact, when, "Tea"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.phase.String(), func(t *testing.T) {
			t.Parallel()
			if got := tt.phase.FireAt(when); !got.Equal(tt.fireAt) {
				t.Fatalf("FireAt = %v, want %v", got, tt.fireAt)
			}
			if got := tt.phase.Message("Tea"); got != tt.msg {
				t.Fatalf("Message = %q, want %q", got, tt.msg)
			}
		})
	}
	if !Exact.Terminal() || Pre5.Terminal() {
		t.Fatal("only Exact is terminal")
	}
}

func TestJobIDString(t *testing.T) {
	t.Parallel()
	j := JobID{Reminder: "abc", Phase: Pre5}
	if j.String() != "abc/pre5" {
		t.Fatalf("JobID = %q", j.String())
	}
}

func TestMemoryStoreListOrder(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore(WithIDFunc(seqIDs()))
	base := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)

	mustCreate := func(owner int64, when time.Time, text string) Reminder {
		t.Helper()
		r, err := s.Create(owner, when, text)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		return r
	}
	late := mustCreate(1, base.Add(2*time.Hour), "late")
	first := mustCreate(1, base, "first")
	second := mustCreate(1, base, "second")
	mustCreate(2, base, "other owner")

	got := s.List(1)
	want := []ID{first.ID, second.ID, late.ID}
	if len(got) != len(want) {
		t.Fatalf("List len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("List[%d] = %s, want %s", i, got[i].ID, want[i])
		}
	}
	if n := len(s.List(3)); n != 0 {
		t.Fatalf("unknown owner has %d reminders", n)
	}
}

func TestMemoryStoreDeleteIdempotent(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	r, err := s.Create(1, time.Now().Add(time.Hour), "x")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !s.Delete(r.ID) {
		t.Fatal("first delete should report existing")
	}
	if s.Delete(r.ID) {
		t.Fatal("second delete should be a no-op")
	}
	if _, err := s.Get(r.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete = %v, want ErrNotFound", err)
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d", s.Len())
	}
}

func TestMemoryStoreRejectsEmptyText(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()
	if _, err := s.Create(1, time.Now(), "   "); !errors.Is(err, ErrInvalidSelection) {
		t.Fatalf("Create empty = %v", err)
	}
}

func TestMemoryStoreIDCollisionRetries(t *testing.T) {
	t.Parallel()
	ids := []ID{"dup", "dup", "fresh"}
	i := 0
	s := NewMemoryStore(WithIDFunc(func() ID {
		id := ids[i%len(ids)]
		i++
		return id
	}))
	a, _ := s.Create(1, time.Now(), "a")
	b, err := s.Create(1, time.Now(), "b")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.ID == b.ID {
		t.Fatalf("ids collided: %s", a.ID)
	}
}
