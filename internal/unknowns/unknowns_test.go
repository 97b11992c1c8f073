package unknowns

import (
	"fmt"
	"testing"

	"github.com/holelung/Face-recognition-attendance-check/internal/facematch"
)

func vectorAt(d float32) facematch.FaceVector {
	v := make(facematch.FaceVector, facematch.Dimension)
	v[0] = d
	return v
}

func TestOffer_IdenticalDescriptorSuppressedUntilResolved(t *testing.T) {
	table := New(0.4, 10)
	d := vectorAt(1)

	first, ok := table.Offer(d, "photo-1")
	if !ok || first == nil {
		t.Fatal("expected first offer to create a pending entry")
	}

	second, ok := table.Offer(d, "photo-2")
	if ok || second != nil {
		t.Fatalf("expected second identical offer to be suppressed, got %+v", second)
	}

	if !table.Resolve(first.Key) {
		t.Fatal("expected resolve to remove the entry")
	}

	third, ok := table.Offer(d, "photo-3")
	if !ok || third == nil {
		t.Fatal("expected a new entry after resolve")
	}
	if third.Key != first.Key {
		t.Errorf("expected content-derived key to be stable, got %s vs %s", third.Key, first.Key)
	}
	if third.Photo != "photo-3" {
		t.Errorf("expected new photo, got %s", third.Photo)
	}
}

func TestOffer_NearDuplicates(t *testing.T) {
	tests := []struct {
		name       string
		second     float32
		wantCreate bool
	}{
		{name: "within epsilon", second: 1.1, wantCreate: false},
		{name: "just below epsilon", second: 1.39, wantCreate: false},
		{name: "beyond epsilon", second: 2, wantCreate: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := New(0.4, 10)
			if _, ok := table.Offer(vectorAt(1), "a"); !ok {
				t.Fatal("first offer suppressed")
			}
			_, ok := table.Offer(vectorAt(tt.second), "b")
			if ok != tt.wantCreate {
				t.Errorf("Offer() created=%v, want %v", ok, tt.wantCreate)
			}
			want := 1
			if tt.wantCreate {
				want = 2
			}
			if table.Len() != want {
				t.Errorf("expected %d pending, got %d", want, table.Len())
			}
		})
	}
}

func TestOffer_EvictsOldestWhenFull(t *testing.T) {
	table := New(0.1, 3)
	var keys []string
	for i := range 4 {
		p, ok := table.Offer(vectorAt(float32(i)), fmt.Sprintf("p%d", i))
		if !ok {
			t.Fatalf("offer %d suppressed", i)
		}
		keys = append(keys, p.Key)
	}

	if table.Len() != 3 {
		t.Fatalf("expected 3 pending, got %d", table.Len())
	}
	if _, ok := table.Get(keys[0]); ok {
		t.Error("expected oldest entry to be evicted")
	}
	list := table.List()
	for i, p := range list {
		if p.Key != keys[i+1] {
			t.Errorf("position %d: expected %s, got %s", i, keys[i+1], p.Key)
		}
	}
}

func TestResolve_UnknownKey(t *testing.T) {
	table := New(0.4, 0)
	if table.Resolve("nope") {
		t.Error("expected false for unknown key")
	}
}

func TestClear(t *testing.T) {
	table := New(0.4, 0)
	table.Offer(vectorAt(1), "a")
	table.Offer(vectorAt(5), "b")
	table.Clear()

	if table.Len() != 0 || len(table.List()) != 0 {
		t.Error("expected empty table after clear")
	}
	if _, ok := table.Offer(vectorAt(1), "a"); !ok {
		t.Error("expected offer to succeed after clear")
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	table := New(0.4, 0)
	p, _ := table.Offer(vectorAt(1), "a")
	p.Descriptor[0] = 99

	got, ok := table.Get(p.Key)
	if !ok {
		t.Fatal("expected entry")
	}
	if got.Descriptor[0] != 1 {
		t.Error("pending entry changed through a returned copy")
	}
}
