package facematch

import (
	"errors"
	"math"
	"testing"
)

func aliceGallery() *Gallery {
	return BuildGallery([]Subject{
		{ID: "s-1", Label: "Alice", Descriptors: []FaceVector{vectorAt(0)}},
	}, 1, WithThreshold(0.6))
}

func TestGallery_Match_AliceScenario(t *testing.T) {
	g := aliceGallery()

	near := g.Match(vectorAt(0.3))
	if near.Label != "Alice" {
		t.Fatalf("expected Alice, got %q", near.Label)
	}
	if near.IdentityID != "s-1" {
		t.Errorf("expected identity s-1, got %q", near.IdentityID)
	}
	if math.Abs(near.Distance-0.3) > 1e-6 {
		t.Errorf("expected distance 0.3, got %v", near.Distance)
	}

	far := g.Match(vectorAt(0.9))
	if far.Label != UnknownLabel {
		t.Errorf("expected unknown, got %q", far.Label)
	}
	if !math.IsInf(far.Distance, 1) {
		t.Errorf("expected +Inf distance for unknown, got %v", far.Distance)
	}
	if far.Matched() {
		t.Error("unknown result must not report a match")
	}
}

func TestGallery_Match_ExactDescriptorHasZeroDistance(t *testing.T) {
	subjects := []Subject{
		{ID: "a", Label: "Alice", Descriptors: []FaceVector{vectorAt(0), vectorAt(2)}},
		{ID: "b", Label: "Bob", Descriptors: []FaceVector{vectorAt(4)}},
		{ID: "c", Label: "Carol", Descriptors: []FaceVector{vectorAt(-3)}},
	}
	g := BuildGallery(subjects, 1)

	for _, s := range subjects {
		for _, d := range s.Descriptors {
			got := g.Match(d)
			if got.Label != s.Label || got.Distance != 0 {
				t.Errorf("Match(%s descriptor) = %+v, want label %s at 0", s.Label, got, s.Label)
			}
		}
	}
}

func TestGallery_Match_Threshold(t *testing.T) {
	// 0.5 is exact in float32 so the boundary case is not blurred by rounding.
	g := BuildGallery([]Subject{
		{ID: "s-1", Label: "Alice", Descriptors: []FaceVector{vectorAt(0)}},
	}, 1, WithThreshold(0.5))

	tests := []struct {
		name      string
		query     FaceVector
		wantLabel string
	}{
		{name: "inside threshold", query: vectorAt(0.49), wantLabel: "Alice"},
		{name: "on threshold", query: vectorAt(0.5), wantLabel: "Alice"},
		{name: "outside threshold", query: vectorAt(0.51), wantLabel: UnknownLabel},
		{name: "wrong dimension", query: FaceVector{0, 0}, wantLabel: UnknownLabel},
		{name: "nil query", query: nil, wantLabel: UnknownLabel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.Match(tt.query)
			if got.Label != tt.wantLabel {
				t.Errorf("Match() label = %q, want %q", got.Label, tt.wantLabel)
			}
		})
	}
}

func TestGallery_Match_Empty(t *testing.T) {
	var nilGallery *Gallery
	for name, g := range map[string]*Gallery{
		"nil":            nilGallery,
		"no subjects":    BuildGallery(nil, 0),
		"no descriptors": BuildGallery([]Subject{{ID: "x", Label: "Empty"}}, 0),
	} {
		t.Run(name, func(t *testing.T) {
			if got := g.Match(vectorAt(0)); got.Label != UnknownLabel {
				t.Errorf("expected unknown, got %q", got.Label)
			}
		})
	}
}

func TestGallery_Match_TieResolvesToFirstInserted(t *testing.T) {
	g := BuildGallery([]Subject{
		{ID: "a", Label: "Alice", Descriptors: []FaceVector{vectorAt(-0.2)}},
		{ID: "b", Label: "Bob", Descriptors: []FaceVector{vectorAt(0.2)}},
	}, 1)

	for range 10 {
		if got := g.Match(vectorAt(0)); got.Label != "Alice" {
			t.Fatalf("expected deterministic tie-break to Alice, got %q", got.Label)
		}
	}
}

func TestBuildGallery_GroupsByLabelAndSkipsInvalid(t *testing.T) {
	bad := vectorAt(0)
	bad[3] = float32(math.NaN())

	g := BuildGallery([]Subject{
		{ID: "a1", Label: "Alice", Descriptors: []FaceVector{vectorAt(0), bad}},
		{ID: "b", Label: "Bob"},
		{ID: "a2", Label: "Alice", Descriptors: []FaceVector{vectorAt(1)}},
		{ID: "c", Label: "Carol", Descriptors: []FaceVector{{1, 2, 3}}},
	}, 7)

	if g.Version() != 7 {
		t.Errorf("expected version 7, got %d", g.Version())
	}
	if g.Size() != 2 {
		t.Errorf("expected 2 descriptors, got %d", g.Size())
	}
	labels := g.Labels()
	if len(labels) != 1 || labels[0] != "Alice" {
		t.Errorf("expected only Alice label, got %v", labels)
	}
	if n := len(g.Descriptors("Alice")); n != 2 {
		t.Errorf("expected 2 Alice descriptors, got %d", n)
	}
	if n := len(g.Descriptors("Bob")); n != 0 {
		t.Errorf("expected no Bob descriptors, got %d", n)
	}
}

func TestBuildGallery_CopiesDescriptors(t *testing.T) {
	d := vectorAt(0)
	g := BuildGallery([]Subject{{ID: "a", Label: "Alice", Descriptors: []FaceVector{d}}}, 1)
	d[0] = 5

	if got := g.Match(vectorAt(0)); got.Distance != 0 {
		t.Errorf("gallery changed after caller mutated its descriptor: %+v", got)
	}
}

// stubIndex returns fixed positions or an error.
type stubIndex struct {
	positions []int
	err       error
}

func (s stubIndex) Search(FaceVector, int) ([]int, error) { return s.positions, s.err }
func (s stubIndex) Len() int                              { return len(s.positions) }

func TestGallery_Match_WithIndex(t *testing.T) {
	subjects := []Subject{
		{ID: "a", Label: "Alice", Descriptors: []FaceVector{vectorAt(0.1)}},
		{ID: "b", Label: "Bob", Descriptors: []FaceVector{vectorAt(0.1)}},
		{ID: "c", Label: "Carol", Descriptors: []FaceVector{vectorAt(5)}},
	}

	t.Run("candidates re-ranked in insertion order", func(t *testing.T) {
		builder := func(int64, []FaceVector) (CandidateIndex, error) {
			return stubIndex{positions: []int{1, 0}}, nil
		}
		g := BuildGallery(subjects, 1, WithIndex(builder, 1))
		if !g.Indexed() {
			t.Fatal("expected gallery to be indexed")
		}
		if got := g.Match(vectorAt(0)); got.Label != "Alice" {
			t.Errorf("expected Alice, got %q", got.Label)
		}
	})

	t.Run("search error falls back to exact scan", func(t *testing.T) {
		builder := func(int64, []FaceVector) (CandidateIndex, error) {
			return stubIndex{err: errors.New("broken")}, nil
		}
		g := BuildGallery(subjects, 1, WithIndex(builder, 1))
		if got := g.Match(vectorAt(5)); got.Label != "Carol" {
			t.Errorf("expected Carol, got %q", got.Label)
		}
	})

	t.Run("build error leaves gallery unindexed", func(t *testing.T) {
		builder := func(int64, []FaceVector) (CandidateIndex, error) {
			return nil, errors.New("no memory")
		}
		g := BuildGallery(subjects, 1, WithIndex(builder, 1))
		if g.Indexed() {
			t.Error("expected no index after build error")
		}
		if g.IndexError() == nil {
			t.Error("expected index error to be recorded")
		}
		if got := g.Match(vectorAt(0.1)); got.Label != "Alice" {
			t.Errorf("expected Alice, got %q", got.Label)
		}
	})

	t.Run("small gallery skips index", func(t *testing.T) {
		called := false
		builder := func(int64, []FaceVector) (CandidateIndex, error) {
			called = true
			return stubIndex{}, nil
		}
		BuildGallery(subjects, 1, WithIndex(builder, 10))
		if called {
			t.Error("index should not be built when the gallery fits in one candidate set")
		}
	})
}
