package database

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/holelung/Face-recognition-attendance-check/internal/facematch"
)

func randomVectors(n int, seed int64) []facematch.FaceVector {
	rng := rand.New(rand.NewSource(seed))
	out := make([]facematch.FaceVector, n)
	for i := range out {
		v := make(facematch.FaceVector, facematch.Dimension)
		for j := range v {
			v[j] = rng.Float32()
		}
		out[i] = v
	}
	return out
}

func TestDescriptorIndex_SearchFindsExactVector(t *testing.T) {
	vectors := randomVectors(200, 1)
	idx := NewDescriptorIndex()
	if err := idx.Build(vectors); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if idx.Len() != 200 {
		t.Errorf("expected 200 indexed descriptors, got %d", idx.Len())
	}

	positions, err := idx.Search(vectors[42], 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	found := false
	for _, p := range positions {
		if p == 42 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected position 42 among candidates, got %v", positions)
	}
}

func TestDescriptorIndex_EmptyAndInvalid(t *testing.T) {
	idx := NewDescriptorIndex()
	if _, err := idx.Search(make(facematch.FaceVector, facematch.Dimension), 3); err == nil {
		t.Error("expected error searching an empty index")
	}
	if err := idx.Build(nil); err != nil {
		t.Errorf("Build(nil): %v", err)
	}
	if err := idx.Build([]facematch.FaceVector{{1, 2}}); err == nil {
		t.Error("expected error for short descriptor")
	}
}

func TestIndexBuilder_PersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gallery.hnsw")
	vectors := randomVectors(64, 2)
	build := NewIndexBuilder(path)

	if _, err := build(9, vectors); err != nil {
		t.Fatalf("first build: %v", err)
	}
	meta, err := LoadIndexMetadata(path)
	if err != nil {
		t.Fatalf("LoadIndexMetadata: %v", err)
	}
	if meta.StoreVersion != 9 || meta.DescriptorCount != 64 {
		t.Errorf("unexpected metadata: %+v", meta)
	}

	reloaded, err := build(9, vectors)
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	if reloaded.Len() != 64 {
		t.Errorf("expected 64 descriptors, got %d", reloaded.Len())
	}
	positions, err := reloaded.Search(vectors[7], 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(positions) == 0 {
		t.Error("expected candidates from reloaded index")
	}
}

func TestIndexBuilder_ShortlistsGalleryMatches(t *testing.T) {
	vectors := randomVectors(100, 3)
	subjects := make([]facematch.Subject, len(vectors))
	for i, v := range vectors {
		subjects[i] = facematch.Subject{ID: string(rune('A' + i%26)), Label: "L", Descriptors: []facematch.FaceVector{v}}
	}
	g := facematch.BuildGallery(subjects, 1, facematch.WithIndex(NewIndexBuilder(""), 10))
	if !g.Indexed() {
		t.Fatalf("expected indexed gallery, err=%v", g.IndexError())
	}
	got := g.Match(vectors[17])
	if got.Distance != 0 {
		t.Errorf("expected exact hit through the index, got %+v", got)
	}
}
