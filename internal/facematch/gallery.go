package facematch

import (
	"slices"

	"github.com/holelung/Face-recognition-attendance-check/internal/constants"
)

// CandidateIndex shortlists gallery positions close to a query.
// Positions refer to the flattened descriptor order passed to the IndexBuilder.
type CandidateIndex interface {
	Search(query FaceVector, k int) ([]int, error)
	Len() int
}

// IndexBuilder builds a CandidateIndex over the flattened gallery descriptors.
type IndexBuilder func(version int64, vectors []FaceVector) (CandidateIndex, error)

type galleryOptions struct {
	threshold  float64
	candidates int
	indexer    IndexBuilder
}

// Option configures gallery construction.
type Option func(*galleryOptions)

// WithThreshold sets the match threshold τ.
func WithThreshold(threshold float64) Option {
	return func(o *galleryOptions) {
		if threshold > 0 {
			o.threshold = threshold
		}
	}
}

// WithIndex attaches an approximate index that shortlists k candidates per query.
func WithIndex(builder IndexBuilder, k int) Option {
	return func(o *galleryOptions) {
		o.indexer = builder
		if k > 0 {
			o.candidates = k
		}
	}
}

type entry struct {
	label  string
	id     string
	vector FaceVector
}

// Gallery is an immutable snapshot of labeled descriptors built from a
// specific store version. It is safe for concurrent use.
type Gallery struct {
	version    int64
	threshold  float64
	candidates int
	entries    []entry
	labels     []string
	byLabel    map[string][]int
	index      CandidateIndex
	indexErr   error
}

// BuildGallery groups descriptors by display label in subject order.
// Subjects without descriptors contribute nothing and invalid descriptors are skipped.
func BuildGallery(subjects []Subject, version int64, opts ...Option) *Gallery {
	o := galleryOptions{
		threshold:  constants.DefaultMatchThreshold,
		candidates: constants.DefaultCandidateCount,
	}
	for _, opt := range opts {
		opt(&o)
	}

	g := &Gallery{
		version:    version,
		threshold:  o.threshold,
		candidates: o.candidates,
		byLabel:    make(map[string][]int),
	}
	for _, s := range subjects {
		for _, d := range s.Descriptors {
			if d.Validate() != nil {
				continue
			}
			if _, seen := g.byLabel[s.Label]; !seen {
				g.labels = append(g.labels, s.Label)
			}
			g.byLabel[s.Label] = append(g.byLabel[s.Label], len(g.entries))
			g.entries = append(g.entries, entry{label: s.Label, id: s.ID, vector: d.Clone()})
		}
	}

	if o.indexer != nil && len(g.entries) > g.candidates {
		vectors := make([]FaceVector, len(g.entries))
		for i, e := range g.entries {
			vectors[i] = e.vector
		}
		g.index, g.indexErr = o.indexer(version, vectors)
		if g.indexErr != nil {
			g.index = nil
		}
	}
	return g
}

// Version returns the store version the snapshot was built from.
func (g *Gallery) Version() int64 { return g.version }

// Threshold returns the match threshold τ.
func (g *Gallery) Threshold() float64 { return g.threshold }

// Size returns the number of descriptors in the gallery.
func (g *Gallery) Size() int { return len(g.entries) }

// Labels returns the display labels in first-seen order.
func (g *Gallery) Labels() []string { return slices.Clone(g.labels) }

// Indexed reports whether matches are shortlisted through an approximate index.
func (g *Gallery) Indexed() bool { return g.index != nil }

// IndexError returns the error that prevented the approximate index from being built.
func (g *Gallery) IndexError() error { return g.indexErr }

// Descriptors returns copies of every descriptor grouped under label.
func (g *Gallery) Descriptors(label string) []FaceVector {
	positions := g.byLabel[label]
	out := make([]FaceVector, 0, len(positions))
	for _, p := range positions {
		out = append(out, g.entries[p].vector.Clone())
	}
	return out
}

// Match returns the label of the globally closest descriptor when its
// distance is within the threshold. Otherwise the result is UnknownLabel with
// an infinite distance. Equal distances resolve to the earliest entry.
func (g *Gallery) Match(query FaceVector) MatchResult {
	if g == nil || len(g.entries) == 0 || query.Validate() != nil {
		return unknownResult()
	}

	best, bestDist := g.nearest(query)
	if best < 0 || bestDist > g.threshold {
		return unknownResult()
	}
	e := g.entries[best]
	return MatchResult{Label: e.label, IdentityID: e.id, Distance: bestDist}
}

func (g *Gallery) nearest(query FaceVector) (int, float64) {
	if g.index != nil {
		positions, err := g.index.Search(query, g.candidates)
		if err == nil && len(positions) > 0 {
			slices.Sort(positions)
			return g.scan(query, positions)
		}
	}
	return g.scan(query, nil)
}

// scan compares the query against the given positions, or every entry when nil.
func (g *Gallery) scan(query FaceVector, positions []int) (int, float64) {
	best, bestDist := -1, 0.0
	visit := func(i int) {
		if i < 0 || i >= len(g.entries) {
			return
		}
		d := EuclideanDistance(query, g.entries[i].vector)
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	if positions == nil {
		for i := range g.entries {
			visit(i)
		}
	} else {
		for _, i := range positions {
			visit(i)
		}
	}
	return best, bestDist
}
