package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/coder/hnsw"

	"github.com/holelung/Face-recognition-attendance-check/internal/facematch"
)

// DescriptorIndexMetadata stores metadata for validating a cached index.
type DescriptorIndexMetadata struct {
	DescriptorCount int       `json:"descriptor_count"`
	StoreVersion    int64     `json:"store_version"`
	BuildTime       time.Time `json:"build_time"`
	Version         int       `json:"version"` // For future compatibility
}

const indexMetadataVersion = 1

// DescriptorIndex wraps an HNSW graph over gallery descriptors.
// Node keys are positions in the flattened gallery order.
type DescriptorIndex struct {
	graph      *hnsw.Graph[int]
	savedGraph *hnsw.SavedGraph[int] // set when loaded from disk
	count      int
	mu         sync.RWMutex
}

// NewDescriptorIndex creates a new empty index.
func NewDescriptorIndex() *DescriptorIndex {
	return &DescriptorIndex{}
}

func newGraph() *hnsw.Graph[int] {
	g := hnsw.NewGraph[int]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.EuclideanDistance
	return g
}

// Build replaces the index contents with vectors, keyed by position.
func (h *DescriptorIndex) Build(vectors []facematch.FaceVector) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.savedGraph = nil
	if len(vectors) == 0 {
		h.graph = nil
		h.count = 0
		return nil
	}

	g := newGraph()
	for i, v := range vectors {
		if len(v) != facematch.Dimension {
			return fmt.Errorf("descriptor %d: %w", i, facematch.ErrInvalidDescriptor)
		}
		g.Add(hnsw.MakeNode(i, []float32(v)))
	}
	h.graph = g
	h.count = len(vectors)
	return nil
}

// Search returns the positions of up to k approximate nearest neighbors.
func (h *DescriptorIndex) Search(query facematch.FaceVector, k int) ([]int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil && h.savedGraph == nil {
		return nil, errors.New("index not initialized")
	}

	var neighbors []hnsw.Node[int]
	if h.savedGraph != nil {
		neighbors = h.savedGraph.Search([]float32(query), k)
	} else {
		neighbors = h.graph.Search([]float32(query), k)
	}

	positions := make([]int, len(neighbors))
	for i, n := range neighbors {
		positions[i] = n.Key
	}
	return positions, nil
}

// Len returns the number of indexed descriptors.
func (h *DescriptorIndex) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Load loads a previously saved graph. The caller checks metadata first.
func (h *DescriptorIndex) Load(path string, count int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	saved, err := hnsw.LoadSavedGraph[int](path)
	if err != nil {
		return fmt.Errorf("failed to load HNSW index: %w", err)
	}
	h.graph = nil
	h.savedGraph = saved
	h.count = count
	return nil
}

// SaveWithMetadata persists the index to disk along with metadata for staleness detection.
func (h *DescriptorIndex) SaveWithMetadata(path string, metadata DescriptorIndexMetadata) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil {
		// Remove existing files if index is empty (best-effort cleanup).
		_ = os.Remove(path)
		_ = os.Remove(path + ".meta")
		return nil
	}

	f, err := os.Create(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	defer f.Close()

	if err := h.graph.Export(f); err != nil {
		return fmt.Errorf("failed to export HNSW graph: %w", err)
	}

	metadata.Version = indexMetadataVersion
	metaData, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", metaData, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

// LoadIndexMetadata loads metadata from a separate .meta file.
func LoadIndexMetadata(path string) (DescriptorIndexMetadata, error) {
	var metadata DescriptorIndexMetadata

	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return metadata, nil
}

// NewIndexBuilder returns a gallery IndexBuilder backed by HNSW.
// With a non-empty path the graph is reused from disk when its metadata matches
// the store version and descriptor count, and saved after every fresh build.
func NewIndexBuilder(path string) facematch.IndexBuilder {
	return func(version int64, vectors []facematch.FaceVector) (facematch.CandidateIndex, error) {
		idx := NewDescriptorIndex()
		if path != "" {
			meta, err := LoadIndexMetadata(path)
			if err == nil && meta.Version == indexMetadataVersion &&
				meta.StoreVersion == version && meta.DescriptorCount == len(vectors) {
				if err := idx.Load(path, len(vectors)); err == nil {
					return idx, nil
				}
			}
		}

		if err := idx.Build(vectors); err != nil {
			return nil, err
		}
		if path != "" {
			meta := DescriptorIndexMetadata{
				DescriptorCount: len(vectors),
				StoreVersion:    version,
				BuildTime:       time.Now(),
			}
			// Saving is best-effort.
			_ = idx.SaveWithMetadata(path, meta)
		}
		return idx, nil
	}
}
