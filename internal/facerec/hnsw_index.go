package facerec

import (
	"sync"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/face-attendance/internal/constants"
)

// referenceIndex wraps an HNSW graph over reference embeddings. Node keys
// are roster positions.
type referenceIndex struct {
	graph  *hnsw.Graph[int]
	metric Metric
	dims   int
	byKey  map[int]Reference
	mu     sync.RWMutex
}

// buildReferenceIndex builds a graph from resolved references. References
// whose dimension differs from the first one are left out.
func buildReferenceIndex(refs []Reference, metric Metric) *referenceIndex {
	idx := &referenceIndex{
		metric: metric,
		byKey:  make(map[int]Reference, len(refs)),
	}
	if len(refs) == 0 {
		return idx
	}

	g := hnsw.NewGraph[int]()
	g.M = constants.HNSWMaxNeighbors
	g.Ml = 1.0 / float64(constants.HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = constants.HNSWEfSearch
	if metric == MetricCosine {
		g.Distance = hnsw.CosineDistance
	} else {
		g.Distance = hnsw.EuclideanDistance
	}

	for _, ref := range refs {
		if len(ref.Embedding) == 0 {
			continue
		}
		if idx.dims == 0 {
			idx.dims = len(ref.Embedding)
		}
		if len(ref.Embedding) != idx.dims {
			log.WithField("student", ref.Name).Warn("reference embedding dimension mismatch, not indexed")
			continue
		}
		g.Add(hnsw.MakeNode(ref.Index, ref.Embedding))
		idx.byKey[ref.Index] = ref
	}

	idx.graph = g
	return idx
}

// Len returns the number of indexed references.
func (x *referenceIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.byKey)
}

// Nearest returns the closest reference to the query with its exact distance.
// Candidates at the same distance resolve to the lowest roster position.
func (x *referenceIndex) Nearest(query []float32) (Reference, float64, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph == nil || len(x.byKey) == 0 || len(query) != x.dims {
		return Reference{}, 0, false
	}

	k := min(len(x.byKey), constants.HNSWEfSearch)
	neighbors := x.graph.Search(query, k)

	var (
		best     Reference
		bestDist float64
		found    bool
	)
	for _, n := range neighbors {
		ref, ok := x.byKey[n.Key]
		if !ok {
			continue
		}
		// Rank by the exact distance; the graph only narrows the candidates.
		d := x.metric.Distance(query, n.Value)
		if !found || d < bestDist || (d == bestDist && ref.Index < best.Index) {
			best, bestDist, found = ref, d, true
		}
	}
	return best, bestDist, found
}
