package facerec

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/roster"
)

// Strategy decides which roster entry wins when several are within threshold.
type Strategy string

const (
	// StrategyFirst scans the roster in order and takes the first entry within
	// threshold. Ties therefore resolve to the first enumerated student.
	StrategyFirst Strategy = "first"
	// StrategyClosest takes the nearest entry within threshold.
	StrategyClosest Strategy = "closest"
)

// ParseStrategy accepts "first" or "closest" in any case. Empty means first.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyFirst:
		return StrategyFirst, nil
	case StrategyClosest:
		return StrategyClosest, nil
	default:
		return "", fmt.Errorf("unknown match strategy %q", s)
	}
}

// MatcherOptions configures a Matcher. Zero values select euclidean distance,
// the metric's default threshold and the first-match strategy.
type MatcherOptions struct {
	Metric    Metric
	Threshold float64
	Strategy  Strategy
}

// Result is the outcome of matching one face.
type Result struct {
	Identity string  `json:"identity"`
	Distance float64 `json:"distance"`
	Index    int     `json:"index"` // roster position, -1 for Unknown
}

// Known reports whether the face matched an enrolled student.
func (r Result) Known() bool {
	return r.Identity != Unknown
}

// Reference is a roster entry with its resolved encoding.
type Reference struct {
	Index     int
	Name      string
	Embedding []float32
}

// References is the roster resolved once for a frame.
type References struct {
	Entries     []Reference
	fingerprint uint64
}

// Matcher compares face embeddings against roster references.
type Matcher struct {
	cache *ReferenceCache
	opts  MatcherOptions

	mu       sync.Mutex
	index    *referenceIndex
	indexKey uint64
}

// NewMatcher creates a matcher resolving references through the cache.
func NewMatcher(cache *ReferenceCache, opts MatcherOptions) *Matcher {
	if opts.Metric == "" {
		opts.Metric = MetricEuclidean
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyFirst
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold(opts.Metric)
	}
	return &Matcher{cache: cache, opts: opts}
}

// DefaultThreshold returns the usual acceptance threshold for a metric.
func DefaultThreshold(m Metric) float64 {
	if m == MetricCosine {
		return constants.DefaultCosineThreshold
	}
	return constants.DefaultEuclideanThreshold
}

// Options returns the effective options.
func (m *Matcher) Options() MatcherOptions {
	return m.opts
}

// Resolve encodes every roster photo through the reference cache. Entries
// that fail are skipped and their errors returned; the rest stay usable.
func (m *Matcher) Resolve(ctx context.Context, students []roster.StudentRecord) (*References, []error) {
	refs := &References{Entries: make([]Reference, 0, len(students))}
	var errs []error

	h := fnv.New64a()
	for i, s := range students {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		emb, err := m.cache.Reference(ctx, s.PhotoPath)
		if err != nil {
			errs = append(errs, fmt.Errorf("student %q: %w", s.Name, err))
			continue
		}
		refs.Entries = append(refs.Entries, Reference{Index: i, Name: s.Name, Embedding: emb})
		fmt.Fprintf(h, "%d\x00%s\x00%s\x00", i, s.Name, s.PhotoPath)
	}
	fmt.Fprintf(h, "gen=%d", m.cache.Generation())
	refs.fingerprint = h.Sum64()

	return refs, errs
}

// Match resolves the roster and matches one embedding against it.
func (m *Matcher) Match(ctx context.Context, embedding []float32, students []roster.StudentRecord) (Result, []error) {
	refs, errs := m.Resolve(ctx, students)
	return m.MatchResolved(embedding, refs), errs
}

// MatchResolved matches one embedding against already resolved references.
func (m *Matcher) MatchResolved(embedding []float32, refs *References) Result {
	unknown := Result{Identity: Unknown, Index: -1}
	if refs == nil || len(refs.Entries) == 0 || len(embedding) == 0 {
		return unknown
	}

	if m.opts.Strategy == StrategyClosest {
		ref, d, ok := m.indexFor(refs).Nearest(embedding)
		if !ok || d > m.opts.Threshold {
			return unknown
		}
		return Result{Identity: ref.Name, Distance: d, Index: ref.Index}
	}

	for _, ref := range refs.Entries {
		d := m.opts.Metric.Distance(embedding, ref.Embedding)
		if d <= m.opts.Threshold {
			return Result{Identity: ref.Name, Distance: d, Index: ref.Index}
		}
	}
	return unknown
}

// indexFor returns the HNSW index for the references, rebuilding it when the
// roster or any reference encoding changed.
func (m *Matcher) indexFor(refs *References) *referenceIndex {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.index == nil || m.indexKey != refs.fingerprint {
		m.index = buildReferenceIndex(refs.Entries, m.opts.Metric)
		m.indexKey = refs.fingerprint
		log.WithField("references", m.index.Len()).Debug("rebuilt reference index")
	}
	return m.index
}
