package taxonomy

import "math"

// DefaultThreshold is the minimum composite score a fuzzy match must exceed.
const DefaultThreshold = 0.2

// Method records which resolution step produced a result.
type Method string

const (
	MethodExact    Method = "exact"
	MethodSynonym  Method = "synonym"
	MethodFuzzy    Method = "fuzzy"
	MethodFallback Method = "fallback"
)

// Resolution is the outcome of resolving one legacy label.
type Resolution struct {
	Input      string  `json:"input"`
	Normalized string  `json:"normalized"`
	Pair       Pair    `json:"pair"`
	Label      string  `json:"label"`
	Method     Method  `json:"method"`
	Score      float64 `json:"score"`
}

// Unmapped reports whether the label fell through to the fallback pair.
func (r Resolution) Unmapped() bool {
	return r.Method == MethodFallback
}

// Resolver maps legacy labels onto the catalog. It holds no mutable state and is
// safe for concurrent use.
type Resolver struct {
	catalog   *Catalog
	synonyms  *Synonyms
	threshold float64
}

// ResolverOption tunes a Resolver.
type ResolverOption func(*Resolver)

// WithThreshold overrides DefaultThreshold.
func WithThreshold(t float64) ResolverOption {
	return func(r *Resolver) { r.threshold = t }
}

// NewResolver builds a Resolver over an immutable catalog and synonym table.
func NewResolver(catalog *Catalog, synonyms *Synonyms, opts ...ResolverOption) *Resolver {
	r := &Resolver{catalog: catalog, synonyms: synonyms, threshold: DefaultThreshold}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Catalog returns the catalog the resolver matches against.
func (r *Resolver) Catalog() *Catalog {
	return r.catalog
}

// Threshold returns the fuzzy acceptance threshold.
func (r *Resolver) Threshold() float64 {
	return r.threshold
}

// Resolve returns exactly one canonical pair for legacy. Steps, first hit wins:
// exact normalized match against the catalog, synonym table, best fuzzy score
// above the threshold, fallback pair. Fuzzy ties keep the first label in catalog
// order.
func (r *Resolver) Resolve(legacy string) Resolution {
	key := Normalize(legacy)
	res := Resolution{Input: legacy, Normalized: key}

	if l, ok := r.catalog.Exact(key); ok {
		return r.finish(res, l.Pair, MethodExact, MaxScore)
	}
	if p, ok := r.synonyms.Resolve(key); ok {
		return r.finish(res, p, MethodSynonym, MaxScore)
	}

	best, bestScore := -1, math.Inf(-1)
	for i, l := range r.catalog.labels {
		if s := Score(key, l.Key); s > bestScore {
			best, bestScore = i, s
		}
	}
	if best >= 0 && bestScore > r.threshold {
		return r.finish(res, r.catalog.labels[best].Pair, MethodFuzzy, bestScore)
	}
	return r.finish(res, r.catalog.Fallback(), MethodFallback, bestScore)
}

// ResolveAll resolves each label and returns the distinct canonical labels in
// first-seen order alongside the per-label resolutions.
func (r *Resolver) ResolveAll(legacy []string) ([]string, []Resolution) {
	out := make([]string, 0, len(legacy))
	seen := make(map[string]struct{}, len(legacy))
	resolutions := make([]Resolution, 0, len(legacy))
	for _, l := range legacy {
		res := r.Resolve(l)
		resolutions = append(resolutions, res)
		if _, ok := seen[res.Label]; ok {
			continue
		}
		seen[res.Label] = struct{}{}
		out = append(out, res.Label)
	}
	return out, resolutions
}

func (r *Resolver) finish(res Resolution, p Pair, m Method, score float64) Resolution {
	res.Pair = p
	res.Label = p.Label()
	res.Method = m
	res.Score = score
	return res
}
