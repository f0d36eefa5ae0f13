package similarity

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"photoagent/internal/library"
)

const (
	DefaultThreshold   = 0.2
	DefaultMaxUnranked = 100
)

// QueryEncoder turns a free-text query into a vector in the library's embedding space.
type QueryEncoder interface {
	EncodeText(ctx context.Context, text string) ([]float32, error)
}

// Outcome distinguishes the two empty results so callers can word them differently.
type Outcome int

const (
	Matched Outcome = iota
	// NoCandidates: the filters left nothing to rank.
	NoCandidates
	// NoMatch: candidates existed but none scored above the threshold.
	NoMatch
)

func (o Outcome) String() string {
	switch o {
	case Matched:
		return "matched"
	case NoCandidates:
		return "no_candidates"
	case NoMatch:
		return "no_match"
	default:
		return "unknown"
	}
}

// Hit is one ranked photo. Score is 0 for unranked (blank query) results.
type Hit struct {
	URI   string
	Score float64
}

type Result struct {
	Hits       []Hit
	Outcome    Outcome
	Candidates int
}

// URIs returns the hit identifiers in rank order.
func (r Result) URIs() []string {
	out := make([]string, len(r.Hits))
	for i, h := range r.Hits {
		out[i] = h.URI
	}
	return out
}

type Options struct {
	Threshold   float64
	MaxUnranked int
	Location    *time.Location
}

// Engine is safe for concurrent use; it only reads the store.
type Engine struct {
	store       library.Store
	encoder     QueryEncoder
	threshold   float64
	maxUnranked int
	loc         *time.Location
}

func NewEngine(store library.Store, encoder QueryEncoder, opts Options) *Engine {
	if opts.MaxUnranked <= 0 {
		opts.MaxUnranked = DefaultMaxUnranked
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Engine{
		store:       store,
		encoder:     encoder,
		threshold:   opts.Threshold,
		maxUnranked: opts.MaxUnranked,
		loc:         opts.Location,
	}
}

// passes is the strict threshold test.
func (e *Engine) passes(sim float64) bool {
	return sim > e.threshold
}

// Search filters, then ranks candidates by similarity to query. A blank query
// returns the filtered candidates unranked, capped at MaxUnranked.
func (e *Engine) Search(ctx context.Context, query string, f Filters) (Result, error) {
	records, err := e.store.All(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load library: %w", err)
	}
	cands, err := candidates(records, f, e.loc)
	if err != nil {
		return Result{}, err
	}
	if len(cands) == 0 {
		return Result{Outcome: NoCandidates}, nil
	}

	if strings.TrimSpace(query) == "" {
		n := len(cands)
		if n > e.maxUnranked {
			n = e.maxUnranked
		}
		hits := make([]Hit, n)
		for i := 0; i < n; i++ {
			hits[i] = Hit{URI: cands[i].URI}
		}
		return Result{Hits: hits, Outcome: Matched, Candidates: len(cands)}, nil
	}

	if e.encoder == nil {
		return Result{}, fmt.Errorf("no text encoder configured")
	}
	qv, err := e.encoder.EncodeText(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("embed query: %w", err)
	}

	hits := make([]Hit, 0, len(cands))
	for _, rec := range cands {
		if len(rec.Embedding) != len(qv) {
			log.Debug().Str("uri", rec.URI).Int("dims", len(rec.Embedding)).Int("query_dims", len(qv)).
				Msg("embedding dimension mismatch")
		}
		sim := Cosine(qv, rec.Embedding)
		if e.passes(sim) {
			hits = append(hits, Hit{URI: rec.URI, Score: sim})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	res := Result{Hits: hits, Outcome: Matched, Candidates: len(cands)}
	if len(hits) == 0 {
		res.Outcome = NoMatch
	}
	log.Debug().Str("query", query).Int("candidates", len(cands)).Int("hits", len(hits)).Msg("similarity search")
	return res, nil
}
