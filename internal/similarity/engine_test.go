package similarity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/go-cmp/cmp"

	"photoagent/internal/library"
)

type stubEncoder map[string][]float32

func (s stubEncoder) EncodeText(_ context.Context, text string) ([]float32, error) {
	v, ok := s[text]
	if !ok {
		return nil, errors.New("no vector for " + text)
	}
	return v, nil
}

func newEngine(recs []library.Record, enc QueryEncoder) *Engine {
	return NewEngine(library.NewMemoryStore(recs...), enc, Options{
		Threshold: DefaultThreshold,
		Location:  time.UTC,
	})
}

func TestCosineProperties(t *testing.T) {
	vectors := [][]float32{
		{1, 0, 0},
		{0.3, -2, 5},
		{-1, -1, -1},
		{1e-3, 4, 0.5},
	}
	for i, a := range vectors {
		if got := Cosine(a, a); math.Abs(got-1) > 1e-9 {
			t.Fatalf("Cosine(v%d, v%d)=%v, want 1", i, i, got)
		}
		for j, b := range vectors {
			ab, ba := Cosine(a, b), Cosine(b, a)
			if ab != ba {
				t.Fatalf("not symmetric: v%d,v%d %v != %v", i, j, ab, ba)
			}
			if ab < -1-1e-12 || ab > 1+1e-12 {
				t.Fatalf("out of range: %v", ab)
			}
		}
	}
	if got := Cosine([]float32{0, 0}, []float32{1, 1}); got != 0 {
		t.Fatalf("zero norm similarity=%v, want 0", got)
	}
	if got := Cosine([]float32{1, 0}, []float32{1, 0, 0}); got != 0 {
		t.Fatalf("dimension mismatch similarity=%v, want 0", got)
	}
}

func TestSearch_ThresholdIsStrict(t *testing.T) {
	recs := []library.Record{
		{URI: "edge", Embedding: []float32{1, 2, 2, 4}}, // exactly 0.2
		{URI: "close", Embedding: []float32{1, 1, 0, 0}},
		{URI: "exact", Embedding: []float32{1, 0, 0, 0}},
		{URI: "far", Embedding: []float32{0, 1, 0, 0}},
	}
	eng := newEngine(recs, stubEncoder{"sunset": {1, 0, 0, 0}})

	if got := Cosine([]float32{1, 0, 0, 0}, []float32{1, 2, 2, 4}); got != 0.2 {
		t.Fatalf("edge similarity=%v, want exactly 0.2", got)
	}

	res, err := eng.Search(context.Background(), "sunset", Filters{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if diff := cmp.Diff([]string{"exact", "close"}, res.URIs()); diff != "" {
		t.Fatalf("ranked uris mismatch (-want +got):\n%s", diff)
	}
	if res.Outcome != Matched {
		t.Fatalf("outcome=%v", res.Outcome)
	}

	if eng.passes(0.2) {
		t.Fatalf("0.2 must not pass")
	}
	if !eng.passes(0.20001) {
		t.Fatalf("0.20001 must pass")
	}
}

func TestSearch_StableTies(t *testing.T) {
	recs := []library.Record{
		{URI: "b", Embedding: []float32{2, 0}},
		{URI: "a", Embedding: []float32{1, 0}},
		{URI: "c", Embedding: []float32{1, 1}},
		{URI: "d", Embedding: []float32{3, 0}},
	}
	eng := newEngine(recs, stubEncoder{"q": {1, 0}})
	res, err := eng.Search(context.Background(), "q", Filters{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if diff := cmp.Diff([]string{"b", "a", "d", "c"}, res.URIs()); diff != "" {
		t.Fatalf("tie order mismatch (-want +got):\n%s", diff)
	}
}

func TestSearch_DateRangeIsInclusive(t *testing.T) {
	at := func(s string) time.Time {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			t.Fatalf("parse %s: %v", s, err)
		}
		return ts
	}
	recs := []library.Record{
		{URI: "before", TakenAt: at("2024-02-29T23:59:59Z"), Embedding: []float32{1}},
		{URI: "first", TakenAt: at("2024-03-01T00:00:00Z"), Embedding: []float32{1}},
		{URI: "last", TakenAt: at("2024-03-03T23:59:59Z"), Embedding: []float32{1}},
		{URI: "after", TakenAt: at("2024-03-04T00:00:00Z"), Embedding: []float32{1}},
		{URI: "undated", Embedding: []float32{1}},
	}
	eng := newEngine(recs, nil)

	res, err := eng.Search(context.Background(), "", Filters{StartDate: "2024-03-01", EndDate: "2024-03-03"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if diff := cmp.Diff([]string{"first", "last"}, res.URIs()); diff != "" {
		t.Fatalf("range mismatch (-want +got):\n%s", diff)
	}

	res, err = eng.Search(context.Background(), "", Filters{StartDate: "2024-03-03"})
	if err != nil {
		t.Fatalf("Search open end: %v", err)
	}
	if diff := cmp.Diff([]string{"last", "after"}, res.URIs()); diff != "" {
		t.Fatalf("open-ended mismatch (-want +got):\n%s", diff)
	}

	if _, err := eng.Search(context.Background(), "", Filters{EndDate: "03/04/2024"}); err == nil {
		t.Fatalf("expected bad date to fail")
	}
}

func TestSearch_DateRangeFollowsWallClockOnDSTDays(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	recs := []library.Record{
		{URI: "fallback-late", TakenAt: time.Date(2024, 11, 3, 23, 30, 0, 0, ny), Embedding: []float32{1}},
		{URI: "fallback-next", TakenAt: time.Date(2024, 11, 4, 0, 0, 0, 0, ny), Embedding: []float32{1}},
		{URI: "spring-late", TakenAt: time.Date(2024, 3, 10, 23, 59, 59, 0, ny), Embedding: []float32{1}},
		{URI: "spring-next", TakenAt: time.Date(2024, 3, 11, 0, 30, 0, 0, ny), Embedding: []float32{1}},
	}
	eng := NewEngine(library.NewMemoryStore(recs...), nil, Options{Threshold: DefaultThreshold, Location: ny})

	cases := []struct {
		day  string
		want []string
	}{
		{"2024-11-03", []string{"fallback-late"}},
		{"2024-03-10", []string{"spring-late"}},
	}
	for _, tc := range cases {
		res, err := eng.Search(context.Background(), "", Filters{StartDate: tc.day, EndDate: tc.day})
		if err != nil {
			t.Fatalf("Search %s: %v", tc.day, err)
		}
		if diff := cmp.Diff(tc.want, res.URIs()); diff != "" {
			t.Fatalf("%s mismatch (-want +got):\n%s", tc.day, diff)
		}
	}
}

func TestSearch_LocationAndPeople(t *testing.T) {
	recs := []library.Record{
		{URI: "paris1", Location: "Paris, France", People: []string{"p1"}, Embedding: []float32{1}},
		{URI: "lyon", Location: "Lyon, France", People: []string{"p2"}, Embedding: []float32{1}},
		{URI: "paris2", Location: "PARIS", Embedding: []float32{1}},
	}
	eng := newEngine(recs, nil)

	res, _ := eng.Search(context.Background(), " ", Filters{Location: "paris"})
	if diff := cmp.Diff([]string{"paris1", "paris2"}, res.URIs()); diff != "" {
		t.Fatalf("location mismatch (-want +got):\n%s", diff)
	}
	res, _ = eng.Search(context.Background(), "", Filters{People: []string{"p2", "p9"}})
	if diff := cmp.Diff([]string{"lyon"}, res.URIs()); diff != "" {
		t.Fatalf("people mismatch (-want +got):\n%s", diff)
	}
}

func TestSearch_BlankQueryIsCapped(t *testing.T) {
	recs := make([]library.Record, 0, 150)
	for i := 0; i < 150; i++ {
		recs = append(recs, library.Record{URI: fmt.Sprintf("img%03d", i), Embedding: []float32{1}})
	}
	eng := newEngine(recs, nil)
	res, err := eng.Search(context.Background(), "", Filters{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Hits) != DefaultMaxUnranked {
		t.Fatalf("hits=%d, want %d", len(res.Hits), DefaultMaxUnranked)
	}
	if res.Hits[0].URI != "img000" || res.Candidates != 150 {
		t.Fatalf("unexpected first hit %q or candidates %d", res.Hits[0].URI, res.Candidates)
	}
}

func TestSearch_EmptyOutcomesAreDistinct(t *testing.T) {
	recs := []library.Record{
		{URI: "a", Location: "Rome", Embedding: []float32{0, 1}},
		{URI: "gone", Location: "Oslo", Embedding: []float32{1, 0}, Deleted: true},
	}
	eng := newEngine(recs, stubEncoder{"q": {1, 0}})

	res, err := eng.Search(context.Background(), "q", Filters{Location: "Oslo"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Outcome != NoCandidates {
		t.Fatalf("outcome=%v, want no_candidates", res.Outcome)
	}

	res, err = eng.Search(context.Background(), "q", Filters{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Outcome != NoMatch || len(res.Hits) != 0 {
		t.Fatalf("outcome=%v hits=%d, want no_match", res.Outcome, len(res.Hits))
	}
}

func TestSearch_EncoderErrorPropagates(t *testing.T) {
	eng := newEngine([]library.Record{{URI: "a", Embedding: []float32{1}}}, stubEncoder{})
	if _, err := eng.Search(context.Background(), "unknown", Filters{}); err == nil {
		t.Fatalf("expected encoder error")
	}
}
