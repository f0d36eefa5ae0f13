// Package dedupe groups near-identical photos by embedding similarity.
//
// The clustering is a single greedy pass, O(n²) in the record count. There is no
// spatial index; libraries large enough to need one are out of scope.
package dedupe

import (
	"context"
	"fmt"

	"photoagent/internal/library"
	"photoagent/internal/similarity"
)

const DefaultThreshold = 0.985

// Group is one keep/delete set: Primary is kept, Duplicates are candidates for removal.
type Group struct {
	Primary    string   `json:"primary"`
	Duplicates []string `json:"duplicates"`
}

// Cluster walks records in order. Each unvisited record becomes an anchor and
// collects every later unvisited record with similarity strictly above threshold.
// An anchor that collects nothing stays unvisited, so it can still join a later
// anchor's group.
func Cluster(records []library.Record, threshold float64) []Group {
	visited := make([]bool, len(records))
	var groups []Group
	for i := range records {
		if visited[i] {
			continue
		}
		anchor := records[i]
		var members []string
		for j := i + 1; j < len(records); j++ {
			if visited[j] {
				continue
			}
			if similarity.Cosine(anchor.Embedding, records[j].Embedding) > threshold {
				members = append(members, records[j].URI)
				visited[j] = true
			}
		}
		if len(members) > 0 {
			visited[i] = true
			groups = append(groups, Group{Primary: anchor.URI, Duplicates: members})
		}
	}
	return groups
}

// Scan clusters the live records of store.
func Scan(ctx context.Context, store library.Store, threshold float64) ([]Group, error) {
	records, err := store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load library: %w", err)
	}
	return Cluster(library.Live(records), threshold), nil
}

// DuplicateURIs flattens every group's duplicate list, keeping group order.
func DuplicateURIs(groups []Group) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g.Duplicates...)
	}
	return out
}
