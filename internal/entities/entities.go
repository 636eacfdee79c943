// Package entities implements lookup-or-create with confidence scoring for People,
// Places, and Projects (§4.4): one identically-shaped service per domain. Grounded on the
// teacher's declarative-rule matching shape in internal/domain/filters, generalized here
// from boolean rule matching to a scored, disambiguating candidate search.
package entities

import (
	"sort"
	"strings"
)

// MatchedBy enumerates how a candidate matched the query (§4.4).
type MatchedBy string

const (
	MatchedByName    MatchedBy = "name"
	MatchedByAlias   MatchedBy = "alias"
	MatchedByAddress MatchedBy = "address"
	MatchedByType    MatchedBy = "type"
	MatchedByPartial MatchedBy = "partial"
	MatchedByCreated MatchedBy = "created"
)

// Candidate is one domain record being scored against a lookup query.
type Candidate struct {
	ID           string
	PrimaryName  string
	Aliases      []string
	Address      string // places only; empty otherwise
	PriorityRank int    // lower is higher priority, e.g. types.RelationshipPriority[...]
	IsTopPriority bool  // true for the domain's highest-priority attribute value
	Recency      int64  // unix nanos of last-modified/created, used as a tie-break
}

// Match is one scored candidate in a lookup result (§4.4).
type Match struct {
	ID           string
	Name         string
	Confidence   float64
	MatchedBy    MatchedBy
	IsTopPriority bool
	Recency      int64
}

// LookupResult is the outcome of scoring every candidate against a query (§4.4).
type LookupResult struct {
	Found             bool
	BestID            string
	Matches           []Match
	NeedsDisambiguation bool
}

// Score computes a candidate's confidence against query per §4.4's tier table, returning
// 0 with MatchedBy="" when nothing matches.
func Score(query string, c Candidate) (float64, MatchedBy) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return 0, ""
	}
	name := strings.ToLower(c.PrimaryName)

	best := 0.0
	bestBy := MatchedBy("")
	consider := func(score float64, by MatchedBy) {
		if score > best {
			best = score
			bestBy = by
		}
	}

	switch {
	case name == q:
		consider(1.0, MatchedByName)
	case strings.HasPrefix(name, q):
		consider(0.9, MatchedByName)
	case strings.Contains(name, q):
		consider(0.7, MatchedByName)
	}

	for _, a := range c.Aliases {
		alias := strings.ToLower(a)
		switch {
		case alias == q:
			consider(0.95, MatchedByAlias)
		case strings.HasPrefix(alias, q):
			consider(0.85, MatchedByAlias)
		case strings.Contains(alias, q):
			consider(0.6, MatchedByAlias)
		}
	}

	if c.Address != "" && strings.Contains(strings.ToLower(c.Address), q) {
		consider(0.6, MatchedByAddress)
	}

	if bestBy == "" && isPartialMatch(q, name) {
		consider(0.5, MatchedByPartial)
	}

	if bestBy == "" {
		return 0, ""
	}

	bonus := float64(1000-clampPriority(c.PriorityRank)) / 1000 / 1000
	if bonus < 0 {
		bonus = 0
	}
	total := best + bonus
	if total > 1.0 {
		total = 1.0
	}
	return total, bestBy
}

func clampPriority(rank int) int {
	if rank < 0 {
		return 0
	}
	if rank > 1000 {
		return 1000
	}
	return rank
}

// isPartialMatch reports a word-boundary or substring match with no exact-stem tier
// already satisfied, per §4.4's "word-boundary or no-stem match" partial tier.
func isPartialMatch(q, name string) bool {
	for _, word := range strings.Fields(name) {
		if word == q {
			return true
		}
	}
	return strings.Contains(name, q) || strings.Contains(q, name)
}

// Lookup scores every candidate and applies the disambiguation rules of §4.4.
func Lookup(query string, candidates []Candidate) LookupResult {
	var matches []Match
	for _, c := range candidates {
		score, by := Score(query, c)
		if by == "" {
			continue
		}
		matches = append(matches, Match{
			ID: c.ID, Name: c.PrimaryName, Confidence: score, MatchedBy: by,
			IsTopPriority: c.IsTopPriority, Recency: c.Recency,
		})
	}

	if len(matches) == 0 {
		return LookupResult{Found: false}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		if matches[i].Recency != matches[j].Recency {
			return matches[i].Recency > matches[j].Recency
		}
		return matches[i].IsTopPriority && !matches[j].IsTopPriority
	})

	if len(matches) == 1 {
		return LookupResult{Found: true, BestID: matches[0].ID, Matches: matches}
	}

	top := matches[0]
	if top.Confidence >= 0.9 {
		return LookupResult{Found: true, BestID: top.ID, Matches: matches}
	}

	for _, m := range matches {
		if m.IsTopPriority && m.Confidence >= 0.7 {
			return LookupResult{Found: true, BestID: m.ID, Matches: matches}
		}
	}

	return LookupResult{Found: true, BestID: top.ID, Matches: matches, NeedsDisambiguation: true}
}
