// Package extractor pulls people, places, and date fragments out of free text with plain
// regex and heuristics (§4.2). It is pure: no I/O, no LLM or network calls, grounded on
// the "AST-free" matching style of the teacher's internal/domain/filters package rather
// than on any NLP library the pack doesn't carry.
package extractor

import (
	"regexp"
	"strings"
)

// Person is one extracted person candidate.
type Person struct {
	Name       string
	Confidence int // 0-100, see §4.2 precedence tiers
	Context    string
}

// Place is one extracted place candidate.
type Place struct {
	Name       string
	Confidence int
	Context    string
}

// DateFragment is a raw substring of text that looks like a date/time expression, left
// for internal/timeparse to resolve.
type DateFragment struct {
	Text string
}

// Result bundles everything pulled out of one piece of text (§4.2).
type Result struct {
	People []Person
	Places []Place
	Dates  []DateFragment
}

var stopwords = buildStopwords()

func buildStopwords() map[string]bool {
	words := []string{
		"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
		"january", "february", "march", "april", "may", "june", "july", "august",
		"september", "october", "november", "december",
		"morning", "afternoon", "evening", "night", "noon", "midnight",
		"today", "tomorrow", "yesterday", "tonight", "now", "later", "soon",
	}
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

var (
	reWithProper = regexp.MustCompile(`\bwith\s+([A-Z][a-zA-Z'-]*(?:\s+[A-Z][a-zA-Z'-]*)?)\b`)

	actionVerbs  = `call|email|text|meet|see|contact|tell|ask`
	reVerbProper = regexp.MustCompile(`\b(?i:` + actionVerbs + `)\s+([A-Z][a-zA-Z'-]*(?:\s+[A-Z][a-zA-Z'-]*)?)\b`)

	rePlacePreposition = `at|near|by|around|going to|heading to|meet at`
	rePlace            = regexp.MustCompile(`\b(?i:` + rePlacePreposition + `)\s+([A-Z][a-zA-Z'&-]*(?:\s+[A-Z][a-zA-Z'&-]*){0,3})\b`)

	reProperWord = regexp.MustCompile(`\b([A-Z][a-z'-]+)\b`)
	reArticleOrPreposition = regexp.MustCompile(`(?i)\b(a|an|the|to|in|on|of|for|with|at)\s+$`)

	reTimeLike = regexp.MustCompile(`(?i)\b(\d{1,2}(:\d{2})?\s*(am|pm)?|today|tomorrow|tonight|monday|tuesday|wednesday|thursday|friday|saturday|sunday|in\s+\d+\s*(minute|hour|day|week)s?)\b`)
)

// Extract runs every strategy over text in decreasing precedence order (§4.2) and
// deduplicates names within the single extraction.
func Extract(text string) Result {
	var res Result
	seenPeople := map[string]bool{}
	seenPlaces := map[string]bool{}

	addPerson := func(name string, confidence int) {
		key := strings.ToLower(name)
		if seenPeople[key] || name == "" {
			return
		}
		seenPeople[key] = true
		res.People = append(res.People, Person{Name: name, Confidence: confidence, Context: text})
	}
	addPlace := func(name string, confidence int) {
		key := strings.ToLower(name)
		if seenPlaces[key] || name == "" {
			return
		}
		seenPlaces[key] = true
		res.Places = append(res.Places, Place{Name: name, Confidence: confidence, Context: text})
	}

	// 1. "with <Proper>" -> person [90].
	for _, m := range reWithProper.FindAllStringSubmatch(text, -1) {
		addPerson(m[1], 90)
	}

	// 2. action-verb-before-name -> person [85].
	for _, m := range reVerbProper.FindAllStringSubmatch(text, -1) {
		addPerson(m[1], 85)
	}

	// 3. Proper noun not at sentence start, not a stopword, not preceded by article/prep
	// -> person [60].
	for _, loc := range reProperWord.FindAllStringIndex(text, -1) {
		word := text[loc[0]:loc[1]]
		if loc[0] == 0 {
			continue
		}
		if stopwords[strings.ToLower(word)] {
			continue
		}
		prefix := text[:loc[0]]
		if reArticleOrPreposition.MatchString(prefix) {
			continue
		}
		addPerson(word, 60)
	}

	// 4. place prepositions -> place [80].
	for _, m := range rePlace.FindAllStringSubmatch(text, -1) {
		addPlace(strings.TrimSpace(m[1]), 80)
	}

	// 5. date/time fragments, left for internal/timeparse.
	for _, m := range reTimeLike.FindAllString(text, -1) {
		res.Dates = append(res.Dates, DateFragment{Text: strings.TrimSpace(m)})
	}

	return res
}
