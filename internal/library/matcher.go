// Package library keeps the stored reference poses in memory and ranks
// them against a live pose.
package library

import (
	"sort"
	"sync"

	"github.com/ZDP-Q/PostureCorrection/internal/pose"
)

// Template is a reference pose prepared for matching.
type Template struct {
	ID     string
	Name   string
	Pose   pose.Pose
	Angles pose.AngleSet
}

// Match is the result of comparing a live pose against one template.
type Match struct {
	Template *Template
	Result   pose.MatchResult
}

// Comparer compares two angle sets. analyzer.Analyzer satisfies it.
type Comparer interface {
	CompareAngles(reference, live pose.AngleSet) pose.MatchResult
}

// Matcher ranks reference templates against live angles.
type Matcher struct {
	mu        sync.RWMutex
	templates []*Template
}

// NewMatcher creates an empty Matcher.
func NewMatcher() *Matcher {
	return &Matcher{}
}

// Add adds a template, replacing any template with the same ID.
func (m *Matcher) Add(t *Template) {
	if t == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.templates {
		if existing.ID == t.ID {
			m.templates[i] = t
			return
		}
	}
	m.templates = append(m.templates, t)
}

// Remove removes a template by its ID.
func (m *Matcher) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, t := range m.templates {
		if t.ID == id {
			m.templates = append(m.templates[:i], m.templates[i+1:]...)
			return
		}
	}
}

// Get returns the template with id.
func (m *Matcher) Get(id string) (*Template, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, t := range m.templates {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

// Len returns the number of templates.
func (m *Matcher) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.templates)
}

// Reset removes every template.
func (m *Matcher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates = nil
}

// Match compares live against every template and returns the templates
// scoring at least minScore, best first. Templates sharing no evaluable
// joint with live are left out. Ties are broken by similarity, then name.
func (m *Matcher) Match(live pose.AngleSet, cmp Comparer, minScore float64) []Match {
	m.mu.RLock()
	templates := append([]*Template(nil), m.templates...)
	m.mu.RUnlock()

	var matches []Match
	for _, t := range templates {
		result := cmp.CompareAngles(t.Angles, live)
		if result.Evaluated() == 0 || result.Score < minScore {
			continue
		}
		matches = append(matches, Match{Template: t, Result: result})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i].Result, matches[j].Result
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		return matches[i].Template.Name < matches[j].Template.Name
	})

	return matches
}
