// Package tally counts per-item outcome labels and renders run summaries.
package tally

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Skip labels recorded for items that never reach the action.
const (
	LabelTypeNotSupported = "Entity type not supported"
	LabelAccessDenied     = "Access denied"
	LabelNotFound         = "Item not found"
	LabelInvalidKey       = "Invalid item key"
	LabelActionNotFound   = "Action not found"
)

// Tally maps outcome labels to occurrence counts.
type Tally map[string]int

// Add records n occurrences of label. Non-positive n is ignored.
func (t Tally) Add(label string, n int) {
	if n <= 0 {
		return
	}
	t[label] += n
}

// AddAll records one occurrence per label.
func (t Tally) AddAll(labels []string) {
	for _, l := range labels {
		t[l]++
	}
}

// Merge returns a new tally holding the counts of t and other.
func (t Tally) Merge(other Tally) Tally {
	out := make(Tally, len(t)+len(other))
	for l, n := range t {
		out[l] += n
	}
	for l, n := range other {
		out[l] += n
	}
	return out
}

// Clone copies t.
func (t Tally) Clone() Tally {
	return Tally{}.Merge(t)
}

// Total is the number of recorded outcomes.
func (t Tally) Total() int {
	n := 0
	for _, c := range t {
		n += c
	}
	return n
}

// FromLabels counts a raw label list.
func FromLabels(labels []string) Tally {
	t := make(Tally, len(labels))
	t.AddAll(labels)
	return t
}

// LabelCount is one line of a summary.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Summary is the rendered result of a run.
type Summary struct {
	Counts []LabelCount `json:"counts"`
	Text   string       `json:"text"`
}

// Summarize orders the counts by descending count, then label, and renders
// the operator-facing text.
func Summarize(t Tally) Summary {
	counts := make([]LabelCount, 0, len(t))
	for l, n := range t {
		if n > 0 {
			counts = append(counts, LabelCount{Label: l, Count: n})
		}
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Label < counts[j].Label
	})

	p := message.NewPrinter(language.English)
	var text string
	switch len(counts) {
	case 0:
		text = "No items were processed."
	case 1:
		// Fixed wording, even for a single result.
		text = p.Sprintf("%s operation performed on %d results.", counts[0].Label, counts[0].Count)
	default:
		parts := make([]string, len(counts))
		for i, c := range counts {
			parts[i] = p.Sprintf("%s (%d)", c.Label, c.Count)
		}
		text = "Operations performed: " + strings.Join(parts, ", ") + "."
	}
	return Summary{Counts: counts, Text: text}
}

// Applied renders the message of an immediate, unbatched run.
func Applied(label string, n int) string {
	noun := "items"
	if n == 1 {
		noun = "item"
	}
	return message.NewPrinter(language.English).Sprintf("%s was applied to %d %s.", label, n, noun)
}
