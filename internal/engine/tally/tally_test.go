package tally

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	tests := []struct {
		name   string
		tally  Tally
		text   string
		counts []LabelCount
	}{
		{
			name:   "two labels by descending count",
			tally:  FromLabels([]string{"label2", "label1", "label1", "label2", "label1", "label1"}),
			text:   "Operations performed: label1 (4), label2 (2).",
			counts: []LabelCount{{"label1", 4}, {"label2", 2}},
		},
		{
			name:   "single label",
			tally:  Tally{"Publish": 3},
			text:   "Publish operation performed on 3 results.",
			counts: []LabelCount{{"Publish", 3}},
		},
		{
			name:   "single result",
			tally:  Tally{"Publish": 1},
			text:   "Publish operation performed on 1 results.",
			counts: []LabelCount{{"Publish", 1}},
		},
		{
			name:   "ties by label and denials visible",
			tally:  Tally{"Publish": 7, LabelAccessDenied: 3, "Archive": 3},
			text:   "Operations performed: Publish (7), Access denied (3), Archive (3).",
			counts: []LabelCount{{"Publish", 7}, {LabelAccessDenied, 3}, {"Archive", 3}},
		},
		{
			name:   "thousands",
			tally:  Tally{"Publish": 12500},
			text:   "Publish operation performed on 12,500 results.",
			counts: []LabelCount{{"Publish", 12500}},
		},
		{
			name:   "empty",
			tally:  Tally{"zero": 0},
			text:   "No items were processed.",
			counts: []LabelCount{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Summarize(tt.tally)
			assert.Equal(t, tt.text, s.Text)
			assert.Equal(t, tt.counts, s.Counts)
		})
	}
}

func TestTallyArithmetic(t *testing.T) {
	a := Tally{}
	a.Add("x", 2)
	a.Add("x", 0)
	a.Add("y", -1)
	a.AddAll([]string{"x", "z"})
	assert.Equal(t, Tally{"x": 3, "z": 1}, a)
	assert.Equal(t, 4, a.Total())

	b := Tally{"z": 2, "w": 1}
	merged := a.Merge(b)
	assert.Equal(t, Tally{"x": 3, "z": 3, "w": 1}, merged)
	assert.Equal(t, Tally{"x": 3, "z": 1}, a, "merge must not mutate its receiver")

	c := a.Clone()
	c.Add("x", 1)
	assert.Equal(t, 3, a["x"])
}

func TestApplied(t *testing.T) {
	assert.Equal(t, "Publish was applied to 1 item.", Applied("Publish", 1))
	assert.Equal(t, "Publish was applied to 1,200 items.", Applied("Publish", 1200))
}
