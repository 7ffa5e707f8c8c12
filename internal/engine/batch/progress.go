package batch

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Phase names the work a cursor measures.
type Phase string

// Phases that report progress.
const (
	PhaseListing    Phase = "listing"
	PhaseProcessing Phase = "processing"
)

// Report is the progress shown after a step.
type Report struct {
	Phase       Phase
	Processed   int
	Total       *int
	Fraction    float64
	Determinate bool
	Message     string
}

// NewReport describes c. Without a known total the report is indeterminate
// and carries only the absolute count.
func NewReport(phase Phase, c Cursor) Report {
	r := Report{Phase: phase, Processed: c.Processed, Total: c.Total}
	p := message.NewPrinter(language.English)

	if c.Total == nil {
		if phase == PhaseListing {
			r.Message = p.Sprintf("Prepared %d entities for processing.", c.Processed)
		} else {
			r.Message = p.Sprintf("Processed %d entities.", c.Processed)
		}
		return r
	}

	total := *c.Total
	r.Determinate = true
	switch {
	case total == 0:
		r.Fraction = 1
	default:
		r.Fraction = min(float64(c.Processed)/float64(total), 1)
	}
	if phase == PhaseListing {
		r.Message = p.Sprintf("Prepared %d of %d entities for processing.", c.Processed, total)
	} else {
		r.Message = p.Sprintf("Processed %d of %d entities.", c.Processed, total)
	}
	return r
}

// Progress follows a run across steps in one process, for rate and ETA
// display. It is not persisted.
type Progress struct {
	start     time.Time
	last      Report
	steps     int
	startedAt int
}

// NewProgress starts tracking from the report of the restored cursor.
func NewProgress(initial Report) *Progress {
	return &Progress{start: time.Now(), last: initial, startedAt: initial.Processed}
}

// Observe records the report of a finished step.
func (p *Progress) Observe(r Report) {
	if r.Phase != p.last.Phase {
		p.start = time.Now()
		p.startedAt = 0
	}
	p.last = r
	p.steps++
}

// Last returns the latest observed report.
func (p *Progress) Last() Report {
	return p.last
}

// Steps returns how many steps were observed.
func (p *Progress) Steps() int {
	return p.steps
}

// ElapsedTime returns the time spent in the current phase.
func (p *Progress) ElapsedTime() time.Duration {
	return time.Since(p.start)
}

// ItemsPerSecond returns the rate of the current phase.
func (p *Progress) ItemsPerSecond() float64 {
	elapsed := p.ElapsedTime().Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(p.last.Processed-p.startedAt) / elapsed
}

// EstimatedTimeRemaining extrapolates the current rate. It returns 0 when the
// total is unknown or nothing was processed yet.
func (p *Progress) EstimatedTimeRemaining() time.Duration {
	done := p.last.Processed - p.startedAt
	if p.last.Total == nil || done <= 0 {
		return 0
	}
	remaining := *p.last.Total - p.last.Processed
	if remaining <= 0 {
		return 0
	}
	perItem := p.ElapsedTime() / time.Duration(done)
	return perItem * time.Duration(remaining)
}
