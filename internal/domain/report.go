package domain

import "time"

// Failure records a document that hit an error.
type Failure struct {
	Item string
	Err  string
}

// RunReport holds the counters every pipeline reports on completion.
type RunReport struct {
	Processed int
	Matched   int
	Routed    int
	Skipped   int
	Errors    int
	Warnings  int
	Failures  []Failure
	Started   time.Time
	Finished  time.Time
}

// Fail counts an error for item and remembers it for the summary.
func (r *RunReport) Fail(item string, err error) {
	r.Errors++
	r.Failures = append(r.Failures, Failure{Item: item, Err: err.Error()})
}

// MaxFailuresShown is the number of failures a summary lists before
// collapsing the rest into a count.
const MaxFailuresShown = 10

// ShownFailures returns the failures a summary should list and how many were
// left out.
func (r *RunReport) ShownFailures() ([]Failure, int) {
	if len(r.Failures) <= MaxFailuresShown {
		return r.Failures, 0
	}
	return r.Failures[:MaxFailuresShown], len(r.Failures) - MaxFailuresShown
}

// Duration returns how long the run took.
func (r *RunReport) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// Progress is delivered to a ProgressSink at a bounded cadence.
type Progress struct {
	Processed int
	// Total is -1 when the total is unknown.
	Total   int
	Current string
	Matched int
}

// ProgressSink observes pipeline progress.
type ProgressSink interface {
	Progress(p Progress)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(p Progress)

// Progress calls f(p).
func (f ProgressFunc) Progress(p Progress) { f(p) }

// NopProgress discards progress updates.
var NopProgress ProgressSink = ProgressFunc(func(Progress) {})

// Placement describes a document that was written to its destination.
type Placement struct {
	RunID       string
	Name        string
	Kind        string
	RootTag     string
	Key         string
	Source      string
	Destination string
	Origin      Origin
	At          time.Time
	// Content is the document payload, shared with the candidate.
	Content []byte
}

// PlacementRecorder receives every successful placement, e.g. to build a
// searchable catalog.
type PlacementRecorder interface {
	Record(p Placement) error
}

// Cadence forwards every Every-th update, and the final one when the total
// is known, to Sink.
type Cadence struct {
	Sink  ProgressSink
	Every int
}

// Step records one processed item.
func (c Cadence) Step(p Progress) {
	if c.Sink == nil {
		return
	}
	if c.Every <= 1 || p.Processed%c.Every == 0 || p.Processed == p.Total {
		c.Sink.Progress(p)
	}
}
