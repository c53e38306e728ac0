// Defines progress reporting interfaces and implementations.

package convert

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Stats contains statistics about a conversion run.
//
// Listed counts the objects taken from the listing before the run stopped.
// With Parallelism above 1 it may include objects that were listed but never
// attempted after a failure.
type Stats struct {
	Listed    int           `json:"listed"`
	Converted int           `json:"converted"`
	Skipped   int           `json:"skipped"`
	Ignored   int           `json:"ignored"`
	Planned   int           `json:"planned"`
	Records   int           `json:"records"`
	Bytes     int64         `json:"bytes"`
	Duration  time.Duration `json:"duration"`
}

func (s *Stats) add(r Result) {
	if r.Skipped {
		s.Skipped++
		return
	}
	s.Converted++
	s.Records += r.Records
	s.Bytes += r.Bytes
}

// ProgressReporter is the interface for reporting conversion progress.
//
// Implementations must be safe for concurrent use when the driver runs with
// parallelism above 1.
type ProgressReporter interface {
	OnSkip(uri string)
	OnIgnore(uri, reason string)
	OnRecord(uri string, n int)
	OnFileDone(uri string, r Result)
	OnError(err error)
	OnComplete(stats Stats)
}

// CLIProgress writes progress to stdout/stderr: one dot per record and a
// line per file.
type CLIProgress struct {
	Out io.Writer
	Err io.Writer

	mu sync.Mutex
}

// OnSkip is called when the output of a file already exists.
func (p *CLIProgress) OnSkip(uri string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.Out, "Skipping %s - already exists\n", uri)
}

// OnIgnore is called for listed objects that are not conversion inputs.
func (p *CLIProgress) OnIgnore(uri, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.Err, "Warning: ignoring %s: %s\n", uri, reason)
}

// OnRecord is called after each record is written.
func (p *CLIProgress) OnRecord(uri string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = io.WriteString(p.Out, ".")
}

// OnFileDone is called when an output object has been finalized.
func (p *CLIProgress) OnFileDone(uri string, r Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r.Records > 0 {
		_, _ = io.WriteString(p.Out, "\n")
	}
	_, _ = fmt.Fprintf(p.Out, "Finished %s (%d records)\n", uri, r.Records)
}

// OnError is called when a file fails.
func (p *CLIProgress) OnError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.Err, "\nError: %v\n", err)
}

// OnComplete is called when the run finishes successfully.
func (p *CLIProgress) OnComplete(stats Stats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.Out, "\nComplete!\n")
	_, _ = fmt.Fprintf(p.Out, "---------\n")
	_, _ = fmt.Fprintf(p.Out, "Listed:    %d\n", stats.Listed)
	if stats.Planned > 0 {
		_, _ = fmt.Fprintf(p.Out, "Planned:   %d\n", stats.Planned)
	}
	_, _ = fmt.Fprintf(p.Out, "Converted: %d\n", stats.Converted)
	_, _ = fmt.Fprintf(p.Out, "Skipped:   %d\n", stats.Skipped)
	if stats.Ignored > 0 {
		_, _ = fmt.Fprintf(p.Out, "Ignored:   %d\n", stats.Ignored)
	}
	_, _ = fmt.Fprintf(p.Out, "Records:   %d\n", stats.Records)
	_, _ = fmt.Fprintf(p.Out, "Duration:  %s\n", stats.Duration.Round(time.Millisecond))
}

// NullProgress discards all progress updates.
type NullProgress struct{}

// OnSkip is called when the output of a file already exists.
func (NullProgress) OnSkip(uri string) {}

// OnIgnore is called for listed objects that are not conversion inputs.
func (NullProgress) OnIgnore(uri, reason string) {}

// OnRecord is called after each record is written.
func (NullProgress) OnRecord(uri string, n int) {}

// OnFileDone is called when an output object has been finalized.
func (NullProgress) OnFileDone(uri string, r Result) {}

// OnError is called when a file fails.
func (NullProgress) OnError(err error) {}

// OnComplete is called when the run finishes successfully.
func (NullProgress) OnComplete(stats Stats) {}
