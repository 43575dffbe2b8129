package xcode

import (
	"bytes"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"sync"
)

// Outcome is the parser's classification of a build log.
type Outcome int

const (
	// OutcomeUndetermined means no terminal marker was seen. It counts as failure.
	OutcomeUndetermined Outcome = iota
	OutcomeSucceeded
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	default:
		return "undetermined"
	}
}

// maxLineLength bounds the partial-line buffer; longer lines are split.
const maxLineLength = 1 << 20

var (
	// Markers may be indented but nothing else may precede them.
	markerPattern   = regexp.MustCompile(`^\s*\*\* (BUILD|ARCHIVE|CLEAN|TEST|ANALYZE|INSTALL) (SUCCEEDED|FAILED|INTERRUPTED) \*\*`)
	exitCodePattern = regexp.MustCompile(`failed with exit code (\d+)`)
)

// OutputParser consumes the streamed output of an xcodebuild run and decides
// whether the build succeeded, independent of the process exit code.
//
// Every line is forwarded unmodified to the sink. A FAILED or INTERRUPTED
// marker is final even if a later action succeeds. A stream without any
// marker is a failure.
type OutputParser struct {
	mu       sync.Mutex
	sink     io.Writer
	partial  []byte
	markers  int
	failed   bool
	exitCode int
	reports  *testReporter
	closed   bool
}

// ParserOption configures an OutputParser.
type ParserOption func(*OutputParser)

// WithTestReports writes JUnit XML files for XCTest suites into dir.
func WithTestReports(dir string) ParserOption {
	return func(p *OutputParser) {
		p.reports = newTestReporter(dir)
	}
}

// NewOutputParser returns a parser forwarding lines to sink. A nil sink discards.
func NewOutputParser(sink io.Writer, opts ...ParserOption) *OutputParser {
	if sink == nil {
		sink = io.Discard
	}
	p := &OutputParser{sink: sink}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Write implements io.Writer. Complete lines are processed immediately; a
// trailing partial line is kept until more data or Close arrives.
func (p *OutputParser) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.partial = append(p.partial, b...)
	for {
		i := bytes.IndexByte(p.partial, '\n')
		if i < 0 {
			break
		}
		p.processLine(p.partial[:i+1])
		p.partial = p.partial[i+1:]
	}
	if len(p.partial) >= maxLineLength {
		p.processLine(p.partial)
		p.partial = nil
	}
	// Drop the consumed prefix so the buffer does not grow with the stream.
	if len(p.partial) == 0 {
		p.partial = nil
	} else {
		p.partial = append([]byte(nil), p.partial...)
	}
	return len(b), nil
}

// Close flushes a trailing partial line and any open test suites.
func (p *OutputParser) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if len(p.partial) > 0 {
		p.processLine(p.partial)
		p.partial = nil
	}
	if p.reports != nil {
		p.reports.flush()
	}
	return nil
}

func (p *OutputParser) processLine(raw []byte) {
	if _, err := p.sink.Write(raw); err != nil {
		slog.Debug("Build log sink write failed", slog.String("error", err.Error()))
	}

	line := string(bytes.TrimRight(raw, "\r\n"))
	if m := markerPattern.FindStringSubmatch(line); m != nil {
		p.markers++
		if m[2] != "SUCCEEDED" {
			p.failed = true
		}
	}
	if m := exitCodePattern.FindStringSubmatch(line); m != nil {
		if code, err := strconv.Atoi(m[1]); err == nil && code != 0 && p.exitCode == 0 {
			p.exitCode = code
		}
	}
	if p.reports != nil {
		p.reports.consume(line)
	}
}

// Outcome returns the classification so far.
func (p *OutputParser) Outcome() Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outcome()
}

func (p *OutputParser) outcome() Outcome {
	switch {
	case p.failed:
		return OutcomeFailed
	case p.markers > 0:
		return OutcomeSucceeded
	default:
		return OutcomeUndetermined
	}
}

// ExitCode is the authoritative exit code of the build: 0 only when a success
// marker was seen and no failure marker. Failures report the first tool exit
// code mentioned in the log, or 1.
func (p *OutputParser) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.outcome() == OutcomeSucceeded {
		return 0
	}
	if p.exitCode != 0 {
		return p.exitCode
	}
	return 1
}

// TestSummary returns totals over the test cases seen so far.
func (p *OutputParser) TestSummary() TestSummary {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reports == nil {
		return TestSummary{}
	}
	return p.reports.summary
}
