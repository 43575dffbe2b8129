package xcode

import (
	"encoding/xml"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/jstemmer/go-junit-report/v2/junit"

	"git.home.luguber.info/inful/xcodebuilder/internal/logfields"
)

// TestSummary counts XCTest results.
type TestSummary struct {
	Tests    int
	Failures int
}

var (
	suiteStartPattern = regexp.MustCompile(`^Test Suite '(.+)' started at`)
	suiteEndPattern   = regexp.MustCompile(`^Test Suite '(.+)' (passed|failed) at`)
	caseEndPattern    = regexp.MustCompile(`^Test Case '-\[(\S+) (\S+)\]' (passed|failed) \((\d+(?:\.\d+)?) seconds\)`)
	caseErrorPattern  = regexp.MustCompile(`^(.+?:\d+): error: -\[(\S+) (\S+)\] : (.*)$`)
)

type openSuite struct {
	name    string
	cases   []junit.Testcase
	seconds float64
	// pending failure messages keyed by "class name"
	errors map[string][]string
}

// testReporter turns XCTest console output into JUnit XML files.
type testReporter struct {
	dir     string
	stack   []*openSuite
	summary TestSummary
}

func newTestReporter(dir string) *testReporter {
	return &testReporter{dir: dir}
}

func (r *testReporter) consume(line string) {
	if m := suiteStartPattern.FindStringSubmatch(line); m != nil {
		r.stack = append(r.stack, &openSuite{name: m[1], errors: map[string][]string{}})
		return
	}
	if len(r.stack) == 0 {
		return
	}
	top := r.stack[len(r.stack)-1]

	if m := caseErrorPattern.FindStringSubmatch(line); m != nil {
		key := m[2] + " " + m[3]
		top.errors[key] = append(top.errors[key], m[1]+": "+m[4])
		return
	}
	if m := caseEndPattern.FindStringSubmatch(line); m != nil {
		seconds, _ := strconv.ParseFloat(m[4], 64)
		tc := junit.Testcase{Classname: m[1], Name: m[2], Time: m[4]}
		r.summary.Tests++
		if m[3] == "failed" {
			r.summary.Failures++
			msgs := top.errors[m[1]+" "+m[2]]
			failure := &junit.Result{Type: "Failure", Data: strings.Join(msgs, "\n")}
			if len(msgs) > 0 {
				failure.Message = msgs[0]
			}
			tc.Failure = failure
		}
		delete(top.errors, m[1]+" "+m[2])
		top.cases = append(top.cases, tc)
		top.seconds += seconds
		return
	}
	if m := suiteEndPattern.FindStringSubmatch(line); m != nil && m[1] == top.name {
		r.stack = r.stack[:len(r.stack)-1]
		r.write(top)
	}
}

// flush writes suites still open when the stream ended.
func (r *testReporter) flush() {
	for i := len(r.stack) - 1; i >= 0; i-- {
		r.write(r.stack[i])
	}
	r.stack = nil
}

func (r *testReporter) write(s *openSuite) {
	if len(s.cases) == 0 {
		return
	}
	suite := junit.Testsuite{
		Name: s.name,
		Time: strconv.FormatFloat(s.seconds, 'f', 3, 64),
	}
	for _, c := range s.cases {
		suite.AddTestcase(c)
	}
	var report junit.Testsuites
	report.AddSuite(suite)

	path := filepath.Join(r.dir, "TEST-"+reportFileName(s.name)+".xml")
	if err := writeReport(path, &report); err != nil {
		slog.Warn("Failed to write test report", logfields.Path(path), logfields.Error(err))
	}
}

func writeReport(path string, report *junit.Testsuites) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(xml.Header); err != nil {
		_ = f.Close()
		return err
	}
	if err := report.WriteXML(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func reportFileName(suite string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ', ':':
			return '_'
		}
		return r
	}, suite)
}
