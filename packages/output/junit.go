package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// JUnit XML structures

// JUnitTestSuites is the root element
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr,omitempty"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Skipped    int              `xml:"skipped,attr"`
	Time       float64          `xml:"time,attr"`
	Timestamp  string           `xml:"timestamp,attr,omitempty"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite groups the requests of one definition file
type JUnitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      float64         `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr,omitempty"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase is one named request
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

// JUnitFailure represents a test failure
type JUnitFailure struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitError is a request that could not be resolved or sent
type JUnitError struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitSkipped represents a skipped test
type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitFormatter formats results as JUnit XML, one suite per definition file.
type JUnitFormatter struct {
	writer     io.Writer
	testSuites []JUnitTestSuite
	index      map[string]int
}

type JUnitOption func(*JUnitFormatter)

func NewJUnitFormatter(opts ...JUnitOption) *JUnitFormatter {
	f := &JUnitFormatter{
		writer:     os.Stdout,
		testSuites: make([]JUnitTestSuite, 0),
		index:      make(map[string]int),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JUnitWithWriter(w io.Writer) JUnitOption {
	return func(f *JUnitFormatter) {
		f.writer = w
	}
}

func (f *JUnitFormatter) suite(file string) *JUnitTestSuite {
	i, ok := f.index[file]
	if !ok {
		i = len(f.testSuites)
		f.index[file] = i
		f.testSuites = append(f.testSuites, JUnitTestSuite{
			Name:      file,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
	return &f.testSuites[i]
}

func (f *JUnitFormatter) FormatResult(r *Result) {
	suite := f.suite(r.File)
	d := r.duration()

	tc := JUnitTestCase{
		Name:      r.Name,
		ClassName: r.File,
		Time:      d.Seconds(),
	}

	switch {
	case r.DryRun && r.Err == nil:
		suite.Skipped++
		tc.Skipped = &JUnitSkipped{Message: "dry run"}
	case r.Err != nil:
		suite.Errors++
		tc.Error = &JUnitError{
			Message: r.Err.Error(),
			Type:    "Error",
		}
	case !r.Passed():
		suite.Failures++
		tc.Failure = &JUnitFailure{
			Message: "Assertion failed",
			Type:    "AssertionError",
			Content: strings.Join(failureLines(r.Assertions), "\n"),
		}
	}

	suite.Tests++
	suite.Time += d.Seconds()
	suite.TestCases = append(suite.TestCases, tc)
}

func (f *JUnitFormatter) FormatError(err error) {
	suite := f.suite("")
	suite.Tests++
	suite.Errors++
	suite.TestCases = append(suite.TestCases, JUnitTestCase{
		Name:  "setup",
		Error: &JUnitError{Message: err.Error(), Type: "Error"},
	})
}

func (f *JUnitFormatter) FormatHeader(version string) {
	// No header needed for JUnit XML
}

// Flush writes the accumulated JUnit XML output
func (f *JUnitFormatter) Flush(totalDuration time.Duration) error {
	var totalTests, totalFailures, totalErrors, totalSkipped int
	for _, suite := range f.testSuites {
		totalTests += suite.Tests
		totalFailures += suite.Failures
		totalErrors += suite.Errors
		totalSkipped += suite.Skipped
	}

	suites := JUnitTestSuites{
		Name:       "fetchforge",
		Tests:      totalTests,
		Failures:   totalFailures,
		Errors:     totalErrors,
		Skipped:    totalSkipped,
		Time:       totalDuration.Seconds(),
		Timestamp:  time.Now().Format(time.RFC3339),
		TestSuites: f.testSuites,
	}

	fmt.Fprintf(f.writer, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	encoder := xml.NewEncoder(f.writer)
	encoder.Indent("", "  ")
	return encoder.Encode(suites)
}
