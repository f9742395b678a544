package postprocess

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/owenrumney/go-sarif/v2/sarif"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/taint-io/internal/labels"
)

const sourceFile = `package com.foo;

class Bar {
    void run(String q) {
        stmt.execute(q);
        System.out.println(q);
    }
}
`

func location(uri string, line int) *sarif.ThreadFlowLocation {
	return sarif.NewThreadFlowLocation().WithLocation(
		sarif.NewLocation().WithPhysicalLocation(
			sarif.NewPhysicalLocation().
				WithArtifactLocation(sarif.NewSimpleArtifactLocation(uri)).
				WithRegion(sarif.NewSimpleRegion(line, line)),
		),
	)
}

func flow(locations ...*sarif.ThreadFlowLocation) *sarif.CodeFlow {
	return sarif.NewCodeFlow().WithThreadFlows([]*sarif.ThreadFlow{
		sarif.NewThreadFlow().WithLocations(locations),
	})
}

func alarm(rule string, flows ...*sarif.CodeFlow) *sarif.Result {
	result := sarif.NewRuleResult(rule).WithMessage(sarif.NewTextMessage("tainted data reaches a sink"))
	result.CodeFlows = flows
	return result
}

func newReport(t *testing.T, results ...*sarif.Result) *sarif.Report {
	t.Helper()
	report, err := sarif.New(sarif.Version210)
	require.NoError(t, err)
	run := sarif.NewRunWithInformationURI("CodeQL", "https://codeql.github.com")
	run.Results = results
	report.AddRun(run)
	return report
}

func writeSource(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	path := filepath.Join(root, "src", "main", "java", "com", "foo", "Bar.java")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(sourceFile), 0o644))
	return root
}

const barURI = "src/main/java/com/foo/Bar.java"

func TestFilterAlarmDropsPrintSink(t *testing.T) {
	p := New(labels.JavaLike, writeSource(t), nil)

	got := p.FilterAlarm(alarm("taintio/cwe-078wLLM", flow(location(barURI, 4), location(barURI, 6))))
	assert.Empty(t, got.CodeFlows)
}

func TestFilterAlarmKeepsRealSink(t *testing.T) {
	p := New(labels.JavaLike, writeSource(t), nil)

	got := p.FilterAlarm(alarm("taintio/cwe-089wLLM", flow(location(barURI, 4), location(barURI, 5))))
	assert.Len(t, got.CodeFlows, 1)
}

func TestFilterAlarmDropsTestPaths(t *testing.T) {
	p := New(labels.JavaLike, writeSource(t), nil)

	got := p.FilterAlarm(alarm("r",
		flow(location("src/test/java/com/foo/BarTest.java", 10), location(barURI, 5)),
		flow(location(barURI, 4), location(barURI, 5)),
	))
	assert.Len(t, got.CodeFlows, 1)
}

func TestFilterAlarmMissingFileIsPermissive(t *testing.T) {
	p := New(labels.JavaLike, t.TempDir(), nil)

	got := p.FilterAlarm(alarm("r", flow(location("src/main/java/Gone.java", 3))))
	assert.Len(t, got.CodeFlows, 1)

	p = New(labels.JavaLike, writeSource(t), nil)
	got = p.FilterAlarm(alarm("r", flow(location(barURI, 400))))
	assert.Len(t, got.CodeFlows, 1)
}

func TestResolveStaysInsideSourceRoot(t *testing.T) {
	root := writeSource(t)
	p := New(labels.JavaLike, root, nil)

	path, err := p.resolve(barURI)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, filepath.FromSlash(barURI)), path)

	_, err = p.resolve("../../etc/passwd")
	assert.ErrorContains(t, err, "escapes root")

	got := p.FilterAlarm(alarm("r", flow(location("../outside/Print.java", 1))))
	assert.Len(t, got.CodeFlows, 1)
}

func TestFilterDropsAlarmsWithoutFlowsAndKeepsInput(t *testing.T) {
	p := New(labels.JavaLike, writeSource(t), nil)
	report := newReport(t,
		alarm("kept", flow(location(barURI, 5))),
		alarm("printed", flow(location(barURI, 6))),
		alarm("no-flows"),
	)

	filtered, err := p.Filter(report)
	require.NoError(t, err)

	assert.Equal(t, Stats{Alarms: 3, Paths: 2}, CollectStats(report))
	assert.Equal(t, Stats{Alarms: 1, Paths: 1}, CollectStats(filtered))
	require.Len(t, filtered.Runs[0].Results, 1)
	assert.Equal(t, "kept", *filtered.Runs[0].Results[0].RuleID)
	assert.Len(t, report.Runs[0].Results[1].CodeFlows, 1)
}

func TestProcessFile(t *testing.T) {
	root := writeSource(t)
	report := newReport(t,
		alarm("kept", flow(location(barURI, 4), location(barURI, 5))),
		alarm("printed", flow(location(barURI, 6))),
	)
	dir := t.TempDir()
	input := filepath.Join(dir, "results.sarif")
	require.NoError(t, report.WriteFile(input))
	original, err := os.ReadFile(input)
	require.NoError(t, err)

	output := OutputPath(input)
	assert.Equal(t, filepath.Join(dir, "results-posthoc-filtered.sarif"), output)

	p := New(labels.JavaLike, root, nil)
	summary, err := p.ProcessFile(input, output)
	require.NoError(t, err)
	assert.Equal(t, Stats{Alarms: 2, Paths: 2}, summary.Before)
	assert.Equal(t, Stats{Alarms: 1, Paths: 1}, summary.After)

	written, err := sarif.Open(output)
	require.NoError(t, err)
	assert.Equal(t, Stats{Alarms: 1, Paths: 1}, CollectStats(written))

	after, err := os.ReadFile(input)
	require.NoError(t, err)
	assert.Equal(t, original, after)

	again, err := p.ProcessFile(input, output)
	require.NoError(t, err)
	assert.Equal(t, summary.After, again.After)
}

func TestIsPrintLine(t *testing.T) {
	tests := []struct {
		eco      labels.Ecosystem
		line     string
		expected bool
	}{
		{labels.JavaLike, `        System.out.println(q);`, true},
		{labels.JavaLike, `        out.print(q);`, true},
		{labels.JavaLike, `        stmt.execute(q);`, false},
		{labels.PythonLike, `    print(cmd)`, true},
		{labels.PythonLike, `    os.system(cmd)`, false},
		{labels.CLike, `  printf("%s", buf);`, true},
		{labels.CLike, `  puts(buf);`, true},
		{labels.CLike, `  system(buf);`, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, IsPrintLine(tt.eco, tt.line), tt.line)
	}
}
