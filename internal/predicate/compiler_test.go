package predicate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/taint-io/internal/labels"
)

func sinkRecords(n int) []labels.LabelRecord {
	records := make([]labels.LabelRecord, n)
	for i := range records {
		records[i] = labels.LabelRecord{
			Identity: labels.APIIdentity{Package: "com.acme", Class: "Db", Method: fmt.Sprintf("run%04d", i), Signature: "void run(String sql)"},
			Type:     labels.Sink,
			SinkArgs: []string{"p0"},
		}
	}
	return records
}

func TestRenderersAreExhaustive(t *testing.T) {
	for _, kind := range ClauseKinds {
		for _, eco := range labels.Ecosystems {
			_, ok := renderers[kind][eco]
			assert.True(t, ok, "%s has no renderer for %s", kind, eco)
		}
	}
	for _, eco := range labels.Ecosystems {
		assert.NotEmpty(t, headers[eco], eco.String())
	}
}

func TestEmptyInputIsAlwaysFalse(t *testing.T) {
	for _, eco := range labels.Ecosystems {
		c := New(Options{Ecosystem: eco}, nil)
		for _, body := range []Body{
			c.CompileSourceBody(nil, nil),
			c.CompileTaintPropagatorBody(nil, nil),
			c.CompileSinkBody(nil),
		} {
			assert.Equal(t, []string{AlwaysFalse}, body.Clauses, "%s %s", eco, body.Kind)
			assert.False(t, body.Batched())
			assert.Equal(t, AlwaysFalse, body.Text())
			assert.Empty(t, body.Additional())
		}
	}
}

func TestBatchThreshold(t *testing.T) {
	c := New(Options{Ecosystem: labels.JavaLike}, nil)
	tests := []struct {
		n       int
		batches []int
	}{
		{300, nil},
		{301, []int{300, 1}},
		{600, []int{300, 300}},
		{601, []int{300, 300, 1}},
	}
	for _, tt := range tests {
		body := c.CompileSinkBody(sinkRecords(tt.n))
		require.Len(t, body.Clauses, tt.n)
		var sizes []int
		for _, b := range body.Batches {
			sizes = append(sizes, len(b))
		}
		assert.Equal(t, tt.batches, sizes, "n=%d", tt.n)
	}
}

func TestBatchedRendering(t *testing.T) {
	c := New(Options{Ecosystem: labels.JavaLike, BatchSize: 2}, nil)
	body := c.CompileSinkBody(sinkRecords(3))
	require.True(t, body.Batched())

	assert.Equal(t, "    isGPTDetectedSinkPart0(snk) or\n    isGPTDetectedSinkPart1(snk)", body.Text())
	additional := body.Additional()
	assert.Contains(t, additional, "predicate isGPTDetectedSinkPart0(DataFlow::Node snk) {\n")
	assert.Contains(t, additional, "predicate isGPTDetectedSinkPart1(DataFlow::Node snk) {\n")

	out := body.Render()
	assert.True(t, strings.HasPrefix(out, "import java\n"))
	assert.Contains(t, out, "predicate isGPTDetectedSink(DataFlow::Node snk) {\n    isGPTDetectedSinkPart0(snk)")
}

func TestStepPredicateNodes(t *testing.T) {
	props := []labels.LabelRecord{{
		Identity: labels.APIIdentity{Package: "urllib", Class: "parse", Method: "quote", Signature: "quote(string)"},
		Type:     labels.TaintPropagator,
	}}
	python := New(Options{Ecosystem: labels.PythonLike, BatchSize: 1}, nil).CompileTaintPropagatorBody(props, nil)
	assert.Contains(t, python.Render(), "predicate isGPTDetectedStep(DataFlow::Node pre, DataFlow::Node next)")
	assert.Contains(t, python.Text(), "isGPTDetectedStepPart0(pre, next)")

	props[0].Identity = labels.APIIdentity{Package: "java.net", Class: "URL", Method: "URL", Signature: "URL(String spec)"}
	java := New(Options{Ecosystem: labels.JavaLike}, nil).CompileTaintPropagatorBody(props, nil)
	assert.Contains(t, java.Render(), "predicate isGPTDetectedStep(DataFlow::Node prev, DataFlow::Node next)")
}

func TestDuplicateClausesCollapse(t *testing.T) {
	c := New(Options{Ecosystem: labels.CLike}, nil)
	// C clauses depend on the method name only.
	sources := []labels.LabelRecord{
		{Identity: labels.APIIdentity{Method: "recv", Signature: "ssize_t recv(int, void *, size_t, int)"}, Type: labels.Source},
		{Identity: labels.APIIdentity{Method: "recv", Signature: "recv(fd, buf, n, flags)"}, Type: labels.Source},
	}
	body := c.CompileSourceBody(sources, nil)
	require.Len(t, body.Clauses, 1)
	assert.Equal(t, 1, strings.Count(body.Text(), `hasName("recv")`))
}

func TestDeterministicOrder(t *testing.T) {
	c := New(Options{Ecosystem: labels.JavaLike}, nil)
	records := sinkRecords(5)
	reversed := make([]labels.LabelRecord, len(records))
	for i, r := range records {
		reversed[len(records)-1-i] = r
	}
	assert.Equal(t, c.CompileSinkBody(records).Render(), c.CompileSinkBody(reversed).Render())
}

func TestJavaClauses(t *testing.T) {
	c := New(Options{Ecosystem: labels.JavaLike}, nil)

	sink := c.CompileSinkBody([]labels.LabelRecord{{
		Identity: labels.APIIdentity{Package: "java.lang", Class: "Runtime", Method: "exec", Signature: "Process exec(String[] cmdarray, String[] envp)"},
		Type:     labels.Sink,
		SinkArgs: []string{"cmdarray", "p1", "this", "bogus"},
	}})
	assert.Contains(t, sink.Text(), `hasQualifiedName("java.lang", "Runtime")`)
	assert.Contains(t, sink.Text(), "(c.getArgument(0) = snk.asExpr().(Argument) or c.getArgument(1) = snk.asExpr().(Argument) or c.getQualifier() = snk.asExpr())")

	unusable := c.CompileSinkBody([]labels.LabelRecord{{
		Identity: labels.APIIdentity{Package: "java.io", Class: "File", Method: "delete", Signature: "boolean delete()"},
		Type:     labels.Sink,
		SinkArgs: []string{"x"},
	}})
	assert.Equal(t, []string{AlwaysFalse}, unusable.Clauses)

	src := c.CompileSourceBody(nil, []labels.LabelRecord{{
		Identity:     labels.APIIdentity{Package: "langroid-0.53.14.org.lib", Class: "Parser", Method: "parse", Signature: "Doc parse(String input, int flags)"},
		Type:         labels.Source,
		TaintedInput: []string{"input", "flags"},
	}})
	assert.Contains(t, src.Text(), `hasQualifiedName("org.lib", "Parser")`)
	assert.Contains(t, src.Text(), `(p.getName() = "input" or p.getName() = "flags")`)
}

func TestPythonClauses(t *testing.T) {
	c := New(Options{Ecosystem: labels.PythonLike}, nil)

	sinks := c.CompileSinkBody([]labels.LabelRecord{
		{Identity: labels.APIIdentity{Package: "os", Class: "os", Method: "system", Signature: "os.system(command)"}, Type: labels.Sink, SinkArgs: []string{"command"}},
		{Identity: labels.APIIdentity{Package: "builtins", Class: "builtins", Method: "eval", Signature: "eval(source)"}, Type: labels.Sink, SinkArgs: []string{"source"}},
		{Identity: labels.APIIdentity{Package: "builtins", Class: "builtins", Method: "print", Signature: "print(value)"}, Type: labels.Sink, SinkArgs: []string{}},
	})
	require.Len(t, sinks.Clauses, 2)
	assert.Contains(t, sinks.Text(), `attr.getObject().toString() = "os"`)
	assert.Contains(t, sinks.Text(), `c.getFunc().toString() = "eval"`)

	src := c.CompileSourceBody([]labels.LabelRecord{
		{Identity: labels.APIIdentity{Package: "flask.request", Class: "Request", Method: "get_json", Signature: "get_json()"}, Type: labels.Source},
	}, nil)
	assert.Contains(t, src.Text(), `attr.getObject().toString() = "Attribute"`)

	steps := c.CompileTaintPropagatorBody(nil, []labels.LabelRecord{
		{Identity: labels.APIIdentity{Package: "lib", Class: "Client", Method: "request", Signature: "request(**kwargs)"}, Type: labels.Source, TaintedInput: []string{"kwargs"}},
	})
	assert.Contains(t, steps.Text(), "call.getKwargs() = pre.asExpr()")
	assert.Contains(t, steps.Text(), `joinCall.getFunc().toString() = "join"`)
}

func TestCClauses(t *testing.T) {
	c := New(Options{Ecosystem: labels.CLike}, nil)
	sink := c.CompileSinkBody([]labels.LabelRecord{
		{Identity: labels.APIIdentity{Method: "system", Signature: "int system(const char *command)"}, Type: labels.Sink, SinkArgs: []string{"command"}},
	})
	assert.Contains(t, sink.Text(), `c.toString() = "call to system"`)

	steps := c.CompileTaintPropagatorBody([]labels.LabelRecord{
		{Identity: labels.APIIdentity{Method: "strdup", Signature: "char *strdup(const char *s)"}, Type: labels.TaintPropagator},
	}, nil)
	assert.Contains(t, steps.Text(), `"call to strdup"`)
	assert.Contains(t, steps.Text(), "next.asDefiningArgument() = fc.getArgument(0)")
	assert.True(t, strings.HasPrefix(steps.Render(), "import cpp\n"))
}

func TestNoSummaryModel(t *testing.T) {
	c := New(Options{Ecosystem: labels.JavaLike, NoSummaryModel: true}, nil)
	body := c.CompileTaintPropagatorBody([]labels.LabelRecord{
		{Identity: labels.APIIdentity{Package: "java.net", Class: "URL", Method: "URL", Signature: "URL(String)"}, Type: labels.TaintPropagator},
	}, nil)
	assert.Equal(t, []string{AlwaysFalse}, body.Clauses)
}

func TestUnsafeRecordsAreSkipped(t *testing.T) {
	c := New(Options{Ecosystem: labels.JavaLike}, nil)
	body := c.CompileSinkBody([]labels.LabelRecord{{
		Identity: labels.APIIdentity{Package: "a", Class: `B"); evil(`, Method: "run", Signature: "void run(String s)"},
		Type:     labels.Sink,
		SinkArgs: []string{"p0"},
	}})
	assert.Equal(t, []string{AlwaysFalse}, body.Clauses)
}

func TestManualRules(t *testing.T) {
	dir := t.TempDir()
	sourceFile, propFile := ManualRuleFiles(dir, labels.JavaLike)
	require.NoError(t, os.WriteFile(sourceFile, []byte("parse\n# comment\n\n"), 0o644))
	require.NoError(t, os.WriteFile(propFile, []byte("append\n"), 0o644))
	assert.Equal(t, filepath.Join(dir, "manual_source_java.txt"), sourceFile)

	rules, err := LoadManualRules(dir, labels.JavaLike)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"parse": true}, rules.Sources)

	c := New(Options{Ecosystem: labels.JavaLike, Manual: rules}, nil)
	params := []labels.LabelRecord{
		{Identity: labels.APIIdentity{Package: "org.lib", Class: "P", Method: "parse", Signature: "parse(String s)"}, Type: labels.Source, TaintedInput: []string{"s"}},
		{Identity: labels.APIIdentity{Package: "org.lib", Class: "P", Method: "load", Signature: "load(String s)"}, Type: labels.Source, TaintedInput: []string{"s"}},
	}
	body := c.CompileSourceBody(nil, params)
	require.Len(t, body.Clauses, 1)
	assert.Contains(t, body.Clauses[0], `getName() = "parse"`)

	steps := c.CompileTaintPropagatorBody(nil, params)
	assert.Equal(t, []string{AlwaysFalse}, steps.Clauses)

	missing, err := LoadManualRules(t.TempDir(), labels.PythonLike)
	require.NoError(t, err)
	assert.Empty(t, missing.Sources)
}

func TestStripProjectPrefix(t *testing.T) {
	assert.Equal(t, "pyload.core", StripProjectPrefix("pyload-f34052df70a193948c1a19332a1f02c7b9bc362d.pyload.core"))
	assert.Equal(t, "org.lib", StripProjectPrefix("org.lib"))
}
