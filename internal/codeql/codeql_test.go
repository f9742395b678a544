package codeql

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v2"

	"github.com/scan-io-git/taint-io/internal/labels"
	"github.com/scan-io-git/taint-io/internal/predicate"
	"github.com/scan-io-git/taint-io/internal/queries"
	"github.com/scan-io-git/taint-io/pkg/shared/config"
	taintioErrors "github.com/scan-io-git/taint-io/pkg/shared/errors"
)

const fakeEngine = `#!/bin/sh
echo "$@" >> "$TAINTIO_FAKE_LOG"
if [ "$TAINTIO_FAKE_FAIL" = "1" ]; then
  echo "query compilation failed" >&2
  exit 3
fi
if [ "$TAINTIO_FAKE_NO_OUTPUT" = "1" ]; then
  exit 0
fi
for a in "$@"; do
  case "$a" in
    --output=*) echo "result" > "${a#--output=}" ;;
  esac
done
exit 0
`

func fakeRunner(t *testing.T) (*Runner, string) {
	t.Helper()
	dir := t.TempDir()
	bin := filepath.Join(dir, "codeql")
	require.NoError(t, os.WriteFile(bin, []byte(fakeEngine), 0o755))
	logPath := filepath.Join(dir, "calls.log")
	t.Setenv("TAINTIO_FAKE_LOG", logPath)

	cfg := &config.Config{CodeQL: config.CodeQL{Binary: bin, SearchPaths: []string{"/opt/ql"}, Threads: 4}}
	return NewRunner(cfg, hclog.NewNullLogger()), logPath
}

func calls(t *testing.T, logPath string) []string {
	t.Helper()
	data, err := os.ReadFile(logPath)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestAnalyze(t *testing.T) {
	r, logPath := fakeRunner(t)
	out := filepath.Join(t.TempDir(), "results.sarif")

	require.NoError(t, r.Analyze(context.Background(), "/dbs/proj", "/pack/q.ql", FormatSARIF, out))
	assert.FileExists(t, out)
	assert.Equal(t, []string{
		"database analyze --rerun --search-path=/opt/ql --threads=4 /dbs/proj --format=sarif-latest --output=" + out + " /pack/q.ql",
	}, calls(t, logPath))
}

func TestAnalyzeFailure(t *testing.T) {
	r, _ := fakeRunner(t)
	t.Setenv("TAINTIO_FAKE_FAIL", "1")

	err := r.Analyze(context.Background(), "/dbs/proj", "/pack/q.ql", FormatCSV, filepath.Join(t.TempDir(), "r.csv"))
	var engineErr *taintioErrors.EngineInvocationError
	require.True(t, errors.As(err, &engineErr))
	assert.Equal(t, 3, engineErr.ExitCode)
	assert.Contains(t, engineErr.Output, "query compilation failed")
}

func TestAnalyzeMissingOutput(t *testing.T) {
	r, _ := fakeRunner(t)
	t.Setenv("TAINTIO_FAKE_NO_OUTPUT", "1")

	err := r.Analyze(context.Background(), "/dbs/proj", "/pack/q.ql", FormatCSV, filepath.Join(t.TempDir(), "r.csv"))
	var engineErr *taintioErrors.EngineInvocationError
	require.True(t, errors.As(err, &engineErr))
	assert.Contains(t, engineErr.Error(), "was not produced")
}

func TestRunQuery(t *testing.T) {
	r, logPath := fakeRunner(t)
	out := filepath.Join(t.TempDir(), "external_apis.csv")

	require.NoError(t, r.RunQuery(context.Background(), "/dbs/proj", "/pack/facts/external_apis.ql", out))
	assert.FileExists(t, out)
	bqrs := strings.TrimSuffix(out, ".csv") + ".bqrs"
	assert.Equal(t, []string{
		"query run --database=/dbs/proj --output=" + bqrs + " --threads=4 -- /pack/facts/external_apis.ql",
		"bqrs decode " + bqrs + " --format=csv --output=" + out,
	}, calls(t, logPath))
}

func TestInstallPackSkipsWhenLocked(t *testing.T) {
	r, logPath := fakeRunner(t)
	dir := t.TempDir()

	require.NoError(t, r.InstallPack(context.Background(), dir))
	assert.Equal(t, []string{"pack install " + dir}, calls(t, logPath))

	require.NoError(t, os.WriteFile(LockFilePath(dir), []byte("lockVersion: 1.0.0\n"), 0o644))
	require.NoError(t, r.InstallPack(context.Background(), dir))
	assert.Len(t, calls(t, logPath), 1)
}

func TestPackInstallCreatesManifest(t *testing.T) {
	r, logPath := fakeRunner(t)
	p := NewPack(filepath.Join(t.TempDir(), "qlpack"), labels.PythonLike)

	require.NoError(t, p.Install(context.Background(), r))
	assert.FileExists(t, filepath.Join(p.Dir, qlpackFile))
	assert.Equal(t, []string{"pack install " + p.Dir}, calls(t, logPath))
}

func TestWriteManifest(t *testing.T) {
	for _, eco := range labels.Ecosystems {
		p := NewPack(t.TempDir(), eco)
		require.NoError(t, p.WriteManifest())

		var manifest qlpack
		data, err := os.ReadFile(filepath.Join(p.Dir, qlpackFile))
		require.NoError(t, err)
		require.NoError(t, yaml.Unmarshal(data, &manifest))
		assert.Equal(t, "taintio", manifest.Name)
		assert.Equal(t, "*", manifest.Dependencies["codeql/"+eco.String()+"-all"])
		assert.Equal(t, "*", manifest.Dependencies["codeql/"+eco.String()+"-queries"])
		assert.Equal(t, eco != labels.CLike, len(manifest.DataExtensions) == 1)
	}
}

func TestWriteQuery(t *testing.T) {
	q, err := queries.Lookup("cwe-078wLLM")
	require.NoError(t, err)

	c := predicate.New(predicate.Options{Ecosystem: labels.JavaLike}, nil)
	sinks := []labels.LabelRecord{{
		Identity: labels.APIIdentity{Package: "java.lang", Class: "Runtime", Method: "exec", Signature: "Process exec(String command)"},
		Type:     labels.Sink,
		SinkArgs: []string{"command"},
	}}
	bodies := []predicate.Body{
		c.CompileSourceBody(nil, nil),
		c.CompileSinkBody(sinks),
		c.CompileTaintPropagatorBody(nil, nil),
	}
	model := BuildExtensionModel(labels.JavaLike, "proj", nil, nil, sinks)

	p := NewPack(t.TempDir(), labels.JavaLike)
	driver, err := p.WriteQuery(q, bodies, model)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(p.Dir, "cwe-078wLLM", "cwe-078wLLM.ql"), driver)

	for _, name := range []string{"MySources.qll", "MySinks.qll", "MySummaries.qll", "specs.model.yml"} {
		assert.FileExists(t, filepath.Join(p.QueryDir(q.Name), name))
	}
	sinkLib, err := os.ReadFile(filepath.Join(p.QueryDir(q.Name), "MySinks.qll"))
	require.NoError(t, err)
	assert.Contains(t, string(sinkLib), "c.getArgument(0) = snk.asExpr().(Argument)")

	cpp := NewPack(t.TempDir(), labels.CLike)
	_, err = cpp.WriteQuery(q, nil, model)
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(cpp.QueryDir(q.Name), "specs.model.yml"))
}

func TestWriteFactQuery(t *testing.T) {
	p := NewPack(t.TempDir(), labels.PythonLike)
	path, err := p.WriteFactQuery(queries.FactFuncParams, "")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "import python")

	custom := filepath.Join(t.TempDir(), "mine.ql")
	require.NoError(t, os.WriteFile(custom, []byte("select 1"), 0o644))
	path, err = p.WriteFactQuery(queries.FactExternalAPIs, custom)
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "select 1", string(data))
}

func TestExtensionModel(t *testing.T) {
	sources := []labels.LabelRecord{{Identity: labels.APIIdentity{Package: "javax.servlet", Class: "ServletRequest", Method: "getParameter", Signature: "String getParameter(String name)"}, Type: labels.Source}}
	params := []labels.LabelRecord{{
		Identity:     labels.APIIdentity{Package: "org.lib", Class: "Parser", Method: "parse", Signature: "Doc parse(String input, int flags)"},
		Type:         labels.Source,
		TaintedInput: []string{"input", "p1", "nope"},
	}}
	sinks := []labels.LabelRecord{
		{Identity: labels.APIIdentity{Package: "java.lang", Class: "Runtime", Method: "exec", Signature: "Process exec(String command)"}, Type: labels.Sink},
		{Identity: labels.APIIdentity{Package: "", Class: "Runtime", Method: "exec", Signature: "Process exec(String command)"}, Type: labels.Sink},
	}

	m := BuildExtensionModel(labels.JavaLike, "proj", sources, params, sinks)
	require.Len(t, m.Sources, 3)
	assert.Equal(t, AccessReturnValue, m.Sources[0].Access)
	assert.Equal(t, "Parameter[0]", m.Sources[1].Access)
	assert.Equal(t, "Parameter[1]", m.Sources[2].Access)
	require.Len(t, m.Sinks, 1)

	data, err := m.Marshal()
	require.NoError(t, err)
	var decoded struct {
		Extensions []struct {
			AddsTo struct {
				Pack       string `yaml:"pack"`
				Extensible string `yaml:"extensible"`
			} `yaml:"addsTo"`
			Data [][]interface{} `yaml:"data"`
		} `yaml:"extensions"`
	}
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	require.Len(t, decoded.Extensions, 2)
	assert.Equal(t, "codeql/java-all", decoded.Extensions[0].AddsTo.Pack)
	assert.Equal(t, "sinkModel", decoded.Extensions[0].AddsTo.Extensible)
	assert.Equal(t, []interface{}{"java.lang", "Runtime", true, "exec", "", "", "Argument[0..10]", "proj", "manual"}, decoded.Extensions[0].Data[0])
	assert.Equal(t, "sourceModel", decoded.Extensions[1].AddsTo.Extensible)
}
