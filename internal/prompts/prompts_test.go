package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/taint-io/internal/candidates"
	"github.com/scan-io-git/taint-io/internal/labels"
	"github.com/scan-io-git/taint-io/internal/queries"
)

func TestAPIBuilder(t *testing.T) {
	q, err := queries.Lookup("cwe-022wLLM")
	require.NoError(t, err)

	b := APIBuilder{Query: q, Diff: "-old\n+new"}
	msgs, err := b.Build([]labels.APIIdentity{
		{Package: "java.io", Class: "File", Method: "File", Signature: "File(String)"},
		{Package: "java.nio.file", Class: "Paths", Method: "get", Signature: "Path get(String)"},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, APILabellingSystem, msgs[0].Content)

	user := msgs[1].Content
	assert.Equal(t, "user", msgs[1].Role)
	assert.Contains(t, user, "-old\n+new")
	assert.Contains(t, user, "(CWE-022)")
	assert.Contains(t, user, `"method": "getName"`)
	assert.True(t, strings.HasSuffix(user, "Package,Class,Method,Signature\njava.io,File,File,File(String)\njava.nio.file,Paths,get,Path get(String)\n"))
}

func TestFuncParamBuilder(t *testing.T) {
	b := FuncParamBuilder{Owner: "apache", Name: "commons-io", Readme: "IO utilities.", Diff: "diff"}
	msgs, err := b.Build([]candidates.FuncParamCandidate{
		{
			Identity: labels.APIIdentity{Package: "org.apache", Class: "FileUtils", Method: "copy", Signature: "void copy(File src, File dst)"},
			Doc:      "Copies a file",
		},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	user := msgs[1].Content
	assert.Contains(t, user, "package apache/commons-io")
	assert.Contains(t, user, "IO utilities.")
	assert.Contains(t, user, "dependent on commons-io")
	assert.Contains(t, user, "Package,Class,Method,Doc\norg.apache,FileUtils,void copy(File src, File dst),Copies a file\n")
}

func TestBuildEmptyBatch(t *testing.T) {
	msgs, err := FuncParamBuilder{}.Build(nil)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(msgs[1].Content, "Package,Class,Method,Doc\n\n"))
}
