package queries

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/taint-io/internal/labels"
)

func TestLookup(t *testing.T) {
	q, err := Lookup("cwe-022wLLM")
	require.NoError(t, err)
	assert.Equal(t, "cwe-022wLLM", q.Name)
	assert.Equal(t, "022", q.CWEID)
	assert.Equal(t, "22", q.CWEShort())
	assert.NotEmpty(t, q.LongDescription)
	assert.NotEmpty(t, q.Examples)

	_, err = Lookup("cwe-000wNothing")
	assert.Error(t, err)
}

func TestEveryQueryIsUsable(t *testing.T) {
	for _, name := range Names() {
		q, err := Lookup(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, q.Description, name)
		for _, ex := range q.Examples {
			assert.NotEqual(t, labels.None, labels.ParseLabelType(ex.Type), "%s: %s", name, ex.Method)
		}
	}
}

func TestExamplesJSON(t *testing.T) {
	q, err := Lookup("cwe-089wLLM")
	require.NoError(t, err)

	out, err := q.ExamplesJSON()
	require.NoError(t, err)
	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "getParameter", decoded[0]["method"])
}

func TestRenderDriver(t *testing.T) {
	q, err := Lookup("cwe-078wLLM")
	require.NoError(t, err)

	for _, eco := range labels.Ecosystems {
		src, err := RenderDriver(eco, q)
		require.NoError(t, err, eco.String())
		assert.Contains(t, src, "import "+eco.String())
		assert.Contains(t, src, "@id taintio/cwe-078wLLM")
		assert.Contains(t, src, "external/cwe/cwe-78")
		assert.Contains(t, src, "isGPTDetectedStep(prev, next)")
	}
}

func TestFactQuery(t *testing.T) {
	for _, eco := range labels.Ecosystems {
		for _, name := range []string{FactExternalAPIs, FactFuncParams} {
			src, err := FactQuery(eco, name)
			require.NoError(t, err)
			assert.Contains(t, src, "as full_signature")
		}
	}
	_, err := FactQuery(labels.JavaLike, "nope")
	assert.Error(t, err)
}
