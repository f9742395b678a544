// Package queries holds the catalog of weakness queries and the query sources shipped with the binary.
package queries

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/template"

	yaml "gopkg.in/yaml.v2"

	"github.com/scan-io-git/taint-io/internal/labels"
)

//go:embed catalog.yml drivers/*.ql.tmpl facts/*/*.ql
var content embed.FS

// Example is a labelled API shown to the model as guidance.
type Example struct {
	Package   string   `yaml:"package" json:"package"`
	Class     string   `yaml:"class" json:"class"`
	Method    string   `yaml:"method" json:"method"`
	Signature string   `yaml:"signature" json:"signature"`
	SinkArgs  []string `yaml:"sink_args,omitempty" json:"sink_args,omitempty"`
	Type      string   `yaml:"type" json:"type"`
}

// Query describes one weakness class the pipeline can hunt for.
type Query struct {
	Name            string    `yaml:"-"`
	CWEID           string    `yaml:"cwe_id"`
	Description     string    `yaml:"desc"`
	LongDescription string    `yaml:"long_desc"`
	Hint            string    `yaml:"hint"`
	Examples        []Example `yaml:"examples"`
}

// Fact query names.
const (
	FactExternalAPIs = "external_apis"
	FactFuncParams   = "func_params"
)

var catalog map[string]Query

func init() {
	data, err := content.ReadFile("catalog.yml")
	if err != nil {
		panic(fmt.Sprintf("queries: embedded catalog missing: %v", err))
	}
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		panic(fmt.Sprintf("queries: embedded catalog is invalid: %v", err))
	}
	for name, q := range catalog {
		q.Name = name
		catalog[name] = q
	}
}

// Lookup returns the query registered under name.
func Lookup(name string) (Query, error) {
	q, ok := catalog[name]
	if !ok {
		return Query{}, fmt.Errorf("unknown query %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	if q.CWEID == "" {
		return Query{}, fmt.Errorf("query %q has no CWE id", name)
	}
	return q, nil
}

// Names lists every query in the catalog, sorted.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CWEShort returns the CWE number without leading zeros.
func (q Query) CWEShort() string {
	short := strings.TrimLeft(q.CWEID, "0")
	if short == "" {
		return "0"
	}
	return short
}

// ExamplesJSON renders the examples as indented JSON for prompts.
func (q Query) ExamplesJSON() (string, error) {
	data, err := json.MarshalIndent(q.Examples, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// RenderDriver returns the top-level path query for the ecosystem.
func RenderDriver(eco labels.Ecosystem, q Query) (string, error) {
	raw, err := content.ReadFile("drivers/" + eco.String() + ".ql.tmpl")
	if err != nil {
		return "", fmt.Errorf("no driver query for %s: %w", eco, err)
	}
	tmpl, err := template.New("driver").Parse(string(raw))
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct {
		Name        string
		CWEID       string
		Description string
	}{q.Name, q.CWEShort(), q.Description}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// FactQuery returns the source of a fact-extraction query for the ecosystem.
func FactQuery(eco labels.Ecosystem, name string) (string, error) {
	raw, err := content.ReadFile("facts/" + eco.String() + "/" + name + ".ql")
	if err != nil {
		return "", fmt.Errorf("no %q fact query for %s: %w", name, eco, err)
	}
	return string(raw), nil
}
