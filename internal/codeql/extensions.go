package codeql

import (
	"fmt"
	"strings"

	yaml "gopkg.in/yaml.v2"

	"github.com/scan-io-git/taint-io/internal/labels"
)

// Access paths used in model rows.
const (
	AccessReturnValue = "ReturnValue"
	AccessAnyArgument = "Argument[0..10]"
	provenanceManual  = "manual"
)

type addsTo struct {
	Pack       string `yaml:"pack"`
	Extensible string `yaml:"extensible"`
}

type extension struct {
	AddsTo addsTo          `yaml:"addsTo"`
	Data   [][]interface{} `yaml:"data,flow"`
}

type extensionFile struct {
	Extensions []extension `yaml:"extensions"`
}

// ModelRow is one source or sink row of a data-extension file.
type ModelRow struct {
	Package string
	Class   string
	Method  string
	Access  string
}

func (m ModelRow) values(tag string) []interface{} {
	return []interface{}{m.Package, m.Class, true, m.Method, "", "", m.Access, tag, provenanceManual}
}

// ExtensionModel is the data-extension model that mirrors the compiled predicates.
type ExtensionModel struct {
	Ecosystem labels.Ecosystem
	Tag       string
	Sources   []ModelRow
	Sinks     []ModelRow
}

// BuildExtensionModel turns labelled sources, function-parameter sources and
// sinks into model rows. Records failing validation are skipped.
func BuildExtensionModel(eco labels.Ecosystem, tag string, sources, funcParams, sinks []labels.LabelRecord) *ExtensionModel {
	m := &ExtensionModel{Ecosystem: eco, Tag: tag}
	for _, rec := range sources {
		if labels.Validate(rec, eco) != nil {
			continue
		}
		m.Sources = append(m.Sources, row(rec, AccessReturnValue))
	}
	for _, rec := range funcParams {
		if labels.Validate(rec, eco) != nil {
			continue
		}
		for _, input := range rec.TaintedInput {
			idx, ok := labels.ArgumentIndex(rec.Identity.Signature, input)
			if !ok {
				continue
			}
			access := fmt.Sprintf("Parameter[%d]", idx)
			if idx < 0 {
				access = "Parameter[this]"
			}
			m.Sources = append(m.Sources, row(rec, access))
		}
	}
	for _, rec := range sinks {
		if labels.Validate(rec, eco) != nil {
			continue
		}
		m.Sinks = append(m.Sinks, row(rec, AccessAnyArgument))
	}
	return m
}

func row(rec labels.LabelRecord, access string) ModelRow {
	return ModelRow{Package: rec.Identity.Package, Class: rec.Identity.Class, Method: rec.Identity.Method, Access: access}
}

// Marshal renders the model as YAML.
func (m *ExtensionModel) Marshal() ([]byte, error) {
	pack := fmt.Sprintf("codeql/%s-all", m.Ecosystem)
	rows := func(in []ModelRow) [][]interface{} {
		out := make([][]interface{}, 0, len(in))
		for _, r := range in {
			out = append(out, r.values(m.Tag))
		}
		return out
	}
	file := extensionFile{Extensions: []extension{
		{AddsTo: addsTo{Pack: pack, Extensible: "sinkModel"}, Data: rows(m.Sinks)},
		{AddsTo: addsTo{Pack: pack, Extensible: "sourceModel"}, Data: rows(m.Sources)},
	}}
	return yaml.Marshal(file)
}

// Tag derives a model tag from a project name.
func Tag(project string) string {
	return strings.NewReplacer("/", "_", " ", "_").Replace(project)
}
