// Package prompts renders the chat prompts sent to the labelling model.
package prompts

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/scan-io-git/taint-io/internal/candidates"
	"github.com/scan-io-git/taint-io/internal/labels"
	"github.com/scan-io-git/taint-io/internal/llm"
	"github.com/scan-io-git/taint-io/internal/queries"
)

const APILabellingSystem = `You are a security expert. You are given a list of APIs to be labeled as potential taint sources, sinks, or APIs that propagate taints. Taint sources are values that an attacker can use for unauthorized and malicious operations when interacting with the system. Taint source APIs usually return strings or custom object types. Setter methods are typically NOT taint sources. Taint sinks are program points that can use tainted data in an unsafe way, which directly exposes vulnerability under attack. Taint propagators carry tainted information from input to the output without sanitization, and typically have non-primitive input and outputs. Return the result as a json list with each object in the format:

{ "package": <package name>,
  "class": <class name>,
  "method": <method name>,
  "signature": <signature of the method>,
  "sink_args": <list of arguments or ` + "`this`" + `; empty if the API is not sink>,
  "type": <"source", "sink", or "taint-propagator"> }

DO NOT OUTPUT ANYTHING OTHER THAN JSON.`

const FuncParamLabellingSystem = `You are a security expert. You are given a list of APIs implemented in established Java, C/CPP or Python libraries, and you need to identify whether some of these APIs could be potentially invoked by downstream libraries with malicious end-user (not programmer) inputs. For instance, functions that deserialize or parse inputs might be used by downstream libraries and would need to add sanitization for malicious user inputs. On the other hand, functions like HTTP request handlers are typically final and won't be called by a downstream package. Utility functions that are not related to the primary purpose of the package should also be ignored. Please also note the case where the taint flow serves as the class of the called method (like getName etc.). In this scenario, consider whether the taint may propagate to variables returned by the called method. Return the result as a json list with each object in the format:

{ "package": <package name>,
  "class": <class name>,
  "method": <method name>,
  "signature": <signature>,
  "tainted_input": <a list of argument names that are potentially tainted> }

In the result list, only keep the functions that might be used by downstream libraries and is potentially invoked with malicious end-user inputs. Do not output anything other than JSON.`

var apiLabellingUser = template.Must(template.New("api").Parse(`{{.LongDescription}}

Vulnerability fix diff from the project containing the APIs to be analyzed:
--------------diff_start--------------
{{.Diff}}
--------------diff_end--------------

Important Context: The vulnerability diff above shows a specific security fix in this project, but you should analyze ALL the methods below for potential {{.Description}} vulnerabilities (CWE-{{.CWEID}}). The diff serves as context for the project's security patterns, but your analysis should not be limited to only the vulnerability type shown in the diff.

Some example source/sink/taint-propagator methods are:
{{.Examples}}

Among the following methods, assuming that the arguments passed to the given function is malicious, what are the functions that are potential source, sink, or taint-propagators to {{.Description}} attack (CWE-{{.CWEID}})?

Please analyze ALL provided methods for labeling, considering the broader context of {{.Description}} vulnerabilities beyond just the specific example in the diff.

Package,Class,Method,Signature
{{.Methods}}
`))

var funcParamLabellingUser = template.Must(template.New("funcparam").Parse(`You are analyzing the Java, C/CPP and Python package {{.Owner}}/{{.Name}}. Here is the package summary:

{{.Readme}}

###Vulnerability fix diff from the project containing the APIs to be analyzed:
{{.Diff}}

Important: The vulnerability diff above provides context about security issues in this project, but you must analyze ALL public methods listed below. Do not limit your analysis to only the vulnerability types shown in the diff.

Please look at the following public methods in the library and their documentations (if present). What are the most important functions that look like can be invoked by a downstream Java, C/CPP or Python package that is dependent on {{.Name}}, and that the function can be called with potentially malicious end-user inputs? If the package does not seem to be a library, just return empty list as the result. Utility functions that are not related to the primary purpose of the package should also be ignored.

Analyze ALL methods below comprehensively, considering various types of security risks beyond just those shown in the vulnerability diff.

Package,Class,Method,Doc
{{.Methods}}
`))

// APIBuilder renders labelling prompts for external API candidates of one query.
type APIBuilder struct {
	Query queries.Query
	Diff  string
}

// Build renders a batch of identities into a system and user message pair.
func (b APIBuilder) Build(batch []labels.APIIdentity) ([]llm.Message, error) {
	examples, err := b.Query.ExamplesJSON()
	if err != nil {
		return nil, err
	}

	rows := make([]string, 0, len(batch))
	for _, id := range batch {
		rows = append(rows, strings.Join([]string{id.Package, id.Class, id.Method, id.Signature}, ","))
	}

	var buf bytes.Buffer
	err = apiLabellingUser.Execute(&buf, map[string]string{
		"LongDescription": strings.TrimSpace(b.Query.LongDescription),
		"Diff":            b.Diff,
		"Description":     b.Query.Description,
		"CWEID":           b.Query.CWEID,
		"Examples":        examples,
		"Methods":         strings.Join(rows, "\n"),
	})
	if err != nil {
		return nil, err
	}
	return []llm.Message{llm.SystemMessage(APILabellingSystem), llm.UserMessage(buf.String())}, nil
}

// FuncParamBuilder renders labelling prompts for internal function-parameter candidates.
type FuncParamBuilder struct {
	Owner  string
	Name   string
	Readme string
	Diff   string
}

// Build renders a batch of candidates. Each row lists the full signature in
// the method column followed by the truncated doc.
func (b FuncParamBuilder) Build(batch []candidates.FuncParamCandidate) ([]llm.Message, error) {
	rows := make([]string, 0, len(batch))
	for _, c := range batch {
		rows = append(rows, strings.Join([]string{c.Identity.Package, c.Identity.Class, c.Identity.Signature, c.Doc}, ","))
	}

	var buf bytes.Buffer
	err := funcParamLabellingUser.Execute(&buf, map[string]string{
		"Owner":   b.Owner,
		"Name":    b.Name,
		"Readme":  b.Readme,
		"Diff":    b.Diff,
		"Methods": strings.Join(rows, "\n"),
	})
	if err != nil {
		return nil, err
	}
	return []llm.Message{llm.SystemMessage(FuncParamLabellingSystem), llm.UserMessage(buf.String())}, nil
}
