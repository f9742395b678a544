// Package predicate compiles labelled APIs into CodeQL predicate libraries.
package predicate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/taint-io/internal/labels"
)

const (
	// DefaultBatchSize is the largest number of clauses kept in one predicate body.
	DefaultBatchSize = 300
	// AlwaysFalse is the body of a predicate with nothing to match.
	AlwaysFalse = "1 = 0"

	orSeparator = "\n    or\n"
)

// Options configures a Compiler.
type Options struct {
	Ecosystem labels.Ecosystem
	BatchSize int
	// NoSummaryModel compiles an always-false step predicate.
	NoSummaryModel bool
	// Manual restricts which method names become source and step clauses. Nil disables it.
	Manual *ManualRules
}

// Body is a compiled predicate. Batches is empty unless the clauses were split into sub-predicates.
type Body struct {
	Kind      Kind
	Ecosystem labels.Ecosystem
	Clauses   []string
	Batches   [][]string
}

// Batched reports whether the clauses were split into sub-predicates.
func (b Body) Batched() bool { return len(b.Batches) > 0 }

// Text renders the top-level predicate body.
func (b Body) Text() string {
	if !b.Batched() {
		return strings.Join(b.Clauses, orSeparator)
	}
	nodes := strings.Join(b.Kind.nodes(b.Ecosystem), ", ")
	calls := make([]string, len(b.Batches))
	for i := range b.Batches {
		calls[i] = fmt.Sprintf("    isGPTDetected%sPart%d(%s)", b.Kind, i, nodes)
	}
	return strings.Join(calls, " or\n")
}

// Additional renders the sub-predicate definitions, empty when not batched.
func (b Body) Additional() string {
	parts := make([]string, len(b.Batches))
	for i, batch := range b.Batches {
		parts[i] = fmt.Sprintf("predicate isGPTDetected%sPart%d(%s) {\n%s\n}\n",
			b.Kind, i, b.Kind.params(b.Ecosystem), strings.Join(batch, orSeparator))
	}
	return strings.Join(parts, "\n\n")
}

// Render wraps the body into a complete QL library.
func (b Body) Render() string {
	return fmt.Sprintf("%s\npredicate isGPTDetected%s(%s) {\n%s\n}\n\n%s\n",
		headers[b.Ecosystem], b.Kind, b.Kind.params(b.Ecosystem), b.Text(), b.Additional())
}

// Compiler turns label sets into predicate bodies for one ecosystem.
type Compiler struct {
	opts   Options
	logger hclog.Logger
}

// New creates a Compiler. A non-positive batch size selects DefaultBatchSize.
func New(opts Options, logger hclog.Logger) *Compiler {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Compiler{opts: opts, logger: logger}
}

// Ecosystem returns the ecosystem the compiler renders for.
func (c *Compiler) Ecosystem() labels.Ecosystem { return c.opts.Ecosystem }

func (c *Compiler) clauses(kind ClauseKind, records []labels.LabelRecord, keep func(labels.LabelRecord) bool) []string {
	var out []string
	for _, rec := range records {
		if err := labels.Validate(rec, c.opts.Ecosystem); err != nil {
			c.logger.Debug("skipping record", "clause", kind.String(), "reason", err)
			continue
		}
		if keep != nil && !keep(rec) {
			continue
		}
		clause, ok := render(kind, c.opts.Ecosystem, rec)
		if !ok {
			c.logger.Debug("record yields no clause", "clause", kind.String(), "api", rec.Identity.String())
			continue
		}
		out = append(out, clause)
	}
	return out
}

func (c *Compiler) build(kind Kind, clauses []string) Body {
	clauses = dedupSorted(clauses)
	if len(clauses) == 0 {
		clauses = []string{AlwaysFalse}
	}
	body := Body{Kind: kind, Ecosystem: c.opts.Ecosystem, Clauses: clauses}
	if len(clauses) > c.opts.BatchSize {
		for start := 0; start < len(clauses); start += c.opts.BatchSize {
			end := start + c.opts.BatchSize
			if end > len(clauses) {
				end = len(clauses)
			}
			body.Batches = append(body.Batches, clauses[start:end])
		}
	}
	c.logger.Debug("compiled predicate", "kind", kind.String(), "clauses", len(clauses), "batches", len(body.Batches))
	return body
}

func dedupSorted(clauses []string) []string {
	seen := make(map[string]bool, len(clauses))
	out := make([]string, 0, len(clauses))
	for _, cl := range clauses {
		if seen[cl] {
			continue
		}
		seen[cl] = true
		out = append(out, cl)
	}
	sort.Strings(out)
	return out
}

// CompileSourceBody renders labelled source APIs and function-parameter sources.
func (c *Compiler) CompileSourceBody(sources, funcParams []labels.LabelRecord) Body {
	clauses := c.clauses(MethodCallSource, sources, nil)
	clauses = append(clauses, c.clauses(FuncParamSource, funcParams, c.opts.Manual.allowSource(c.opts.Ecosystem))...)
	return c.build(SourceKind, clauses)
}

// CompileTaintPropagatorBody renders propagators and function-parameter
// summaries into the additional-flow-step predicate.
func (c *Compiler) CompileTaintPropagatorBody(propagators, funcParams []labels.LabelRecord) Body {
	if c.opts.NoSummaryModel {
		return c.build(StepKind, nil)
	}

	keep := c.opts.Manual.allowPropagator(c.opts.Ecosystem)
	var plain, keyword []labels.LabelRecord
	for _, rec := range append(append([]labels.LabelRecord{}, propagators...), funcParams...) {
		if c.opts.Ecosystem == labels.PythonLike && takesKeywordArgs(rec) {
			keyword = append(keyword, rec)
		} else {
			plain = append(plain, rec)
		}
	}
	clauses := c.clauses(Summary, plain, keep)
	clauses = append(clauses, c.clauses(KeywordSummary, keyword, keep)...)
	if len(clauses) > 0 {
		if manual, ok := manualSteps[c.opts.Ecosystem]; ok {
			clauses = append(clauses, manual)
		}
	}
	return c.build(StepKind, clauses)
}

// CompileSinkBody renders labelled sink APIs.
func (c *Compiler) CompileSinkBody(sinks []labels.LabelRecord) Body {
	return c.build(SinkKind, c.clauses(SinkCall, sinks, nil))
}

func takesKeywordArgs(rec labels.LabelRecord) bool {
	for _, in := range rec.TaintedInput {
		if strings.Contains(in, "kwargs") {
			return true
		}
	}
	return false
}
