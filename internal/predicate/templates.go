package predicate

import (
	"fmt"
	"strings"

	"github.com/scan-io-git/taint-io/internal/labels"
)

// Kind is the predicate a body is compiled for.
type Kind int

const (
	SourceKind Kind = iota
	SinkKind
	StepKind
)

// Kinds lists every predicate kind.
var Kinds = []Kind{SourceKind, SinkKind, StepKind}

func (k Kind) String() string {
	switch k {
	case SourceKind:
		return "Source"
	case SinkKind:
		return "Sink"
	case StepKind:
		return "Step"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ModuleName is the library file the predicate is written to.
func (k Kind) ModuleName() string {
	switch k {
	case SourceKind:
		return "MySources"
	case SinkKind:
		return "MySinks"
	default:
		return "MySummaries"
	}
}

// nodes are the data-flow node parameter names of a predicate.
func (k Kind) nodes(eco labels.Ecosystem) []string {
	switch k {
	case SourceKind:
		return []string{"src"}
	case SinkKind:
		return []string{"snk"}
	}
	if eco == labels.PythonLike {
		return []string{"pre", "next"}
	}
	return []string{"prev", "next"}
}

func (k Kind) params(eco labels.Ecosystem) string {
	nodes := k.nodes(eco)
	decl := make([]string, len(nodes))
	for i, n := range nodes {
		decl[i] = "DataFlow::Node " + n
	}
	return strings.Join(decl, ", ")
}

// Clause kinds. Each has one renderer per ecosystem.
type ClauseKind int

const (
	MethodCallSource ClauseKind = iota
	FuncParamSource
	Summary
	KeywordSummary
	SinkCall
)

// ClauseKinds lists every clause kind.
var ClauseKinds = []ClauseKind{MethodCallSource, FuncParamSource, Summary, KeywordSummary, SinkCall}

func (c ClauseKind) String() string {
	switch c {
	case MethodCallSource:
		return "method-call-source"
	case FuncParamSource:
		return "func-param-source"
	case Summary:
		return "summary"
	case KeywordSummary:
		return "keyword-summary"
	case SinkCall:
		return "sink-call"
	}
	return fmt.Sprintf("ClauseKind(%d)", int(c))
}

// renderFunc formats one record. ok is false when the record cannot produce a well-formed clause.
type renderFunc func(rec labels.LabelRecord) (clause string, ok bool)

var renderers = map[ClauseKind]map[labels.Ecosystem]renderFunc{
	MethodCallSource: {
		labels.JavaLike:   javaMethodCallSource,
		labels.PythonLike: pythonMethodCallSource,
		labels.CLike:      cMethodCallSource,
	},
	FuncParamSource: {
		labels.JavaLike:   javaFuncParamSource,
		labels.PythonLike: pythonFuncParamSource,
		labels.CLike:      cFuncParamSource,
	},
	Summary: {
		labels.JavaLike:   javaSummary,
		labels.PythonLike: pythonSummary,
		labels.CLike:      cSummary,
	},
	KeywordSummary: {
		labels.JavaLike:   javaSummary,
		labels.PythonLike: pythonKeywordSummary,
		labels.CLike:      cSummary,
	},
	SinkCall: {
		labels.JavaLike:   javaSink,
		labels.PythonLike: pythonSink,
		labels.CLike:      cSink,
	},
}

func render(kind ClauseKind, eco labels.Ecosystem, rec labels.LabelRecord) (string, bool) {
	byEco, ok := renderers[kind]
	if !ok {
		return "", false
	}
	fn, ok := byEco[eco]
	if !ok {
		return "", false
	}
	return fn(rec)
}

var headers = map[labels.Ecosystem]string{
	labels.JavaLike: `import java
import semmle.code.java.dataflow.DataFlow
private import semmle.code.java.dataflow.ExternalFlow
`,
	labels.PythonLike: `import python
import semmle.python.dataflow.new.DataFlow
import semmle.python.dataflow.new.TaintTracking
`,
	labels.CLike: `import cpp
import semmle.code.cpp.ir.dataflow.DataFlow
import semmle.code.cpp.ir.dataflow.TaintTracking
`,
}

// projectPrefixes are project-and-version strings some extractors glue in front of package names.
var projectPrefixes = []string{
	"QAnything-1.4.1.",
	"Shakal-NG-1.3.2.",
	"langchain-langchain-openai-0.1.17.",
	"langroid-0.53.14.",
	"horilla-1.3.",
	"BentoML-1.4.10.",
	"pyload-f34052df70a193948c1a19332a1f02c7b9bc362d.",
	"security_monkey-0.7.0",
}

// StripProjectPrefix removes the first known project prefix from pkg.
func StripProjectPrefix(pkg string) string {
	for _, prefix := range projectPrefixes {
		if strings.HasPrefix(pkg, prefix) {
			return strings.TrimPrefix(pkg, prefix)
		}
	}
	return pkg
}

// safe reports whether every value can be embedded in a QL string literal.
func safe(values ...string) bool {
	for _, v := range values {
		if strings.ContainsAny(v, "\"\\\n\r") {
			return false
		}
	}
	return true
}

func javaMethodCallSource(rec labels.LabelRecord) (string, bool) {
	id := rec.Identity
	if !safe(id.Package, id.Class, id.Method) {
		return "", false
	}
	return fmt.Sprintf(`    (
        src.asExpr().(Call).getCallee().getName() = "%s" and
        src.asExpr().(Call).getCallee().getDeclaringType().getSourceDeclaration().hasQualifiedName("%s", "%s")
    )`, id.Method, id.Package, id.Class), true
}

func pythonMethodCallSource(rec labels.LabelRecord) (string, bool) {
	id := rec.Identity
	if !safe(id.Package, id.Class, id.Method) {
		return "", false
	}
	pkg := id.Package
	if strings.Contains(pkg, ".") {
		pkg = "Attribute"
	}
	return fmt.Sprintf(`    exists(Call c, Attribute attr |
        attr = c.getFunc() and
        (
            attr.getObject().toString() = "%s" or
            attr.getObject().toString() = "%s"
        )
        and
        attr.getAttr() = "%s" and
        src.asExpr() = c
  )`, pkg, id.Class, id.Method), true
}

func cMethodCallSource(rec labels.LabelRecord) (string, bool) {
	if !safe(rec.Identity.Method) {
		return "", false
	}
	return fmt.Sprintf(`    (
       src.asExpr().(Call).getTarget().hasName("%s")
    )`, rec.Identity.Method), true
}

func paramDisjunction(format string, names []string) (string, bool) {
	var parts []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || !safe(n) {
			continue
		}
		parts = append(parts, fmt.Sprintf(format, n))
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, " or "), true
}

func javaFuncParamSource(rec labels.LabelRecord) (string, bool) {
	id := rec.Identity
	params, ok := paramDisjunction(`p.getName() = "%s"`, rec.TaintedInput)
	if !ok || !safe(id.Package, id.Class, id.Method) {
		return "", false
	}
	return fmt.Sprintf(`    exists(Parameter p |
        src.asParameter() = p and
        p.getCallable().getName() = "%s" and
        p.getCallable().getDeclaringType().getSourceDeclaration().hasQualifiedName("%s", "%s") and
        (%s)
    )`, id.Method, StripProjectPrefix(id.Package), id.Class, params), true
}

func pythonFuncParamSource(rec labels.LabelRecord) (string, bool) {
	id := rec.Identity
	params, ok := paramDisjunction(`func.getAnArg().getName() = "%s"`, rec.TaintedInput)
	if !ok || !safe(id.Package, id.Class, id.Method) {
		return "", false
	}
	pkg := StripProjectPrefix(id.Package)
	return fmt.Sprintf(`    exists(Function func |
      func.toString() = "Function %[1]s" and
      (%[4]s) and
      (
        func.getScope().toString() = "Module %[2]s" or func.getScope().toString() = "Class %[3]s" or
        func.getScope().toString() = "Module %[2]s.%[3]s" or
        func.getEnclosingModule().toString() = "Module %[2]s.%[3]s" or
        "%[2]s.%[3]s".matches("%%" + func.getEnclosingModule().getName())
      ) and
      (src.asExpr() = func.getAnArg())
  )`, id.Method, pkg, id.Class, params), true
}

func cFuncParamSource(rec labels.LabelRecord) (string, bool) {
	if len(rec.TaintedInput) == 0 || !safe(rec.Identity.Method) {
		return "", false
	}
	return fmt.Sprintf(`    exists(Function c |
        c.hasName("%s") and
        src.asParameter() = c.getAParameter()
  )`, rec.Identity.Method), true
}

func javaSummary(rec labels.LabelRecord) (string, bool) {
	id := rec.Identity
	if !safe(id.Package, id.Class, id.Method) {
		return "", false
	}
	return fmt.Sprintf(`    exists(Call c |
        (c.getArgument(_) = prev.asExpr() or c.getQualifier() = prev.asExpr())
        and c.getCallee().getDeclaringType().hasQualifiedName("%s", "%s")
        and c.getCallee().getName() = "%s"
        and c = next.asExpr()
    )`, StripProjectPrefix(id.Package), id.Class, id.Method), true
}

func pythonSummary(rec labels.LabelRecord) (string, bool) {
	if !safe(rec.Identity.Method) {
		return "", false
	}
	return fmt.Sprintf(`  exists(Attribute attr, Call c, Function f |
    c.getFunc() = attr and
    attr.getAttr() = "%[1]s" and
    c.getAnArg() = pre.asExpr() and
    attr.getAttr().toString() = f.getName() and
    f.getAnArg() = next.asExpr()
  )
  or
  exists(Call c |
    c.getFunc().toString() = "%[1]s" and
    c.getAnArg() = pre.asExpr() and
    c = next.asExpr()
  )`, rec.Identity.Method), true
}

func pythonKeywordSummary(rec labels.LabelRecord) (string, bool) {
	if !safe(rec.Identity.Method) {
		return "", false
	}
	return fmt.Sprintf(`    exists(Call call, Attribute attr, Function f |
        call.getFunc() = attr and
        attr.getAttr() = "%[1]s" and
        call.getKwargs() = pre.asExpr() and
        f.getName() = "%[1]s" and
        f.getKwarg() = next.asExpr()
    )`, rec.Identity.Method), true
}

func cSummary(rec labels.LabelRecord) (string, bool) {
	if !safe(rec.Identity.Method) {
		return "", false
	}
	return fmt.Sprintf(`    exists(Call c |
        c.toString() = "call to %s" and
        c.getAnArgument() = prev.asExpr() and
        c.getAnArgument() = next.asExpr()
    )`, rec.Identity.Method), true
}

func javaSink(rec labels.LabelRecord) (string, bool) {
	id := rec.Identity
	if !safe(id.Package, id.Class, id.Method) {
		return "", false
	}
	var args []string
	seen := map[int]bool{}
	for _, arg := range rec.SinkArgs {
		idx, ok := labels.ArgumentIndex(id.Signature, arg)
		if !ok || seen[idx] {
			continue
		}
		seen[idx] = true
		if idx < 0 {
			args = append(args, "c.getQualifier() = snk.asExpr()")
		} else {
			args = append(args, fmt.Sprintf("c.getArgument(%d) = snk.asExpr().(Argument)", idx))
		}
	}
	if len(args) == 0 {
		return "", false
	}
	return fmt.Sprintf(`    exists(Call c |
        c.getCallee().getName() = "%s" and
        c.getCallee().getDeclaringType().getSourceDeclaration().hasQualifiedName("%s", "%s") and
        (%s)
    )`, id.Method, id.Package, id.Class, strings.Join(args, " or ")), true
}

func hasSinkArg(rec labels.LabelRecord) bool {
	for _, arg := range rec.SinkArgs {
		if strings.TrimSpace(arg) != "" {
			return true
		}
	}
	return false
}

// qualifiedCallee reports whether a signature names its callee through a
// dotted path, as in "os.system(command)".
func qualifiedCallee(signature string) bool {
	head := signature
	if i := strings.Index(head, "("); i >= 0 {
		head = head[:i]
	}
	fields := strings.Fields(head)
	return len(fields) > 0 && strings.Contains(fields[len(fields)-1], ".")
}

func pythonSink(rec labels.LabelRecord) (string, bool) {
	id := rec.Identity
	if !hasSinkArg(rec) || !safe(id.Package, id.Method) {
		return "", false
	}
	if qualifiedCallee(id.Signature) {
		return fmt.Sprintf(`    exists(Call c, Attribute attr |
        attr = c.getFunc() and
        attr.getAttr() = "%s" and
        attr.getObject().toString() = "%s" and
        (c.getAnArg() = snk.asExpr())
    )`, id.Method, id.Package), true
	}
	return fmt.Sprintf(`    exists(Call c |
        c.getFunc().toString() = "%s" and
        (c.getAnArg() = snk.asExpr())
    )`, id.Method), true
}

func cSink(rec labels.LabelRecord) (string, bool) {
	if !hasSinkArg(rec) || !safe(rec.Identity.Method) {
		return "", false
	}
	return fmt.Sprintf(`    exists(Call c |
      c.toString() = "call to %s" and
      snk.asExpr() = c.getAnArgument()
  )`, rec.Identity.Method), true
}

// Hand-written propagation steps appended to a non-empty step body.
var manualSteps = map[labels.Ecosystem]string{
	labels.PythonLike: `  exists(Call joinCall |
    joinCall.getFunc().toString() = "join" and
    joinCall.getAnArg() = pre.asExpr() and
    joinCall = next.asExpr()
  )
  or
  exists(List list |
    list.getAnElt() = pre.asExpr() and
    list = next.asExpr()
  )
  or
  exists(BinaryExpr binExpr |
    binExpr.getOp().toString() in ["Add", "Sub", "Mult", "Div", "FloorDiv", "Mod", "Pow"] and
    (
      binExpr.getLeft() = pre.asExpr() or
      binExpr.getRight() = pre.asExpr()
    ) and
    binExpr = next.asExpr()
  )
  or
  exists(Attribute attr |
    attr.getObject() = pre.asExpr() and
    attr = next.asExpr()
  )`,
	labels.CLike: `  exists(FunctionCall fc |
    fc.getTarget().hasName(["strcpy", "strncpy", "strcat", "strncat", "memcpy", "memmove", "sprintf", "snprintf"]) and
    fc.getAnArgument() = prev.asExpr() and
    next.asDefiningArgument() = fc.getArgument(0)
  )`,
}
