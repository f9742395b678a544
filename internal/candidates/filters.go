package candidates

import (
	"strings"

	"github.com/scan-io-git/taint-io/pkg/shared/files"
)

var primitiveTypes = map[string]bool{
	"void":    true,
	"int":     true,
	"boolean": true,
	"long":    true,
	"Integer": true,
	"Boolean": true,
	"Object":  true,
}

var blacklistedClasses = map[[2]string]bool{
	{"java.util", "String"}:     true,
	{"java.util", "EnumSet"}:    true,
	{"java.util", "LinkedList"}: true,
	{"java.util", "List"}:       true,
	{"java.io", "PrintStream"}:  true,
}

var blacklistedMethods = map[string]bool{
	"isEqual":    true,
	"toString":   true,
	"equals":     true,
	"canConvert": true,
	"compareTo":  true,
	"compare":    true,
}

// IsPrimitive reports whether a type name is one of the trivial types that never carry taint.
func IsPrimitive(typ string) bool {
	return primitiveTypes[strings.TrimSpace(typ)]
}

// NotOnBlacklist drops noise-only classes, forbidden method names and test locations.
func NotOnBlacklist(f Fact) bool {
	if blacklistedClasses[[2]string{f.Package, f.Class}] {
		return false
	}
	if blacklistedMethods[f.Func] {
		return false
	}
	return !files.IsTestPath(f.Location)
}

// HasNonTrivialReturn holds for constructors and for APIs returning a non-primitive type.
func HasNonTrivialReturn(f Fact) bool {
	if f.IsConstructor() {
		return true
	}
	return !IsPrimitive(f.ReturnType)
}

// HasNonTrivialParameter holds for instance methods and for static methods
// with at least one non-primitive parameter.
func HasNonTrivialParameter(f Fact) bool {
	if !f.IsStatic {
		return true
	}
	return hasNonPrimitiveParameter(f)
}

func hasNonPrimitiveParameter(f Fact) bool {
	// an empty parameter list still counts as one blank type, which is not primitive
	if len(f.ParameterTypes) == 0 {
		return true
	}
	for _, typ := range f.ParameterTypes {
		if !IsPrimitive(typ) {
			return true
		}
	}
	return false
}

// InFixedModule reports whether the location lies inside one of the modules touched by the fix commit.
// With no known modules every location passes.
func InFixedModule(f Fact, modules []string) bool {
	if len(modules) == 0 {
		return true
	}
	for _, m := range modules {
		if strings.Contains(f.Location, m+"/src/main") {
			return true
		}
	}
	return false
}
