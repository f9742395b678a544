package labels

import (
	"fmt"
	"strings"
)

// Ecosystem is the target-language family that selects clause templates.
type Ecosystem int

const (
	JavaLike Ecosystem = iota
	PythonLike
	CLike
)

// Ecosystems lists every supported ecosystem.
var Ecosystems = []Ecosystem{JavaLike, PythonLike, CLike}

func (e Ecosystem) String() string {
	switch e {
	case JavaLike:
		return "java"
	case PythonLike:
		return "python"
	case CLike:
		return "cpp"
	default:
		return fmt.Sprintf("ecosystem(%d)", int(e))
	}
}

// ParseEcosystem maps a language tag to its ecosystem. Tags starting with "c" map to CLike.
func ParseEcosystem(language string) (Ecosystem, error) {
	lang := strings.ToLower(strings.TrimSpace(language))
	switch {
	case lang == "java" || lang == "kotlin":
		return JavaLike, nil
	case lang == "python" || lang == "py":
		return PythonLike, nil
	case strings.HasPrefix(lang, "c") && lang != "csharp":
		return CLike, nil
	}
	return JavaLike, fmt.Errorf("unsupported language %q", language)
}
