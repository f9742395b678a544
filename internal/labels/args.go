package labels

import (
	"regexp"
	"strconv"
	"strings"
)

// ThisArgument names the receiver of a call.
const ThisArgument = "this"

var positionalArg = regexp.MustCompile(`p([0-9]+)`)

// ParameterNames returns the parameter names declared in a signature such as
// "Process exec(String[] cmdarray, String[] envp)". Parameters without a name
// keep their type as the only token.
func ParameterNames(signature string) []string {
	open := strings.Index(signature, "(")
	closing := strings.LastIndex(signature, ")")
	if open < 0 || closing <= open {
		return nil
	}
	inner := strings.TrimSpace(signature[open+1 : closing])
	if inner == "" {
		return nil
	}

	var names []string
	depth := 0
	start := 0
	for i, r := range inner {
		switch r {
		case '<', '[', '(':
			depth++
		case '>', ']', ')':
			depth--
		case ',':
			if depth == 0 {
				names = append(names, lastToken(inner[start:i]))
				start = i + 1
			}
		}
	}
	return append(names, lastToken(inner[start:]))
}

func lastToken(param string) string {
	param = strings.TrimSpace(param)
	if i := strings.Index(param, "="); i >= 0 {
		param = param[:i]
	}
	if i := strings.Index(param, ":"); i >= 0 && !strings.Contains(param, "::") {
		param = param[:i]
	}
	fields := strings.Fields(param)
	if len(fields) == 0 {
		return ""
	}
	name := strings.TrimLeft(fields[len(fields)-1], "*&")
	return strings.TrimRight(name, "[]")
}

// ArgumentIndex resolves a sink or tainted argument reference to a position.
// Accepted forms are "pN" and a parameter name from the signature. The
// receiver yields -1 with ok set.
func ArgumentIndex(signature, arg string) (int, bool) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return 0, false
	}
	if arg == ThisArgument {
		return -1, true
	}
	for i, name := range ParameterNames(signature) {
		if name == arg {
			return i, true
		}
	}
	if m := positionalArg.FindAllStringSubmatch(arg, -1); len(m) > 0 {
		idx, err := strconv.Atoi(m[len(m)-1][1])
		if err == nil {
			return idx, true
		}
	}
	return 0, false
}
